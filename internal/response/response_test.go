package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/fintrack/internal/ledger"
	"github.com/fintrack/fintrack/internal/logging"
)

func TestErrorHandlerMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{ledger.Errorf(ledger.KindInvalidAmount, "amount must be positive"), 400, "invalid_amount"},
		{ledger.Errorf(ledger.KindInvalidKind, "unknown kind"), 400, "invalid_kind"},
		{fmt.Errorf("get: %w", ledger.Errorf(ledger.KindNotFound, "wallet w1 not found")), 404, "not_found"},
		{&ledger.PolicyError{Kind: ledger.KindInsufficientFunds}, 422, "insufficient_funds"},
		{&ledger.PolicyError{Kind: ledger.KindInsufficientCredit}, 422, "insufficient_credit"},
		{ledger.Errorf(ledger.KindConflict, "retry"), 409, "conflict"},
		{ledger.Errorf(ledger.KindPersistence, "commit failed"), 500, "persistence_failure"},
		{errors.New("pq: secret"), 500, "persistence_failure"},
		{fiber.NewError(fiber.StatusBadRequest, "invalid request body"), 400, "invalid_request"},
		{fiber.ErrNotFound, 404, "not_found"},
		{fiber.NewError(fiber.StatusConflict, "duplicate request currently processing"), 409, "conflict"},
		{fiber.NewError(fiber.StatusUnprocessableEntity, "Idempotency-Key reused"), 422, "unprocessable_request"},
		{fiber.NewError(fiber.StatusServiceUnavailable, "idempotency store unavailable"), 503, "unavailable"},
	}

	for _, tc := range cases {
		app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
		app.Get("/", func(c *fiber.Ctx) error { return tc.err })

		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, tc.kind)

		var env Envelope
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
		resp.Body.Close()
		assert.False(t, env.Success)
		assert.Equal(t, tc.kind, env.Kind)
		assert.NotContains(t, env.Error, "secret")
	}
}

func TestJSONWrapsData(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return JSON(c, fiber.StatusCreated, fiber.Map{"id": "x"}) })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var env struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.True(t, env.Success)
	assert.Equal(t, "x", env.Data["id"])
}
