package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fintrack/fintrack/internal/ledger"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// JSON writes a successful envelope.
func JSON(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(Envelope{Success: true, Data: data})
}

// StatusFor maps a ledger error kind to an HTTP status code.
func StatusFor(kind ledger.Kind) int {
	switch kind {
	case ledger.KindInvalidAmount, ledger.KindInvalidKind:
		return http.StatusBadRequest
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindInsufficientFunds, ledger.KindInsufficientCredit:
		return http.StatusUnprocessableEntity
	case ledger.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Kinds for errors raised by the HTTP layer itself rather than the ledger.
const (
	KindInvalidRequest = "invalid_request"
	KindUnprocessable  = "unprocessable_request"
	KindUnavailable    = "unavailable"
	KindInternal       = "internal_error"
)

// kindForStatus names the status of a fiber.Error so every error envelope
// carries a kind.
func kindForStatus(status int) string {
	switch {
	case status == http.StatusNotFound:
		return string(ledger.KindNotFound)
	case status == http.StatusConflict:
		return string(ledger.KindConflict)
	case status == http.StatusUnprocessableEntity:
		return KindUnprocessable
	case status == http.StatusServiceUnavailable:
		return KindUnavailable
	case status >= http.StatusInternalServerError:
		return KindInternal
	default:
		return KindInvalidRequest
	}
}

// ErrorHandler renders every error returned by a handler as an envelope.
// Ledger errors keep their message and kind; server failures are logged
// and reported without internal detail.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			kind := kindForStatus(fe.Code)
			if fe.Code == http.StatusConflict || fe.Code == http.StatusServiceUnavailable {
				c.Set(fiber.HeaderRetryAfter, "1")
			}
			return c.Status(fe.Code).JSON(Envelope{Error: fe.Message, Kind: kind})
		}

		kind := ledger.KindOf(err)
		status := StatusFor(kind)
		message := err.Error()
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(c.UserContext(), "request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.String("kind", string(kind)),
				slog.Any("error", err),
			)
			if kind == "" {
				kind = ledger.KindPersistence
				message = "internal server error"
			}
		}
		if kind == ledger.KindConflict {
			c.Set(fiber.HeaderRetryAfter, "1")
		}
		return c.Status(status).JSON(Envelope{Error: message, Kind: string(kind)})
	}
}
