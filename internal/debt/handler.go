package debt

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/fintrack/fintrack/internal/ledger"
	"github.com/fintrack/fintrack/internal/response"
)

// Handler exposes debt HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a debt HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	OwnerID      string           `json:"user_id"`
	WalletID     *string          `json:"wallet_id"`
	CreditorName string           `json:"creditor_name"`
	Amount       *decimal.Decimal `json:"amount"`
	InterestRate *decimal.Decimal `json:"interest_rate"`
	DueDate      *string          `json:"due_date"`
	Status       string           `json:"status"`
}

type updateRequest struct {
	WalletID     *string          `json:"wallet_id"`
	CreditorName *string          `json:"creditor_name"`
	Amount       *decimal.Decimal `json:"amount"`
	InterestRate *decimal.Decimal `json:"interest_rate"`
	DueDate      *string          `json:"due_date"`
	Status       *string          `json:"status"`
}

// parseDueDate accepts RFC 3339 timestamps and plain dates.
func parseDueDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*raw)
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, fiber.NewError(http.StatusBadRequest, "due_date must be RFC 3339 or YYYY-MM-DD")
}

// Create records a debt.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.OwnerID) == "" || strings.TrimSpace(req.CreditorName) == "" {
		return fiber.NewError(http.StatusBadRequest, "user_id and creditor_name are required")
	}
	if req.Amount == nil {
		return ledger.Errorf(ledger.KindInvalidAmount, "amount is required")
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		return err
	}

	d, err := h.service.Create(c.UserContext(), CreateInput{
		OwnerID:      req.OwnerID,
		WalletID:     req.WalletID,
		CreditorName: req.CreditorName,
		Amount:       *req.Amount,
		InterestRate: req.InterestRate,
		DueDate:      due,
		Status:       req.Status,
	})
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusCreated, d)
}

// List returns the owner's debts.
func (h *Handler) List(c *fiber.Ctx) error {
	debts, err := h.service.List(c.UserContext(), c.Params("ownerId"))
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, debts)
}

// Get returns one debt.
func (h *Handler) Get(c *fiber.Ctx) error {
	d, err := h.service.Get(c.UserContext(), c.Params("ownerId"), c.Params("debtId"))
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, d)
}

// Update applies a partial change to a debt.
func (h *Handler) Update(c *fiber.Ctx) error {
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if req.CreditorName != nil && strings.TrimSpace(*req.CreditorName) == "" {
		return fiber.NewError(http.StatusBadRequest, "creditor_name cannot be empty")
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		return err
	}

	d, err := h.service.Update(c.UserContext(), UpdateInput{
		OwnerID:      c.Params("ownerId"),
		DebtID:       c.Params("debtId"),
		WalletID:     req.WalletID,
		CreditorName: req.CreditorName,
		Amount:       req.Amount,
		InterestRate: req.InterestRate,
		DueDate:      due,
		Status:       req.Status,
	})
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, d)
}

// Delete removes a debt.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("ownerId"), c.Params("debtId")); err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, fiber.Map{"deleted": true})
}
