package transaction

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/fintrack/fintrack/internal/ledger"
	"github.com/fintrack/fintrack/internal/response"
)

// Handler exposes transaction HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a transaction HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	OwnerID     string           `json:"user_id"`
	WalletID    string           `json:"wallet_id"`
	Amount      *decimal.Decimal `json:"amount"`
	Type        string           `json:"transaction_type"`
	Category    string           `json:"category"`
	Description string           `json:"description"`
}

type updateRequest struct {
	WalletID    *string          `json:"wallet_id"`
	Amount      *decimal.Decimal `json:"amount"`
	Type        *string          `json:"transaction_type"`
	Category    *string          `json:"category"`
	Description *string          `json:"description"`
}

// Create records a transaction and moves the wallet balance.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.OwnerID) == "" || strings.TrimSpace(req.WalletID) == "" {
		return fiber.NewError(http.StatusBadRequest, "user_id and wallet_id are required")
	}
	if req.Amount == nil {
		return ledger.Errorf(ledger.KindInvalidAmount, "amount is required")
	}
	kind, err := ledger.ParseTxKind(req.Type)
	if err != nil {
		return err
	}

	t, err := h.service.Create(c.UserContext(), ledger.CreateInput{
		OwnerID:  req.OwnerID,
		WalletID: req.WalletID,
		Amount:   *req.Amount,
		Kind:     kind,
		Category: req.Category,
		Note:     req.Description,
	})
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusCreated, t)
}

// List returns the owner's transactions, optionally for one wallet.
func (h *Handler) List(c *fiber.Ctx) error {
	txs, err := h.service.List(c.UserContext(), c.Params("ownerId"), ledger.TransactionFilter{WalletID: c.Query("walletId")})
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, txs)
}

// Get returns one transaction.
func (h *Handler) Get(c *fiber.Ctx) error {
	t, err := h.service.Get(c.UserContext(), c.Params("ownerId"), c.Params("txId"))
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, t)
}

// Update moves, resizes or relabels a transaction.
func (h *Handler) Update(c *fiber.Ctx) error {
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	ownerID, id := c.Params("ownerId"), c.Params("txId")

	if req.Type != nil {
		kind, err := ledger.ParseTxKind(*req.Type)
		if err != nil {
			return err
		}
		current, err := h.service.Get(c.UserContext(), ownerID, id)
		if err != nil {
			return err
		}
		if kind != current.Kind {
			return ledger.Errorf(ledger.KindInvalidKind, "transaction type cannot change from %s to %s", current.Kind, kind)
		}
	}

	t, err := h.service.Update(c.UserContext(), ledger.UpdateInput{
		OwnerID:       ownerID,
		TransactionID: id,
		WalletID:      req.WalletID,
		Amount:        req.Amount,
		Category:      req.Category,
		Note:          req.Description,
	})
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, t)
}

// Delete removes a transaction and reverses its effect on the wallet.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("ownerId"), c.Params("txId")); err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, fiber.Map{"deleted": true})
}
