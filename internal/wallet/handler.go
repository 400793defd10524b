package wallet

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/fintrack/fintrack/internal/response"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	OwnerID     string           `json:"user_id"`
	Name        string           `json:"name"`
	Type        string           `json:"wallet_type"`
	Balance     *decimal.Decimal `json:"balance"`
	CreditLimit *decimal.Decimal `json:"credit_limit"`
}

type updateRequest struct {
	Name        *string          `json:"name"`
	CreditLimit *decimal.Decimal `json:"credit_limit"`
}

// Create provisions a wallet for the owner named in the body.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.OwnerID) == "" || strings.TrimSpace(req.Name) == "" {
		return fiber.NewError(http.StatusBadRequest, "user_id and name are required")
	}
	balance := decimal.Zero
	if req.Balance != nil {
		balance = *req.Balance
	}

	w, err := h.service.Create(c.UserContext(), CreateInput{
		OwnerID:        req.OwnerID,
		Name:           req.Name,
		Type:           req.Type,
		InitialBalance: balance,
		CreditLimit:    req.CreditLimit,
	})
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusCreated, NewView(w))
}

// List returns every wallet of an owner.
func (h *Handler) List(c *fiber.Ctx) error {
	wallets, err := h.service.List(c.UserContext(), c.Params("ownerId"))
	if err != nil {
		return err
	}
	views := make([]View, 0, len(wallets))
	for _, w := range wallets {
		views = append(views, NewView(w))
	}
	return response.JSON(c, http.StatusOK, views)
}

// Get returns one wallet.
func (h *Handler) Get(c *fiber.Ctx) error {
	w, err := h.service.Get(c.UserContext(), c.Params("ownerId"), c.Params("walletId"))
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, NewView(w))
}

// Update changes wallet metadata.
func (h *Handler) Update(c *fiber.Ctx) error {
	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return fiber.NewError(http.StatusBadRequest, "name cannot be empty")
	}

	w, err := h.service.Update(c.UserContext(), UpdateInput{
		OwnerID:     c.Params("ownerId"),
		WalletID:    c.Params("walletId"),
		Name:        req.Name,
		CreditLimit: req.CreditLimit,
	})
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, NewView(w))
}

// Delete removes a wallet and its transactions.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("ownerId"), c.Params("walletId")); err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, fiber.Map{"deleted": true})
}
