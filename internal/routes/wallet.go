package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fintrack/fintrack/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	g := r.Group("/wallets")
	g.Post("", h.Create)
	g.Get("/user/:ownerId", h.List)
	g.Get("/:ownerId/:walletId", h.Get)
	g.Put("/:ownerId/:walletId", h.Update)
	g.Delete("/:ownerId/:walletId", h.Delete)
}
