package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fintrack/fintrack/internal/transaction"
)

// RegisterTransactionRoutes wires transaction endpoints. Every mutation
// goes through the ledger engine.
func RegisterTransactionRoutes(r fiber.Router, h *transaction.Handler) {
	g := r.Group("/transactions")
	g.Post("", h.Create)
	g.Get("/user/:ownerId", h.List)
	g.Get("/:ownerId/:txId", h.Get)
	g.Put("/:ownerId/:txId", h.Update)
	g.Delete("/:ownerId/:txId", h.Delete)
}
