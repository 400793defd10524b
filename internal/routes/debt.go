package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fintrack/fintrack/internal/debt"
)

func RegisterDebtRoutes(r fiber.Router, h *debt.Handler) {
	g := r.Group("/debts")
	g.Post("", h.Create)
	g.Get("/user/:ownerId", h.List)
	g.Get("/:ownerId/:debtId", h.Get)
	g.Put("/:ownerId/:debtId", h.Update)
	g.Delete("/:ownerId/:debtId", h.Delete)
}
