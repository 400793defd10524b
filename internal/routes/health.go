package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fintrack/fintrack/internal/cache"
)

const healthTimeout = 2 * time.Second

// RegisterHealthRoutes adds a readiness endpoint reporting each store.
func RegisterHealthRoutes(app *fiber.App, d Deps, views *cache.Cache) {
	app.Get("/health", func(c *fiber.Ctx) error {
		dbStatus := "disabled"
		redisStatus := "disabled"

		ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
		defer cancel()
		if d.DB != nil {
			dbStatus = "ok"
			if err := d.DB.Ping(ctx); err != nil {
				dbStatus = "unavailable"
				d.Logger.WarnContext(ctx, "health check failed", "store", "postgres", "error", err)
			}
		}
		if views.Enabled() {
			redisStatus = "ok"
			if err := views.Ping(ctx); err != nil {
				redisStatus = "unavailable"
				d.Logger.WarnContext(ctx, "health check failed", "store", "redis", "error", err)
			}
		}

		status := http.StatusOK
		if !healthy(dbStatus) || !healthy(redisStatus) {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"postgres": dbStatus, "redis": redisStatus},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

func healthy(status string) bool {
	return status == "ok" || status == "disabled"
}
