package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fintrack/fintrack/internal/cache"
	"github.com/fintrack/fintrack/internal/config"
	"github.com/fintrack/fintrack/internal/response"
	"github.com/fintrack/fintrack/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app         *fiber.App
	cfg         config.Config
	invalidator *cache.Invalidator
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// db and rdb may be nil in development.
func New(cfg config.Config, db *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: response.ErrorHandler(logger),
	})

	invalidator, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: rdb, Logger: logger})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, invalidator: invalidator}, nil
}

// App exposes the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops accepting requests, waits for in-flight ones, then drains
// pending cache evictions.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop http: %w", err))
	}
	if err := s.invalidator.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain cache evictions: %w", err))
	}
	return errors.Join(errs...)
}
