package routes

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fintrack/fintrack/internal/cache"
	"github.com/fintrack/fintrack/internal/config"
	"github.com/fintrack/fintrack/internal/debt"
	"github.com/fintrack/fintrack/internal/events"
	"github.com/fintrack/fintrack/internal/ledger"
	"github.com/fintrack/fintrack/internal/middleware"
	"github.com/fintrack/fintrack/internal/transaction"
	"github.com/fintrack/fintrack/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes. DB and
// Cache may be nil in development, in which case the in-memory store is
// used and caching is disabled.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. The returned
// invalidator must be drained on shutdown.
func Setup(app *fiber.App, d Deps) (*cache.Invalidator, error) {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(d.Cfg.CORSAllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Idempotency-Key, X-Request-ID",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	views := cache.New(d.Cache, d.Cfg.CacheTTL, d.Logger)
	invalidator := cache.NewInvalidator(views, d.Cfg.CacheInvalidationTimeout, d.Logger)
	subscribers := []events.Publisher{invalidator, events.NewLogPublisher(d.Logger)}

	var (
		backend  ledger.Backend
		debtRepo debt.Repository
	)
	if d.DB != nil {
		backend = ledger.NewPostgresStore(d.DB, d.Cfg.LockTimeout)
		debtRepo = debt.NewPostgresRepository(d.DB)
	} else {
		backend = ledger.NewMemoryStore(d.Cfg.LockTimeout)
		memDebts := debt.NewMemoryRepository()
		// Postgres detaches debts with ON DELETE SET NULL; memory mode
		// does it by listening for wallet deletions.
		subscribers = append(subscribers, memDebts)
		debtRepo = memDebts
	}
	bus := events.Multi(subscribers...)

	engine := ledger.NewEngine(backend, bus, d.Logger, d.Cfg.MutationTimeout)
	walletSvc := wallet.NewService(backend, views, bus, d.Logger)
	transactionSvc := transaction.NewService(engine, backend, views)
	debtSvc := debt.NewService(debtRepo, backend, views, bus, d.Logger)

	RegisterHealthRoutes(app, d, views)

	api := app.Group("/api")
	RegisterWalletRoutes(api, wallet.NewHandler(walletSvc))
	RegisterTransactionRoutes(api, transaction.NewHandler(transactionSvc))
	RegisterDebtRoutes(api, debt.NewHandler(debtSvc))

	return invalidator, nil
}
