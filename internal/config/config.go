package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string `env:"APP_NAME" envDefault:"FinTrack"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	Host     string `env:"SERVER_HOST" envDefault:"127.0.0.1"`
	Port     int    `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL   string `env:"DATABASE_URL"`
	DBMaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	RedisURL                 string        `env:"REDIS_URL"`
	RedisPoolSize            int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	RedisDialTimeout         time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	RedisOpTimeout           time.Duration `env:"REDIS_OP_TIMEOUT" envDefault:"1s"`
	CacheTTL                 time.Duration `env:"CACHE_TTL" envDefault:"1h"`
	CacheInvalidationTimeout time.Duration `env:"CACHE_INVALIDATION_TIMEOUT" envDefault:"2s"`

	LockTimeout     time.Duration `env:"LEDGER_LOCK_TIMEOUT" envDefault:"5s"`
	MutationTimeout time.Duration `env:"LEDGER_MUTATION_TIMEOUT" envDefault:"10s"`

	IdempotencyTTL     time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	ShutdownPeriod     time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load reads an optional .env file, then the environment, and validates
// the result.
func Load() (Config, error) {
	_ = godotenv.Load() // .env is optional

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field rules. Outside development both PostgreSQL
// and Redis are mandatory.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("SERVER_PORT %d out of range", c.Port)
	}
	if c.LockTimeout <= 0 || c.MutationTimeout <= 0 {
		return fmt.Errorf("LEDGER_LOCK_TIMEOUT and LEDGER_MUTATION_TIMEOUT must be positive")
	}
	if c.LockTimeout > c.MutationTimeout {
		return fmt.Errorf("LEDGER_LOCK_TIMEOUT (%s) must not exceed LEDGER_MUTATION_TIMEOUT (%s)", c.LockTimeout, c.MutationTimeout)
	}
	if !c.IsDev() {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.AppEnv)
		}
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", c.AppEnv)
		}
	}
	return nil
}

// IsDev reports whether the app runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
