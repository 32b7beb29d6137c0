package config

import (
	"fmt"
	"strings" // For LogLevel normalization
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"khatm_bot/internal/domain/khatm"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string `env:"TELEGRAM_TOKEN"`
	AdminTelegramID int64  `env:"ADMIN_TELEGRAM_ID"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	Environment     string `env:"ENVIRONMENT" envDefault:"development"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"khatm.db"`

	TotalPages      int                    `env:"TOTAL_PAGES" envDefault:"604"`
	OnCycleComplete khatm.CompletionPolicy `env:"ON_CYCLE_COMPLETE" envDefault:"reset"`
	TxMaxAttempts   uint                   `env:"TX_MAX_ATTEMPTS" envDefault:"0"` // 0 = bounded by TX_MAX_ELAPSED only
	TxMaxElapsed    time.Duration          `env:"TX_MAX_ELAPSED" envDefault:"30s"`

	CronSpecAudit string `env:"CRON_SPEC_AUDIT" envDefault:"0 * * * *"` // Default: hourly

	QuranAPIBaseURL string        `env:"QURAN_API_BASE_URL" envDefault:"https://api.quran.com/api/v4"`
	QuranAPITimeout time.Duration `env:"QURAN_API_TIMEOUT" envDefault:"10s"`

	MetricsAddr string `env:"METRICS_ADDR"`
	NATSURL     string `env:"NATS_URL"`
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()
	return Parse(env.Options{})
}

// Parse reads configuration from the process environment, or from
// opts.Environment when it is set.
func Parse(opts env.Options) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Environment = strings.ToLower(cfg.Environment)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	switch cfg.StorageDriver {
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
	case StorageSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("SQLITE_PATH is not set")
		}
	case StorageMemory:
	default:
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	if cfg.TotalPages <= 0 {
		return nil, fmt.Errorf("invalid TOTAL_PAGES: %d", cfg.TotalPages)
	}

	policy, err := khatm.ParseCompletionPolicy(strings.ToLower(string(cfg.OnCycleComplete)))
	if err != nil {
		return nil, fmt.Errorf("invalid ON_CYCLE_COMPLETE %q: %w", cfg.OnCycleComplete, err)
	}
	cfg.OnCycleComplete = policy

	if cfg.TxMaxAttempts == 0 && cfg.TxMaxElapsed <= 0 {
		return nil, fmt.Errorf("TX_MAX_ATTEMPTS and TX_MAX_ELAPSED cannot both be unbounded")
	}

	return cfg, nil
}
