package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Narrative providers.
const (
	ProviderHTTP      = "http"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelRaw string `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel    slog.Level

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	RedisURL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"tabletop.db"`

	NarrativeProvider string        `env:"NARRATIVE_PROVIDER" envDefault:"http"`
	NarrativeURL      string        `env:"NARRATIVE_URL" envDefault:"http://localhost:8787/narrate"`
	AnthropicAPIKey   string        `env:"ANTHROPIC_API_KEY"`
	ModelName         string        `env:"MODEL_NAME" envDefault:"claude-3-5-haiku-latest"`
	NarrativeTimeout  time.Duration `env:"NARRATIVE_TIMEOUT" envDefault:"60s"`

	RulesPath     string `env:"RULES_PATH"`
	HistoryWindow int    `env:"HISTORY_WINDOW" envDefault:"8"`
	SummaryEvery  int    `env:"SUMMARY_EVERY" envDefault:"10"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	cfg.NarrativeProvider = strings.ToLower(strings.TrimSpace(cfg.NarrativeProvider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageRedis, StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q (supported: redis, sqlite, memory)", c.StorageDriver)
	}
	switch c.NarrativeProvider {
	case ProviderHTTP:
		if c.NarrativeURL == "" {
			return fmt.Errorf("NARRATIVE_URL is required for the http provider")
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	default:
		return fmt.Errorf("invalid NARRATIVE_PROVIDER %q (supported: http, anthropic)", c.NarrativeProvider)
	}
	if c.HistoryWindow < 1 {
		return fmt.Errorf("HISTORY_WINDOW must be at least 1")
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
