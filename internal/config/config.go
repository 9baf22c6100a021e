// Package config loads service settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/odysseus.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// RedisURL switches team labels to Redis when set.
	RedisURL     string        `env:"REDIS_URL"`
	TeamLabelTTL time.Duration `env:"TEAM_LABEL_TTL" envDefault:"0s"`

	CatalogURL     string `env:"CATALOG_URL,required"`
	OracleURL      string `env:"ORACLE_URL,required"`
	LeaderboardURL string `env:"LEADERBOARD_URL"`

	OracleTimeout     time.Duration `env:"ORACLE_TIMEOUT" envDefault:"30s"`
	HTTPClientTimeout time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"15s"`

	// DebugPINHash is a bcrypt hash. Empty disables the range override.
	DebugPINHash string   `env:"DEBUG_PIN_HASH"`
	CORSOrigins  []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Load reads .env files (when present) and then the process environment.
// Variables already set in the environment win over .env values.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.LeaderboardURL == "" {
		cfg.LeaderboardURL = cfg.OracleURL
	}
	return &cfg, nil
}
