// Package config содержит логику чтения конфигурации биржи медикаментов.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	DBPath      string `env:"DB_PATH"`
	SessionDir  string `env:"SESSION_DIR"`

	RedisAddress string        `env:"REDIS_ADDRESS"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	CookieSecret string        `env:"COOKIE_SECRET"`

	BcryptCost          int           `env:"BCRYPT_COST" envDefault:"10"`
	MatchThreshold      float64       `env:"MATCH_THRESHOLD" envDefault:"0.5"`
	ExpirySweepInterval time.Duration `env:"EXPIRY_SWEEP_INTERVAL" envDefault:"1m"`

	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic      string   `env:"KAFKA_TOPIC" envDefault:"medexchange.matches"`
	MatchWebhookURL string   `env:"MATCH_WEBHOOK_URL"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envDBPath := cfg.DBPath
	envSessionDir := cfg.SessionDir

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "PostgreSQL database URI")
	flag.StringVar(&cfg.DBPath, "f", "medexchange.db", "embedded SQLite database path, used without -d")
	flag.StringVar(&cfg.SessionDir, "s", ".sessions", "session state directory, used without REDIS_ADDRESS")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envDBPath != "" {
		cfg.DBPath = envDBPath
	}
	if envSessionDir != "" {
		cfg.SessionDir = envSessionDir
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be in (0, 1], got %v", c.MatchThreshold)
	}
	if c.ExpirySweepInterval < 0 {
		return fmt.Errorf("EXPIRY_SWEEP_INTERVAL must not be negative, got %v", c.ExpirySweepInterval)
	}
	return nil
}
