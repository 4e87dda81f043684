// Package config reads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

type Config struct {
	Addr     string `env:"FANTASY_ADDR" envDefault:":8080"`
	DataDir  string `env:"FANTASY_DATA_DIR" envDefault:"data"`
	Store    string `env:"FANTASY_STORE" envDefault:"file"`
	SQLite   string `env:"FANTASY_SQLITE_PATH"`
	ExpTable string `env:"FANTASY_EXP_TABLE_PATH"`

	ExpMode          string `env:"FANTASY_EXP_MODE" envDefault:"replace"`
	LeaderboardOrder string `env:"FANTASY_LEADERBOARD_ORDER" envDefault:"kills_exp"`

	CacheTTL    time.Duration `env:"FANTASY_CACHE_TTL" envDefault:"180s"`
	HistoryTTL  time.Duration `env:"FANTASY_HISTORY_TTL" envDefault:"0s"`
	AttackDelay time.Duration `env:"FANTASY_ATTACK_DELAY" envDefault:"5s"`
	TokenTTL    time.Duration `env:"FANTASY_TOKEN_TTL" envDefault:"24h"`

	OTelEndpoint string `env:"FANTASY_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"FANTASY_OTEL_ENABLED" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the optional dotenv files, then the environment. Variables
// already set win over the files.
func Load(dotenv ...string) (Config, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, f := range dotenv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store {
	case StoreFile, StoreSQLite:
	default:
		return fmt.Errorf("FANTASY_STORE must be %q or %q, got %q", StoreFile, StoreSQLite, c.Store)
	}
	if c.CacheTTL < 0 || c.HistoryTTL < 0 || c.AttackDelay < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

// SQLitePath defaults to assets.db inside DataDir.
func (c Config) SQLitePath() string {
	if c.SQLite != "" {
		return c.SQLite
	}
	return filepath.Join(c.DataDir, "assets.db")
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
