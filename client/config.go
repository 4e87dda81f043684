package client

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config points the client at a server.
type Config struct {
	APIBase string `env:"FANTASY_API_BASE" envDefault:"http://127.0.0.1:8080"`
	WSURL   string `env:"FANTASY_WS_URL" envDefault:"ws://127.0.0.1:8080/ws"`
	Profile string `env:"FANTASY_PROFILE"`
	Dir     string `env:"FANTASY_CLIENT_DIR"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

var unsafeProfileChars = regexp.MustCompile(`[^a-z0-9._-]`)

func sanitize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = unsafeProfileChars.ReplaceAllString(s, "")
	if s == "" {
		s = "default"
	}
	return s
}

// profileID is FANTASY_PROFILE, or the executable name plus a short hash
// of its path so two copies of the binary keep separate tokens.
func (c Config) profileID() string {
	if p := strings.TrimSpace(c.Profile); p != "" {
		return sanitize(p)
	}
	exe, _ := os.Executable()
	base := strings.TrimSuffix(filepath.Base(exe), filepath.Ext(exe))
	sum := sha1.Sum([]byte(exe))
	return sanitize(base) + "-" + hex.EncodeToString(sum[:])[:8]
}

// ConfigDir is <user config dir>/FantasyRPG/<profile> unless Dir is set.
func (c Config) ConfigDir() (string, error) {
	dir := c.Dir
	if dir == "" {
		root, err := os.UserConfigDir()
		if err != nil {
			home, herr := os.UserHomeDir()
			if herr != nil {
				return "", err
			}
			root = filepath.Join(home, ".config")
		}
		dir = filepath.Join(root, "FantasyRPG", c.profileID())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func (c Config) tokenPath() (string, error) {
	dir, err := c.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "token"), nil
}

func (c Config) SaveToken(tok string) error {
	p, err := c.tokenPath()
	if err != nil {
		return err
	}
	return os.WriteFile(p, []byte(strings.TrimSpace(tok)), 0o600)
}

// LoadToken returns "" when no token was saved.
func (c Config) LoadToken() string {
	p, err := c.tokenPath()
	if err != nil {
		return ""
	}
	b, _ := os.ReadFile(p)
	return strings.TrimSpace(string(b))
}

func (c Config) ClearToken() error {
	p, err := c.tokenPath()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
