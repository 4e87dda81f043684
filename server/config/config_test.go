package config

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Store != StoreFile || cfg.ExpMode != "replace" || cfg.LeaderboardOrder != "kills_exp" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.CacheTTL != 180*time.Second || cfg.HistoryTTL != 0 || cfg.AttackDelay != 5*time.Second || cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("durations = %+v", cfg)
	}
	if cfg.SQLitePath() != filepath.Join("data", "assets.db") {
		t.Fatalf("sqlite path = %q", cfg.SQLitePath())
	}
}

func TestLoadFromEnvAndDotenv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envFile, []byte("FANTASY_STORE=sqlite\nFANTASY_ATTACK_DELAY=1s\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv does not override variables already present
	t.Setenv("FANTASY_ATTACK_DELAY", "250ms")
	t.Setenv("FANTASY_STORE", "")
	os.Unsetenv("FANTASY_STORE")
	t.Setenv("FANTASY_EXP_MODE", "accumulate")

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != StoreSQLite || cfg.AttackDelay != 250*time.Millisecond || cfg.ExpMode != "accumulate" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("FANTASY_STORE", "postgres")
	if _, err := Load(filepath.Join(t.TempDir(), "none.env")); err == nil {
		t.Fatal("expected store error")
	}
	t.Setenv("FANTASY_STORE", "file")
	t.Setenv("FANTASY_CACHE_TTL", "soon")
	_, err := Load(filepath.Join(t.TempDir(), "none.env"))
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}

func TestExitf(t *testing.T) {
	if os.Getenv("TEST_EXITF_SUBPROCESS") == "1" {
		Exitf("fatal: %s", "something broke")
		return
	}
	cmd := exec.Command(os.Args[0], "-test.run=^TestExitf$")
	cmd.Env = append(os.Environ(), "TEST_EXITF_SUBPROCESS=1")
	out, err := cmd.CombinedOutput()
	exitErr, ok := err.(*exec.ExitError)
	if !ok || exitErr.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %v", err)
	}
	if !strings.Contains(string(out), "fatal: something broke") {
		t.Fatalf("output = %q", out)
	}
}
