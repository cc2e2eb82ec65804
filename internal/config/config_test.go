package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  port: "9000"
backend:
  url: http://backend.local
  timeout: 3s
gameplay:
  strict_case_validation: true
narration:
  base_url: https://cdn.local/narration
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CASESIM_BACKEND_URL", "http://override.local")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Fatalf("expected yaml port, got %q", cfg.Server.Port)
	}
	if cfg.Backend.URL != "http://override.local" {
		t.Fatalf("expected env override, got %q", cfg.Backend.URL)
	}
	if !cfg.Gameplay.StrictCaseValidation {
		t.Fatalf("expected strict validation")
	}
	if got := TTLDuration(cfg.Backend.Timeout, time.Second); got != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %v", got)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("CASESIM_PORT", "7000")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "7000" {
		t.Fatalf("expected env port, got %q", cfg.Server.Port)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("nonsense", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for invalid value, got %v", got)
	}
}
