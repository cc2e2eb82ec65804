package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"CASESIM_PORT"`
		// MessageRate is the per-connection inbound limit (messages/second).
		MessageRate  float64 `yaml:"message_rate" env:"CASESIM_MESSAGE_RATE"`
		MessageBurst int     `yaml:"message_burst" env:"CASESIM_MESSAGE_BURST"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" env:"CASESIM_REDIS_ADDR"`
		Password string `yaml:"password" env:"CASESIM_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"CASESIM_REDIS_DB"`
		TTL      string `yaml:"ttl" env:"CASESIM_REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"CASESIM_POSTGRES_URL"`
	} `yaml:"postgres"`
	Cases struct {
		TTL string `yaml:"ttl" env:"CASESIM_CASES_TTL"`
	} `yaml:"cases"`
	Backend struct {
		URL     string `yaml:"url" env:"CASESIM_BACKEND_URL"`
		Token   string `yaml:"token" env:"CASESIM_BACKEND_TOKEN"`
		Timeout string `yaml:"timeout" env:"CASESIM_BACKEND_TIMEOUT"`
		// MaxHearts sizes the in-memory economy used when no backend is configured.
		MaxHearts int `yaml:"max_hearts" env:"CASESIM_MAX_HEARTS"`
	} `yaml:"backend"`
	Narration struct {
		BaseURL   string `yaml:"base_url" env:"CASESIM_NARRATION_BASE_URL"`
		Extension string `yaml:"extension" env:"CASESIM_NARRATION_EXTENSION"`
		Timeout   string `yaml:"timeout" env:"CASESIM_NARRATION_TIMEOUT"`
		Verify    bool   `yaml:"verify" env:"CASESIM_NARRATION_VERIFY"`
	} `yaml:"narration"`
	Gameplay struct {
		StrictCaseValidation bool `yaml:"strict_case_validation" env:"CASESIM_STRICT_CASE_VALIDATION"`
	} `yaml:"gameplay"`
	Logging struct {
		File       string `yaml:"file" env:"CASESIM_LOG_FILE"`
		MaxSizeMB  int    `yaml:"max_size_mb" env:"CASESIM_LOG_MAX_SIZE_MB"`
		MaxBackups int    `yaml:"max_backups" env:"CASESIM_LOG_MAX_BACKUPS"`
		MaxAgeDays int    `yaml:"max_age_days" env:"CASESIM_LOG_MAX_AGE_DAYS"`
	} `yaml:"logging"`
}

// Load reads YAML config from path and applies CASESIM_* environment overrides.
// A missing file is not an error; the environment alone can configure the service.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return cfg, err
	}
	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
