// Package config loads the session client configuration from a YAML file and the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config is the root client configuration.
// Sources by priority: explicit path, CONFIG_PATH, environment only.
// Environment variables always overlay values read from the file.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Session SessionConfig `yaml:"session"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
}

// ServiceConfig describes the remote auth service.
type ServiceConfig struct {
	BaseURL       string        `yaml:"base_url" env:"AUTH_BASE_URL"`
	RegisterPath  string        `yaml:"register_path" env:"AUTH_REGISTER_PATH" env-default:"/auth/register"`
	LoginPath     string        `yaml:"login_path" env:"AUTH_LOGIN_PATH" env-default:"/auth/login"`
	RefreshPath   string        `yaml:"refresh_path" env:"AUTH_REFRESH_PATH" env-default:"/auth/refresh"`
	ValidatePath  string        `yaml:"validate_path" env:"AUTH_VALIDATE_PATH" env-default:"/auth/validate"`
	RefreshHeader string        `yaml:"refresh_header" env:"AUTH_REFRESH_HEADER" env-default:"X-Refresh-Token"`
	Timeout       time.Duration `yaml:"timeout" env:"AUTH_TIMEOUT" env-default:"30s"`
}

// SessionConfig controls authentication state caching.
type SessionConfig struct {
	Freshness time.Duration `yaml:"freshness" env:"SESSION_FRESHNESS" env-default:"5m"`
}

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	Kind      string `yaml:"kind" env:"STORE_KIND" env-default:"file"`
	URL       string `yaml:"url" env:"STORE_URL" env-default:"~/.authsession/credentials.json"`
	RedisAddr string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Prefix    string `yaml:"prefix" env:"STORE_PREFIX" env-default:"authsession:"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// SlogLevel maps the configured level, unknown values fall back to info.
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Validate checks values cleanenv cannot express.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("unsupported store kind: %q", c.Store.Kind)
	}
	if c.Service.BaseURL == "" {
		return fmt.Errorf("base url was empty: set service.base_url, AUTH_BASE_URL or --url")
	}
	if !strings.HasPrefix(c.Service.BaseURL, "http://") && !strings.HasPrefix(c.Service.BaseURL, "https://") {
		return fmt.Errorf("invalid base url: %q", c.Service.BaseURL)
	}
	if c.Store.Kind == StoreFile && c.Store.URL == "" {
		return fmt.Errorf("store url was empty")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unsupported log format: %q", c.Log.Format)
	}
	return nil
}

// Load reads and validates configuration
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads configuration without validating it, so callers can apply overrides first.
// An optional .env file in the working directory is applied to the environment before reading.
func Read(path string) (*Config, error) {
	_ = godotenv.Load()
	var cfg Config

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH or env vars: %w", err)
	}
	return &cfg, nil
}
