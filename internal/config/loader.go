package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/veranemoloko/tgdl-core/internal/domain"
)

// Load reads an optional .env file, then environment variables with the
// TGDL prefix, validates the result and ensures the state directory exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("TGDL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.StoreBackend == StoreFile {
		dir := filepath.Dir(cfg.StateFile)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("directory created or verified", "path", dir)
	}

	return &cfg, nil
}

type retentionFile struct {
	Retention map[domain.RetentionTier]time.Duration `yaml:"retention"`
}

// LoadRetentionPolicy returns the default retention windows overridden by
// the tiers listed in the YAML file at path. An empty path means defaults.
func LoadRetentionPolicy(path string) (domain.RetentionPolicy, error) {
	policy := domain.DefaultRetentionPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read retention file %q: %w", path, err)
	}

	var rf retentionFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("cannot unmarshal retention file: %w", err)
	}

	for tier, window := range rf.Retention {
		if !tier.Valid() {
			return nil, fmt.Errorf("unknown retention tier %q", tier)
		}
		if window <= 0 {
			return nil, fmt.Errorf("retention window for %s must be positive, got %s", tier, window)
		}
		policy[tier] = window
	}

	return policy, nil
}

// SetupLogger configures the global slog logger based on configuration.
// Supports "json" or "text" formats and log levels: debug, info, warn, error.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("env", cfg.Environment)
	slog.SetDefault(logger)
	return logger
}
