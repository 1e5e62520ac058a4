package config

import (
	"fmt"
	"net/url"
	"time"
)

const (
	StoreFile  = "file"
	StoreRedis = "redis"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all application configuration settings.
type Config struct {
	Environment string `envconfig:"ENV" default:"development"`

	HTTPPort        int           `envconfig:"HTTP_PORT" default:"8080"`
	HTTPTimeout     time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	StoreBackend  string `envconfig:"STORE_BACKEND" default:"file"`
	StateFile     string `envconfig:"STATE_FILE" default:"./state.json"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	CDNBaseURL            string        `envconfig:"CDN_BASE_URL" default:"http://localhost:9000"`
	CDNAPIKey             string        `envconfig:"CDN_API_KEY"`
	CDNTimeout            time.Duration `envconfig:"CDN_TIMEOUT" default:"30s"`
	CDNHealthTimeout      time.Duration `envconfig:"CDN_HEALTH_TIMEOUT" default:"5s"`
	FileInfoTTL           time.Duration `envconfig:"FILE_INFO_TTL" default:"5m"`
	FileInfoCache         string        `envconfig:"FILE_INFO_CACHE" default:"memory"`
	AvailabilityBatchSize int           `envconfig:"AVAILABILITY_BATCH_SIZE" default:"10"`
	AvailabilityPause     time.Duration `envconfig:"AVAILABILITY_PAUSE" default:"250ms"`

	DeliveryConcurrency int           `envconfig:"DELIVERY_CONCURRENCY" default:"8"`
	DeliveryURLTimeout  time.Duration `envconfig:"DELIVERY_URL_TIMEOUT" default:"10s"`

	TokenSigningKey string `envconfig:"TOKEN_SIGNING_KEY" default:"dev-signing-key"`
	TokenIssuer     string `envconfig:"TOKEN_ISSUER" default:"tgdl-core"`

	NATSURL     string `envconfig:"NATS_URL"`
	NATSSubject string `envconfig:"NATS_SUBJECT" default:"tgdl.events"`
	EventBuffer int    `envconfig:"EVENT_BUFFER" default:"256"`

	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"10m"`
	MaxURLsPerBatch int           `envconfig:"MAX_URLS_PER_BATCH" default:"50"`
	RetentionFile   string        `envconfig:"RETENTION_FILE"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	switch c.StoreBackend {
	case StoreFile:
		if c.StateFile == "" {
			return fmt.Errorf("state file cannot be empty")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
	default:
		return fmt.Errorf("unknown store backend: %q", c.StoreBackend)
	}

	switch c.FileInfoCache {
	case CacheMemory:
	case CacheRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
	default:
		return fmt.Errorf("unknown file info cache: %q", c.FileInfoCache)
	}

	u, err := url.Parse(c.CDNBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid CDN base URL: %q", c.CDNBaseURL)
	}
	if c.CDNTimeout <= 0 || c.CDNHealthTimeout <= 0 {
		return fmt.Errorf("CDN timeouts must be positive")
	}

	if c.AvailabilityBatchSize <= 0 {
		return fmt.Errorf("availability batch size must be positive: %d", c.AvailabilityBatchSize)
	}
	if c.DeliveryConcurrency <= 0 {
		return fmt.Errorf("delivery concurrency must be positive: %d", c.DeliveryConcurrency)
	}

	if c.TokenSigningKey == "" {
		return fmt.Errorf("token signing key cannot be empty")
	}

	if c.MaxURLsPerBatch <= 0 {
		return fmt.Errorf("max URLs per batch must be positive: %d", c.MaxURLsPerBatch)
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup interval must be positive: %s", c.CleanupInterval)
	}

	return nil
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.StoreBackend == StoreRedis || c.FileInfoCache == CacheRedis
}
