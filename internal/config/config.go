package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgconfig "github.com/natusdeed/fashion-site-sub000/pkg/config"
)

// Store backends.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds all configuration for the storefront state service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort     int    `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
	PublicOrigin string `env:"PUBLIC_ORIGIN" envDefault:"http://localhost:3000"`

	// Persistent store
	StoreBackend       string `env:"STORE_BACKEND" envDefault:"redis"`
	RedisAddr          string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass          string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB            int    `env:"REDIS_DB" envDefault:"0"`
	CartKey            string `env:"CART_STORAGE_KEY" envDefault:"lola-drip-cart"`
	WishlistKey        string `env:"WISHLIST_STORAGE_KEY" envDefault:"lola-drip-wishlist"`
	SessionIdleMinutes int    `env:"SESSION_IDLE_TTL_MINUTES" envDefault:"30"`

	// Catalog. Empty URL selects the built-in launch collection.
	CatalogDatabaseURL string `env:"CATALOG_DATABASE_URL" envDefault:""`
	SeedCatalog        bool   `env:"CATALOG_SEED" envDefault:"false"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Wishlist share rate limit, per client IP.
	ShareRateLimitRPS   float64 `env:"SHARE_RATE_LIMIT_RPS" envDefault:"1"`
	ShareRateLimitBurst int     `env:"SHARE_RATE_LIMIT_BURST" envDefault:"5"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return load(nil)
}

// LoadFrom reads configuration from environ instead of the process
// environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	return load(environ)
}

func load(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadWithEnv(cfg, environ); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	cfg.PublicOrigin = strings.TrimRight(cfg.PublicOrigin, "/")
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SessionIdleTTL is how long an unused session keeps its containers.
func (c *Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	u, err := url.Parse(c.PublicOrigin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("PUBLIC_ORIGIN must be an absolute URL, got %q", c.PublicOrigin)
	}
	switch c.StoreBackend {
	case StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreRedis, StoreMemory, c.StoreBackend)
	}
	if c.CartKey == "" || c.WishlistKey == "" {
		return fmt.Errorf("storage keys must not be empty")
	}
	if c.CartKey == c.WishlistKey {
		return fmt.Errorf("CART_STORAGE_KEY and WISHLIST_STORAGE_KEY must differ")
	}
	if c.SessionIdleMinutes < 0 {
		return fmt.Errorf("SESSION_IDLE_TTL_MINUTES must not be negative")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.OTELSampleRate)
	}
	if c.ShareRateLimitRPS <= 0 || c.ShareRateLimitBurst < 1 {
		return fmt.Errorf("share rate limit must be positive")
	}
	return nil
}
