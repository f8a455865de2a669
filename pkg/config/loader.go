package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the provided struct using its
// `env` / `envDefault` tags.
//
//	type Config struct {
//	    Port      int    `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
//	    RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
//	}
func Load(cfg any) error {
	return LoadWithEnv(cfg, nil)
}

// LoadWithEnv is like Load but reads from the given map instead of the
// process environment when environ is non-nil.
func LoadWithEnv(cfg any, environ map[string]string) error {
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
