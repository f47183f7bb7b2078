package config

import (
	"errors"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// Load parses environment variables into a new T.
//
// The first call loads a .env file from the working directory when one
// exists; variables already set in the process environment win. Results are
// not cached: callers build their configuration once at startup and pass it
// down explicitly.
//
// Example:
//
//	type PayPalConfig struct {
//		ClientID string `env:"PAYPAL_CLIENT_ID,notEmpty"`
//	}
//
//	cfg, err := config.Load[PayPalConfig]()
func Load[T any](opts ...env.Options) (T, error) {
	dotenvOnce.Do(func() {
		// a missing .env is fine
		_ = godotenv.Load()
	})

	var cfg T
	var err error
	if len(opts) > 0 {
		err = env.ParseWithOptions(&cfg, opts[0])
	} else {
		err = env.Parse(&cfg)
	}
	if err != nil {
		var zero T
		return zero, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// MustLoad is like Load but panics on error.
func MustLoad[T any](opts ...env.Options) T {
	cfg, err := Load[T](opts...)
	if err != nil {
		panic(err)
	}
	return cfg
}
