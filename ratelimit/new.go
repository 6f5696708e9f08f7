package ratelimit

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/crudgate/config"
)

// NewFromConfig builds the configured Store and wraps it in a Limiter
// using cfg's limit/window.
func NewFromConfig(cfg config.RateLimit) (*Limiter, error) {
	var store Store
	var err error

	switch cfg.Store {
	case config.RateLimitStoreFile:
		store, err = NewFileStore(cfg.StorageDir)
	case config.RateLimitStoreRedis:
		store, err = NewRedisStore(cfg.RedisAddr, cfg.RedisDB)
	case config.RateLimitStoreMemory, "":
		store = NewMemoryStore()
	default:
		return nil, errors.Newf("unknown rate limit store: %s", cfg.Store)
	}
	if err != nil {
		return nil, err
	}

	window := time.Duration(cfg.WindowSeconds) * time.Second
	return New(store, cfg.MaxRequests, window), nil
}
