package cache

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/crudgate/config"
)

// NewFromConfig builds the configured Store and wraps it in a Manager
// using cfg's TTL/exclude/vary-by policy.
func NewFromConfig(cfg config.Cache) (*Manager, error) {
	var store Store
	var err error

	switch cfg.Driver {
	case config.CacheDriverBigcache:
		store, err = NewBigcacheStore(cfg.TTL)
	case config.CacheDriverFreecache:
		store = NewFreecacheStore(64 << 20)
	case config.CacheDriverRistretto:
		store, err = NewRistrettoStore()
	case config.CacheDriverFastcache:
		store = NewFastcacheStore(64 << 20)
	case config.CacheDriverCcache:
		store = NewCcacheStore(10000)
	case config.CacheDriverRedis:
		store, err = NewRedisStore(cfg.RedisAddr, cfg.RedisDB)
	case config.CacheDriverMemory, "":
		store = NewMemoryStore(cfg.TTL)
	default:
		return nil, errors.Newf("unknown cache driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	perTableTTL := make(map[string]time.Duration, len(cfg.PerTable))
	for table, raw := range cfg.PerTable {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid cache ttl for table %s", table)
		}
		perTableTTL[table] = d
	}

	return NewManager(store, cfg.TTL, perTableTTL, cfg.ExcludeTables, cfg.VaryBy), nil
}
