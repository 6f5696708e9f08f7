package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements the sliding window as a sorted set per key:
// ZADD one member per request scored by its timestamp, ZREMRANGEBYSCORE
// trims anything older than the window, ZCARD gives the current count.
// Pool sizing/timeouts follow the teacher's database connection
// tuning, scaled down for a lightweight rate-limit client.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to ping redis")
	}
	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := time.Now()
	cutoff := now.Add(-window)
	zkey := "crudgate:ratelimit:" + key

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, zkey, "-inf", fmt.Sprintf("%d", cutoff.UnixNano()))
	card := pipe.ZCard(ctx, zkey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, errors.Wrap(err, "failed to trim rate limit window")
	}

	count, err := card.Result()
	if err != nil {
		return Decision{}, errors.Wrap(err, "failed to read rate limit count")
	}

	if int(count) >= limit {
		oldest, err := r.client.ZRangeWithScores(ctx, zkey, 0, 0).Result()
		resetAt := now.Add(window)
		if err == nil && len(oldest) > 0 {
			resetAt = time.Unix(0, int64(oldest[0].Score)).Add(window)
		}
		return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: resetAt}, nil
	}

	member := fmt.Sprintf("%d-%d", now.UnixNano(), count)
	pipe2 := r.client.TxPipeline()
	pipe2.ZAdd(ctx, zkey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe2.Expire(ctx, zkey, window)
	if _, err := pipe2.Exec(ctx); err != nil {
		return Decision{}, errors.Wrap(err, "failed to record rate limit request")
	}

	return Decision{Allowed: true, Limit: limit, Remaining: limit - int(count) - 1, ResetAt: now.Add(window)}, nil
}

func (r *RedisStore) Close() error { return r.client.Close() }
