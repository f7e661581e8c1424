package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWindow is a sliding-window Limiter backed by a Redis sorted set per
// key, used in place of Window when internal/config's cache.url is set so
// the window survives a process restart.
type RedisWindow struct {
	client *redis.Client
	window time.Duration
	limit  int
}

// NewRedisWindow parses rawURL (a redis:// connection string) and returns a
// RedisWindow enforcing limit attempts per key per window.
func NewRedisWindow(rawURL string, window time.Duration, limit int) (*RedisWindow, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parsing cache url: %w", err)
	}
	return &RedisWindow{
		client: redis.NewClient(opts),
		window: window,
		limit:  limit,
	}, nil
}

// Allow trims entries older than the window from the key's sorted set and
// allows the attempt only if the trimmed count is below limit, recording now
// in the set only when the attempt is allowed.
func (r *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	cutoff := now.Add(-r.window)
	member := fmt.Sprintf("%d", now.UnixNano())

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", cutoff.UnixNano()))
	count := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("ratelimit: trimming window: %w", err)
	}

	if count.Val() >= int64(r.limit) {
		return false, nil
	}

	pipe = r.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, key, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("ratelimit: recording attempt: %w", err)
	}

	return true, nil
}

// Close releases the underlying Redis client.
func (r *RedisWindow) Close() error {
	return r.client.Close()
}
