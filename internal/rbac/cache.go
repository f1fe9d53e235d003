package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache memoizes derived authorization data in Redis under an isolating
// namespace. When disabled, Remember degrades to calling the loader directly
// and nothing is persisted. Cache failures never fail a read: a broken Redis
// degrades to recomputation from the store.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	enabled bool
	logger  *slog.Logger
	group   singleflight.Group
}

// NewCache constructs the cache layer from engine configuration.
func NewCache(client *redis.Client, cfg Config, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		client:  client,
		ttl:     cfg.CacheTTL,
		prefix:  cfg.CachePrefix,
		enabled: cfg.CacheEnabled && client != nil,
		logger:  logger,
	}
}

// Enabled reports whether values are actually persisted.
func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

func (c *Cache) namespaced(key string) string {
	return c.prefix + ":" + key
}

// Get loads a cached value into dest. The second return is false on miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	payload, err := c.client.Get(ctx, c.namespaced(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Put stores a value under key. A zero ttl uses the configured default.
func (c *Cache) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	return c.client.Set(ctx, c.namespaced(key), raw, ttl).Err()
}

// Forget removes the given keys from the namespace.
func (c *Cache) Forget(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.namespaced(k)
	}
	return c.client.Del(ctx, full...).Err()
}

// Flush clears every entry under this namespace and nothing else.
func (c *Cache) Flush(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	var cursor uint64
	pattern := c.prefix + ":*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// remember returns the cached value for key, computing and storing it on a
// miss. Concurrent in-process misses for the same key are collapsed with
// singleflight; cross-process races may recompute and overwrite with
// equivalent values, which is acceptable since results are pure functions of
// store state.
func remember[T any](ctx context.Context, c *Cache, key string, compute func(context.Context) (T, error)) (T, error) {
	if !c.Enabled() {
		return compute(ctx)
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		var cached T
		hit, err := c.Get(ctx, key, &cached)
		if err != nil {
			c.logger.Warn("cache read failed, recomputing", slog.String("key", key), slog.Any("error", err))
		}
		if hit {
			return cached, nil
		}

		value, err := compute(ctx)
		if err != nil {
			return value, err
		}
		if err := c.Put(ctx, key, value, 0); err != nil {
			c.logger.Warn("cache write failed", slog.String("key", key), slog.Any("error", err))
		}
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
