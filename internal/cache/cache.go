// Package cache implements the read-through cache sitting in front of the
// history queries. Entries are serialized JSON with a per-entry TTL; a cache
// failure is never allowed to fail the read path.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// DefaultTTL bounds staleness for all history query keys.
const DefaultTTL = 60 * time.Second

// Store is the key-value collaborator behind the cache. Implementations:
// RedisStore and MemoryStore.
type Store interface {
	// Get returns the raw entry and whether it was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Policy selects how the cache behaves on writes to the underlying store.
type Policy int

const (
	// PolicyTTLOnly never invalidates on write; staleness is bounded only
	// by the entry TTL. This matches the original product behavior.
	PolicyTTLOnly Policy = iota
	// PolicyWriteThrough drops affected keys on every write.
	PolicyWriteThrough
)

type Cache struct {
	store  Store
	policy Policy
	logger *slog.Logger
}

func New(store Store, policy Policy, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, policy: policy, logger: logger}
}

// GetOrCompute returns the cached value for key if present, otherwise runs
// compute, stores the result under key with the given TTL and returns it.
// Store errors on either side are logged and treated as a miss.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var zero T

	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
	} else if ok {
		var value T
		if err := json.Unmarshal(data, &value); err == nil {
			return value, nil
		}
		c.logger.Warn("cache entry corrupt, recomputing", "key", key)
	}

	value, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	if data, err := json.Marshal(value); err != nil {
		c.logger.Warn("cache encode failed", "key", key, "error", err)
	} else if err := c.store.SetWithTTL(ctx, key, data, ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}

	return value, nil
}

// Invalidate drops the given keys. It is a no-op under PolicyTTLOnly and is
// always best-effort: failures are logged, never returned.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c.policy != PolicyWriteThrough {
		return
	}
	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Warn("cache invalidation failed", "key", key, "error", err)
		}
	}
}

// Cache key builders for the three history queries.

func PendingChatsKey(userID string) string {
	return "pendingChats:" + userID
}

func UserChatsKey(userID string) string {
	return "userChats:" + userID
}

func MessagesKey(chatID string) string {
	return "messages:" + chatID
}
