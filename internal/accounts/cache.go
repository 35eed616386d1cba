package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultCacheTTL = 60 * time.Second

// Cache stores account health for a bounded time
type Cache interface {
	Get(ctx context.Context, bookmaker string) (Health, bool, error)
	Set(ctx context.Context, bookmaker string, h Health) error
	Invalidate(ctx context.Context, bookmaker string) error
	InvalidateAll(ctx context.Context) error
}

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
)

type cachedHealth struct {
	health    Health
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cachedHealth
	now     func() time.Time
}

// NewMemoryCache creates a cache; ttl <= 0 uses DefaultCacheTTL
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]cachedHealth),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, bookmaker string) (Health, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[bookmaker]
	if !ok || !c.now().Before(e.expiresAt) {
		return Health{}, false, nil
	}
	return e.health, true, nil
}

func (c *MemoryCache) Set(_ context.Context, bookmaker string, h Health) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[bookmaker] = cachedHealth{health: h, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, bookmaker string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, bookmaker)
	return nil
}

func (c *MemoryCache) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cachedHealth)
	return nil
}

// RedisCache shares account health between instances through Redis
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache with keys "{prefix}{bookmaker}"
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "arbwatch:account:"
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, bookmaker string) (Health, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+bookmaker).Bytes()
	if errors.Is(err, redis.Nil) {
		return Health{}, false, nil
	}
	if err != nil {
		return Health{}, false, fmt.Errorf("redis get: %w", err)
	}

	var h Health
	if err := json.Unmarshal(raw, &h); err != nil {
		return Health{}, false, fmt.Errorf("decode cached health: %w", err)
	}
	return h, true, nil
}

func (c *RedisCache) Set(ctx context.Context, bookmaker string, h Health) error {
	raw, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode health: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+bookmaker, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, bookmaker string) error {
	if err := c.client.Del(ctx, c.prefix+bookmaker).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// InvalidateAll removes every key under the prefix using SCAN
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
