package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// Category is a semantic class of upstream data. It selects TTLs and key prefixes.
type Category string

// Data categories.
const (
	CategoryFixtures  Category = "fixtures"
	CategoryUpcoming  Category = "upcoming"
	CategoryLive      Category = "live"
	CategoryTeamStats Category = "team_stats"
)

// Durable tier TTLs, stable data first.
const (
	TTLFixtures  = 6 * time.Hour
	TTLUpcoming  = 2 * time.Hour
	TTLLive      = 1 * time.Minute
	TTLTeamStats = 24 * time.Hour
)

// CacheKeyPrefix namespaces every durable cache key.
const CacheKeyPrefix = "touchline:cache:"

// redisExpiryGrace keeps the physical Redis key alive slightly past the logical TTL
// so that expiry is always decided by CacheEntry.Expired.
const redisExpiryGrace = time.Minute

// ErrCacheNotFound is returned when a cache key does not exist
var ErrCacheNotFound = errors.New("cache: key not found")

// DurableTTL returns the durable tier TTL for the category.
func (c Category) DurableTTL() time.Duration {
	switch c {
	case CategoryFixtures:
		return TTLFixtures
	case CategoryUpcoming:
		return TTLUpcoming
	case CategoryLive:
		return TTLLive
	case CategoryTeamStats:
		return TTLTeamStats
	default:
		return TTLLive
	}
}

// CacheKey builds "touchline:cache:{category}[:{params}]".
func CacheKey(category Category, params string) string {
	if params == "" {
		return CacheKeyPrefix + string(category)
	}
	return CacheKeyPrefix + string(category) + ":" + params
}

// CacheEntry is an immutable cached value. A write replaces the whole entry.
type CacheEntry struct {
	Value    json.RawMessage `json:"value"`
	StoredAt time.Time       `json:"stored_at"`
	TTL      time.Duration   `json:"ttl"`
}

// NewCacheEntry marshals v into a new entry stamped at now.
func NewCacheEntry(v interface{}, now time.Time, ttl time.Duration) (*CacheEntry, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to marshal value: %w", err)
	}
	return &CacheEntry{Value: raw, StoredAt: now, TTL: ttl}, nil
}

// Expired reports now - StoredAt > TTL. An entry read exactly at its TTL is still fresh.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.StoredAt) > e.TTL
}

// Decode unmarshals the entry value into dest.
func (e *CacheEntry) Decode(dest interface{}) error {
	return json.Unmarshal(e.Value, dest)
}

// CacheBackend stores entries by key. Get returns entries whether or not they
// have expired; callers decide with Expired.
type CacheBackend interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	// DeleteMatching removes keys containing substr, or every key when substr is empty.
	DeleteMatching(ctx context.Context, substr string) (int, error)
}

// MemoryCache is a bounded in-process CacheBackend. Expired entries stay until
// evicted so they can be served as stale fallbacks.
type MemoryCache struct {
	entries *lru.Cache[string, *CacheEntry]
}

// DefaultMemoryCacheSize bounds the in-process tier.
const DefaultMemoryCacheSize = 512

// NewMemoryCache creates an in-process cache holding at most size entries.
func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = DefaultMemoryCacheSize
	}
	entries, err := lru.New[string, *CacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to create lru: %w", err)
	}
	return &MemoryCache{entries: entries}, nil
}

// Get implements CacheBackend.
func (c *MemoryCache) Get(_ context.Context, key string) (*CacheEntry, error) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, ErrCacheNotFound
	}
	return entry, nil
}

// Set implements CacheBackend.
func (c *MemoryCache) Set(_ context.Context, key string, entry *CacheEntry) error {
	c.entries.Add(key, entry)
	return nil
}

// DeleteMatching implements CacheBackend.
func (c *MemoryCache) DeleteMatching(_ context.Context, substr string) (int, error) {
	if substr == "" {
		n := c.entries.Len()
		c.entries.Purge()
		return n, nil
	}
	deleted := 0
	for _, key := range c.entries.Keys() {
		if strings.Contains(key, substr) && c.entries.Remove(key) {
			deleted++
		}
	}
	return deleted, nil
}

// Len returns the number of entries, stale ones included.
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

// RedisCache is the durable CacheBackend. Entries are JSON documents under a
// common prefix so they can be cleared by pattern.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache creates a durable cache over rdb for keys starting with prefix.
func NewRedisCache(rdb *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: rdb, prefix: prefix}
}

// Get implements CacheBackend.
func (c *RedisCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	if c.client == nil {
		return nil, errors.New("cache: redis client is nil")
	}

	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheNotFound
		}
		return nil, fmt.Errorf("cache: failed to get key %s: %w", key, err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, fmt.Errorf("cache: failed to unmarshal entry for key %s: %w", key, err)
	}
	return &entry, nil
}

// Set implements CacheBackend.
func (c *RedisCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	if c.client == nil {
		return errors.New("cache: redis client is nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal entry for key %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, data, entry.TTL+redisExpiryGrace).Err(); err != nil {
		return fmt.Errorf("cache: failed to set key %s: %w", key, err)
	}
	return nil
}

// DeleteMatching implements CacheBackend using SCAN so large keyspaces are not blocked.
func (c *RedisCache) DeleteMatching(ctx context.Context, substr string) (int, error) {
	if c.client == nil {
		return 0, errors.New("cache: redis client is nil")
	}

	match := c.prefix + "*"
	if substr != "" {
		match = c.prefix + "*" + escapeGlob(substr) + "*"
	}

	deleted := 0
	iter := c.client.Scan(ctx, 0, match, 100).Iterator()
	batch := make([]string, 0, 100)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("cache: failed to delete keys: %w", err)
		}
		deleted += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("cache: scan failed: %w", err)
	}
	if err := flush(); err != nil {
		return deleted, err
	}
	return deleted, nil
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
