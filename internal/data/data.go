// Package data provides the storage tiers behind the fixtures usecase:
// the Redis quota counters and durable cache, the GORM persisted tier, and the
// in-process cache backend.
package data

import (
	"github.com/google/wire"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewRedisClient,
	NewDB,
	NewLocalCache,
	NewQuotaCacheStore,
	NewFixtureStore,
)

// NewLocalCache creates the in-process tier with the default bound.
func NewLocalCache() (*MemoryCache, error) {
	return NewMemoryCache(DefaultMemoryCacheSize)
}
