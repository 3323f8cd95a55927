// Package biz contains the fixtures usecase: the waterfall that resolves every
// request from the cheapest tier that can answer it.
package biz

import (
	"context"
	"net/url"
	"time"

	"Touchline/internal/data"
	"Touchline/pkg/apifootball"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewUpstreamClient,
	NewFixtureUsecase,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(UpstreamClient), new(*apifootball.Client)),
	wire.Bind(new(QuotaCache), new(*data.QuotaCacheStore)),
	wire.Bind(new(FixtureRepo), new(*data.FixtureStore)),
	wire.Bind(new(data.CacheBackend), new(*data.MemoryCache)),
)

// UpstreamClient is the quota-consuming provider client.
type UpstreamClient interface {
	Fixtures(ctx context.Context, params url.Values) ([]apifootball.Fixture, error)
	LiveMatches(ctx context.Context) ([]apifootball.LiveMatch, error)
	TeamStatistics(ctx context.Context, teamID, leagueID int64, season int) (*apifootball.TeamStatistics, error)
	Snapshot() apifootball.Snapshot
}

// QuotaCache is the shared daily budget and the durable cache tier.
type QuotaCache interface {
	CanMakeAPICall(ctx context.Context) data.QuotaDecision
	RecordAPICall(ctx context.Context, endpoint string, success bool)
	RecordCacheHit(ctx context.Context, endpoint string)
	GetDailyQuotaStatus(ctx context.Context) data.QuotaRecord
	RecentCalls(ctx context.Context) []data.CallLogEntry
	SetCachedData(ctx context.Context, category data.Category, params string, v interface{})
	GetCachedData(ctx context.Context, category data.Category, params string, dest interface{}) bool
	ClearAllCache(ctx context.Context, pattern string) int
}

// FixtureRepo is the persisted tier and the usage ledger.
type FixtureRepo interface {
	UpsertRecords(ctx context.Context, categoryKey string, records []data.FixtureRecord) int
	QueryByWindow(ctx context.Context, categoryKey string, from time.Time, days int) []data.FixtureRecord
	LogUsage(ctx context.Context, endpoint string, success, cached bool)
	GetUsageStats(ctx context.Context, days int) []data.UsageStat
	PruneOldData(ctx context.Context) data.PruneResult
}
