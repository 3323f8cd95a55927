package biz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"Touchline/internal/conf"
	"Touchline/internal/data"
	"Touchline/pkg/apifootball"
	pkglog "Touchline/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/singleflight"
)

// Serving tiers, in waterfall order.
const (
	SourceLocal     = "local"
	SourceDurable   = "durable"
	SourcePersisted = "persisted"
	SourceUpstream  = "upstream"
	SourceStale     = "stale"
	SourceFallback  = "fallback"
)

// Local tier TTLs.
const (
	LocalTTLLive      = 2 * time.Minute
	LocalTTLFixtures  = 15 * time.Minute
	LocalTTLUpcoming  = 15 * time.Minute
	LocalTTLTeamStats = 30 * time.Minute
)

// Upcoming window bounds in days.
const (
	DefaultUpcomingDays = 7
	MaxUpcomingDays     = 14
)

const (
	defaultLeague = 39
	defaultSeason = 2024
)

var localTTLs = map[data.Category]time.Duration{
	data.CategoryLive:      LocalTTLLive,
	data.CategoryFixtures:  LocalTTLFixtures,
	data.CategoryUpcoming:  LocalTTLUpcoming,
	data.CategoryTeamStats: LocalTTLTeamStats,
}

// QuotaStatus is today's budget plus the in-process resilience state.
type QuotaStatus struct {
	data.QuotaRecord
	RecentCalls []data.CallLogEntry  `json:"recent_calls"`
	Upstream    apifootball.Snapshot `json:"upstream"`
}

// ClearResult reports how many entries each cache tier dropped.
type ClearResult struct {
	Local   int `json:"local"`
	Durable int `json:"durable"`
}

// FixtureUsecase resolves fixture data through the tiers:
// local cache, durable cache, persisted window, live call, stale local entry,
// static fallback. It never returns an error to its callers.
type FixtureUsecase struct {
	upstream UpstreamClient
	quota    QuotaCache
	repo     FixtureRepo
	local    data.CacheBackend

	league int64
	season int
	loc    *time.Location

	group singleflight.Group
	now   func() time.Time
	log   *pkglog.LogHelper
}

// NewFixtureUsecase creates a FixtureUsecase.
func NewFixtureUsecase(upstream UpstreamClient, quota QuotaCache, repo FixtureRepo, local data.CacheBackend, c *conf.Fixtures, logger log.Logger) *FixtureUsecase {
	uc := &FixtureUsecase{
		upstream: upstream,
		quota:    quota,
		repo:     repo,
		local:    local,
		league:   defaultLeague,
		season:   defaultSeason,
		loc:      time.UTC,
		now:      time.Now,
		log:      pkglog.NewLogHelper(log.With(logger, "module", "biz/fixture")),
	}
	if c != nil {
		if c.League > 0 {
			uc.league = c.League
		}
		if c.Season > 0 {
			uc.season = c.Season
		}
		if c.Timezone != "" {
			loc, err := time.LoadLocation(c.Timezone)
			if err != nil {
				uc.log.Warnw("msg", "unknown fixtures timezone, using UTC", "timezone", c.Timezone, "error", err)
			} else {
				uc.loc = loc
			}
		}
	}
	return uc
}

// GetFixturesForDate returns the configured league's fixtures on date's calendar day.
func (uc *FixtureUsecase) GetFixturesForDate(ctx context.Context, date time.Time) []apifootball.Fixture {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, uc.loc)
	ds := day.Format(time.DateOnly)

	params := uc.leagueParams()
	params.Set("date", ds)

	return resolve(ctx, uc, plan[[]apifootball.Fixture]{
		category: data.CategoryFixtures,
		params:   uc.cacheParams("date=" + ds),
		endpoint: apifootball.EndpointFixtures,
		from:     day,
		days:     1,
		live: func(ctx context.Context) ([]apifootball.Fixture, error) {
			return uc.upstream.Fixtures(ctx, params)
		},
		fromRecords: uc.decodeRecords,
		toRecords:   encodeRecords,
		size:        sliceSize[apifootball.Fixture],
		fallback:    FallbackFixtures,
	})
}

// GetUpcomingFixtures returns fixtures kicking off in the next days days.
// days is clamped to [1, MaxUpcomingDays]; zero means DefaultUpcomingDays.
func (uc *FixtureUsecase) GetUpcomingFixtures(ctx context.Context, days int) []apifootball.Fixture {
	if days <= 0 {
		days = DefaultUpcomingDays
	}
	if days > MaxUpcomingDays {
		days = MaxUpcomingDays
	}

	now := uc.now().In(uc.loc)
	params := uc.leagueParams()
	params.Set("from", now.Format(time.DateOnly))
	params.Set("to", now.AddDate(0, 0, days-1).Format(time.DateOnly))

	return resolve(ctx, uc, plan[[]apifootball.Fixture]{
		category: data.CategoryUpcoming,
		params:   uc.cacheParams("days=" + strconv.Itoa(days)),
		endpoint: apifootball.EndpointFixtures,
		from:     now,
		days:     days,
		live: func(ctx context.Context) ([]apifootball.Fixture, error) {
			return uc.upstream.Fixtures(ctx, params)
		},
		fromRecords: uc.decodeRecords,
		toRecords:   encodeRecords,
		size:        sliceSize[apifootball.Fixture],
		fallback:    FallbackFixtures,
	})
}

// GetLiveMatches returns in-play fixtures across all leagues.
// Live data is too volatile for the persisted tier.
func (uc *FixtureUsecase) GetLiveMatches(ctx context.Context) []apifootball.LiveMatch {
	return resolve(ctx, uc, plan[[]apifootball.LiveMatch]{
		category: data.CategoryLive,
		endpoint: apifootball.EndpointFixtures,
		live: func(ctx context.Context) ([]apifootball.LiveMatch, error) {
			return uc.upstream.LiveMatches(ctx)
		},
		size:     sliceSize[apifootball.LiveMatch],
		fallback: FallbackLiveMatches,
	})
}

// GetTeamStatistics returns a team's season aggregate. Zero league or season
// fall back to the configured ones.
func (uc *FixtureUsecase) GetTeamStatistics(ctx context.Context, teamID, leagueID int64, season int) apifootball.TeamStatistics {
	if leagueID <= 0 {
		leagueID = uc.league
	}
	if season <= 0 {
		season = uc.season
	}

	return resolve(ctx, uc, plan[apifootball.TeamStatistics]{
		category: data.CategoryTeamStats,
		params:   fmt.Sprintf("team=%d:league=%d:season=%d", teamID, leagueID, season),
		endpoint: apifootball.EndpointTeamStatistics,
		live: func(ctx context.Context) (apifootball.TeamStatistics, error) {
			stats, err := uc.upstream.TeamStatistics(ctx, teamID, leagueID, season)
			if err != nil {
				return apifootball.TeamStatistics{}, err
			}
			return *stats, nil
		},
		size: func(s apifootball.TeamStatistics) int {
			if s.Team.ID > 0 {
				return 1
			}
			return 0
		},
		fallback: func() apifootball.TeamStatistics {
			return FallbackTeamStatistics(teamID, leagueID, season)
		},
	})
}

// GetQuotaStatus reports today's budget, the recent call log and the
// circuit/rate snapshot of this process.
func (uc *FixtureUsecase) GetQuotaStatus(ctx context.Context) QuotaStatus {
	return QuotaStatus{
		QuotaRecord: uc.quota.GetDailyQuotaStatus(ctx),
		RecentCalls: uc.quota.RecentCalls(ctx),
		Upstream:    uc.upstream.Snapshot(),
	}
}

// ClearCache drops entries whose key contains pattern from both cache tiers.
// An empty pattern clears everything. Quota counters are never touched.
func (uc *FixtureUsecase) ClearCache(ctx context.Context, pattern string) ClearResult {
	var result ClearResult

	n, err := uc.local.DeleteMatching(ctx, pattern)
	if err != nil {
		uc.log.Degraded("local cache", err, "op", "clear")
	}
	result.Local = n
	result.Durable = uc.quota.ClearAllCache(ctx, pattern)

	uc.log.Infow("msg", "cache cleared", "pattern", pattern, "local", result.Local, "durable", result.Durable)
	return result
}

// GetUsageStats returns per-day, per-endpoint usage for the last days days.
func (uc *FixtureUsecase) GetUsageStats(ctx context.Context, days int) []data.UsageStat {
	stats := uc.repo.GetUsageStats(ctx, days)
	if stats == nil {
		return []data.UsageStat{}
	}
	return stats
}

// PruneOldData applies the retention policy to the persisted tier.
func (uc *FixtureUsecase) PruneOldData(ctx context.Context) data.PruneResult {
	result := uc.repo.PruneOldData(ctx)
	uc.log.Scheduler("retention applied", "records", result.Records, "usage_logs", result.UsageLogs)
	return result
}

// plan describes one category's path through the waterfall.
type plan[T any] struct {
	category data.Category
	params   string
	endpoint string

	// from and days select the persisted window; zero days skips that tier.
	from time.Time
	days int

	live        func(ctx context.Context) (T, error)
	fromRecords func(ctx context.Context, records []data.FixtureRecord) T
	toRecords   func(v T) []data.FixtureRecord
	size        func(v T) int
	fallback    func() T
}

// resolve coalesces identical in-flight requests. The shared flight ignores
// the first caller's cancellation; the client's own timeouts bound it.
func resolve[T any](ctx context.Context, uc *FixtureUsecase, p plan[T]) T {
	key := localKey(p.category, p.params)
	v, _, _ := uc.group.Do(key, func() (interface{}, error) {
		return waterfall(context.WithoutCancel(ctx), uc, p, key), nil
	})
	return v.(T)
}

func waterfall[T any](ctx context.Context, uc *FixtureUsecase, p plan[T], key string) T {
	start := uc.now()

	var (
		stale    T
		hasStale bool
		staleAt  time.Time
	)
	if entry, err := uc.local.Get(ctx, key); err == nil {
		var v T
		if err := entry.Decode(&v); err == nil {
			if !entry.Expired(start) {
				uc.observe(p.category, SourceLocal, start)
				return v
			}
			stale, hasStale, staleAt = v, true, entry.StoredAt
		}
	}

	var cached T
	if uc.quota.GetCachedData(ctx, p.category, p.params, &cached) && p.size(cached) > 0 {
		uc.quota.RecordCacheHit(ctx, p.endpoint)
		uc.repo.LogUsage(ctx, p.endpoint, true, true)
		uc.remember(ctx, key, p.category, cached)
		uc.observe(p.category, SourceDurable, start)
		return cached
	}

	if p.days > 0 && p.fromRecords != nil {
		records := uc.repo.QueryByWindow(ctx, uc.categoryKey(), p.from, p.days)
		if len(records) > 0 {
			if v := p.fromRecords(ctx, records); p.size(v) > 0 {
				uc.quota.SetCachedData(ctx, p.category, p.params, v)
				uc.remember(ctx, key, p.category, v)
				uc.observe(p.category, SourcePersisted, start)
				return v
			}
		}
	}

	if decision := uc.quota.CanMakeAPICall(ctx); !decision.Allowed {
		uc.log.Quota("live call skipped", "category", string(p.category), "reason", decision.Reason)
	} else {
		v, err := p.live(ctx)
		if err == nil {
			uc.quota.RecordAPICall(ctx, p.endpoint, true)
			uc.repo.LogUsage(ctx, p.endpoint, true, false)
			if p.toRecords != nil {
				if records := p.toRecords(v); len(records) > 0 {
					uc.repo.UpsertRecords(ctx, uc.categoryKey(), records)
				}
			}
			if p.size(v) > 0 {
				uc.quota.SetCachedData(ctx, p.category, p.params, v)
			}
			uc.remember(ctx, key, p.category, v)
			uc.observe(p.category, SourceUpstream, start)
			return v
		}

		kind := apifootball.KindOf(err)
		// Short-circuits never reached the provider and cost nothing.
		if kind != apifootball.KindQuotaExceeded && kind != apifootball.KindCircuitOpen {
			uc.quota.RecordAPICall(ctx, p.endpoint, false)
			uc.repo.LogUsage(ctx, p.endpoint, false, false)
		}
		uc.log.Degraded("upstream", err, "category", string(p.category), "kind", kind.String())
	}

	if hasStale {
		uc.log.Fallback("serving stale local entry",
			"category", string(p.category),
			"age", uc.now().Sub(staleAt).String())
		uc.observe(p.category, SourceStale, start)
		return stale
	}

	uc.log.Fallback("serving static fallback", "category", string(p.category), "version", FallbackVersion)
	uc.observe(p.category, SourceFallback, start)
	return p.fallback()
}

func (uc *FixtureUsecase) remember(ctx context.Context, key string, category data.Category, v interface{}) {
	entry, err := data.NewCacheEntry(v, uc.now(), localTTLs[category])
	if err != nil {
		uc.log.Warnw("msg", "local cache encode failed", "key", key, "error", err)
		return
	}
	if err := uc.local.Set(ctx, key, entry); err != nil {
		uc.log.Degraded("local cache", err, "key", key)
	}
}

func (uc *FixtureUsecase) observe(category data.Category, source string, start time.Time) {
	elapsed := uc.now().Sub(start)
	ServedTotal.WithLabelValues(string(category), source).Inc()
	ResolveSeconds.WithLabelValues(string(category), source).Observe(elapsed.Seconds())
	uc.log.Served(string(category), source, elapsed.Milliseconds())
}

// decodeRecords turns persisted payloads back into fixtures, skipping rows
// that no longer decode or validate.
func (uc *FixtureUsecase) decodeRecords(_ context.Context, records []data.FixtureRecord) []apifootball.Fixture {
	out := make([]apifootball.Fixture, 0, len(records))
	for _, r := range records {
		var f apifootball.Fixture
		if err := json.Unmarshal([]byte(r.Payload), &f); err != nil {
			uc.log.Warnw("msg", "skipping undecodable persisted record", "external_id", r.ExternalID, "error", err)
			continue
		}
		if err := f.Validate(); err != nil {
			uc.log.Warnw("msg", "skipping invalid persisted record", "external_id", r.ExternalID, "error", err)
			continue
		}
		out = append(out, f)
	}
	return out
}

func encodeRecords(fixtures []apifootball.Fixture) []data.FixtureRecord {
	records := make([]data.FixtureRecord, 0, len(fixtures))
	for _, f := range fixtures {
		payload, err := json.Marshal(f)
		if err != nil {
			continue
		}
		records = append(records, data.FixtureRecord{
			ExternalID: f.Fixture.ID,
			KickoffAt:  f.KickoffAt(),
			Payload:    string(payload),
		})
	}
	return records
}

func (uc *FixtureUsecase) leagueParams() url.Values {
	params := url.Values{}
	params.Set("league", strconv.FormatInt(uc.league, 10))
	params.Set("season", strconv.Itoa(uc.season))
	params.Set("timezone", uc.loc.String())
	return params
}

func (uc *FixtureUsecase) cacheParams(suffix string) string {
	return fmt.Sprintf("league=%d:season=%d:%s", uc.league, uc.season, suffix)
}

// categoryKey scopes persisted records to one league season.
func (uc *FixtureUsecase) categoryKey() string {
	return fmt.Sprintf("league:%d:season:%d", uc.league, uc.season)
}

// localKey is the durable cache key without its namespace, so a clear pattern
// matches the same entries in both tiers.
func localKey(category data.Category, params string) string {
	return strings.TrimPrefix(data.CacheKey(category, params), data.CacheKeyPrefix)
}

func sliceSize[E any](v []E) int {
	return len(v)
}
