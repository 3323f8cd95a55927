package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"Touchline/internal/conf"
	pkglog "Touchline/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// Quota defaults. The safety cap sits well below the free tier's 100 calls/day.
const (
	DefaultDailySafetyCap = 80
	DefaultCallLogSize    = 100

	quotaCallsKeyPrefix = "touchline:quota:calls:"
	quotaLogKeyPrefix   = "touchline:quota:log:"
)

// QuotaDecision is the answer to "may the service spend an upstream call now".
type QuotaDecision struct {
	Allowed   bool   `json:"allowed"`
	Remaining int    `json:"remaining"`
	Reason    string `json:"reason,omitempty"`
}

// QuotaRecord is today's derived quota view. CachedCount and FailedCount are
// computed from the bounded call log, so they cover the most recent entries only.
type QuotaRecord struct {
	Date           string `json:"date"`
	TotalCalls     int    `json:"total_calls"`
	RemainingCalls int    `json:"remaining_calls"`
	CachedCount    int    `json:"cached_count"`
	FailedCount    int    `json:"failed_count"`
	DailyCap       int    `json:"daily_cap"`
	Tracked        bool   `json:"tracked"`
}

// CallLogEntry is one element of the rolling call log.
type CallLogEntry struct {
	Endpoint string    `json:"endpoint"`
	Success  bool      `json:"success"`
	Cached   bool      `json:"cached"`
	At       time.Time `json:"at"`
}

// QuotaCacheStore tracks the daily call budget in Redis and owns the durable
// cache tier. Every operation degrades permissively when Redis is missing or
// failing: calls are allowed, reads miss and writes are dropped.
type QuotaCacheStore struct {
	rdb      *redis.Client
	cache    CacheBackend
	dailyCap int
	logSize  int
	ttls     map[Category]time.Duration
	now      func() time.Time
	log      *pkglog.LogHelper
}

// NewQuotaCacheStore creates the store. rdb may be nil.
func NewQuotaCacheStore(rdb *redis.Client, c *conf.Quota, logger log.Logger) *QuotaCacheStore {
	dailyCap, logSize := DefaultDailySafetyCap, DefaultCallLogSize
	if c != nil {
		if c.DailySafetyCap > 0 {
			dailyCap = c.DailySafetyCap
		}
		if c.LogSize > 0 {
			logSize = c.LogSize
		}
	}

	s := &QuotaCacheStore{
		rdb:      rdb,
		dailyCap: dailyCap,
		logSize:  logSize,
		ttls: map[Category]time.Duration{
			CategoryFixtures:  CategoryFixtures.DurableTTL(),
			CategoryUpcoming:  CategoryUpcoming.DurableTTL(),
			CategoryLive:      CategoryLive.DurableTTL(),
			CategoryTeamStats: CategoryTeamStats.DurableTTL(),
		},
		now: time.Now,
		log: pkglog.NewLogHelper(log.With(logger, "module", "data/quota_cache")),
	}
	if rdb != nil {
		s.cache = NewRedisCache(rdb, CacheKeyPrefix)
	}
	return s
}

// SetClock replaces time.Now for day boundaries and cache entry ages.
func (s *QuotaCacheStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *QuotaCacheStore) today() (string, time.Time) {
	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return now.Format(time.DateOnly), midnight
}

// CanMakeAPICall denies once today's counter has reached the safety cap.
func (s *QuotaCacheStore) CanMakeAPICall(ctx context.Context) QuotaDecision {
	if s.rdb == nil {
		return QuotaDecision{Allowed: true, Remaining: s.dailyCap, Reason: "quota tracking disabled"}
	}

	date, _ := s.today()
	count, err := s.callCount(ctx, date)
	if err != nil {
		s.log.Degraded("redis", err, "op", "can_make_api_call")
		return QuotaDecision{Allowed: true, Remaining: s.dailyCap, Reason: "quota tracking unavailable"}
	}

	if count >= s.dailyCap {
		s.log.Quota("daily safety cap reached", "count", count, "cap", s.dailyCap, "date", date)
		return QuotaDecision{
			Allowed: false,
			Reason:  fmt.Sprintf("daily safety cap reached (%d/%d)", count, s.dailyCap),
		}
	}

	return QuotaDecision{Allowed: true, Remaining: s.dailyCap - count}
}

// RecordAPICall counts one upstream call against today's budget, successful or not,
// and appends it to the rolling log.
func (s *QuotaCacheStore) RecordAPICall(ctx context.Context, endpoint string, success bool) {
	if s.rdb == nil {
		return
	}

	date, midnight := s.today()
	callsKey := quotaCallsKeyPrefix + date
	entry := CallLogEntry{Endpoint: endpoint, Success: success, At: s.now().UTC()}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, callsKey)
		pipe.ExpireAt(ctx, callsKey, midnight)
		return s.pushLog(ctx, pipe, date, midnight, entry)
	})
	if err != nil {
		s.log.Degraded("redis", err, "op", "record_api_call", "endpoint", endpoint)
		return
	}
	s.log.Redis("api call recorded", "endpoint", endpoint, "success", success, "date", date)
}

// RecordCacheHit appends a cached entry to the rolling log without touching the budget.
func (s *QuotaCacheStore) RecordCacheHit(ctx context.Context, endpoint string) {
	if s.rdb == nil {
		return
	}

	date, midnight := s.today()
	entry := CallLogEntry{Endpoint: endpoint, Success: true, Cached: true, At: s.now().UTC()}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return s.pushLog(ctx, pipe, date, midnight, entry)
	})
	if err != nil {
		s.log.Degraded("redis", err, "op", "record_cache_hit", "endpoint", endpoint)
	}
}

func (s *QuotaCacheStore) pushLog(ctx context.Context, pipe redis.Pipeliner, date string, midnight time.Time, entry CallLogEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	logKey := quotaLogKeyPrefix + date
	pipe.LPush(ctx, logKey, raw)
	pipe.LTrim(ctx, logKey, 0, int64(s.logSize-1))
	pipe.ExpireAt(ctx, logKey, midnight)
	return nil
}

// GetDailyQuotaStatus recomputes today's QuotaRecord from the counter and the call log.
func (s *QuotaCacheStore) GetDailyQuotaStatus(ctx context.Context) QuotaRecord {
	date, _ := s.today()
	record := QuotaRecord{Date: date, RemainingCalls: s.dailyCap, DailyCap: s.dailyCap}
	if s.rdb == nil {
		return record
	}

	count, err := s.callCount(ctx, date)
	if err != nil {
		s.log.Degraded("redis", err, "op", "daily_quota_status")
		return record
	}

	raws, err := s.rdb.LRange(ctx, quotaLogKeyPrefix+date, 0, -1).Result()
	if err != nil {
		s.log.Degraded("redis", err, "op", "daily_quota_status")
		return record
	}

	record.Tracked = true
	record.TotalCalls = count
	record.RemainingCalls = max(s.dailyCap-count, 0)
	for _, raw := range raws {
		var entry CallLogEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		switch {
		case entry.Cached:
			record.CachedCount++
		case !entry.Success:
			record.FailedCount++
		}
	}
	return record
}

// RecentCalls returns the rolling log, newest first.
func (s *QuotaCacheStore) RecentCalls(ctx context.Context) []CallLogEntry {
	if s.rdb == nil {
		return nil
	}
	date, _ := s.today()
	raws, err := s.rdb.LRange(ctx, quotaLogKeyPrefix+date, 0, -1).Result()
	if err != nil {
		s.log.Degraded("redis", err, "op", "recent_calls")
		return nil
	}
	entries := make([]CallLogEntry, 0, len(raws))
	for _, raw := range raws {
		var entry CallLogEntry
		if err := json.Unmarshal([]byte(raw), &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries
}

func (s *QuotaCacheStore) callCount(ctx context.Context, date string) (int, error) {
	val, err := s.rdb.Get(ctx, quotaCallsKeyPrefix+date).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(val)
}

// SetCachedData stores data under the category's durable TTL.
func (s *QuotaCacheStore) SetCachedData(ctx context.Context, category Category, params string, data interface{}) {
	if s.cache == nil {
		return
	}

	ttl, ok := s.ttls[category]
	if !ok {
		ttl = category.DurableTTL()
	}

	entry, err := NewCacheEntry(data, s.now(), ttl)
	if err != nil {
		s.log.Warnw("msg", "failed to encode cache entry", "category", string(category), "error", err)
		return
	}

	key := CacheKey(category, params)
	if err := s.cache.Set(ctx, key, entry); err != nil {
		s.log.Degraded("redis", err, "op", "set_cached_data", "key", key)
		return
	}
	s.log.Cache("durable cache write", "key", key, "ttl", entry.TTL.String())
}

// GetCachedData decodes a fresh entry into dest and reports whether it did.
// Expired, missing and undecodable entries are all misses.
func (s *QuotaCacheStore) GetCachedData(ctx context.Context, category Category, params string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}

	key := CacheKey(category, params)
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheNotFound) {
			s.log.Degraded("redis", err, "op", "get_cached_data", "key", key)
		}
		return false
	}

	if entry.Expired(s.now()) {
		s.log.Cache("durable cache entry expired", "key", key, "stored_at", entry.StoredAt)
		return false
	}

	if err := entry.Decode(dest); err != nil {
		s.log.Warnw("msg", "failed to decode cache entry", "key", key, "error", err)
		return false
	}
	return true
}

// ClearAllCache deletes durable cache keys containing pattern, or all of them
// when pattern is empty. Quota counters are never touched.
func (s *QuotaCacheStore) ClearAllCache(ctx context.Context, pattern string) int {
	if s.cache == nil {
		return 0
	}

	deleted, err := s.cache.DeleteMatching(ctx, pattern)
	if err != nil {
		s.log.Degraded("redis", err, "op", "clear_all_cache", "pattern", pattern)
	}
	s.log.Infow("msg", "durable cache cleared", "pattern", pattern, "deleted", deleted)
	return deleted
}
