package data

import (
	"context"
	"time"

	pkgerrors "Touchline/pkg/errors"
	pkglog "Touchline/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Persisted tier limits.
const (
	WindowQueryLimit   = 10
	RecordRetention    = 30 * 24 * time.Hour
	UsageRetentionDays = 90
	DefaultUsageDays   = 7

	maxUsageDays    = UsageRetentionDays
	upsertBatchSize = 100
	usageDateLayout = time.DateOnly
)

// FixtureRecord is one upstream record keyed by its provider id. Payload is the
// validated JSON document as fetched.
type FixtureRecord struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ExternalID  int64     `gorm:"column:external_id;uniqueIndex:uk_external_id;not null" json:"external_id"`
	CategoryKey string    `gorm:"column:category_key;size:64;not null;index:idx_category_kickoff,priority:1" json:"category_key"`
	KickoffAt   time.Time `gorm:"column:kickoff_at;not null;index:idx_category_kickoff,priority:2" json:"kickoff_at"`
	Payload     string    `gorm:"column:payload;type:mediumtext;not null" json:"payload"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (FixtureRecord) TableName() string {
	return "fixture_records"
}

// UsageLog aggregates upstream and cache usage per day and endpoint.
type UsageLog struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	Date        string    `gorm:"column:date;size:10;not null;uniqueIndex:uk_date_endpoint,priority:1"`
	Endpoint    string    `gorm:"column:endpoint;size:128;not null;uniqueIndex:uk_date_endpoint,priority:2"`
	TotalCalls  int64     `gorm:"column:total_calls;not null;default:0"`
	CachedCalls int64     `gorm:"column:cached_calls;not null;default:0"`
	FailedCalls int64     `gorm:"column:failed_calls;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM.
func (UsageLog) TableName() string {
	return "api_usage_logs"
}

// UsageStat is one usage row with its derived cache hit rate.
type UsageStat struct {
	Date         string  `json:"date"`
	Endpoint     string  `json:"endpoint"`
	TotalCalls   int64   `json:"total_calls"`
	CachedCalls  int64   `json:"cached_calls"`
	FailedCalls  int64   `json:"failed_calls"`
	CacheHitRate float64 `json:"cache_hit_rate"`
}

// PruneResult reports rows removed by PruneOldData.
type PruneResult struct {
	Records   int64 `json:"records"`
	UsageLogs int64 `json:"usage_logs"`
}

// FixtureStore is the persisted tier. It is optional: a nil DB or any database
// error yields empty results, and errors are logged with their classification.
type FixtureStore struct {
	db  *gorm.DB
	now func() time.Time
	log *pkglog.LogHelper
}

// NewFixtureStore creates a FixtureStore. db may be nil.
func NewFixtureStore(db *gorm.DB, logger log.Logger) *FixtureStore {
	return &FixtureStore{
		db:  db,
		now: time.Now,
		log: pkglog.NewLogHelper(log.With(logger, "module", "data/fixture_store")),
	}
}

func (s *FixtureStore) logError(op string, err error, kvs ...interface{}) {
	dbErr := pkgerrors.ClassifyDBError(err)
	allKvs := append([]interface{}{
		"msg", "persisted tier operation failed",
		"op", op,
		"error_type", dbErr.Type.String(),
		"retryable", dbErr.Retryable(),
		"error", err,
	}, kvs...)
	s.log.Warnw(allKvs...)
}

// UpsertRecords inserts or updates records by external id in one transaction.
// Either every record is stored or none is. It returns the number stored.
func (s *FixtureStore) UpsertRecords(ctx context.Context, categoryKey string, records []FixtureRecord) int {
	if s.db == nil || len(records) == 0 {
		return 0
	}

	now := s.now()
	batch := make([]FixtureRecord, len(records))
	for i, r := range records {
		r.ID = 0
		r.CategoryKey = categoryKey
		r.KickoffAt = r.KickoffAt.UTC()
		r.CreatedAt = now
		r.UpdatedAt = now
		batch[i] = r
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"category_key", "kickoff_at", "payload", "updated_at"}),
		}).CreateInBatches(&batch, upsertBatchSize).Error
	})
	if err != nil {
		s.logError("upsert_records", err, "category_key", categoryKey, "count", len(records))
		return 0
	}

	s.log.Database("records upserted", "category_key", categoryKey, "count", len(batch))
	return len(batch)
}

// QueryByWindow returns up to WindowQueryLimit records with kickoff in
// [from, from+days), earliest first.
func (s *FixtureStore) QueryByWindow(ctx context.Context, categoryKey string, from time.Time, days int) []FixtureRecord {
	if s.db == nil || days <= 0 {
		return nil
	}

	from = from.UTC()
	to := from.AddDate(0, 0, days)
	var records []FixtureRecord
	err := s.db.WithContext(ctx).
		Where("category_key = ? AND kickoff_at >= ? AND kickoff_at < ?", categoryKey, from, to).
		Order("kickoff_at ASC").
		Limit(WindowQueryLimit).
		Find(&records).Error
	if err != nil {
		s.logError("query_by_window", err, "category_key", categoryKey, "from", from, "days", days)
		return nil
	}
	return records
}

// LogUsage increments today's counters for endpoint. Total always grows by one.
func (s *FixtureStore) LogUsage(ctx context.Context, endpoint string, success, cached bool) {
	if s.db == nil {
		return
	}

	now := s.now()
	row := UsageLog{
		Date:        now.UTC().Format(usageDateLayout),
		Endpoint:    endpoint,
		TotalCalls:  1,
		CachedCalls: boolToInt(cached),
		FailedCalls: boolToInt(!success),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}, {Name: "endpoint"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_calls":  gorm.Expr("total_calls + ?", 1),
			"cached_calls": gorm.Expr("cached_calls + ?", row.CachedCalls),
			"failed_calls": gorm.Expr("failed_calls + ?", row.FailedCalls),
			"updated_at":   now,
		}),
	}).Create(&row).Error
	if err != nil {
		s.logError("log_usage", err, "endpoint", endpoint)
	}
}

// GetUsageStats returns usage rows for the last days UTC days, today included,
// newest first.
func (s *FixtureStore) GetUsageStats(ctx context.Context, days int) []UsageStat {
	if s.db == nil {
		return nil
	}
	if days <= 0 {
		days = DefaultUsageDays
	}
	if days > maxUsageDays {
		days = maxUsageDays
	}

	since := s.now().UTC().AddDate(0, 0, -(days - 1)).Format(usageDateLayout)
	var rows []UsageLog
	err := s.db.WithContext(ctx).
		Where("date >= ?", since).
		Order("date DESC").
		Order("endpoint ASC").
		Find(&rows).Error
	if err != nil {
		s.logError("get_usage_stats", err, "days", days)
		return nil
	}

	stats := make([]UsageStat, 0, len(rows))
	for _, r := range rows {
		stat := UsageStat{
			Date:        r.Date,
			Endpoint:    r.Endpoint,
			TotalCalls:  r.TotalCalls,
			CachedCalls: r.CachedCalls,
			FailedCalls: r.FailedCalls,
		}
		if r.TotalCalls > 0 {
			stat.CacheHitRate = float64(r.CachedCalls) / float64(r.TotalCalls) * 100
		}
		stats = append(stats, stat)
	}
	return stats
}

// PruneOldData removes records whose kickoff is older than RecordRetention and
// usage rows older than UsageRetentionDays.
func (s *FixtureStore) PruneOldData(ctx context.Context) PruneResult {
	var result PruneResult
	if s.db == nil {
		return result
	}

	now := s.now()
	recordCutoff := now.UTC().Add(-RecordRetention)
	usageCutoff := now.UTC().AddDate(0, 0, -UsageRetentionDays).Format(usageDateLayout)

	res := s.db.WithContext(ctx).Where("kickoff_at < ?", recordCutoff).Delete(&FixtureRecord{})
	if res.Error != nil {
		s.logError("prune_records", res.Error)
	} else {
		result.Records = res.RowsAffected
	}

	res = s.db.WithContext(ctx).Where("date < ?", usageCutoff).Delete(&UsageLog{})
	if res.Error != nil {
		s.logError("prune_usage_logs", res.Error)
	} else {
		result.UsageLogs = res.RowsAffected
	}

	s.log.Database("old data pruned", "records", result.Records, "usage_logs", result.UsageLogs)
	return result
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
