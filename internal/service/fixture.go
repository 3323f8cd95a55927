package service

import (
	"context"
	"time"

	"Touchline/internal/biz"
	"Touchline/internal/data"
	"Touchline/pkg/apifootball"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// MaxUsageDays bounds GET /v1/usage.
const MaxUsageDays = 90

// GetFixturesRequest selects one calendar day. An empty date means today (UTC).
type GetFixturesRequest struct {
	Date string `json:"date"`
}

// GetUpcomingRequest selects the next Days days, 1..14, default 7.
type GetUpcomingRequest struct {
	Days int `json:"days"`
}

// GetTeamStatisticsRequest selects a team's season. Zero league or season use the configured ones.
type GetTeamStatisticsRequest struct {
	Team   int64 `json:"team"`
	League int64 `json:"league"`
	Season int   `json:"season"`
}

// GetUsageRequest selects the last Days days, 1..90, default 7.
type GetUsageRequest struct {
	Days int `json:"days"`
}

// ClearCacheRequest clears cache keys containing Pattern. Empty clears all.
type ClearCacheRequest struct {
	Pattern string `json:"pattern"`
}

// EmptyRequest is the request of parameterless routes.
type EmptyRequest struct{}

// FixturesReply is a fixture list.
type FixturesReply struct {
	Fixtures []apifootball.Fixture `json:"fixtures"`
	Count    int                   `json:"count"`
}

// LiveMatchesReply is the in-play list.
type LiveMatchesReply struct {
	Matches []apifootball.LiveMatch `json:"matches"`
	Count   int                     `json:"count"`
}

// TeamStatisticsReply wraps one team's season aggregate.
type TeamStatisticsReply struct {
	Statistics apifootball.TeamStatistics `json:"statistics"`
}

// UsageReply is the usage ledger for a window.
type UsageReply struct {
	Days  int              `json:"days"`
	Stats []data.UsageStat `json:"stats"`
}

// ClearCacheReply reports dropped entries per tier.
type ClearCacheReply struct {
	Pattern string `json:"pattern"`
	Local   int    `json:"local"`
	Durable int    `json:"durable"`
}

// FixtureService validates requests and delegates to the usecase. Reads never
// fail once validated: degraded answers show up in /v1/quota and the logs.
type FixtureService struct {
	uc     *biz.FixtureUsecase
	now    func() time.Time
	logger *log.Helper
}

// NewFixtureService creates a FixtureService.
func NewFixtureService(uc *biz.FixtureUsecase, logger log.Logger) *FixtureService {
	return &FixtureService{
		uc:     uc,
		now:    time.Now,
		logger: log.NewHelper(log.With(logger, "module", "service/fixture")),
	}
}

// GetFixtures returns the fixtures of one day.
func (s *FixtureService) GetFixtures(ctx context.Context, req *GetFixturesRequest) (*FixturesReply, error) {
	date := s.now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse(time.DateOnly, req.Date)
		if err != nil {
			return nil, errors.BadRequest("INVALID_DATE", "date must be formatted as YYYY-MM-DD")
		}
		date = parsed
	}

	s.logger.Debugw("msg", "GetFixtures called", "date", date.Format(time.DateOnly))
	fixtures := s.uc.GetFixturesForDate(ctx, date)
	return &FixturesReply{Fixtures: fixtures, Count: len(fixtures)}, nil
}

// GetLiveMatches returns in-play fixtures.
func (s *FixtureService) GetLiveMatches(ctx context.Context, _ *EmptyRequest) (*LiveMatchesReply, error) {
	matches := s.uc.GetLiveMatches(ctx)
	return &LiveMatchesReply{Matches: matches, Count: len(matches)}, nil
}

// GetUpcomingFixtures returns fixtures in the next days.
func (s *FixtureService) GetUpcomingFixtures(ctx context.Context, req *GetUpcomingRequest) (*FixturesReply, error) {
	days := req.Days
	if days == 0 {
		days = biz.DefaultUpcomingDays
	}
	if days < 1 || days > biz.MaxUpcomingDays {
		return nil, errors.BadRequest("INVALID_DAYS", "days must be between 1 and 14")
	}

	fixtures := s.uc.GetUpcomingFixtures(ctx, days)
	return &FixturesReply{Fixtures: fixtures, Count: len(fixtures)}, nil
}

// GetTeamStatistics returns a team's season aggregate.
func (s *FixtureService) GetTeamStatistics(ctx context.Context, req *GetTeamStatisticsRequest) (*TeamStatisticsReply, error) {
	if req.Team <= 0 {
		return nil, errors.BadRequest("INVALID_TEAM", "team must be a positive id")
	}
	if req.League < 0 || req.Season < 0 {
		return nil, errors.BadRequest("INVALID_SEASON", "league and season must not be negative")
	}

	stats := s.uc.GetTeamStatistics(ctx, req.Team, req.League, req.Season)
	return &TeamStatisticsReply{Statistics: stats}, nil
}

// GetQuotaStatus returns today's budget and the upstream resilience state.
func (s *FixtureService) GetQuotaStatus(ctx context.Context, _ *EmptyRequest) (*biz.QuotaStatus, error) {
	status := s.uc.GetQuotaStatus(ctx)
	return &status, nil
}

// GetUsage returns the usage ledger.
func (s *FixtureService) GetUsage(ctx context.Context, req *GetUsageRequest) (*UsageReply, error) {
	days := req.Days
	if days == 0 {
		days = data.DefaultUsageDays
	}
	if days < 1 || days > MaxUsageDays {
		return nil, errors.BadRequest("INVALID_DAYS", "days must be between 1 and 90")
	}

	return &UsageReply{Days: days, Stats: s.uc.GetUsageStats(ctx, days)}, nil
}

// ClearCache drops matching entries from both cache tiers.
func (s *FixtureService) ClearCache(ctx context.Context, req *ClearCacheRequest) (*ClearCacheReply, error) {
	s.logger.Infow("msg", "ClearCache called", "pattern", req.Pattern)

	result := s.uc.ClearCache(ctx, req.Pattern)
	return &ClearCacheReply{Pattern: req.Pattern, Local: result.Local, Durable: result.Durable}, nil
}
