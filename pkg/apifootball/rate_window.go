package apifootball

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Tier is an upstream subscription plan.
type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

// Limits are the provider's hard call budgets for a tier.
type Limits struct {
	Daily     int `json:"daily"`
	PerMinute int `json:"per_minute"`
}

var tierLimits = map[Tier]Limits{
	TierFree:  {Daily: 100, PerMinute: 10},
	TierBasic: {Daily: 7500, PerMinute: 300},
	TierPro:   {Daily: 75000, PerMinute: 450},
}

// ParseTier parses a tier name case-insensitively. Empty means free.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return TierFree, nil
	}
	if _, ok := tierLimits[t]; !ok {
		return "", fmt.Errorf("unknown api tier %q (supported: free, basic, pro)", s)
	}
	return t, nil
}

// Limits returns the budgets of the tier. Unknown tiers get the free budgets.
func (t Tier) Limits() Limits {
	if l, ok := tierLimits[t]; ok {
		return l
	}
	return tierLimits[TierFree]
}

// RateSnapshot is a point-in-time copy of the rate window.
type RateSnapshot struct {
	Tier        Tier `json:"tier"`
	DailyCount  int  `json:"daily_count"`
	DailyLimit  int  `json:"daily_limit"`
	MinuteCount int  `json:"minute_count"`
	MinuteLimit int  `json:"minute_limit"`
}

// RateWindow counts calls per UTC day and per wall-clock minute.
// The daily counter resets when the UTC date changes, the minute counter
// when the minute changes; both are evaluated lazily on access.
type RateWindow struct {
	mu sync.Mutex

	tier   Tier
	limits Limits
	now    func() time.Time

	dailyCount  int
	minuteCount int
	day         string
	minute      time.Time
}

// NewRateWindow creates an empty window for the tier.
func NewRateWindow(tier Tier) *RateWindow {
	return &RateWindow{
		tier:   tier,
		limits: tier.Limits(),
		now:    time.Now,
	}
}

// Check returns a QuotaExceeded *Error when either counter is at or over its limit.
func (w *RateWindow) Check() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.roll(now)

	if w.dailyCount >= w.limits.Daily {
		nextDay := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
		return &Error{
			Kind:       KindQuotaExceeded,
			RetryAfter: nextDay.Sub(now),
			Message:    fmt.Sprintf("daily limit reached (%d/%d, tier %s)", w.dailyCount, w.limits.Daily, w.tier),
		}
	}
	if w.minuteCount >= w.limits.PerMinute {
		return &Error{
			Kind:       KindQuotaExceeded,
			RetryAfter: w.minute.Add(time.Minute).Sub(now),
			Message:    fmt.Sprintf("minute limit reached (%d/%d, tier %s)", w.minuteCount, w.limits.PerMinute, w.tier),
		}
	}
	return nil
}

// Record counts one outbound network call.
func (w *RateWindow) Record() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.roll(w.now())
	w.dailyCount++
	w.minuteCount++
}

// Snapshot copies the counters, applying any pending resets first.
func (w *RateWindow) Snapshot() RateSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.roll(w.now())
	return RateSnapshot{
		Tier:        w.tier,
		DailyCount:  w.dailyCount,
		DailyLimit:  w.limits.Daily,
		MinuteCount: w.minuteCount,
		MinuteLimit: w.limits.PerMinute,
	}
}

// roll must be called with mu held.
func (w *RateWindow) roll(now time.Time) {
	day := now.UTC().Format(time.DateOnly)
	if day != w.day {
		w.day = day
		w.dailyCount = 0
	}
	minute := now.Truncate(time.Minute)
	if !minute.Equal(w.minute) {
		w.minute = minute
		w.minuteCount = 0
	}
}
