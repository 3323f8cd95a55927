package apifootball

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	tests := []struct {
		input   string
		want    Tier
		wantErr bool
	}{
		{input: "", want: TierFree},
		{input: "free", want: TierFree},
		{input: " Basic ", want: TierBasic},
		{input: "PRO", want: TierPro},
		{input: "enterprise", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTier(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRateWindow_DailyLimit(t *testing.T) {
	clock := newFakeClock()
	w := NewRateWindow(TierFree)
	w.now = clock.Now

	// Spread calls across minutes so only the daily budget binds.
	for i := 0; i < TierFree.Limits().Daily; i++ {
		require.NoError(t, w.Check(), "call %d", i+1)
		w.Record()
		if (i+1)%TierFree.Limits().PerMinute == 0 {
			clock.Advance(time.Minute)
		}
	}

	err := w.Check()
	require.Error(t, err)
	assert.True(t, IsKind(err, KindQuotaExceeded))
	assert.Contains(t, err.Error(), "daily limit reached")
}

func TestRateWindow_DailyResetsOnUTCDateChange(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 15, 23, 59, 30, 0, time.UTC)}
	w := NewRateWindow(TierFree)
	w.now = clock.Now

	w.Record()
	w.Record()
	assert.Equal(t, 2, w.Snapshot().DailyCount)

	clock.Advance(20 * time.Second)
	assert.Equal(t, 2, w.Snapshot().DailyCount, "same UTC day")

	clock.Advance(20 * time.Second)
	w.Record()
	snap := w.Snapshot()
	assert.Equal(t, 1, snap.DailyCount, "first call after rollover starts from zero")
	assert.Equal(t, 1, snap.MinuteCount)
}

func TestRateWindow_MinuteResetsOnMinuteChange(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 10, 15, 10, 0, 58, 0, time.UTC)}
	w := NewRateWindow(TierBasic)
	w.now = clock.Now

	w.Record()
	w.Record()
	assert.Equal(t, 2, w.Snapshot().MinuteCount)

	clock.Advance(3 * time.Second)
	snap := w.Snapshot()
	assert.Equal(t, 0, snap.MinuteCount)
	assert.Equal(t, 2, snap.DailyCount)
}

func TestRateWindow_ConcurrentRecord(t *testing.T) {
	w := NewRateWindow(TierPro)
	clock := newFakeClock()
	w.now = clock.Now

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Record()
		}()
	}
	wg.Wait()

	snap := w.Snapshot()
	assert.Equal(t, 200, snap.DailyCount)
	assert.Equal(t, 200, snap.MinuteCount)
	assert.Equal(t, TierPro.Limits().Daily, snap.DailyLimit)
}
