package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"Touchline/internal/biz"
	"Touchline/internal/conf"
	"Touchline/internal/data"
	"Touchline/pkg/apifootball"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

// fakeUpstream records the parameters it was called with.
type fakeUpstream struct {
	mu         sync.Mutex
	params     []url.Values
	fixtures   []apifootball.Fixture
	liveErr    error
	statsCalls int
}

func (f *fakeUpstream) Fixtures(_ context.Context, params url.Values) ([]apifootball.Fixture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = append(f.params, params)
	return f.fixtures, nil
}

func (f *fakeUpstream) LiveMatches(context.Context) ([]apifootball.LiveMatch, error) {
	return nil, f.liveErr
}

func (f *fakeUpstream) TeamStatistics(_ context.Context, teamID, leagueID int64, season int) (*apifootball.TeamStatistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	return &apifootball.TeamStatistics{
		League: apifootball.League{ID: leagueID, Season: season},
		Team:   apifootball.TeamRef{ID: teamID, Name: "Team"},
	}, nil
}

func (f *fakeUpstream) Snapshot() apifootball.Snapshot {
	return apifootball.Snapshot{Circuit: apifootball.CircuitSnapshot{StateName: "closed"}}
}

func newTestServer(t *testing.T, upstream *fakeUpstream) *http.Server {
	t.Helper()

	local, err := data.NewMemoryCache(32)
	require.NoError(t, err)

	uc := biz.NewFixtureUsecase(upstream,
		data.NewQuotaCacheStore(nil, nil, log.DefaultLogger),
		data.NewFixtureStore(nil, log.DefaultLogger),
		local,
		&conf.Fixtures{League: 39, Season: 2024},
		log.DefaultLogger)

	svc := NewFixtureService(uc, log.DefaultLogger)
	svc.now = func() time.Time { return testNow }

	srv := http.NewServer()
	RegisterFixtureHTTPServer(srv, svc)
	return srv
}

func do(t *testing.T, srv *http.Server, method, target string) (int, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec.Code, body
}

func sampleFixture() apifootball.Fixture {
	return apifootball.Fixture{
		Fixture: apifootball.FixtureInfo{ID: 1035037, Date: testNow, Timestamp: testNow.Unix()},
		Teams: apifootball.Teams{
			Home: apifootball.TeamRef{ID: 42, Name: "Arsenal"},
			Away: apifootball.TeamRef{ID: 49, Name: "Chelsea"},
		},
	}
}

func TestFixtureService_GetFixtures(t *testing.T) {
	upstream := &fakeUpstream{fixtures: []apifootball.Fixture{sampleFixture()}}
	srv := newTestServer(t, upstream)

	code, body := do(t, srv, "GET", "/v1/fixtures?date=2026-10-20")
	assert.Equal(t, 200, code)
	assert.EqualValues(t, 1, body["count"])

	code, _ = do(t, srv, "GET", "/v1/fixtures")
	assert.Equal(t, 200, code)

	require.Len(t, upstream.params, 2)
	assert.Equal(t, "2026-10-20", upstream.params[0].Get("date"))
	assert.Equal(t, "2026-10-15", upstream.params[1].Get("date"), "missing date means today")
}

func TestFixtureService_InvalidParameters(t *testing.T) {
	srv := newTestServer(t, &fakeUpstream{})

	tests := []struct {
		name       string
		method     string
		target     string
		wantReason string
	}{
		{"bad date", "GET", "/v1/fixtures?date=15-10-2026", "INVALID_DATE"},
		{"days too large", "GET", "/v1/fixtures/upcoming?days=15", "INVALID_DAYS"},
		{"days negative", "GET", "/v1/fixtures/upcoming?days=-1", "INVALID_DAYS"},
		{"days not a number", "GET", "/v1/fixtures/upcoming?days=abc", "CODEC"},
		{"team zero", "GET", "/v1/teams/0/statistics", "INVALID_TEAM"},
		{"negative season", "GET", "/v1/teams/33/statistics?season=-2024", "INVALID_SEASON"},
		{"usage window too large", "GET", "/v1/usage?days=91", "INVALID_DAYS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, srv, tt.method, tt.target)
			assert.Equal(t, 400, code)
			assert.Equal(t, tt.wantReason, body["reason"])
		})
	}
}

func TestFixtureService_UpstreamFailureStillAnswers(t *testing.T) {
	srv := newTestServer(t, &fakeUpstream{liveErr: errors.New("connection refused")})

	code, body := do(t, srv, "GET", "/v1/fixtures/live")
	assert.Equal(t, 200, code)
	assert.EqualValues(t, len(biz.FallbackLiveMatches()), body["count"])
}

func TestFixtureService_Upcoming(t *testing.T) {
	upstream := &fakeUpstream{fixtures: []apifootball.Fixture{sampleFixture()}}
	srv := newTestServer(t, upstream)

	code, body := do(t, srv, "GET", "/v1/fixtures/upcoming?days=3")
	assert.Equal(t, 200, code)
	assert.EqualValues(t, 1, body["count"])
	require.Len(t, upstream.params, 1)
	assert.NotEmpty(t, upstream.params[0].Get("from"))
	assert.NotEmpty(t, upstream.params[0].Get("to"))
}

func TestFixtureService_TeamStatistics(t *testing.T) {
	upstream := &fakeUpstream{}
	srv := newTestServer(t, upstream)

	code, body := do(t, srv, "GET", "/v1/teams/529/statistics?league=140&season=2023")
	assert.Equal(t, 200, code)

	stats := body["statistics"].(map[string]interface{})
	assert.EqualValues(t, 529, stats["team"].(map[string]interface{})["id"])
	assert.EqualValues(t, 140, stats["league"].(map[string]interface{})["id"])

	code, _ = do(t, srv, "GET", "/v1/teams/529/statistics?league=140&season=2023")
	assert.Equal(t, 200, code)
	assert.Equal(t, 1, upstream.statsCalls)
}

func TestFixtureService_QuotaAndUsage(t *testing.T) {
	srv := newTestServer(t, &fakeUpstream{})

	code, body := do(t, srv, "GET", "/v1/quota")
	assert.Equal(t, 200, code)
	assert.Equal(t, false, body["tracked"])
	assert.EqualValues(t, data.DefaultDailySafetyCap, body["remaining_calls"])
	assert.Equal(t, "closed", body["upstream"].(map[string]interface{})["circuit"].(map[string]interface{})["state"])

	code, body = do(t, srv, "GET", "/v1/usage")
	assert.Equal(t, 200, code)
	assert.EqualValues(t, 7, body["days"])
	assert.Empty(t, body["stats"])
}

func TestFixtureService_ClearCache(t *testing.T) {
	upstream := &fakeUpstream{fixtures: []apifootball.Fixture{sampleFixture()}}
	srv := newTestServer(t, upstream)

	do(t, srv, "GET", "/v1/fixtures?date=2026-10-15")

	code, body := do(t, srv, "DELETE", "/v1/cache?pattern=fixtures")
	assert.Equal(t, 200, code)
	assert.Equal(t, "fixtures", body["pattern"])
	assert.EqualValues(t, 1, body["local"])
	assert.EqualValues(t, 0, body["durable"])

	do(t, srv, "GET", "/v1/fixtures?date=2026-10-15")
	assert.Len(t, upstream.params, 2, "cleared entry is fetched again")
}
