package apifootball

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Provider endpoints.
const (
	EndpointFixtures       = "/fixtures"
	EndpointTeamStatistics = "/teams/statistics"
)

// Fixture is one match as returned by the fixtures endpoint.
type Fixture struct {
	Fixture FixtureInfo `json:"fixture"`
	League  League      `json:"league"`
	Teams   Teams       `json:"teams"`
	Goals   Goals       `json:"goals"`
}

// FixtureInfo holds the scheduling and status fields of a fixture.
type FixtureInfo struct {
	ID        int64         `json:"id"`
	Referee   string        `json:"referee,omitempty"`
	Timezone  string        `json:"timezone,omitempty"`
	Date      time.Time     `json:"date"`
	Timestamp int64         `json:"timestamp"`
	Venue     Venue         `json:"venue"`
	Status    FixtureStatus `json:"status"`
}

// Venue is where a fixture is played.
type Venue struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
	City string `json:"city,omitempty"`
}

// FixtureStatus is the provider's match status. Short is one of NS, 1H, HT, 2H, ET, P, FT, ...
type FixtureStatus struct {
	Long    string `json:"long"`
	Short   string `json:"short"`
	Elapsed *int   `json:"elapsed"`
}

// League identifies the competition and season of a fixture.
type League struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
	Season  int    `json:"season"`
	Round   string `json:"round,omitempty"`
}

// Teams is the home/away pairing.
type Teams struct {
	Home TeamRef `json:"home"`
	Away TeamRef `json:"away"`
}

// TeamRef is a team as referenced from a fixture.
type TeamRef struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Logo   string `json:"logo,omitempty"`
	Winner *bool  `json:"winner"`
}

// Goals is the current or final score; nil before kickoff.
type Goals struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

// KickoffAt returns the kickoff time in UTC.
func (f Fixture) KickoffAt() time.Time {
	if !f.Fixture.Date.IsZero() {
		return f.Fixture.Date.UTC()
	}
	return time.Unix(f.Fixture.Timestamp, 0).UTC()
}

// Validate rejects fixtures that cannot be keyed or scheduled.
func (f Fixture) Validate() error {
	if f.Fixture.ID <= 0 {
		return errors.New("fixture id is missing")
	}
	if f.Teams.Home.ID <= 0 || f.Teams.Away.ID <= 0 {
		return fmt.Errorf("fixture %d: team ids are missing", f.Fixture.ID)
	}
	if f.Fixture.Date.IsZero() && f.Fixture.Timestamp <= 0 {
		return fmt.Errorf("fixture %d: kickoff time is missing", f.Fixture.ID)
	}
	return nil
}

// LiveMatch is an in-play fixture, optionally with its event timeline.
type LiveMatch struct {
	Fixture
	Events []MatchEvent `json:"events,omitempty"`
}

// MatchEvent is a goal, card, substitution or VAR decision.
type MatchEvent struct {
	Time   EventTime `json:"time"`
	Team   TeamRef   `json:"team"`
	Player Player    `json:"player"`
	Type   string    `json:"type"`
	Detail string    `json:"detail"`
}

// EventTime is the match minute of an event.
type EventTime struct {
	Elapsed int  `json:"elapsed"`
	Extra   *int `json:"extra"`
}

// Player is a player reference.
type Player struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TeamStatistics is a team's season aggregate in one league.
type TeamStatistics struct {
	League   League        `json:"league"`
	Team     TeamRef       `json:"team"`
	Form     string        `json:"form"`
	Fixtures FixtureTotals `json:"fixtures"`
	Goals    GoalTotals    `json:"goals"`
}

// FixtureTotals counts played matches and results.
type FixtureTotals struct {
	Played HomeAwayTotal `json:"played"`
	Wins   HomeAwayTotal `json:"wins"`
	Draws  HomeAwayTotal `json:"draws"`
	Loses  HomeAwayTotal `json:"loses"`
}

// GoalTotals counts goals scored and conceded.
type GoalTotals struct {
	For     GoalSplit `json:"for"`
	Against GoalSplit `json:"against"`
}

// GoalSplit wraps the provider's nested "total" object.
type GoalSplit struct {
	Total HomeAwayTotal `json:"total"`
}

// HomeAwayTotal is the provider's home/away/total triple.
type HomeAwayTotal struct {
	Home  int `json:"home"`
	Away  int `json:"away"`
	Total int `json:"total"`
}

// Validate rejects statistics without a team.
func (s TeamStatistics) Validate() error {
	if s.Team.ID <= 0 {
		return errors.New("team statistics: team id is missing")
	}
	return nil
}

// envelope is the provider response wrapper. Errors is either [] or an object
// keyed by field name, so it stays raw.
type envelope[T any] struct {
	Get      string          `json:"get"`
	Errors   json.RawMessage `json:"errors"`
	Results  int             `json:"results"`
	Response T               `json:"response"`
}

type validator interface {
	Validate() error
}

// decodeList decodes a {response: T[]} body and validates each item.
func decodeList[T any](body []byte) ([]T, error) {
	var env envelope[[]T]
	if err := decodeEnvelope(body, &env.Errors, &env); err != nil {
		return nil, err
	}
	if env.Response == nil {
		return nil, errors.New("response array is missing")
	}
	for i := range env.Response {
		if v, ok := any(env.Response[i]).(validator); ok {
			if err := v.Validate(); err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
		}
	}
	return env.Response, nil
}

// decodeObject decodes a {response: T} body, as used by the statistics endpoint.
func decodeObject[T any](body []byte) (*T, error) {
	var env envelope[*T]
	if err := decodeEnvelope(body, &env.Errors, &env); err != nil {
		return nil, err
	}
	if env.Response == nil {
		return nil, errors.New("response object is missing")
	}
	if v, ok := any(*env.Response).(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return env.Response, nil
}

func decodeEnvelope(body []byte, providerErrors *json.RawMessage, dest any) error {
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("invalid response body: %w", err)
	}
	if hasProviderErrors(*providerErrors) {
		return &Error{Kind: KindRejected, Reported: true, Message: "provider reported errors: " + string(*providerErrors)}
	}
	return nil
}

// hasProviderErrors treats null, [] and {} as "no errors".
func hasProviderErrors(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return len(list) > 0
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		return len(obj) > 0
	}
	return string(raw) != "null"
}
