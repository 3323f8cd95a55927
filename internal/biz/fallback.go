package biz

import (
	"time"

	"Touchline/pkg/apifootball"
)

// FallbackVersion identifies the static dataset served when every tier fails.
const FallbackVersion = "fallback-2024.1"

var (
	fallbackLeague = apifootball.League{ID: 39, Name: "Premier League", Country: "England", Season: 2024}

	fallbackTeams = [...]apifootball.TeamRef{
		{ID: 42, Name: "Arsenal"},
		{ID: 49, Name: "Chelsea"},
		{ID: 40, Name: "Liverpool"},
		{ID: 50, Name: "Manchester City"},
		{ID: 33, Name: "Manchester United"},
		{ID: 47, Name: "Tottenham"},
	}
)

// FallbackFixtures returns the static fixture list. Each call returns a fresh
// copy with the same content.
func FallbackFixtures() []apifootball.Fixture {
	kickoff := time.Date(2024, 8, 17, 14, 0, 0, 0, time.UTC)
	out := make([]apifootball.Fixture, 0, len(fallbackTeams)/2)
	for i := 0; i+1 < len(fallbackTeams); i += 2 {
		at := kickoff.Add(time.Duration(i) * time.Hour)
		out = append(out, apifootball.Fixture{
			Fixture: apifootball.FixtureInfo{
				ID:        1208000 + int64(i/2),
				Timezone:  "UTC",
				Date:      at,
				Timestamp: at.Unix(),
				Status:    apifootball.FixtureStatus{Long: "Not Started", Short: "NS"},
			},
			League: withRound(fallbackLeague, "Regular Season - 1"),
			Teams:  apifootball.Teams{Home: fallbackTeams[i], Away: fallbackTeams[i+1]},
		})
	}
	return out
}

// FallbackLiveMatches returns the static in-play sample.
func FallbackLiveMatches() []apifootball.LiveMatch {
	fixtures := FallbackFixtures()
	out := make([]apifootball.LiveMatch, 0, len(fixtures))
	for i, f := range fixtures {
		elapsed := 30 + 15*i
		f.Fixture.Status = apifootball.FixtureStatus{Long: "First Half", Short: "1H", Elapsed: &elapsed}
		f.Goals = apifootball.Goals{Home: intPtr(i % 2), Away: intPtr(0)}
		out = append(out, apifootball.LiveMatch{Fixture: f})
	}
	return out
}

// FallbackTeamStatistics returns a zeroed season aggregate for the requested team.
// Unknown teams keep their id so the response still identifies the request.
func FallbackTeamStatistics(teamID, leagueID int64, season int) apifootball.TeamStatistics {
	team := apifootball.TeamRef{ID: teamID, Name: "Unknown"}
	for _, t := range fallbackTeams {
		if t.ID == teamID {
			team = t
			break
		}
	}
	league := fallbackLeague
	league.ID = leagueID
	league.Season = season
	return apifootball.TeamStatistics{League: league, Team: team}
}

func withRound(l apifootball.League, round string) apifootball.League {
	l.Round = round
	return l
}

func intPtr(v int) *int {
	return &v
}
