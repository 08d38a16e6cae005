package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/keiba-engine/internal/models"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func jockeyRec(raceID, jockeyID, rank string, d int) *models.ParticipationRecord {
	return &models.ParticipationRecord{
		RaceID:   raceID,
		HorseID:  "h-" + raceID,
		JockeyID: jockeyID,
		Rank:     rank,
		Date:     day(d),
	}
}

func TestExpandingWinRatesStrictlyPast(t *testing.T) {
	// One jockey, three starts: loss, win, loss.
	records := []*models.ParticipationRecord{
		jockeyRec("r1", "j1", "5", 1),
		jockeyRec("r2", "j1", "1", 2),
		jockeyRec("r3", "j1", "4", 3),
	}

	rates := ExpandingWinRates(records, func(r *models.ParticipationRecord) string { return r.JockeyID })

	require.Len(t, rates, 3)
	assert.Equal(t, 0.0, rates[0])
	assert.Equal(t, 0.0, rates[1])
	assert.Equal(t, 0.5, rates[2])
}

func TestExpandingWinRatesNoLeakage(t *testing.T) {
	records := []*models.ParticipationRecord{
		jockeyRec("r1", "j1", "5", 1),
		jockeyRec("r2", "j1", "2", 2),
	}
	key := func(r *models.ParticipationRecord) string { return r.JockeyID }

	before := ExpandingWinRates(records, key)

	// Changing a record's own outcome must not change its own value.
	records[1].Rank = "1"
	after := ExpandingWinRates(records, key)

	assert.Equal(t, before[1], after[1])
}

func TestExpandingWinRatesIndependentEntities(t *testing.T) {
	records := []*models.ParticipationRecord{
		jockeyRec("r1", "j1", "1", 1),
		jockeyRec("r2", "j2", "3", 1),
		jockeyRec("r3", "j1", "2", 2),
		jockeyRec("r4", "j2", "1", 2),
	}
	key := func(r *models.ParticipationRecord) string { return r.JockeyID }

	rates := ExpandingWinRates(records, key)

	assert.Equal(t, 0.0, rates[0])
	assert.Equal(t, 0.0, rates[1])
	assert.Equal(t, 1.0, rates[2])
	assert.Equal(t, 0.0, rates[3])
}

func TestExpandingWinRatesUndatedSortsLast(t *testing.T) {
	undated := jockeyRec("r9", "j1", "8", 1)
	undated.Date = time.Time{}
	records := []*models.ParticipationRecord{
		undated,
		jockeyRec("r1", "j1", "1", 1),
		jockeyRec("r2", "j1", "1", 2),
	}
	key := func(r *models.ParticipationRecord) string { return r.JockeyID }

	rates := ExpandingWinRates(records, key)

	// The undated row sees both dated wins before it.
	assert.Equal(t, 1.0, rates[0])
	assert.Equal(t, 0.0, rates[1])
	assert.Equal(t, 1.0, rates[2])
}

func TestFitStatMapFrozenRate(t *testing.T) {
	records := []*models.ParticipationRecord{
		jockeyRec("r1", "j1", "5", 1),
		jockeyRec("r2", "j1", "1", 2),
		jockeyRec("r3", "j1", "4", 3),
	}

	m := FitStatMap(records, func(r *models.ParticipationRecord) string { return r.JockeyID })

	stat := m["j1"]
	assert.Equal(t, 3, stat.Count)
	assert.Equal(t, 1, stat.Wins)
	assert.InDelta(t, 1.0/3.0, stat.Rate, 1e-12)
}

func TestStatMapUnknownEntityIsZero(t *testing.T) {
	m := StatMap{"j1": {Count: 2, Wins: 1, Rate: 0.5}}
	assert.Equal(t, 0.0, m.Rate("never-seen"))

	nested := NestedStatMap{"h1": {"turf": {Count: 1, Wins: 1, Rate: 1}}}
	assert.Equal(t, 0.0, nested.Rate("h1", "dirt"))
	assert.Equal(t, 0.0, nested.Rate("h2", "turf"))
	assert.Equal(t, 1.0, nested.Rate("h1", "turf"))
}

func TestFitNestedStatMap(t *testing.T) {
	records := []*models.ParticipationRecord{
		{RaceID: "r1", HorseID: "h1", CourseType: "turf", Rank: "1", Date: day(1)},
		{RaceID: "r2", HorseID: "h1", CourseType: "turf", Rank: "4", Date: day(2)},
		{RaceID: "r3", HorseID: "h1", CourseType: "dirt", Rank: "2", Date: day(3)},
	}

	m := FitNestedStatMap(records,
		func(r *models.ParticipationRecord) string { return r.HorseID },
		func(r *models.ParticipationRecord) string { return r.CourseType })

	assert.InDelta(t, 0.5, m.Rate("h1", "turf"), 1e-12)
	assert.Equal(t, 0.0, m.Rate("h1", "dirt"))
	assert.Equal(t, 2, m["h1"]["turf"].Count)
}
