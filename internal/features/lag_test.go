package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/keiba-engine/internal/models"
)

func TestHorseLagFeaturesFirstStartSentinels(t *testing.T) {
	records := []*models.ParticipationRecord{
		{RaceID: "r1", HorseID: "h1", Rank: "3", Date: day(1)},
	}

	lags := HorseLagFeatures(records, []float64{0.5})

	require.Len(t, lags, 1)
	assert.Equal(t, float64(LagRankSentinel), lags[0].Lag1Rank)
	assert.Equal(t, 0.0, lags[0].Lag1SpeedIndex)
	assert.Equal(t, 0.0, lags[0].Lag1Last3F)
	assert.Equal(t, float64(DefaultIntervalDays), lags[0].IntervalDays)
}

func TestHorseLagFeaturesPreviousRace(t *testing.T) {
	records := []*models.ParticipationRecord{
		{RaceID: "r1", HorseID: "h1", Rank: "3", Last3F: "34.5", Date: day(1)},
		{RaceID: "r2", HorseID: "h1", Rank: "1", Last3F: "33.9", Date: day(15)},
	}
	speedIdx := []float64{0.8, 1.2}

	lags := HorseLagFeatures(records, speedIdx)

	assert.Equal(t, 3.0, lags[1].Lag1Rank)
	assert.InDelta(t, 0.8, lags[1].Lag1SpeedIndex, 1e-12)
	assert.InDelta(t, 34.5, lags[1].Lag1Last3F, 1e-12)
	assert.Equal(t, 14.0, lags[1].IntervalDays)
}

func TestHorseLagFeaturesNonNumericPreviousRank(t *testing.T) {
	records := []*models.ParticipationRecord{
		{RaceID: "r1", HorseID: "h1", Rank: "中止", Date: day(1)},
		{RaceID: "r2", HorseID: "h1", Rank: "2", Date: day(8)},
	}

	lags := HorseLagFeatures(records, []float64{0, 0})

	assert.Equal(t, float64(LagRankSentinel), lags[1].Lag1Rank)
	assert.Equal(t, 7.0, lags[1].IntervalDays)
}

func TestHorseLagFeaturesSeparateHorses(t *testing.T) {
	records := []*models.ParticipationRecord{
		{RaceID: "r1", HorseID: "h1", Rank: "1", Date: day(1)},
		{RaceID: "r2", HorseID: "h2", Rank: "2", Date: day(2)},
	}

	lags := HorseLagFeatures(records, []float64{1.0, 1.0})

	// h2's first start must not see h1's history.
	assert.Equal(t, float64(LagRankSentinel), lags[1].Lag1Rank)
}

func TestRunningStyleOf(t *testing.T) {
	assert.Equal(t, StyleFront, RunningStyleOf(1))
	assert.Equal(t, StyleFront, RunningStyleOf(2))
	assert.Equal(t, StyleMiddle, RunningStyleOf(3))
	assert.Equal(t, StyleMiddle, RunningStyleOf(7))
	assert.Equal(t, StyleBack, RunningStyleOf(8))
	assert.Equal(t, StyleUnknown, RunningStyleOf(FirstCornerSentinel))
}

func TestRaceContextPace(t *testing.T) {
	records := []*models.ParticipationRecord{
		{RaceID: "r1", HorseID: "h1", Passing: "1-1-1-1"},
		{RaceID: "r1", HorseID: "h2", Passing: "5-4-3-2"},
		{RaceID: "r1", HorseID: "h3", Passing: "10-9-8-5"},
	}

	ctxs := RaceContextFeatures(records)

	require.Len(t, ctxs, 3)
	for _, ctx := range ctxs {
		assert.Equal(t, 1.0, ctx.FrontRunnerCount)
		assert.InDelta(t, 1.0/3.0, ctx.PaceRatio, 1e-12)
	}
	assert.Equal(t, StyleFront, ctxs[0].RunningStyle)
	assert.Equal(t, StyleMiddle, ctxs[1].RunningStyle)
	assert.Equal(t, StyleBack, ctxs[2].RunningStyle)
}

func TestRaceContextUnparsablePassing(t *testing.T) {
	records := []*models.ParticipationRecord{
		{RaceID: "r1", HorseID: "h1", Passing: ""},
		{RaceID: "r1", HorseID: "h2", Passing: "2-2"},
	}

	ctxs := RaceContextFeatures(records)

	// The sentinel never counts as a front-runner.
	assert.Equal(t, 1.0, ctxs[0].FrontRunnerCount)
	assert.Equal(t, StyleUnknown, ctxs[0].RunningStyle)
	assert.InDelta(t, 0.5, ctxs[0].PaceRatio, 1e-12)
}

func TestRaceContextLast3FRankAndDeviation(t *testing.T) {
	records := []*models.ParticipationRecord{
		{RaceID: "r1", HorseID: "h1", Last3F: "35.0"},
		{RaceID: "r1", HorseID: "h2", Last3F: "34.0"},
		{RaceID: "r1", HorseID: "h3", Last3F: ""},
	}

	ctxs := RaceContextFeatures(records)

	assert.Equal(t, 2.0, ctxs[0].Last3FRank)
	assert.Equal(t, 1.0, ctxs[1].Last3FRank)
	assert.Equal(t, float64(LagRankSentinel), ctxs[2].Last3FRank)
	assert.Equal(t, 50.0, ctxs[2].Last3FDeviation)

	// Two valid sectionals: mean 34.5, sample std sqrt(0.5).
	std := math.Sqrt(0.5)
	assert.InDelta(t, 50+10*(-0.5)/std, ctxs[0].Last3FDeviation, 1e-9)
	assert.InDelta(t, 50+10*(0.5)/std, ctxs[1].Last3FDeviation, 1e-9)
}

func TestRaceContextLast3FTiesKeepInputOrder(t *testing.T) {
	records := []*models.ParticipationRecord{
		{RaceID: "r1", HorseID: "h1", Last3F: "34.0"},
		{RaceID: "r1", HorseID: "h2", Last3F: "34.0"},
	}

	ctxs := RaceContextFeatures(records)

	assert.Equal(t, 1.0, ctxs[0].Last3FRank)
	assert.Equal(t, 2.0, ctxs[1].Last3FRank)
}

func TestRaceContextSingleValidSectional(t *testing.T) {
	records := []*models.ParticipationRecord{
		{RaceID: "r1", HorseID: "h1", Last3F: "34.0"},
	}

	ctxs := RaceContextFeatures(records)

	assert.Equal(t, 1.0, ctxs[0].Last3FRank)
	assert.Equal(t, 50.0, ctxs[0].Last3FDeviation)
}
