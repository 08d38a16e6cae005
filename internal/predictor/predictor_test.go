package predictor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/keiba-engine/internal/features"
	"github.com/yourusername/keiba-engine/internal/models"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

// fakeModel returns fixed probabilities aligned with the input rows.
type fakeModel struct {
	probs []float64
	err   error
}

func (m *fakeModel) PredictBatch(ctx context.Context, names []string, rows [][]float64) ([]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.probs[:len(rows)], nil
}

func fitBundle(t *testing.T) (*features.Engine, *features.ArtifactBundle) {
	t.Helper()
	engine := features.NewEngine(testLogger())
	corpus := []*models.ParticipationRecord{
		{RaceID: "r1", HorseID: "h1", JockeyID: "j1", TrainerID: "t1", SireID: "s1",
			DamsireID: "d1", Rank: "1", Date: day(1), CourseType: "turf", Distance: 1600, Time: "94.0"},
		{RaceID: "r1", HorseID: "h2", JockeyID: "j2", TrainerID: "t2", SireID: "s2",
			DamsireID: "d2", Rank: "2", Date: day(1), CourseType: "turf", Distance: 1600, Time: "96.0"},
	}
	_, bundle, err := engine.Fit(corpus)
	require.NoError(t, err)
	return engine, bundle
}

func raceCard() []*models.ParticipationRecord {
	return []*models.ParticipationRecord{
		{RaceID: "rc1", HorseID: "h1", HorseName: "Alpha", Umaban: 1, Odds: "2.0",
			Date: day(20), CourseType: "turf", Distance: 1600},
		{RaceID: "rc1", HorseID: "h2", HorseName: "Beta", Umaban: 2, Odds: "10.0",
			Date: day(20), CourseType: "turf", Distance: 1600},
	}
}

func TestPredictRanksByOddsWeightedScore(t *testing.T) {
	engine, bundle := fitBundle(t)
	model := &fakeModel{probs: []float64{0.5, 0.25}}
	p := New(engine, nil, model, 4, testLogger())

	preds, err := p.Predict(context.Background(), raceCard(), bundle)
	require.NoError(t, err)
	require.Len(t, preds, 2)

	// 0.5^4 * 2.0 > 0.25^4 * 10.0, so Alpha leads despite shorter odds.
	assert.Equal(t, "Alpha", preds[0].HorseName)
	assert.Equal(t, "◎", preds[0].Mark)
	assert.Equal(t, "○", preds[1].Mark)

	// Scores are min-max normalized within the batch.
	assert.Equal(t, 1.0, preds[0].Score)
	assert.Equal(t, 0.0, preds[1].Score)
	assert.Equal(t, 0.5, preds[0].Probability)
}

func TestPredictMissingOddsFallsBackToProbability(t *testing.T) {
	engine, bundle := fitBundle(t)
	card := raceCard()
	card[0].Odds = ""
	card[1].Odds = "not-a-number"

	model := &fakeModel{probs: []float64{0.8, 0.2}}
	p := New(engine, nil, model, 4, testLogger())

	preds, err := p.Predict(context.Background(), card, bundle)
	require.NoError(t, err)

	assert.Equal(t, "Alpha", preds[0].HorseName)
	assert.Equal(t, 0.0, preds[0].Odds)
}

func TestPredictDegenerateScoresNormalizeToHalf(t *testing.T) {
	engine, bundle := fitBundle(t)
	card := raceCard()
	card[1].Odds = card[0].Odds

	model := &fakeModel{probs: []float64{0.4, 0.4}}
	p := New(engine, nil, model, 4, testLogger())

	preds, err := p.Predict(context.Background(), card, bundle)
	require.NoError(t, err)

	assert.Equal(t, 0.5, preds[0].Score)
	assert.Equal(t, 0.5, preds[1].Score)
}

func TestPredictMarksLimitedToTopFour(t *testing.T) {
	engine, bundle := fitBundle(t)

	card := make([]*models.ParticipationRecord, 6)
	probs := make([]float64, 6)
	for i := range card {
		card[i] = &models.ParticipationRecord{
			RaceID: "rc1", HorseID: "h1", HorseName: "X", Umaban: i + 1, Odds: "2.0",
			Date: day(20), CourseType: "turf", Distance: 1600,
		}
		probs[i] = 0.9 - float64(i)*0.1
	}

	p := New(engine, nil, &fakeModel{probs: probs}, 4, testLogger())
	preds, err := p.Predict(context.Background(), card, bundle)
	require.NoError(t, err)

	assert.Equal(t, []string{"◎", "○", "▲", "△"},
		[]string{preds[0].Mark, preds[1].Mark, preds[2].Mark, preds[3].Mark})
	assert.Empty(t, preds[4].Mark)
	assert.Empty(t, preds[5].Mark)
}

func TestPredictModelFailure(t *testing.T) {
	engine, bundle := fitBundle(t)
	p := New(engine, nil, &fakeModel{err: errors.New("model down")}, 4, testLogger())

	_, err := p.Predict(context.Background(), raceCard(), bundle)
	assert.Error(t, err)
}

func TestPredictNilBundle(t *testing.T) {
	engine, _ := fitBundle(t)
	p := New(engine, nil, &fakeModel{probs: []float64{0.5}}, 4, testLogger())

	_, err := p.Predict(context.Background(), raceCard(), nil)
	assert.ErrorIs(t, err, models.ErrArtifactsMissing)
}

func TestPredictEmptyCard(t *testing.T) {
	engine, bundle := fitBundle(t)
	p := New(engine, nil, &fakeModel{}, 4, testLogger())

	preds, err := p.Predict(context.Background(), nil, bundle)
	require.NoError(t, err)
	assert.Empty(t, preds)
}
