// Package predictor ranks the entries of an upcoming race. It replays frozen
// feature artifacts over the race card, fills lag columns from the historical
// cache, asks the model service for win probabilities and converts them into
// an odds-weighted ranking with traditional marks.
package predictor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-engine/internal/features"
	"github.com/yourusername/keiba-engine/internal/history"
	"github.com/yourusername/keiba-engine/internal/ml"
	"github.com/yourusername/keiba-engine/internal/models"
)

// Marks assigned to the top ranked entries, in order.
var marks = []string{"◎", "○", "▲", "△"}

// Prediction is one ranked entry of a race card
type Prediction struct {
	RaceID      string  `json:"race_id"`
	HorseID     string  `json:"horse_id"`
	HorseName   string  `json:"horse_name"`
	Umaban      int     `json:"umaban"`
	Probability float64 `json:"probability"`
	Odds        float64 `json:"odds"`
	Score       float64 `json:"score"`
	Mark        string  `json:"mark"`
}

// Predictor scores race cards against a frozen artifact bundle
type Predictor struct {
	engine        *features.Engine
	history       *history.Cache
	model         ml.Model
	powerExponent int
	logger        *logrus.Logger
}

// New creates a predictor. The history cache may be nil, in which case lag
// columns keep the within-card values the transform produced.
func New(engine *features.Engine, hist *history.Cache, model ml.Model, powerExponent int, logger *logrus.Logger) *Predictor {
	if logger == nil {
		logger = logrus.New()
	}
	if powerExponent <= 0 {
		powerExponent = 4
	}
	return &Predictor{
		engine:        engine,
		history:       hist,
		model:         model,
		powerExponent: powerExponent,
		logger:        logger,
	}
}

// Predict ranks the given race card. Records are the entries of one or more
// upcoming races; outcome columns are expected to be empty.
func (p *Predictor) Predict(ctx context.Context, records []*models.ParticipationRecord, bundle *features.ArtifactBundle) ([]Prediction, error) {
	rows, err := p.engine.Transform(records, bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to transform race card: %w", err)
	}
	if len(rows) == 0 {
		return []Prediction{}, nil
	}

	if p.history != nil {
		p.fillLagFromHistory(records, rows)
	}

	vectors := make([][]float64, len(rows))
	for i := range rows {
		vectors[i] = rows[i].Vector()
	}

	probs, err := p.model.PredictBatch(ctx, features.FeatureNames(), vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to get predictions: %w", err)
	}

	preds := make([]Prediction, len(rows))
	for i := range rows {
		odds := parseOdds(records[i].Odds)
		preds[i] = Prediction{
			RaceID:      rows[i].RaceID,
			HorseID:     rows[i].HorseID,
			HorseName:   rows[i].HorseName,
			Umaban:      records[i].Umaban,
			Probability: probs[i],
			Odds:        odds,
			Score:       p.score(probs[i], odds),
		}
	}

	normalizeScores(preds)
	sort.SliceStable(preds, func(i, j int) bool { return preds[i].Score > preds[j].Score })
	for i := range preds {
		if i < len(marks) {
			preds[i].Mark = marks[i]
		}
	}

	p.logger.WithFields(logrus.Fields{
		"entries": len(preds),
		"top":     preds[0].HorseName,
	}).Info("Race card ranked")
	return preds, nil
}

// fillLagFromHistory replaces the within-card lag columns with the horse's
// actual previous start from the historical corpus.
func (p *Predictor) fillLagFromHistory(records []*models.ParticipationRecord, rows []features.FeatureRow) {
	for i := range records {
		asOf := records[i].Date
		if asOf.IsZero() {
			asOf = time.Now().UTC()
		}
		last, ok := p.history.GetLastRace(records[i].HorseID, asOf)
		if !ok {
			last = history.SentinelLastRace()
		}
		rows[i].Lag1Rank = last.PreviousRank
		rows[i].Lag1SpeedIndex = last.PreviousSpeedIndex
		rows[i].Lag1Last3F = last.PreviousLast3F
		rows[i].IntervalDays = last.DaysSinceLast
	}
}

// score weights the win probability by the market odds. Probability is raised
// to the configured power so longshots need a real edge before odds pull them
// up the ranking. Entries without published odds fall back to the bare
// probability.
func (p *Predictor) score(prob, odds float64) float64 {
	if odds <= 0 {
		return prob
	}
	d := decimal.NewFromFloat(prob).Pow(decimal.NewFromInt(int64(p.powerExponent)))
	result, _ := d.Mul(decimal.NewFromFloat(odds)).Float64()
	return result
}

// normalizeScores rescales scores to [0, 1] within the batch. A degenerate
// batch where every score is identical maps to 0.5.
func normalizeScores(preds []Prediction) {
	if len(preds) == 0 {
		return
	}
	min, max := preds[0].Score, preds[0].Score
	for _, pr := range preds[1:] {
		if pr.Score < min {
			min = pr.Score
		}
		if pr.Score > max {
			max = pr.Score
		}
	}
	if max == min {
		for i := range preds {
			preds[i].Score = 0.5
		}
		return
	}
	for i := range preds {
		preds[i].Score = (preds[i].Score - min) / (max - min)
	}
}

func parseOdds(raw string) float64 {
	if raw == "" {
		return 0
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}
