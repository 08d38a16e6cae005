package features

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-engine/internal/metrics"
	"github.com/yourusername/keiba-engine/internal/models"
)

// Transform replays the feature derivation against a new batch using only
// the frozen bundle contents plus the batch's own chronological structure
// for within-batch lag computation. It never recomputes or mutates any
// frozen statistic: unknown entities resolve to rate 0 and unknown
// categorical values to the reserved unknown class. Calling it twice on the
// same inputs yields identical output.
func (e *Engine) Transform(records []*models.ParticipationRecord, bundle *ArtifactBundle) ([]FeatureRow, error) {
	if bundle == nil {
		return nil, models.ErrArtifactsMissing
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []FeatureRow{}, nil
	}
	start := time.Now()

	buckets := bundle.CourseBuckets
	if len(buckets) == 0 {
		// Fallback only: a small inference batch produces degenerate,
		// near-zero-variance buckets, so the persisted table is always
		// preferred when present.
		e.logger.Warn("Artifact bundle has no course buckets, recomputing from batch")
		buckets = FitCourseBuckets(records)
	}

	speedIdx := make([]float64, len(records))
	rates := axisRates{
		jockey:  make([]float64, len(records)),
		trainer: make([]float64, len(records)),
		sire:    make([]float64, len(records)),
		damsire: make([]float64, len(records)),
		course:  make([]float64, len(records)),
		distCat: make([]float64, len(records)),
	}
	for i, r := range records {
		speedIdx[i] = buckets.SpeedIndex(r.CourseType, r.Distance, r.Time)
		rates.jockey[i] = bundle.JockeyWinRate.Rate(r.JockeyID)
		rates.trainer[i] = bundle.TrainerWinRate.Rate(r.TrainerID)
		rates.sire[i] = bundle.SireWinRate.Rate(r.SireID)
		rates.damsire[i] = bundle.DamsireWinRate.Rate(r.DamsireID)
		rates.course[i] = bundle.CourseAptitude.Rate(r.HorseID, courseCategory(r))
		rates.distCat[i] = bundle.DistanceAptitude.Rate(r.HorseID, distCategory(r))
	}

	lags := HorseLagFeatures(records, speedIdx)
	ctxs := RaceContextFeatures(records)
	rows := assembleRows(records, speedIdx, rates, lags, ctxs, bundle.Encoders)

	metrics.TransformRunsTotal.Inc()
	metrics.TransformDuration.Observe(time.Since(start).Seconds())
	e.logger.WithFields(logrus.Fields{
		"rows":     len(rows),
		"bundle":   bundle.ID,
		"duration": time.Since(start),
	}).Debug("Transform replay completed")

	return rows, nil
}
