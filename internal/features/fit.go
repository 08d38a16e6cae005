package features

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-engine/internal/metrics"
	"github.com/yourusername/keiba-engine/internal/models"
)

// Engine runs the fitting and transform pipelines. It holds no mutable
// state of its own: every invocation works on its own intermediate slices,
// so a single Engine is safe to use concurrently.
type Engine struct {
	logger *logrus.Logger
}

// NewEngine creates a feature engine
func NewEngine(logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{logger: logger}
}

// axisRates carries the per-record win-rate columns, one slice per axis,
// each aligned with the record slice.
type axisRates struct {
	jockey  []float64
	trainer []float64
	sire    []float64
	damsire []float64
	course  []float64
	distCat []float64
}

// Fit derives the full training feature matrix from historical records and
// freezes every statistic into a new artifact bundle. Records with a
// non-numeric rank are excluded from fitting entirely; the returned rows
// are aligned with the retained records in input order.
//
// Row-level win rates are strictly-past expanding means, so no row's value
// depends on its own outcome or any later outcome. Frozen bundle rates are
// unshifted whole-corpus means covering every record dated on or before the
// bundle's MaxFitDate.
func (e *Engine) Fit(records []*models.ParticipationRecord) ([]FeatureRow, *ArtifactBundle, error) {
	start := time.Now()

	fit := make([]*models.ParticipationRecord, 0, len(records))
	for _, r := range records {
		if _, ok := r.RankValue(); ok {
			fit = append(fit, r)
		}
	}
	if len(fit) == 0 {
		return nil, nil, models.ErrNoData
	}
	if dropped := len(records) - len(fit); dropped > 0 {
		e.logger.WithField("dropped", dropped).Info("Excluded non-numeric ranks from fitting")
	}

	buckets := FitCourseBuckets(fit)
	speedIdx := make([]float64, len(fit))
	for i, r := range fit {
		speedIdx[i] = buckets.SpeedIndex(r.CourseType, r.Distance, r.Time)
	}

	rates := axisRates{
		jockey:  ExpandingWinRates(fit, jockeyKey),
		trainer: ExpandingWinRates(fit, trainerKey),
		sire:    ExpandingWinRates(fit, sireKey),
		damsire: ExpandingWinRates(fit, damsireKey),
		course:  ExpandingWinRates(fit, horseCourseKey),
		distCat: ExpandingWinRates(fit, horseDistCatKey),
	}
	lags := HorseLagFeatures(fit, speedIdx)
	ctxs := RaceContextFeatures(fit)

	bundle := newBundle()
	bundle.FitRowCount = len(fit)
	bundle.MaxFitDate = maxDate(fit)
	bundle.JockeyWinRate = FitStatMap(fit, jockeyKey)
	bundle.TrainerWinRate = FitStatMap(fit, trainerKey)
	bundle.SireWinRate = FitStatMap(fit, sireKey)
	bundle.DamsireWinRate = FitStatMap(fit, damsireKey)
	bundle.CourseAptitude = FitNestedStatMap(fit, horseKey, courseCategory)
	bundle.DistanceAptitude = FitNestedStatMap(fit, horseKey, distCategory)
	bundle.CourseBuckets = buckets
	for _, col := range CategoryColumns {
		values := make([]string, len(fit))
		for i, r := range fit {
			values[i] = categoryValue(r, col)
		}
		bundle.Encoders[col] = FitLabelEncoder(values)
	}

	rows := assembleRows(fit, speedIdx, rates, lags, ctxs, bundle.Encoders)

	metrics.FitRunsTotal.Inc()
	metrics.FitDuration.Observe(time.Since(start).Seconds())
	e.logger.WithFields(logrus.Fields{
		"rows":     len(rows),
		"buckets":  len(buckets),
		"max_date": bundle.MaxFitDate.Format("2006-01-02"),
		"duration": time.Since(start),
	}).Info("Feature fitting completed")

	return rows, bundle, nil
}

func courseCategory(r *models.ParticipationRecord) string {
	if r.CourseType == "" {
		return models.UnknownID
	}
	return r.CourseType
}

func distCategory(r *models.ParticipationRecord) string {
	return DistanceCategory(r.Distance)
}

func maxDate(records []*models.ParticipationRecord) time.Time {
	var max time.Time
	for _, r := range records {
		if r.HasDate() && r.Date.After(max) {
			max = r.Date
		}
	}
	return max
}

// categoryValue extracts the raw string for one categorical column.
func categoryValue(r *models.ParticipationRecord, col string) string {
	var v string
	switch col {
	case "horse_id":
		v = r.HorseID
	case "jockey_id":
		v = r.JockeyID
	case "trainer_id":
		v = r.TrainerID
	case "sire_id":
		v = r.SireID
	case "damsire_id":
		v = r.DamsireID
	case "course_type":
		v = r.CourseType
	case "weather":
		v = r.Weather
	case "condition":
		v = r.Condition
	}
	if v == "" {
		return models.UnknownID
	}
	return v
}

// assembleRows builds the feature matrix, aligned with the record slice.
func assembleRows(records []*models.ParticipationRecord, speedIdx []float64, rates axisRates, lags []LagFeatures, ctxs []RaceContext, encoders map[string]*LabelEncoder) []FeatureRow {
	rows := make([]FeatureRow, len(records))
	for i, r := range records {
		row := FeatureRow{
			RaceID:    r.RaceID,
			HorseID:   r.HorseID,
			HorseName: r.HorseName,

			JockeyWinRate:    rates.jockey[i],
			TrainerWinRate:   rates.trainer[i],
			SireWinRate:      rates.sire[i],
			DamsireWinRate:   rates.damsire[i],
			CourseAptitude:   rates.course[i],
			DistanceAptitude: rates.distCat[i],

			HorseCode:      encoders["horse_id"].Encode(categoryValue(r, "horse_id")),
			JockeyCode:     encoders["jockey_id"].Encode(categoryValue(r, "jockey_id")),
			TrainerCode:    encoders["trainer_id"].Encode(categoryValue(r, "trainer_id")),
			SireCode:       encoders["sire_id"].Encode(categoryValue(r, "sire_id")),
			DamsireCode:    encoders["damsire_id"].Encode(categoryValue(r, "damsire_id")),
			CourseTypeCode: encoders["course_type"].Encode(categoryValue(r, "course_type")),
			WeatherCode:    encoders["weather"].Encode(categoryValue(r, "weather")),
			ConditionCode:  encoders["condition"].Encode(categoryValue(r, "condition")),

			Waku:       float64(r.Waku),
			Umaban:     float64(r.Umaban),
			Distance:   float64(r.Distance),
			WeightDiff: float64(r.WeightDiff),

			SpeedIndex:     speedIdx[i],
			Lag1Rank:       lags[i].Lag1Rank,
			Lag1SpeedIndex: lags[i].Lag1SpeedIndex,
			Lag1Last3F:     lags[i].Lag1Last3F,
			IntervalDays:   lags[i].IntervalDays,

			RunningStyle:     ctxs[i].RunningStyle,
			FrontRunnerCount: ctxs[i].FrontRunnerCount,
			PaceRatio:        ctxs[i].PaceRatio,
			Last3FTime:       ctxs[i].Last3FTime,
			Last3FRank:       ctxs[i].Last3FRank,
			Last3FDeviation:  ctxs[i].Last3FDeviation,
		}
		if rank, ok := r.RankValue(); ok {
			row.Rank = float64(rank)
		}
		rows[i] = row
	}
	return rows
}
