package features

import (
	"math"
	"sort"

	"github.com/yourusername/keiba-engine/internal/models"
)

// Lag sentinels: a horse with no prior history looks like a debutant with a
// long layoff rather than a missing value.
const (
	LagRankSentinel     = 99
	DefaultIntervalDays = 365
)

// Running style buckets derived from the first corner position.
const (
	StyleFront   = 0
	StyleMiddle  = 1
	StyleBack    = 2
	StyleUnknown = 3
)

// A record counts as a front-runner when its first corner position is at
// most this value.
const frontRunnerMaxPosition = 2

// LagFeatures are the previous-race features of one record, computed from
// the horse's strictly-past timeline.
type LagFeatures struct {
	Lag1Rank       float64
	Lag1SpeedIndex float64
	Lag1Last3F     float64
	IntervalDays   float64
}

// DefaultLag returns the no-history sentinel values.
func DefaultLag() LagFeatures {
	return LagFeatures{
		Lag1Rank:       LagRankSentinel,
		Lag1SpeedIndex: 0,
		Lag1Last3F:     0,
		IntervalDays:   DefaultIntervalDays,
	}
}

// HorseLagFeatures computes per-horse lag features over the chronologically
// ordered timeline of each horse. speedIndex must be aligned with records.
// The result is aligned with the input slice.
func HorseLagFeatures(records []*models.ParticipationRecord, speedIndex []float64) []LagFeatures {
	lags := make([]LagFeatures, len(records))
	order := chronologicalOrder(records, horseKey)

	prev := -1
	var currentHorse string
	for pos, idx := range order {
		r := records[idx]
		if pos == 0 || r.HorseID != currentHorse {
			currentHorse = r.HorseID
			prev = -1
		}

		if prev < 0 {
			lags[idx] = DefaultLag()
		} else {
			p := records[prev]
			lag := DefaultLag()
			if rank, ok := p.RankValue(); ok {
				lag.Lag1Rank = float64(rank)
			}
			lag.Lag1SpeedIndex = speedIndex[prev]
			if t, ok := ParseSeconds(p.Last3F); ok && t > 0 {
				lag.Lag1Last3F = t
			}
			if r.HasDate() && p.HasDate() {
				lag.IntervalDays = math.Floor(r.Date.Sub(p.Date).Hours() / 24)
			}
			lags[idx] = lag
		}
		prev = idx
	}
	return lags
}

// RaceContext carries the within-race positional and sectional features
// shared by or ranked against the rest of the field.
type RaceContext struct {
	FirstCorner      int
	RunningStyle     int
	FrontRunnerCount float64
	PaceRatio        float64
	Last3FTime       float64
	Last3FRank       float64
	Last3FDeviation  float64
}

// RunningStyleOf buckets a first corner position into the fixed style
// classes: front ≤2, middle ≤7, back otherwise, unknown for the sentinel.
func RunningStyleOf(firstCorner int) int {
	switch {
	case firstCorner == FirstCornerSentinel:
		return StyleUnknown
	case firstCorner <= 2:
		return StyleFront
	case firstCorner <= 7:
		return StyleMiddle
	default:
		return StyleBack
	}
}

// RaceContextFeatures computes pace and closing-sectional context per race
// and attaches it to every record in that race. The result is aligned with
// the input slice.
func RaceContextFeatures(records []*models.ParticipationRecord) []RaceContext {
	ctxs := make([]RaceContext, len(records))

	byRace := make(map[string][]int)
	for i, r := range records {
		byRace[r.RaceID] = append(byRace[r.RaceID], i)
	}

	for _, group := range byRace {
		fieldSize := len(group)

		frontRunners := 0
		for _, idx := range group {
			corner := ParseFirstCorner(records[idx].Passing)
			ctxs[idx].FirstCorner = corner
			ctxs[idx].RunningStyle = RunningStyleOf(corner)
			if corner != FirstCornerSentinel && corner <= frontRunnerMaxPosition {
				frontRunners++
			}
		}
		ratio := 0.0
		if fieldSize > 0 {
			ratio = float64(frontRunners) / float64(fieldSize)
		}

		// Closing sectional: in-race rank (fastest first, ties by input
		// order) and a 50-centered deviation score.
		valid := make([]int, 0, fieldSize)
		for _, idx := range group {
			ctxs[idx].FrontRunnerCount = float64(frontRunners)
			ctxs[idx].PaceRatio = ratio
			ctxs[idx].Last3FRank = LagRankSentinel
			ctxs[idx].Last3FDeviation = 50
			if t, ok := ParseSeconds(records[idx].Last3F); ok && t > 0 {
				ctxs[idx].Last3FTime = t
				valid = append(valid, idx)
			}
		}
		if len(valid) == 0 {
			continue
		}

		sort.SliceStable(valid, func(a, b int) bool {
			return ctxs[valid[a]].Last3FTime < ctxs[valid[b]].Last3FTime
		})
		for pos, idx := range valid {
			ctxs[idx].Last3FRank = float64(pos + 1)
		}

		if len(valid) > 1 {
			var sum float64
			for _, idx := range valid {
				sum += ctxs[idx].Last3FTime
			}
			mean := sum / float64(len(valid))
			var sq float64
			for _, idx := range valid {
				d := ctxs[idx].Last3FTime - mean
				sq += d * d
			}
			std := math.Sqrt(sq / float64(len(valid)-1))
			if std > 0 {
				for _, idx := range valid {
					ctxs[idx].Last3FDeviation = 50 + 10*(mean-ctxs[idx].Last3FTime)/std
				}
			}
		}
	}
	return ctxs
}
