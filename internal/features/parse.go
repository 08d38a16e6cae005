// Package features implements the leakage-free statistical feature engine:
// chronological ordering, course-normalized speed indices, expanding win
// rates, lag/context features, categorical encoding and the frozen artifact
// bundle replayed at inference time.
package features

import (
	"strconv"
	"strings"
)

// FirstCornerSentinel marks an unparsable or absent positional trace.
// A sentinel position never counts as a front-runner.
const FirstCornerSentinel = 99

// Distance category names. Breakpoints follow JRA course-length conventions.
const (
	DistSprint       = "sprint"
	DistMile         = "mile"
	DistIntermediate = "intermediate"
	DistLong         = "long"
	DistUnknown      = "unknown"
)

// ParseSeconds parses a finishing or sectional time in "M:SS.s" or bare
// seconds format. The second return value is false for unparsable input.
func ParseSeconds(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if idx := strings.IndexByte(raw, ':'); idx >= 0 {
		minutes, err := strconv.Atoi(raw[:idx])
		if err != nil {
			return 0, false
		}
		seconds, err := strconv.ParseFloat(raw[idx+1:], 64)
		if err != nil {
			return 0, false
		}
		return float64(minutes)*60 + seconds, true
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ParseFirstCorner extracts the first corner position from a hyphen-separated
// positional trace such as "3-3-2-1". Unparsable input yields the sentinel.
func ParseFirstCorner(passing string) int {
	passing = strings.TrimSpace(passing)
	if passing == "" {
		return FirstCornerSentinel
	}
	first := passing
	if idx := strings.IndexByte(passing, '-'); idx >= 0 {
		first = passing[:idx]
	}
	pos, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || pos <= 0 {
		return FirstCornerSentinel
	}
	return pos
}

// DistanceCategory buckets a race distance in meters into the fixed
// sprint/mile/intermediate/long categories used by the aptitude axes.
func DistanceCategory(distance int) string {
	switch {
	case distance <= 0:
		return DistUnknown
	case distance <= 1400:
		return DistSprint
	case distance <= 1800:
		return DistMile
	case distance <= 2400:
		return DistIntermediate
	default:
		return DistLong
	}
}
