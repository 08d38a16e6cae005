package models

import (
	"strconv"
	"strings"
	"time"
)

// UnknownID is the sentinel identifier used whenever an entity cannot be
// resolved (missing pedigree row, absent trainer column, etc.). It is a
// real vocabulary member, never an empty string or null.
const UnknownID = "unknown"

// ParticipationRecord represents one horse's participation in one race.
// String fields carry the raw source values; parsing into numerics happens
// in the feature engine so that unparsable values degrade to sentinels
// instead of failing ingestion.
type ParticipationRecord struct {
	RaceID     string
	HorseID    string
	HorseName  string
	JockeyID   string
	TrainerID  string
	SireID     string
	DamsireID  string
	Date       time.Time // zero value means the date could not be resolved
	CourseType string
	Distance   int
	Weather    string
	Condition  string
	Rank       string // raw finishing rank; may be non-numeric (DNS, DQ, 中止)
	Time       string // finishing time, "M:SS.s" or bare seconds
	Last3F     string // closing 3-furlong sectional, seconds
	Passing    string // corner positions, hyphen separated ("3-3-2-1")
	Waku       int    // frame number
	Umaban     int    // post position
	WeightDiff int
	Odds       string
}

// HasDate reports whether the event date was resolved at ingestion.
func (r *ParticipationRecord) HasDate() bool {
	return !r.Date.IsZero()
}

// RankValue parses the raw rank. The second return value is false for
// non-finishers and other non-numeric ranks.
func (r *ParticipationRecord) RankValue() (int, bool) {
	rank, err := strconv.Atoi(strings.TrimSpace(r.Rank))
	if err != nil || rank <= 0 {
		return 0, false
	}
	return rank, true
}

// IsWinner reports whether this record won its race. Rank 1 denotes the
// winner; ranks need not be contiguous within a race.
func (r *ParticipationRecord) IsWinner() bool {
	rank, ok := r.RankValue()
	return ok && rank == 1
}

// PedigreeProfile is one row of the pedigree side-table keyed by horse.
type PedigreeProfile struct {
	HorseID   string
	SireID    string
	DamsireID string
}
