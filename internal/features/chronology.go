package features

import (
	"sort"

	"github.com/yourusername/keiba-engine/internal/models"
)

// EntityKey extracts an entity identifier from a record. Composite axes
// (horse×surface, horse×distance-category) join parts with CompositeSep.
type EntityKey func(*models.ParticipationRecord) string

// CompositeSep joins the parts of a composite entity key. NUL cannot occur
// in source identifiers, so composite keys never collide with simple ones.
const CompositeSep = "\x00"

// chronologicalOrder returns the indices of records sorted by
// (key, date, race id). The sort is stable and undated records sort after
// all dated records for the same entity, so their statistics draw on every
// dated row already seen.
func chronologicalOrder(records []*models.ParticipationRecord, key EntityKey) []int {
	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := records[order[a]], records[order[b]]
		ka, kb := key(ra), key(rb)
		if ka != kb {
			return ka < kb
		}
		if ra.HasDate() != rb.HasDate() {
			return ra.HasDate()
		}
		if ra.HasDate() && !ra.Date.Equal(rb.Date) {
			return ra.Date.Before(rb.Date)
		}
		return ra.RaceID < rb.RaceID
	})
	return order
}

// SortChronological returns a new slice of the records ordered by
// (key, date, race id) without mutating the input.
func SortChronological(records []*models.ParticipationRecord, key EntityKey) []*models.ParticipationRecord {
	order := chronologicalOrder(records, key)
	sorted := make([]*models.ParticipationRecord, len(records))
	for i, idx := range order {
		sorted[i] = records[idx]
	}
	return sorted
}

// Common entity keys.
func horseKey(r *models.ParticipationRecord) string   { return r.HorseID }
func jockeyKey(r *models.ParticipationRecord) string  { return r.JockeyID }
func trainerKey(r *models.ParticipationRecord) string { return r.TrainerID }
func sireKey(r *models.ParticipationRecord) string    { return r.SireID }
func damsireKey(r *models.ParticipationRecord) string { return r.DamsireID }

func horseCourseKey(r *models.ParticipationRecord) string {
	return r.HorseID + CompositeSep + r.CourseType
}

func horseDistCatKey(r *models.ParticipationRecord) string {
	return r.HorseID + CompositeSep + DistanceCategory(r.Distance)
}
