package features

import (
	"github.com/yourusername/keiba-engine/internal/models"
)

// Stat is the frozen win-rate estimate for one entity: the whole-fit-corpus
// mean outcome plus the (count, wins) pair it derives from.
type Stat struct {
	Count int     `json:"count"`
	Wins  int     `json:"wins"`
	Rate  float64 `json:"rate"`
}

// StatMap maps an entity identifier to its frozen statistic.
type StatMap map[string]Stat

// NestedStatMap maps entity → category → frozen statistic for composite
// aptitude axes such as horse×surface.
type NestedStatMap map[string]map[string]Stat

// Rate returns the frozen rate for an entity, 0 for unknown entities.
func (m StatMap) Rate(id string) float64 {
	return m[id].Rate
}

// Rate returns the frozen rate for an (entity, category) pair, 0 when
// either level is unknown.
func (m NestedStatMap) Rate(id, category string) float64 {
	return m[id][category].Rate
}

// ExpandingWinRates computes, for every record, the strictly-past expanding
// mean of the win outcome along the given entity axis. Records are walked in
// chronological order per entity (ties broken by race id) and each row sees
// only rows before it: an entity's first row gets 0, and no row's value
// depends on its own outcome. The result is aligned with the input slice.
func ExpandingWinRates(records []*models.ParticipationRecord, key EntityKey) []float64 {
	rates := make([]float64, len(records))
	order := chronologicalOrder(records, key)

	var current string
	var count, wins int
	for pos, idx := range order {
		r := records[idx]
		k := key(r)
		if pos == 0 || k != current {
			current = k
			count, wins = 0, 0
		}
		if count > 0 {
			rates[idx] = float64(wins) / float64(count)
		}
		count++
		if r.IsWinner() {
			wins++
		}
	}
	return rates
}

// FitStatMap computes the frozen per-entity statistic over the entire fit
// corpus, unshifted: the best known estimate as of the end of training,
// applied only to records dated after the training cutoff.
func FitStatMap(records []*models.ParticipationRecord, key EntityKey) StatMap {
	m := make(StatMap)
	for _, r := range records {
		k := key(r)
		s := m[k]
		s.Count++
		if r.IsWinner() {
			s.Wins++
		}
		m[k] = s
	}
	for k, s := range m {
		if s.Count > 0 {
			s.Rate = float64(s.Wins) / float64(s.Count)
			m[k] = s
		}
	}
	return m
}

// FitNestedStatMap computes frozen statistics for a composite axis, keyed
// entity → category.
func FitNestedStatMap(records []*models.ParticipationRecord, entity EntityKey, category func(*models.ParticipationRecord) string) NestedStatMap {
	m := make(NestedStatMap)
	for _, r := range records {
		e, c := entity(r), category(r)
		inner := m[e]
		if inner == nil {
			inner = make(map[string]Stat)
			m[e] = inner
		}
		s := inner[c]
		s.Count++
		if r.IsWinner() {
			s.Wins++
		}
		inner[c] = s
	}
	for _, inner := range m {
		for c, s := range inner {
			if s.Count > 0 {
				s.Rate = float64(s.Wins) / float64(s.Count)
				inner[c] = s
			}
		}
	}
	return m
}
