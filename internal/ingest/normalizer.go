// Package ingest loads raw per-season result files and normalizes them into
// a single unified record set with a canonical date column and merged
// pedigree identifiers.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/keiba-engine/internal/metrics"
	"github.com/yourusername/keiba-engine/internal/models"
)

// legacyDateLayout matches the localized date strings of the old result
// format, e.g. "2024年1月15日".
const legacyDateLayout = "2006年1月2日"

// Normalizer converts raw tabular result files into ParticipationRecords.
type Normalizer struct {
	logger *logrus.Logger
}

// NewNormalizer creates a new schema normalizer
func NewNormalizer(logger *logrus.Logger) *Normalizer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Normalizer{logger: logger}
}

// Normalize loads every result file under rawDir, deduplicates by
// (race, horse) and merges the pedigree side-table when one is configured.
// An absent or broken pedigree table degrades pedigree identifiers to the
// unknown sentinel instead of failing.
func (n *Normalizer) Normalize(rawDir, pedigreePath string) ([]*models.ParticipationRecord, error) {
	records, err := n.LoadDir(rawDir)
	if err != nil {
		return nil, err
	}
	records = n.Deduplicate(records)

	profiles := map[string]models.PedigreeProfile{}
	if pedigreePath != "" {
		profiles, err = n.LoadPedigree(pedigreePath)
		if err != nil {
			n.logger.WithError(err).Warn("Pedigree table unavailable, sire/damsire features degrade to unknown")
			profiles = map[string]models.PedigreeProfile{}
		}
	}
	n.MergePedigree(records, profiles)

	return records, nil
}

// LoadDir reads every results_*.csv file in a directory. A file that cannot
// be parsed is skipped with a warning, not fatal. An empty result set is
// returned as-is; callers decide whether that is an error.
func (n *Normalizer) LoadDir(dir string) ([]*models.ParticipationRecord, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "results_*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan raw data directory: %w", err)
	}
	sort.Strings(matches)

	var records []*models.ParticipationRecord
	for _, path := range matches {
		fileRecords, err := n.LoadFile(path)
		if err != nil {
			n.logger.WithFields(logrus.Fields{"file": path, "error": err}).Warn("Skipping unparsable result file")
			metrics.SourceFilesSkippedTotal.Inc()
			continue
		}
		records = append(records, fileRecords...)
	}

	if len(records) == 0 {
		n.logger.WithField("dir", dir).Warn("No result records found")
	}
	return records, nil
}

// LoadFile reads one result CSV. Both schema versions are accepted: the
// current one carries year/month/day integer columns, the legacy one a
// single localized date string (or an all-numeric placeholder resolved from
// the race id).
func (n *Normalizer) LoadFile(path string) ([]*models.ParticipationRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	if _, ok := cols["race_id"]; !ok {
		return nil, fmt.Errorf("missing race_id column")
	}
	if _, ok := cols["horse_id"]; !ok {
		return nil, fmt.Errorf("missing horse_id column")
	}

	var records []*models.ParticipationRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		records = append(records, n.parseRow(row, cols))
		metrics.RecordsIngestedTotal.Inc()
	}
	return records, nil
}

func (n *Normalizer) parseRow(row []string, cols map[string]int) *models.ParticipationRecord {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	r := &models.ParticipationRecord{
		RaceID:     field("race_id"),
		HorseID:    field("horse_id"),
		HorseName:  field("name"),
		JockeyID:   field("jockey_id"),
		TrainerID:  field("trainer_id"),
		SireID:     field("sire_id"),
		DamsireID:  field("damsire_id"),
		CourseType: field("course_type"),
		Weather:    field("weather"),
		Condition:  field("condition"),
		Rank:       field("rank"),
		Time:       field("time"),
		Last3F:     field("last_3f"),
		Passing:    field("passing"),
		Odds:       field("odds"),
		Distance:   atoiOr(field("distance"), 0, "distance"),
		Waku:       atoiOr(field("waku"), 0, "waku"),
		Umaban:     atoiOr(field("umaban"), 0, "umaban"),
		WeightDiff: atoiOr(field("weight_diff"), 0, "weight_diff"),
	}
	r.Date = n.resolveDate(field("year"), field("month"), field("day"), field("date"), r.RaceID)
	return r
}

// resolveDate applies the canonical resolution order: explicit
// year/month/day columns, then the legacy localized string, then the date
// digits embedded in the race id. Unresolvable dates stay zero and sort
// after all dated rows for the same entity.
func (n *Normalizer) resolveDate(year, month, day, legacy, raceID string) time.Time {
	if year != "" && month != "" && day != "" {
		y, errY := strconv.Atoi(year)
		m, errM := strconv.Atoi(month)
		d, errD := strconv.Atoi(day)
		if errY == nil && errM == nil && errD == nil && m >= 1 && m <= 12 && d >= 1 && d <= 31 {
			return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
		}
	}

	if legacy != "" && !isAllDigits(legacy) {
		if t, err := time.Parse(legacyDateLayout, legacy); err == nil {
			return t.UTC()
		}
	}

	// All-numeric placeholder dates fall through to the race id, whose
	// first digits encode YYYY??MMDD.
	if t, ok := dateFromRaceID(raceID); ok {
		return t
	}

	metrics.ParseFailuresTotal.WithLabelValues("date").Inc()
	return time.Time{}
}

func dateFromRaceID(raceID string) (time.Time, bool) {
	if len(raceID) < 12 || !isAllDigits(raceID[:10]) {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(raceID[0:4])
	m, _ := strconv.Atoi(raceID[6:8])
	d, _ := strconv.Atoi(raceID[8:10])
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), true
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func atoiOr(s string, fallback int, metric string) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		metrics.ParseFailuresTotal.WithLabelValues(metric).Inc()
		return fallback
	}
	return v
}

// Deduplicate drops repeated (race, horse) rows, keeping the first
// occurrence.
func (n *Normalizer) Deduplicate(records []*models.ParticipationRecord) []*models.ParticipationRecord {
	seen := make(map[string]struct{}, len(records))
	out := records[:0:0]
	for _, r := range records {
		key := r.RaceID + "\x00" + r.HorseID
		if _, dup := seen[key]; dup {
			metrics.RecordsDeduplicatedTotal.Inc()
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	if dropped := len(records) - len(out); dropped > 0 {
		n.logger.WithField("dropped", dropped).Info("Dropped duplicate (race, horse) rows")
	}
	return out
}

// LoadPedigree reads the horse profile side-table mapping horse id to sire
// and damsire ids.
func (n *Normalizer) LoadPedigree(path string) (map[string]models.PedigreeProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read pedigree header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	profiles := make(map[string]models.PedigreeProfile)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read pedigree row: %w", err)
		}
		get := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		horseID := get("horse_id")
		if horseID == "" {
			continue
		}
		profiles[horseID] = models.PedigreeProfile{
			HorseID:   horseID,
			SireID:    orUnknown(get("sire_id")),
			DamsireID: orUnknown(get("damsire_id")),
		}
	}
	return profiles, nil
}

// MergePedigree left-joins pedigree identifiers onto the records. Horses
// without a profile get the unknown sentinel, never an empty id.
func (n *Normalizer) MergePedigree(records []*models.ParticipationRecord, profiles map[string]models.PedigreeProfile) {
	for _, r := range records {
		if profile, ok := profiles[r.HorseID]; ok {
			if r.SireID == "" {
				r.SireID = profile.SireID
			}
			if r.DamsireID == "" {
				r.DamsireID = profile.DamsireID
			}
		}
		r.SireID = orUnknown(r.SireID)
		r.DamsireID = orUnknown(r.DamsireID)
	}
}

func orUnknown(id string) string {
	if id == "" {
		return models.UnknownID
	}
	return id
}
