// Package repository persists normalized participation records to PostgreSQL.
// The database is the durable copy of the normalized corpus; the feature
// engine itself works on in-memory slices loaded from here or from raw CSVs.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/yourusername/keiba-engine/internal/database"
	"github.com/yourusername/keiba-engine/internal/metrics"
	"github.com/yourusername/keiba-engine/internal/models"
)

// RecordRepository stores and retrieves participation records
type RecordRepository interface {
	SaveBatch(ctx context.Context, records []*models.ParticipationRecord) (int, error)
	GetByDateRange(ctx context.Context, from, to time.Time) ([]*models.ParticipationRecord, error)
	GetAll(ctx context.Context) ([]*models.ParticipationRecord, error)
	Count(ctx context.Context) (int64, error)
}

// PostgresRecordRepository implements RecordRepository for PostgreSQL
type PostgresRecordRepository struct {
	db *database.DB
}

// NewPostgresRecordRepository creates a new record repository
func NewPostgresRecordRepository(db *database.DB) RecordRepository {
	return &PostgresRecordRepository{db: db}
}

const recordColumns = `
	race_id, horse_id, horse_name, jockey_id, trainer_id, sire_id, damsire_id,
	race_date, course_type, distance, weather, condition, rank, finish_time,
	last_3f, passing, waku, umaban, weight_diff, odds
`

// SaveBatch inserts records, skipping any (race_id, horse_id) pair already
// present. Returns the number of rows actually inserted.
func (r *PostgresRecordRepository) SaveBatch(ctx context.Context, records []*models.ParticipationRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf(`
		INSERT INTO participation_records (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (race_id, horse_id) DO NOTHING
	`, recordColumns)

	tx, err := r.db.GetPool().Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for i := range records {
		rec := records[i]
		var raceDate *time.Time
		if rec.HasDate() {
			raceDate = &rec.Date
		}
		tag, err := tx.Exec(ctx, query,
			rec.RaceID, rec.HorseID, rec.HorseName, rec.JockeyID, rec.TrainerID,
			rec.SireID, rec.DamsireID, raceDate, rec.CourseType, rec.Distance,
			rec.Weather, rec.Condition, rec.Rank, rec.Time,
			rec.Last3F, rec.Passing, rec.Waku, rec.Umaban, rec.WeightDiff, rec.Odds,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to save record %s/%s: %w", rec.RaceID, rec.HorseID, err)
		}
		if tag.RowsAffected() > 0 {
			inserted++
		} else {
			metrics.RecordsDeduplicatedTotal.Inc()
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit records: %w", err)
	}
	return inserted, nil
}

// GetByDateRange retrieves records with race_date in [from, to]. Records
// without a resolvable date are excluded.
func (r *PostgresRecordRepository) GetByDateRange(ctx context.Context, from, to time.Time) ([]*models.ParticipationRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM participation_records
		WHERE race_date >= $1 AND race_date <= $2
		ORDER BY race_date, race_id, umaban
	`, recordColumns)

	rows, err := r.db.GetPool().Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// GetAll retrieves the entire normalized corpus, dated records first in
// chronological order, undated records last.
func (r *PostgresRecordRepository) GetAll(ctx context.Context) ([]*models.ParticipationRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM participation_records
		ORDER BY race_date NULLS LAST, race_id, umaban
	`, recordColumns)

	rows, err := r.db.GetPool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Count returns the number of stored records
func (r *PostgresRecordRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetPool().QueryRow(ctx, `SELECT COUNT(*) FROM participation_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

func scanRecords(rows pgx.Rows) ([]*models.ParticipationRecord, error) {
	var records []*models.ParticipationRecord
	for rows.Next() {
		rec := &models.ParticipationRecord{}
		var raceDate *time.Time
		err := rows.Scan(
			&rec.RaceID, &rec.HorseID, &rec.HorseName, &rec.JockeyID, &rec.TrainerID,
			&rec.SireID, &rec.DamsireID, &raceDate, &rec.CourseType, &rec.Distance,
			&rec.Weather, &rec.Condition, &rec.Rank, &rec.Time,
			&rec.Last3F, &rec.Passing, &rec.Waku, &rec.Umaban, &rec.WeightDiff, &rec.Odds,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if raceDate != nil {
			rec.Date = raceDate.UTC()
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}
