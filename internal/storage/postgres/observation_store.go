package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"macrokit-datalake/internal/domain"
	"macrokit-datalake/internal/storage"
)

// ObservationStore implements storage.ObservationStore using PostgreSQL.
// All raw tables share one partitioned raw_observations relation keyed by
// table_name; revision intervals are applied inside a transaction with the
// key's history locked, so appends to the same key are serialized by the
// database while different keys proceed independently.
type ObservationStore struct {
	pool *Pool
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(pool *Pool) *ObservationStore {
	return &ObservationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

const observationColumns = `
	id, table_name, series_id, observation_date, value,
	realtime_start, realtime_end, source, loaded_at
`

// AppendInterval applies one observation to its key's interval history.
func (s *ObservationStore) AppendInterval(ctx context.Context, obs *domain.Observation) (domain.RevisionResult, error) {
	if obs == nil || obs.Table == "" || obs.SeriesID == "" || obs.ObservationDate.IsZero() {
		return 0, storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the key's history for the duration of the transaction.
	rows, err := tx.Query(ctx, `
		SELECT `+observationColumns+`
		FROM raw_observations
		WHERE table_name = $1 AND series_id = $2 AND observation_date = $3
		ORDER BY realtime_start ASC
		FOR UPDATE
	`, obs.Table, obs.SeriesID, obs.ObservationDate)
	if err != nil {
		return 0, fmt.Errorf("lock interval history: %w", err)
	}

	history, err := scanObservations(rows)
	if err != nil {
		return 0, err
	}

	plan, err := domain.PlanRevision(history, obs)
	if err != nil {
		if errors.Is(err, domain.ErrIntervalOverlap) {
			return 0, storage.ErrRevisionConflict
		}
		return 0, err
	}

	if plan.Close != nil {
		_, err = tx.Exec(ctx, `
			UPDATE raw_observations SET realtime_end = $1 WHERE id = $2
		`, plan.CloseAt, plan.Close.ID)
		if err != nil {
			return 0, fmt.Errorf("close interval: %w", err)
		}
	}

	if plan.Insert != nil {
		ins := plan.Insert
		_, err = tx.Exec(ctx, `
			INSERT INTO raw_observations (
				table_name, series_id, observation_date, value,
				realtime_start, realtime_end, source, loaded_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, ins.Table, ins.SeriesID, ins.ObservationDate, ins.Value,
			ins.RealtimeStart, ins.RealtimeEnd, ins.Source, ins.LoadedAt)
		if err != nil {
			if isDuplicateKeyError(err) {
				return 0, storage.ErrRevisionConflict
			}
			return 0, fmt.Errorf("insert interval: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return plan.Result, nil
}

// GetIntervals retrieves the revision history for a key, ordered by realtime_start ASC.
func (s *ObservationStore) GetIntervals(ctx context.Context, table, seriesID string, date time.Time) ([]*domain.Observation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+observationColumns+`
		FROM raw_observations
		WHERE table_name = $1 AND series_id = $2 AND observation_date = $3
		ORDER BY realtime_start ASC
	`, table, seriesID, date)
	if err != nil {
		return nil, fmt.Errorf("get intervals: %w", err)
	}

	return scanObservations(rows)
}

// GetAsOf retrieves the interval covering asOf for a key.
func (s *ObservationStore) GetAsOf(ctx context.Context, table, seriesID string, date time.Time, asOf time.Time) (*domain.Observation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+observationColumns+`
		FROM raw_observations
		WHERE table_name = $1 AND series_id = $2 AND observation_date = $3
		  AND realtime_start <= $4
		  AND (realtime_end IS NULL OR realtime_end > $4)
	`, table, seriesID, date, asOf)

	obs, err := scanObservation(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get as-of: %w", err)
	}

	return obs, nil
}

// GetCurrentByTable retrieves every open interval of a table, ordered by
// (series_id, observation_date) ASC.
func (s *ObservationStore) GetCurrentByTable(ctx context.Context, table string) ([]*domain.Observation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+observationColumns+`
		FROM raw_observations
		WHERE table_name = $1 AND realtime_end IS NULL
		ORDER BY series_id ASC, observation_date ASC
	`, table)
	if err != nil {
		return nil, fmt.Errorf("get current by table: %w", err)
	}

	return scanObservations(rows)
}

// LastObservationDate returns the max observation_date stored for a series.
func (s *ObservationStore) LastObservationDate(ctx context.Context, table, seriesID string) (time.Time, bool, error) {
	var last *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT MAX(observation_date)
		FROM raw_observations
		WHERE table_name = $1 AND series_id = $2
	`, table, seriesID).Scan(&last)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last observation date: %w", err)
	}

	if last == nil {
		return time.Time{}, false, nil
	}
	return *last, true, nil
}

// HasData reports whether a table holds any observations.
func (s *ObservationStore) HasData(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM raw_observations WHERE table_name = $1)
	`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has data: %w", err)
	}

	return exists, nil
}

// Truncate removes all observations for a table.
func (s *ObservationStore) Truncate(ctx context.Context, table string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM raw_observations WHERE table_name = $1
	`, table)
	if err != nil {
		return fmt.Errorf("truncate table %s: %w", table, err)
	}

	return nil
}

// scanObservation scans a single row into an Observation.
func scanObservation(row pgx.Row) (*domain.Observation, error) {
	var obs domain.Observation

	err := row.Scan(
		&obs.ID,
		&obs.Table,
		&obs.SeriesID,
		&obs.ObservationDate,
		&obs.Value,
		&obs.RealtimeStart,
		&obs.RealtimeEnd,
		&obs.Source,
		&obs.LoadedAt,
	)
	if err != nil {
		return nil, err
	}

	return &obs, nil
}

// scanObservations scans multiple rows into a slice of Observation.
func scanObservations(rows pgx.Rows) ([]*domain.Observation, error) {
	defer rows.Close()

	var observations []*domain.Observation
	for rows.Next() {
		var obs domain.Observation

		err := rows.Scan(
			&obs.ID,
			&obs.Table,
			&obs.SeriesID,
			&obs.ObservationDate,
			&obs.Value,
			&obs.RealtimeStart,
			&obs.RealtimeEnd,
			&obs.Source,
			&obs.LoadedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}

		observations = append(observations, &obs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}

	return observations, nil
}
