package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"macrokit-datalake/internal/domain"
	"macrokit-datalake/internal/storage"
)

// IngestionRunStore implements storage.IngestionRunStore using PostgreSQL.
type IngestionRunStore struct {
	pool *Pool
}

// NewIngestionRunStore creates a new IngestionRunStore.
func NewIngestionRunStore(pool *Pool) *IngestionRunStore {
	return &IngestionRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IngestionRunStore = (*IngestionRunStore)(nil)

// InsertRun adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *IngestionRunStore) InsertRun(ctx context.Context, run *domain.IngestionRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingestion_runs (
			run_id, mode, tables_requested, start_date, end_date,
			overwrite, started_at, completed_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, run.RunID, run.Mode, run.TablesRequested, run.StartDate, run.EndDate,
		run.Overwrite, run.StartedAt, run.CompletedAt, run.Status)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}

	return nil
}

// CompleteRun records the terminal status of a run.
func (s *IngestionRunStore) CompleteRun(ctx context.Context, runID string, status domain.RunStatus, completedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingestion_runs SET status = $1, completed_at = $2 WHERE run_id = $3
	`, status, completedAt, runID)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// InsertTableReport adds a per-table accounting record for a run.
func (s *IngestionRunStore) InsertTableReport(ctx context.Context, report *domain.TableReport) error {
	if report == nil || report.RunID == "" || report.Table == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingestion_run_tables (
			run_id, table_name, status, rows_fetched, rows_inserted,
			rows_revised, rows_unchanged, rows_dropped, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, report.RunID, report.Table, report.Status, report.RowsFetched,
		report.RowsInserted, report.RowsRevised, report.RowsUnchanged,
		report.RowsDropped, report.Error)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert table report: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *IngestionRunStore) GetRun(ctx context.Context, runID string) (*domain.IngestionRun, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT run_id, mode, tables_requested, start_date, end_date,
		       overwrite, started_at, completed_at, status
		FROM ingestion_runs
		WHERE run_id = $1
	`, runID)

	var run domain.IngestionRun
	err := row.Scan(
		&run.RunID,
		&run.Mode,
		&run.TablesRequested,
		&run.StartDate,
		&run.EndDate,
		&run.Overwrite,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Status,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}

	return &run, nil
}

// GetTableReports retrieves all table reports for a run, ordered by table.
func (s *IngestionRunStore) GetTableReports(ctx context.Context, runID string) ([]*domain.TableReport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, table_name, status, rows_fetched, rows_inserted,
		       rows_revised, rows_unchanged, rows_dropped, error
		FROM ingestion_run_tables
		WHERE run_id = $1
		ORDER BY table_name ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("get table reports: %w", err)
	}

	return scanTableReports(rows)
}

// HasCompletedSetup reports whether a full-mode run ever completed with
// at least partial success.
func (s *IngestionRunStore) HasCompletedSetup(ctx context.Context) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ingestion_runs
			WHERE mode = $1 AND status IN ($2, $3)
		)
	`, domain.RunModeFull, domain.RunStatusSucceeded, domain.RunStatusPartial).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has completed setup: %w", err)
	}

	return exists, nil
}

// LastSuccessfulEndDate returns the end date of the most recent run in
// which the table succeeded.
func (s *IngestionRunStore) LastSuccessfulEndDate(ctx context.Context, table string) (time.Time, bool, error) {
	var end *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT r.end_date
		FROM ingestion_runs r
		JOIN ingestion_run_tables t ON t.run_id = r.run_id
		WHERE t.table_name = $1 AND t.status = $2
		ORDER BY r.started_at DESC
		LIMIT 1
	`, table, domain.TableStatusSucceeded).Scan(&end)
	if err != nil {
		if isNotFoundError(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("last successful end date: %w", err)
	}

	if end == nil {
		return time.Time{}, false, nil
	}
	return *end, true, nil
}

// scanTableReports scans multiple rows into a slice of TableReport.
func scanTableReports(rows pgx.Rows) ([]*domain.TableReport, error) {
	defer rows.Close()

	var reports []*domain.TableReport
	for rows.Next() {
		var r domain.TableReport

		err := rows.Scan(
			&r.RunID,
			&r.Table,
			&r.Status,
			&r.RowsFetched,
			&r.RowsInserted,
			&r.RowsRevised,
			&r.RowsUnchanged,
			&r.RowsDropped,
			&r.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("scan table report row: %w", err)
		}

		reports = append(reports, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table report rows: %w", err)
	}

	return reports, nil
}
