package storage

import (
	"context"
	"time"

	"macrokit-datalake/internal/domain"
)

// ObservationStore provides access to the bitemporal raw_observations
// storage. Intervals are append-only: a revision closes the previous
// interval and inserts a new one, values are never mutated in place.
type ObservationStore interface {
	// AppendInterval applies one observation to the interval history of
	// its (table, series_id, observation_date) key, atomically per key.
	// Returns ErrRevisionConflict if the history is malformed.
	AppendInterval(ctx context.Context, obs *domain.Observation) (domain.RevisionResult, error)

	// GetIntervals retrieves the full revision history for a key,
	// ordered by realtime_start ASC.
	GetIntervals(ctx context.Context, table, seriesID string, date time.Time) ([]*domain.Observation, error)

	// GetAsOf retrieves the interval covering asOf for a key.
	// Returns ErrNotFound if no interval covers the timestamp.
	GetAsOf(ctx context.Context, table, seriesID string, date time.Time, asOf time.Time) (*domain.Observation, error)

	// GetCurrentByTable retrieves the current projection of a table:
	// every open interval, ordered by (series_id, observation_date) ASC.
	GetCurrentByTable(ctx context.Context, table string) ([]*domain.Observation, error)

	// LastObservationDate returns the max observation_date stored for a
	// series, with ok=false when the series has no data.
	LastObservationDate(ctx context.Context, table, seriesID string) (time.Time, bool, error)

	// HasData reports whether a table holds any observations.
	HasData(ctx context.Context, table string) (bool, error)

	// Truncate removes all observations for a table. Used only by setup
	// with an explicit overwrite.
	Truncate(ctx context.Context, table string) error
}

// IngestionRunStore provides access to the append-only ingestion_runs
// audit storage.
type IngestionRunStore interface {
	// InsertRun adds a new run in running state.
	// Returns ErrDuplicateKey if run_id exists.
	InsertRun(ctx context.Context, run *domain.IngestionRun) error

	// CompleteRun records the terminal status of a run.
	CompleteRun(ctx context.Context, runID string, status domain.RunStatus, completedAt time.Time) error

	// InsertTableReport adds a per-table accounting record for a run.
	InsertTableReport(ctx context.Context, report *domain.TableReport) error

	// GetRun retrieves a run by ID. Returns ErrNotFound if not exists.
	GetRun(ctx context.Context, runID string) (*domain.IngestionRun, error)

	// GetTableReports retrieves all table reports for a run, ordered by table.
	GetTableReports(ctx context.Context, runID string) ([]*domain.TableReport, error)

	// HasCompletedSetup reports whether a full-mode run ever succeeded
	// (fully or partially).
	HasCompletedSetup(ctx context.Context) (bool, error)

	// LastSuccessfulEndDate returns the end date of the most recent run in
	// which the table succeeded, with ok=false when none exists.
	LastSuccessfulEndDate(ctx context.Context, table string) (time.Time, bool, error)
}

// YieldCurveStore provides access to the mart_yield_curve table.
// Mart tables are recomputed wholesale: each DAG run replaces the content.
type YieldCurveStore interface {
	// ReplaceAll atomically replaces the table content with rows.
	ReplaceAll(ctx context.Context, rows []*domain.YieldCurveRow) error

	// GetByDateRange retrieves rows within [start, end], ordered by (date, country) ASC.
	GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.YieldCurveRow, error)

	// GetByDate retrieves the row for one (date, country).
	// Returns ErrNotFound if not exists.
	GetByDate(ctx context.Context, date time.Time, country string) (*domain.YieldCurveRow, error)
}

// IndicatorChangeStore provides access to the mart_indicator_changes table.
type IndicatorChangeStore interface {
	// ReplaceAll atomically replaces the table content with rows.
	ReplaceAll(ctx context.Context, rows []*domain.IndicatorChangeRow) error

	// GetBySeries retrieves rows for a series, ordered by observation_date ASC.
	GetBySeries(ctx context.Context, seriesID string) ([]*domain.IndicatorChangeRow, error)
}

// MarketFactorStore provides access to the mart_market_factors table.
type MarketFactorStore interface {
	// ReplaceAll atomically replaces the table content with rows.
	ReplaceAll(ctx context.Context, rows []*domain.MarketFactorRow) error

	// GetBySeries retrieves rows for a series, ordered by observation_date ASC.
	GetBySeries(ctx context.Context, seriesID string) ([]*domain.MarketFactorRow, error)
}
