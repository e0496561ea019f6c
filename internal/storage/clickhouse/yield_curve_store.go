package clickhouse

import (
	"context"
	"fmt"
	"sort"
	"time"

	"macrokit-datalake/internal/domain"
	"macrokit-datalake/internal/storage"
)

// YieldCurveStore implements storage.YieldCurveStore using ClickHouse.
// The mart table is recomputed wholesale: ReplaceAll truncates and
// reinserts in canonical order so repeated runs produce identical tables.
type YieldCurveStore struct {
	conn *Conn
}

// NewYieldCurveStore creates a new YieldCurveStore.
func NewYieldCurveStore(conn *Conn) *YieldCurveStore {
	return &YieldCurveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.YieldCurveStore = (*YieldCurveStore)(nil)

// ReplaceAll atomically replaces the table content with rows.
func (s *YieldCurveStore) ReplaceAll(ctx context.Context, rows []*domain.YieldCurveRow) error {
	for _, r := range rows {
		if r == nil {
			return storage.ErrInvalidInput
		}
	}

	sorted := make([]*domain.YieldCurveRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].Country < sorted[j].Country
	})

	if err := s.conn.Exec(ctx, `TRUNCATE TABLE mart_yield_curve`); err != nil {
		return fmt.Errorf("truncate mart_yield_curve: %w", err)
	}

	if len(sorted) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO mart_yield_curve (
			date, country,
			yield_2y, yield_5y, yield_10y, yield_30y,
			spread_2s10s, spread_5s30s, curve_shape,
			source_node, source_series
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range sorted {
		// Pass nil values directly for Nullable columns
		err = batch.Append(
			r.Date, r.Country,
			r.Yield2Y, r.Yield5Y, r.Yield10Y, r.Yield30Y,
			r.Spread2s10s, r.Spread5s30s, shapeToNullable(r.CurveShape),
			r.SourceNode, r.SourceSeries,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByDateRange retrieves rows within [start, end], ordered by (date, country) ASC.
func (s *YieldCurveStore) GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.YieldCurveRow, error) {
	query := `
		SELECT
			date, country,
			yield_2y, yield_5y, yield_10y, yield_30y,
			spread_2s10s, spread_5s30s, curve_shape,
			source_node, source_series
		FROM mart_yield_curve
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC, country ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	return scanYieldCurveRows(rows)
}

// GetByDate retrieves the row for one (date, country).
func (s *YieldCurveStore) GetByDate(ctx context.Context, date time.Time, country string) (*domain.YieldCurveRow, error) {
	query := `
		SELECT
			date, country,
			yield_2y, yield_5y, yield_10y, yield_30y,
			spread_2s10s, spread_5s30s, curve_shape,
			source_node, source_series
		FROM mart_yield_curve
		WHERE date = ? AND country = ?
	`

	rows, err := s.conn.Query(ctx, query, date, country)
	if err != nil {
		return nil, fmt.Errorf("query by date: %w", err)
	}
	defer rows.Close()

	result, err := scanYieldCurveRows(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, storage.ErrNotFound
	}

	return result[0], nil
}

// shapeToNullable converts *CurveShape to *string for Nullable(String).
func shapeToNullable(s *domain.CurveShape) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

// scanYieldCurveRows scans multiple rows.
func scanYieldCurveRows(rows chRows) ([]*domain.YieldCurveRow, error) {
	var result []*domain.YieldCurveRow

	for rows.Next() {
		var r domain.YieldCurveRow
		var shape *string

		err := rows.Scan(
			&r.Date, &r.Country,
			&r.Yield2Y, &r.Yield5Y, &r.Yield10Y, &r.Yield30Y,
			&r.Spread2s10s, &r.Spread5s30s, &shape,
			&r.SourceNode, &r.SourceSeries,
		)
		if err != nil {
			return nil, fmt.Errorf("scan yield curve row: %w", err)
		}

		if shape != nil {
			cs := domain.CurveShape(*shape)
			r.CurveShape = &cs
		}

		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate yield curve rows: %w", err)
	}

	return result, nil
}
