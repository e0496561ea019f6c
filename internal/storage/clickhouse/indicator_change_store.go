package clickhouse

import (
	"context"
	"fmt"
	"sort"

	"macrokit-datalake/internal/domain"
	"macrokit-datalake/internal/storage"
)

// IndicatorChangeStore implements storage.IndicatorChangeStore using ClickHouse.
type IndicatorChangeStore struct {
	conn *Conn
}

// NewIndicatorChangeStore creates a new IndicatorChangeStore.
func NewIndicatorChangeStore(conn *Conn) *IndicatorChangeStore {
	return &IndicatorChangeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.IndicatorChangeStore = (*IndicatorChangeStore)(nil)

// ReplaceAll atomically replaces the table content with rows.
func (s *IndicatorChangeStore) ReplaceAll(ctx context.Context, rows []*domain.IndicatorChangeRow) error {
	for _, r := range rows {
		if r == nil {
			return storage.ErrInvalidInput
		}
	}

	sorted := make([]*domain.IndicatorChangeRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].SeriesID != sorted[j].SeriesID {
			return sorted[i].SeriesID < sorted[j].SeriesID
		}
		return sorted[i].ObservationDate.Before(sorted[j].ObservationDate)
	})

	if err := s.conn.Exec(ctx, `TRUNCATE TABLE mart_indicator_changes`); err != nil {
		return fmt.Errorf("truncate mart_indicator_changes: %w", err)
	}

	if len(sorted) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO mart_indicator_changes (
			series_id, indicator, country, asset_class,
			observation_date, value, previous_value, change_pct, source_node
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range sorted {
		err = batch.Append(
			r.SeriesID, r.Indicator, r.Country, r.AssetClass,
			r.ObservationDate, r.Value, r.PreviousValue, r.ChangePct, r.SourceNode,
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

// GetBySeries retrieves rows for a series, ordered by observation_date ASC.
func (s *IndicatorChangeStore) GetBySeries(ctx context.Context, seriesID string) ([]*domain.IndicatorChangeRow, error) {
	query := `
		SELECT
			series_id, indicator, country, asset_class,
			observation_date, value, previous_value, change_pct, source_node
		FROM mart_indicator_changes
		WHERE series_id = ?
		ORDER BY observation_date ASC
	`

	rows, err := s.conn.Query(ctx, query, seriesID)
	if err != nil {
		return nil, fmt.Errorf("query by series: %w", err)
	}
	defer rows.Close()

	return scanIndicatorChangeRows(rows)
}

// scanIndicatorChangeRows scans multiple rows.
func scanIndicatorChangeRows(rows chRows) ([]*domain.IndicatorChangeRow, error) {
	var result []*domain.IndicatorChangeRow

	for rows.Next() {
		var r domain.IndicatorChangeRow

		err := rows.Scan(
			&r.SeriesID, &r.Indicator, &r.Country, &r.AssetClass,
			&r.ObservationDate, &r.Value, &r.PreviousValue, &r.ChangePct, &r.SourceNode,
		)
		if err != nil {
			return nil, fmt.Errorf("scan indicator change row: %w", err)
		}

		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indicator change rows: %w", err)
	}

	return result, nil
}
