package clickhouse

import (
	"context"
	"fmt"
	"sort"

	"macrokit-datalake/internal/domain"
	"macrokit-datalake/internal/storage"
)

// MarketFactorStore implements storage.MarketFactorStore using ClickHouse.
type MarketFactorStore struct {
	conn *Conn
}

// NewMarketFactorStore creates a new MarketFactorStore.
func NewMarketFactorStore(conn *Conn) *MarketFactorStore {
	return &MarketFactorStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MarketFactorStore = (*MarketFactorStore)(nil)

// ReplaceAll atomically replaces the table content with rows.
func (s *MarketFactorStore) ReplaceAll(ctx context.Context, rows []*domain.MarketFactorRow) error {
	for _, r := range rows {
		if r == nil {
			return storage.ErrInvalidInput
		}
	}

	sorted := make([]*domain.MarketFactorRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].SeriesID != sorted[j].SeriesID {
			return sorted[i].SeriesID < sorted[j].SeriesID
		}
		return sorted[i].ObservationDate.Before(sorted[j].ObservationDate)
	})

	if err := s.conn.Exec(ctx, `TRUNCATE TABLE mart_market_factors`); err != nil {
		return fmt.Errorf("truncate mart_market_factors: %w", err)
	}

	if len(sorted) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO mart_market_factors (
			series_id, indicator, asset_class, observation_date, value, source_node
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range sorted {
		err = batch.Append(
			r.SeriesID, r.Indicator, r.AssetClass, r.ObservationDate, r.Value, r.SourceNode,
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
func (s *MarketFactorStore) GetBySeries(ctx context.Context, seriesID string) ([]*domain.MarketFactorRow, error) {
	query := `
		SELECT series_id, indicator, asset_class, observation_date, value, source_node
		FROM mart_market_factors
		WHERE series_id = ?
		ORDER BY observation_date ASC
	`

	rows, err := s.conn.Query(ctx, query, seriesID)
	if err != nil {
		return nil, fmt.Errorf("query by series: %w", err)
	}
	defer rows.Close()

	return scanMarketFactorRows(rows)
}

// scanMarketFactorRows scans multiple rows.
func scanMarketFactorRows(rows chRows) ([]*domain.MarketFactorRow, error) {
	var result []*domain.MarketFactorRow

	for rows.Next() {
		var r domain.MarketFactorRow

		err := rows.Scan(
			&r.SeriesID, &r.Indicator, &r.AssetClass, &r.ObservationDate, &r.Value, &r.SourceNode,
		)
		if err != nil {
			return nil, fmt.Errorf("scan market factor row: %w", err)
		}

		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market factor rows: %w", err)
	}

	return result, nil
}
