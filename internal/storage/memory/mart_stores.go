package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"macrokit-datalake/internal/domain"
	"macrokit-datalake/internal/storage"
)

// YieldCurveStore is an in-memory implementation of storage.YieldCurveStore.
type YieldCurveStore struct {
	mu   sync.RWMutex
	rows []*domain.YieldCurveRow
}

// NewYieldCurveStore creates a new in-memory yield curve store.
func NewYieldCurveStore() *YieldCurveStore {
	return &YieldCurveStore{}
}

// Compile-time interface check.
var _ storage.YieldCurveStore = (*YieldCurveStore)(nil)

// ReplaceAll atomically replaces the table content with rows.
func (s *YieldCurveStore) ReplaceAll(_ context.Context, rows []*domain.YieldCurveRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = make([]*domain.YieldCurveRow, 0, len(rows))
	for _, r := range rows {
		if r == nil {
			return storage.ErrInvalidInput
		}
		rCopy := *r
		s.rows = append(s.rows, &rCopy)
	}

	return nil
}

// GetByDateRange retrieves rows within [start, end], ordered by (date, country) ASC.
func (s *YieldCurveStore) GetByDateRange(_ context.Context, start, end time.Time) ([]*domain.YieldCurveRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.YieldCurveRow
	for _, r := range s.rows {
		if !r.Date.Before(start) && !r.Date.After(end) {
			rCopy := *r
			result = append(result, &rCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Country < result[j].Country
	})

	return result, nil
}

// GetByDate retrieves the row for one (date, country).
func (s *YieldCurveStore) GetByDate(_ context.Context, date time.Time, country string) (*domain.YieldCurveRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rows {
		if r.Date.Equal(date) && r.Country == country {
			rCopy := *r
			return &rCopy, nil
		}
	}

	return nil, storage.ErrNotFound
}

// IndicatorChangeStore is an in-memory implementation of storage.IndicatorChangeStore.
type IndicatorChangeStore struct {
	mu   sync.RWMutex
	rows []*domain.IndicatorChangeRow
}

// NewIndicatorChangeStore creates a new in-memory indicator change store.
func NewIndicatorChangeStore() *IndicatorChangeStore {
	return &IndicatorChangeStore{}
}

// Compile-time interface check.
var _ storage.IndicatorChangeStore = (*IndicatorChangeStore)(nil)

// ReplaceAll atomically replaces the table content with rows.
func (s *IndicatorChangeStore) ReplaceAll(_ context.Context, rows []*domain.IndicatorChangeRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = make([]*domain.IndicatorChangeRow, 0, len(rows))
	for _, r := range rows {
		if r == nil {
			return storage.ErrInvalidInput
		}
		rCopy := *r
		s.rows = append(s.rows, &rCopy)
	}

	return nil
}

// GetBySeries retrieves rows for a series, ordered by observation_date ASC.
func (s *IndicatorChangeStore) GetBySeries(_ context.Context, seriesID string) ([]*domain.IndicatorChangeRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.IndicatorChangeRow
	for _, r := range s.rows {
		if r.SeriesID == seriesID {
			rCopy := *r
			result = append(result, &rCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservationDate.Before(result[j].ObservationDate)
	})

	return result, nil
}

// MarketFactorStore is an in-memory implementation of storage.MarketFactorStore.
type MarketFactorStore struct {
	mu   sync.RWMutex
	rows []*domain.MarketFactorRow
}

// NewMarketFactorStore creates a new in-memory market factor store.
func NewMarketFactorStore() *MarketFactorStore {
	return &MarketFactorStore{}
}

// Compile-time interface check.
var _ storage.MarketFactorStore = (*MarketFactorStore)(nil)

// ReplaceAll atomically replaces the table content with rows.
func (s *MarketFactorStore) ReplaceAll(_ context.Context, rows []*domain.MarketFactorRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows = make([]*domain.MarketFactorRow, 0, len(rows))
	for _, r := range rows {
		if r == nil {
			return storage.ErrInvalidInput
		}
		rCopy := *r
		s.rows = append(s.rows, &rCopy)
	}

	return nil
}

// GetBySeries retrieves rows for a series, ordered by observation_date ASC.
func (s *MarketFactorStore) GetBySeries(_ context.Context, seriesID string) ([]*domain.MarketFactorRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketFactorRow
	for _, r := range s.rows {
		if r.SeriesID == seriesID {
			rCopy := *r
			result = append(result, &rCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservationDate.Before(result[j].ObservationDate)
	})

	return result, nil
}
