package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"macrokit-datalake/internal/domain"
	"macrokit-datalake/internal/storage"
)

// ObservationStore is an in-memory implementation of storage.ObservationStore.
type ObservationStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[string][]*domain.Observation // keyed by (table, series_id, observation_date)
}

// NewObservationStore creates a new in-memory observation store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{data: make(map[string][]*domain.Observation)}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// obsKey generates a unique key for a revision history.
func obsKey(table, seriesID string, date time.Time) string {
	return fmt.Sprintf("%s|%s|%s", table, seriesID, date.Format("2006-01-02"))
}

// AppendInterval applies one observation to its key's interval history.
func (s *ObservationStore) AppendInterval(_ context.Context, obs *domain.Observation) (domain.RevisionResult, error) {
	if obs == nil || obs.Table == "" || obs.SeriesID == "" || obs.ObservationDate.IsZero() {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := obsKey(obs.Table, obs.SeriesID, obs.ObservationDate)
	plan, err := domain.PlanRevision(s.data[key], obs)
	if err != nil {
		if errors.Is(err, domain.ErrIntervalOverlap) {
			return 0, storage.ErrRevisionConflict
		}
		return 0, err
	}

	if plan.Close != nil {
		for _, iv := range s.data[key] {
			if iv.ID == plan.Close.ID {
				end := plan.CloseAt
				iv.RealtimeEnd = &end
			}
		}
	}
	if plan.Insert != nil {
		s.nextID++
		ins := *plan.Insert
		ins.ID = s.nextID
		s.data[key] = append(s.data[key], &ins)
	}

	return plan.Result, nil
}

// GetIntervals retrieves the revision history for a key, ordered by realtime_start ASC.
func (s *ObservationStore) GetIntervals(_ context.Context, table, seriesID string, date time.Time) ([]*domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Observation
	for _, iv := range s.data[obsKey(table, seriesID, date)] {
		ivCopy := *iv
		result = append(result, &ivCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RealtimeStart.Before(result[j].RealtimeStart)
	})

	return result, nil
}

// GetAsOf retrieves the interval covering asOf for a key.
func (s *ObservationStore) GetAsOf(_ context.Context, table, seriesID string, date time.Time, asOf time.Time) (*domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, iv := range s.data[obsKey(table, seriesID, date)] {
		if iv.Covers(asOf) {
			ivCopy := *iv
			return &ivCopy, nil
		}
	}

	return nil, storage.ErrNotFound
}

// GetCurrentByTable retrieves every open interval of a table, ordered by
// (series_id, observation_date) ASC.
func (s *ObservationStore) GetCurrentByTable(_ context.Context, table string) ([]*domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Observation
	for _, history := range s.data {
		for _, iv := range history {
			if iv.Table == table && iv.Current() {
				ivCopy := *iv
				result = append(result, &ivCopy)
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SeriesID != result[j].SeriesID {
			return result[i].SeriesID < result[j].SeriesID
		}
		return result[i].ObservationDate.Before(result[j].ObservationDate)
	})

	return result, nil
}

// LastObservationDate returns the max observation_date stored for a series.
func (s *ObservationStore) LastObservationDate(_ context.Context, table, seriesID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last time.Time
	found := false
	for _, history := range s.data {
		for _, iv := range history {
			if iv.Table == table && iv.SeriesID == seriesID {
				if !found || iv.ObservationDate.After(last) {
					last = iv.ObservationDate
					found = true
				}
			}
		}
	}

	return last, found, nil
}

// HasData reports whether a table holds any observations.
func (s *ObservationStore) HasData(_ context.Context, table string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, history := range s.data {
		for _, iv := range history {
			if iv.Table == table {
				return true, nil
			}
		}
	}

	return false, nil
}

// Truncate removes all observations for a table.
func (s *ObservationStore) Truncate(_ context.Context, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, history := range s.data {
		kept := history[:0]
		for _, iv := range history {
			if iv.Table != table {
				kept = append(kept, iv)
			}
		}
		if len(kept) == 0 {
			delete(s.data, key)
		} else {
			s.data[key] = kept
		}
	}

	return nil
}
