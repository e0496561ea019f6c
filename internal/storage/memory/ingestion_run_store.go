package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"macrokit-datalake/internal/domain"
	"macrokit-datalake/internal/storage"
)

// IngestionRunStore is an in-memory implementation of storage.IngestionRunStore.
type IngestionRunStore struct {
	mu      sync.RWMutex
	runs    map[string]*domain.IngestionRun
	reports map[string][]*domain.TableReport // keyed by run_id
}

// NewIngestionRunStore creates a new in-memory ingestion run store.
func NewIngestionRunStore() *IngestionRunStore {
	return &IngestionRunStore{
		runs:    make(map[string]*domain.IngestionRun),
		reports: make(map[string][]*domain.TableReport),
	}
}

// Compile-time interface check.
var _ storage.IngestionRunStore = (*IngestionRunStore)(nil)

// InsertRun adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *IngestionRunStore) InsertRun(_ context.Context, run *domain.IngestionRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	runCopy := *run
	s.runs[run.RunID] = &runCopy
	return nil
}

// CompleteRun records the terminal status of a run.
func (s *IngestionRunStore) CompleteRun(_ context.Context, runID string, status domain.RunStatus, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, exists := s.runs[runID]
	if !exists {
		return storage.ErrNotFound
	}

	run.Status = status
	run.CompletedAt = &completedAt
	return nil
}

// InsertTableReport adds a per-table accounting record for a run.
func (s *IngestionRunStore) InsertTableReport(_ context.Context, report *domain.TableReport) error {
	if report == nil || report.RunID == "" || report.Table == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reportCopy := *report
	s.reports[report.RunID] = append(s.reports[report.RunID], &reportCopy)
	return nil
}

// GetRun retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *IngestionRunStore) GetRun(_ context.Context, runID string) (*domain.IngestionRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	runCopy := *run
	return &runCopy, nil
}

// GetTableReports retrieves all table reports for a run, ordered by table.
func (s *IngestionRunStore) GetTableReports(_ context.Context, runID string) ([]*domain.TableReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TableReport
	for _, r := range s.reports[runID] {
		rCopy := *r
		result = append(result, &rCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Table < result[j].Table
	})

	return result, nil
}

// HasCompletedSetup reports whether a full-mode run ever completed with
// at least partial success.
func (s *IngestionRunStore) HasCompletedSetup(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, run := range s.runs {
		if run.Mode == domain.RunModeFull &&
			(run.Status == domain.RunStatusSucceeded || run.Status == domain.RunStatusPartial) {
			return true, nil
		}
	}

	return false, nil
}

// LastSuccessfulEndDate returns the end date of the most recent run in
// which the table succeeded.
func (s *IngestionRunStore) LastSuccessfulEndDate(_ context.Context, table string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best time.Time
	var bestStarted time.Time
	found := false

	for runID, reports := range s.reports {
		run, exists := s.runs[runID]
		if !exists {
			continue
		}
		for _, r := range reports {
			if r.Table != table || r.Status != domain.TableStatusSucceeded {
				continue
			}
			if !found || run.StartedAt.After(bestStarted) {
				best = run.EndDate
				bestStarted = run.StartedAt
				found = true
			}
		}
	}

	return best, found, nil
}
