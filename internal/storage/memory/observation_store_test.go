package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"macrokit-datalake/internal/domain"
	"macrokit-datalake/internal/storage"
)

func testObs(table, series string, date time.Time, value float64, start time.Time) *domain.Observation {
	return &domain.Observation{
		Table:           table,
		SeriesID:        series,
		ObservationDate: date,
		Value:           value,
		RealtimeStart:   start,
		Source:          "FRED",
		LoadedAt:        start,
	}
}

func TestObservationStore_AppendAndGet(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

	result, err := store.AppendInterval(ctx, testObs(domain.TableTreasuryYields, "DGS10", date, 4.25, start))
	if err != nil {
		t.Fatalf("AppendInterval failed: %v", err)
	}
	if result != domain.RevisionInserted {
		t.Errorf("Expected inserted, got %s", result)
	}

	intervals, err := store.GetIntervals(ctx, domain.TableTreasuryYields, "DGS10", date)
	if err != nil {
		t.Fatalf("GetIntervals failed: %v", err)
	}
	if len(intervals) != 1 {
		t.Fatalf("Expected 1 interval, got %d", len(intervals))
	}
	if intervals[0].ID == 0 {
		t.Errorf("Expected assigned ID")
	}
	if !intervals[0].Current() {
		t.Errorf("Expected open interval")
	}
}

func TestObservationStore_RevisionClosesInterval(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)

	store.AppendInterval(ctx, testObs(domain.TableTreasuryYields, "DGS10", date, 4.25, t1))

	result, err := store.AppendInterval(ctx, testObs(domain.TableTreasuryYields, "DGS10", date, 4.30, t2))
	if err != nil {
		t.Fatalf("Revision append failed: %v", err)
	}
	if result != domain.RevisionRevised {
		t.Errorf("Expected revised, got %s", result)
	}

	intervals, _ := store.GetIntervals(ctx, domain.TableTreasuryYields, "DGS10", date)
	if len(intervals) != 2 {
		t.Fatalf("Expected 2 intervals, got %d", len(intervals))
	}
	if intervals[0].RealtimeEnd == nil || !intervals[0].RealtimeEnd.Equal(t2) {
		t.Errorf("First interval should close at %v, got %v", t2, intervals[0].RealtimeEnd)
	}
}

func TestObservationStore_ConflictOnSameStart(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

	store.AppendInterval(ctx, testObs(domain.TableTreasuryYields, "DGS10", date, 4.25, start))

	_, err := store.AppendInterval(ctx, testObs(domain.TableTreasuryYields, "DGS10", date, 4.30, start))
	if !errors.Is(err, storage.ErrRevisionConflict) {
		t.Errorf("Expected ErrRevisionConflict, got %v", err)
	}
}

func TestObservationStore_InvalidInput(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	_, err := store.AppendInterval(ctx, nil)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}

	_, err = store.AppendInterval(ctx, &domain.Observation{})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty, got %v", err)
	}
}

func TestObservationStore_GetAsOf(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)

	store.AppendInterval(ctx, testObs(domain.TableTreasuryYields, "DGS10", date, 4.25, t1))
	store.AppendInterval(ctx, testObs(domain.TableTreasuryYields, "DGS10", date, 4.30, t2))

	obs, err := store.GetAsOf(ctx, domain.TableTreasuryYields, "DGS10", date, t1.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetAsOf failed: %v", err)
	}
	if obs.Value != 4.25 {
		t.Errorf("AsOf value mismatch: got %f, want 4.25", obs.Value)
	}

	_, err = store.GetAsOf(ctx, domain.TableTreasuryYields, "DGS10", date, t1.Add(-time.Hour))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestObservationStore_GetCurrentByTable(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	d1 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC)

	store.AppendInterval(ctx, testObs(domain.TableTreasuryYields, "DGS2", d1, 4.50, start))
	store.AppendInterval(ctx, testObs(domain.TableTreasuryYields, "DGS10", d1, 4.20, start))
	store.AppendInterval(ctx, testObs(domain.TableTreasuryYields, "DGS10", d2, 4.22, start))
	store.AppendInterval(ctx, testObs(domain.TableMarketData, "VIXCLS", d1, 14.0, start))

	// Revise one key so a closed interval exists.
	store.AppendInterval(ctx, testObs(domain.TableTreasuryYields, "DGS10", d1, 4.21, start.Add(24*time.Hour)))

	current, err := store.GetCurrentByTable(ctx, domain.TableTreasuryYields)
	if err != nil {
		t.Fatalf("GetCurrentByTable failed: %v", err)
	}
	if len(current) != 3 {
		t.Fatalf("Expected 3 open intervals, got %d", len(current))
	}

	// Ordered by (series_id, observation_date).
	if current[0].SeriesID != "DGS10" || !current[0].ObservationDate.Equal(d1) {
		t.Errorf("Order mismatch at 0: %s@%v", current[0].SeriesID, current[0].ObservationDate)
	}
	if current[0].Value != 4.21 {
		t.Errorf("Expected revised value 4.21, got %f", current[0].Value)
	}
	if current[2].SeriesID != "DGS2" {
		t.Errorf("Order mismatch at 2: %s", current[2].SeriesID)
	}
}

func TestObservationStore_LastObservationDate(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	_, found, err := store.LastObservationDate(ctx, domain.TableTreasuryYields, "DGS10")
	if err != nil {
		t.Fatalf("LastObservationDate failed: %v", err)
	}
	if found {
		t.Errorf("Expected not found on empty store")
	}

	d1 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC)

	store.AppendInterval(ctx, testObs(domain.TableTreasuryYields, "DGS10", d2, 4.30, start))
	store.AppendInterval(ctx, testObs(domain.TableTreasuryYields, "DGS10", d1, 4.25, start))

	last, found, err := store.LastObservationDate(ctx, domain.TableTreasuryYields, "DGS10")
	if err != nil {
		t.Fatalf("LastObservationDate failed: %v", err)
	}
	if !found || !last.Equal(d2) {
		t.Errorf("Expected %v, got %v (found=%v)", d2, last, found)
	}
}

func TestObservationStore_Truncate(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

	store.AppendInterval(ctx, testObs(domain.TableTreasuryYields, "DGS10", date, 4.25, start))
	store.AppendInterval(ctx, testObs(domain.TableMarketData, "VIXCLS", date, 14.0, start))

	if err := store.Truncate(ctx, domain.TableTreasuryYields); err != nil {
		t.Fatalf("Truncate failed: %v", err)
	}

	has, _ := store.HasData(ctx, domain.TableTreasuryYields)
	if has {
		t.Errorf("Expected no data after truncate")
	}

	has, _ = store.HasData(ctx, domain.TableMarketData)
	if !has {
		t.Errorf("Truncate must not touch other tables")
	}
}
