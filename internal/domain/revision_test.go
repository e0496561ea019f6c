package domain

import (
	"errors"
	"testing"
	"time"
)

func interval(value float64, start time.Time, end *time.Time) *Observation {
	return &Observation{
		Table:           TableTreasuryYields,
		SeriesID:        "DGS10",
		ObservationDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Value:           value,
		RealtimeStart:   start,
		RealtimeEnd:     end,
	}
}

func TestPlanRevision_EmptyHistory(t *testing.T) {
	t0 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

	plan, err := PlanRevision(nil, interval(4.25, t0, nil))
	if err != nil {
		t.Fatalf("PlanRevision failed: %v", err)
	}
	if plan.Result != RevisionInserted {
		t.Errorf("Expected inserted, got %s", plan.Result)
	}
	if plan.Insert == nil || plan.Insert.RealtimeEnd != nil {
		t.Errorf("Expected open insert interval")
	}
	if plan.Close != nil {
		t.Errorf("Expected no close on empty history")
	}
}

func TestPlanRevision_SameValueUnchanged(t *testing.T) {
	t0 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	history := []*Observation{interval(4.25, t0, nil)}
	plan, err := PlanRevision(history, interval(4.25, t1, nil))
	if err != nil {
		t.Fatalf("PlanRevision failed: %v", err)
	}
	if plan.Result != RevisionUnchanged {
		t.Errorf("Expected unchanged, got %s", plan.Result)
	}
	if plan.Insert != nil || plan.Close != nil {
		t.Errorf("Unchanged plan must carry no mutations")
	}
}

func TestPlanRevision_ChangedValueCloses(t *testing.T) {
	t0 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(96 * time.Hour)

	history := []*Observation{interval(4.25, t0, nil)}
	plan, err := PlanRevision(history, interval(4.30, t1, nil))
	if err != nil {
		t.Fatalf("PlanRevision failed: %v", err)
	}
	if plan.Result != RevisionRevised {
		t.Errorf("Expected revised, got %s", plan.Result)
	}
	if plan.Close == nil || plan.Close.Value != 4.25 {
		t.Fatalf("Expected close of the 4.25 interval")
	}
	if !plan.CloseAt.Equal(t1) {
		t.Errorf("CloseAt mismatch: got %v, want %v", plan.CloseAt, t1)
	}
	if plan.Insert == nil || plan.Insert.RealtimeEnd != nil {
		t.Errorf("Superseding interval must inherit the open end")
	}
}

func TestPlanRevision_MidHistoryInheritsEnd(t *testing.T) {
	t0 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	t2 := t0.Add(10 * 24 * time.Hour)
	t1 := t0.Add(5 * 24 * time.Hour)

	history := []*Observation{
		interval(4.25, t0, &t2),
		interval(4.35, t2, nil),
	}
	plan, err := PlanRevision(history, interval(4.30, t1, nil))
	if err != nil {
		t.Fatalf("PlanRevision failed: %v", err)
	}
	if plan.Result != RevisionRevised {
		t.Fatalf("Expected revised, got %s", plan.Result)
	}
	if plan.Insert.RealtimeEnd == nil || !plan.Insert.RealtimeEnd.Equal(t2) {
		t.Errorf("Mid-history insert must end at %v, got %v", t2, plan.Insert.RealtimeEnd)
	}
}

func TestPlanRevision_BackfillBoundedByNext(t *testing.T) {
	t1 := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	t0 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

	history := []*Observation{interval(4.30, t1, nil)}
	plan, err := PlanRevision(history, interval(4.25, t0, nil))
	if err != nil {
		t.Fatalf("PlanRevision failed: %v", err)
	}
	if plan.Result != RevisionInserted {
		t.Fatalf("Expected inserted, got %s", plan.Result)
	}
	if plan.Insert.RealtimeEnd == nil || !plan.Insert.RealtimeEnd.Equal(t1) {
		t.Errorf("Backfill must end at next start %v, got %v", t1, plan.Insert.RealtimeEnd)
	}
}

func TestPlanRevision_SameStartDifferentValueConflicts(t *testing.T) {
	t0 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

	history := []*Observation{interval(4.25, t0, nil)}
	_, err := PlanRevision(history, interval(4.30, t0, nil))
	if !errors.Is(err, ErrIntervalOverlap) {
		t.Errorf("Expected ErrIntervalOverlap, got %v", err)
	}
}

func TestValidateIntervals(t *testing.T) {
	t0 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)
	t2 := t1.Add(24 * time.Hour)

	cases := []struct {
		name    string
		history []*Observation
		wantErr bool
	}{
		{"empty", nil, false},
		{"single open", []*Observation{interval(1, t0, nil)}, false},
		{"closed then open", []*Observation{interval(1, t0, &t1), interval(2, t1, nil)}, false},
		{"gap then open", []*Observation{interval(1, t0, &t1), interval(2, t2, nil)}, false},
		{"open not last", []*Observation{interval(1, t0, nil), interval(2, t1, &t2)}, true},
		{"overlap", []*Observation{interval(1, t0, &t2), interval(2, t1, nil)}, true},
		{"inverted interval", []*Observation{interval(1, t1, &t0)}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateIntervals(tc.history)
			if tc.wantErr && !errors.Is(err, ErrIntervalOverlap) {
				t.Errorf("Expected ErrIntervalOverlap, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestObservation_Covers(t *testing.T) {
	t0 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)

	closed := interval(1, t0, &t1)
	if closed.Covers(t0.Add(-time.Second)) {
		t.Errorf("Must not cover before start")
	}
	if !closed.Covers(t0) {
		t.Errorf("Start is inclusive")
	}
	if closed.Covers(t1) {
		t.Errorf("End is exclusive")
	}

	open := interval(1, t0, nil)
	if !open.Covers(t1.Add(1000 * time.Hour)) {
		t.Errorf("Open interval covers any later time")
	}
}
