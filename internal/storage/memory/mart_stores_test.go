package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"macrokit-datalake/internal/domain"
	"macrokit-datalake/internal/storage"
)

func fptr(v float64) *float64 { return &v }

func TestYieldCurveStore_ReplaceAndQuery(t *testing.T) {
	store := NewYieldCurveStore()
	ctx := context.Background()

	d1 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	shape := domain.CurveInverted

	rows := []*domain.YieldCurveRow{
		{Date: d2, Country: "US", Yield10Y: fptr(4.20)},
		{Date: d1, Country: "US", Yield2Y: fptr(4.50), Yield10Y: fptr(4.20), Spread2s10s: fptr(-30.0), CurveShape: &shape},
	}
	if err := store.ReplaceAll(ctx, rows); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	got, err := store.GetByDateRange(ctx, d1, d2)
	if err != nil {
		t.Fatalf("GetByDateRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(got))
	}
	if !got[0].Date.Equal(d1) {
		t.Errorf("Expected date order, got %v first", got[0].Date)
	}

	row, err := store.GetByDate(ctx, d1, "US")
	if err != nil {
		t.Fatalf("GetByDate failed: %v", err)
	}
	if row.Spread2s10s == nil || *row.Spread2s10s != -30.0 {
		t.Errorf("Spread mismatch: %v", row.Spread2s10s)
	}
	if row.CurveShape == nil || *row.CurveShape != domain.CurveInverted {
		t.Errorf("CurveShape mismatch: %v", row.CurveShape)
	}

	_, err = store.GetByDate(ctx, d1, "DE")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	// ReplaceAll replaces, not appends.
	if err := store.ReplaceAll(ctx, rows[:1]); err != nil {
		t.Fatalf("Second ReplaceAll failed: %v", err)
	}
	got, _ = store.GetByDateRange(ctx, d1, d2)
	if len(got) != 1 {
		t.Errorf("Expected 1 row after replace, got %d", len(got))
	}
}

func TestIndicatorChangeStore_ReplaceAndQuery(t *testing.T) {
	store := NewIndicatorChangeStore()
	ctx := context.Background()

	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	rows := []*domain.IndicatorChangeRow{
		{SeriesID: "CPIAUCSL", Indicator: "cpi", Country: "US", ObservationDate: d2, Value: 310.0, PreviousValue: fptr(308.0), ChangePct: fptr(0.6494)},
		{SeriesID: "CPIAUCSL", Indicator: "cpi", Country: "US", ObservationDate: d1, Value: 308.0},
		{SeriesID: "UNRATE", Indicator: "unemployment", Country: "US", ObservationDate: d1, Value: 3.7},
	}
	if err := store.ReplaceAll(ctx, rows); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	got, err := store.GetBySeries(ctx, "CPIAUCSL")
	if err != nil {
		t.Fatalf("GetBySeries failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(got))
	}
	if !got[0].ObservationDate.Equal(d1) {
		t.Errorf("Expected date order, got %v first", got[0].ObservationDate)
	}
	if got[0].ChangePct != nil {
		t.Errorf("First observation must have nil change")
	}
	if got[1].ChangePct == nil {
		t.Errorf("Second observation must carry change")
	}
}

func TestMarketFactorStore_ReplaceAndQuery(t *testing.T) {
	store := NewMarketFactorStore()
	ctx := context.Background()

	d1 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	rows := []*domain.MarketFactorRow{
		{SeriesID: "VIXCLS", Indicator: "vix", AssetClass: "volatility", ObservationDate: d1, Value: 14.2},
	}
	if err := store.ReplaceAll(ctx, rows); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	got, err := store.GetBySeries(ctx, "VIXCLS")
	if err != nil {
		t.Fatalf("GetBySeries failed: %v", err)
	}
	if len(got) != 1 || got[0].Value != 14.2 {
		t.Errorf("Row mismatch: %+v", got)
	}

	if got, _ := store.GetBySeries(ctx, "SP500"); len(got) != 0 {
		t.Errorf("Expected empty result for unknown series")
	}

	if err := store.ReplaceAll(ctx, []*domain.MarketFactorRow{nil}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil row, got %v", err)
	}
}
