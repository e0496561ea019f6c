package derive

import (
	"testing"
	"time"

	"macrokit-datalake/internal/domain"
)

func stagedYield(series, maturity string, date time.Time, value float64) *domain.StagedObservation {
	return &domain.StagedObservation{
		Table:           domain.TableTreasuryYields,
		SeriesID:        series,
		SemanticKey:     maturity,
		Indicator:       "treasury_yield",
		ObservationDate: date,
		Value:           value,
		Country:         "US",
		AssetClass:      "rates",
		Unit:            "percent",
		Frequency:       "daily",
		Source:          "FRED",
	}
}

func TestPivotYields(t *testing.T) {
	d1 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

	staged := []*domain.StagedObservation{
		stagedYield("DGS10", "10Y", d2, 4.22),
		stagedYield("DGS2", "2Y", d1, 4.50),
		stagedYield("DGS10", "10Y", d1, 4.20),
	}

	rows := PivotYields(staged)
	if len(rows) != 2 {
		t.Fatalf("Expected 2 wide rows, got %d", len(rows))
	}

	// Sorted by date.
	if !rows[0].Date.Equal(d1) || !rows[1].Date.Equal(d2) {
		t.Errorf("Date order mismatch: %v, %v", rows[0].Date, rows[1].Date)
	}

	first := rows[0]
	if got := first.Yield("2Y"); got == nil || *got != 4.50 {
		t.Errorf("2Y mismatch: %v", got)
	}
	if got := first.Yield("10Y"); got == nil || *got != 4.20 {
		t.Errorf("10Y mismatch: %v", got)
	}
	if got := first.Yield("30Y"); got != nil {
		t.Errorf("Absent maturity must be nil, got %v", got)
	}

	// Second date only has 10Y.
	if got := rows[1].Yield("2Y"); got != nil {
		t.Errorf("Expected nil 2Y on second date, got %v", got)
	}

	sources := first.SourceSeries()
	if len(sources) != 2 || sources[0] != "DGS2" || sources[1] != "DGS10" {
		t.Errorf("Sources must follow tenor order: %v", sources)
	}
}

func TestRequireColumns(t *testing.T) {
	d1 := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)

	rows := PivotYields([]*domain.StagedObservation{
		stagedYield("DGS2", "2Y", d1, 4.50),
		stagedYield("DGS10", "10Y", d1, 4.20),
		stagedYield("DGS10", "10Y", d2, 4.22),
	})

	complete := RequireColumns(rows, []string{"2Y", "10Y"})
	if len(complete) != 1 {
		t.Fatalf("Expected 1 complete row, got %d", len(complete))
	}
	if !complete[0].Date.Equal(d1) {
		t.Errorf("Wrong row survived: %v", complete[0].Date)
	}

	// A different consumer with a looser requirement sees both rows.
	loose := RequireColumns(rows, []string{"10Y"})
	if len(loose) != 2 {
		t.Errorf("Expected 2 rows for 10Y-only consumer, got %d", len(loose))
	}

	all := RequireColumns(rows, nil)
	if len(all) != 2 {
		t.Errorf("Empty requirement keeps all rows, got %d", len(all))
	}
}
