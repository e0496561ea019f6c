// Package derive implements the intermediate and mart transforms:
// long-to-wide pivots, spread and curve shape computation, and lagged
// period changes. Every transform sorts its output canonically so
// identical inputs always produce identical mart contents.
package derive

import (
	"sort"
	"time"

	"macrokit-datalake/internal/domain"
)

// WideYieldRow is one pivoted (date, country) yield observation: every
// maturity observed on that date, keyed by its canonical label.
type WideYieldRow struct {
	Date    time.Time
	Country string

	// Yields maps maturity label (2Y, 10Y, ...) to the observed yield.
	Yields map[string]float64

	// Sources maps maturity label to the series that supplied it.
	Sources map[string]string
}

// Yield returns the value for a maturity as a nullable pointer.
func (r *WideYieldRow) Yield(maturity string) *float64 {
	if v, ok := r.Yields[maturity]; ok {
		return &v
	}
	return nil
}

// SourceSeries lists the contributing series in maturity tenor order.
func (r *WideYieldRow) SourceSeries() []string {
	var out []string
	for _, m := range domain.MaturityOrder {
		if s, ok := r.Sources[m]; ok {
			out = append(out, s)
		}
	}
	return out
}

// PivotYields turns staged long-format yield observations into one wide
// row per (date, country). The semantic key of each staged row is its
// maturity label. Output is sorted by (date, country).
func PivotYields(staged []*domain.StagedObservation) []*WideYieldRow {
	type key struct {
		date    time.Time
		country string
	}

	byKey := make(map[key]*WideYieldRow)
	for _, obs := range staged {
		k := key{date: obs.ObservationDate, country: obs.Country}
		row, exists := byKey[k]
		if !exists {
			row = &WideYieldRow{
				Date:    obs.ObservationDate,
				Country: obs.Country,
				Yields:  make(map[string]float64),
				Sources: make(map[string]string),
			}
			byKey[k] = row
		}
		row.Yields[obs.SemanticKey] = obs.Value
		row.Sources[obs.SemanticKey] = obs.SeriesID
	}

	rows := make([]*WideYieldRow, 0, len(byKey))
	for _, row := range byKey {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].Country < rows[j].Country
	})

	return rows
}

// RequireColumns filters pivoted rows to those carrying every required
// maturity. Exclusion is per consumer: the same pivot can feed consumers
// with different required sets.
func RequireColumns(rows []*WideYieldRow, required []string) []*WideYieldRow {
	if len(required) == 0 {
		return rows
	}

	var out []*WideYieldRow
	for _, row := range rows {
		complete := true
		for _, m := range required {
			if _, ok := row.Yields[m]; !ok {
				complete = false
				break
			}
		}
		if complete {
			out = append(out, row)
		}
	}
	return out
}
