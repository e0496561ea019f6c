package derive

import (
	"sort"

	"macrokit-datalake/internal/domain"
)

// LaggedChanges derives per-series period changes from staged
// observations. Rows are partitioned by series and ordered by
// observation date; each row carries the previous value and the percent
// change `(v − prev) / prev × 100`.
//
// The first row of a partition has no previous value, and a ratio with
// a zero endpoint has no defined percent change; both yield nil rather
// than infinity or an error.
func LaggedChanges(staged []*domain.StagedObservation, sourceNode string) []*domain.IndicatorChangeRow {
	byNameAndDate := make([]*domain.StagedObservation, len(staged))
	copy(byNameAndDate, staged)
	sort.Slice(byNameAndDate, func(i, j int) bool {
		if byNameAndDate[i].SeriesID != byNameAndDate[j].SeriesID {
			return byNameAndDate[i].SeriesID < byNameAndDate[j].SeriesID
		}
		return byNameAndDate[i].ObservationDate.Before(byNameAndDate[j].ObservationDate)
	})

	out := make([]*domain.IndicatorChangeRow, 0, len(byNameAndDate))
	var prev *domain.StagedObservation
	for _, obs := range byNameAndDate {
		row := &domain.IndicatorChangeRow{
			SeriesID:        obs.SeriesID,
			Indicator:       obs.Indicator,
			Country:         obs.Country,
			AssetClass:      obs.AssetClass,
			ObservationDate: obs.ObservationDate,
			Value:           obs.Value,
			SourceNode:      sourceNode,
		}
		if prev != nil && prev.SeriesID == obs.SeriesID {
			prevValue := prev.Value
			row.PreviousValue = &prevValue
			if prevValue != 0 && obs.Value != 0 {
				change := (obs.Value - prevValue) / prevValue * 100
				row.ChangePct = &change
			}
		}
		out = append(out, row)
		prev = obs
	}

	return out
}

// MarketFactors derives the scalar market factor mart from staged
// market data observations, sorted by (series, date).
func MarketFactors(staged []*domain.StagedObservation, sourceNode string) []*domain.MarketFactorRow {
	sorted := make([]*domain.StagedObservation, len(staged))
	copy(sorted, staged)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].SeriesID != sorted[j].SeriesID {
			return sorted[i].SeriesID < sorted[j].SeriesID
		}
		return sorted[i].ObservationDate.Before(sorted[j].ObservationDate)
	})

	out := make([]*domain.MarketFactorRow, 0, len(sorted))
	for _, obs := range sorted {
		out = append(out, &domain.MarketFactorRow{
			SeriesID:        obs.SeriesID,
			Indicator:       obs.Indicator,
			AssetClass:      obs.AssetClass,
			ObservationDate: obs.ObservationDate,
			Value:           obs.Value,
			SourceNode:      sourceNode,
		})
	}
	return out
}
