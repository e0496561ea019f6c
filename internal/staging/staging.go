// Package staging cleans the current projection of a raw table into
// canonical staged rows: null rows dropped and counted, semantic keys
// attached from the series registry, country and asset class tagged.
package staging

import (
	"log"
	"math"
	"sort"

	"macrokit-datalake/internal/domain"
)

// Transform stages one raw table. The registry is allowed to be a strict
// subset of the keys the source delivers; rows for unmapped keys are
// dropped with a counter, never an error.
type Transform struct {
	table  string
	defs   map[string]domain.SeriesDefinition
	logger *log.Logger
}

// NewTransform creates a staging transform for a table from its series
// definitions. Definitions for other tables are ignored.
func NewTransform(table string, defs []domain.SeriesDefinition, logger *log.Logger) *Transform {
	if logger == nil {
		logger = log.Default()
	}
	byID := make(map[string]domain.SeriesDefinition)
	for _, def := range defs {
		if def.Table == table {
			byID[def.SeriesID] = def
		}
	}
	return &Transform{table: table, defs: byID, logger: logger}
}

// Stage transforms current raw observations into staged rows, sorted by
// (series_id, observation_date). Every dropped row is accounted for in
// the returned stats.
func (t *Transform) Stage(observations []*domain.Observation) ([]*domain.StagedObservation, domain.StagingStats) {
	stats := domain.StagingStats{RowsIn: len(observations)}

	var out []*domain.StagedObservation
	for _, obs := range observations {
		if obs == nil || obs.SeriesID == "" || obs.ObservationDate.IsZero() || math.IsNaN(obs.Value) {
			stats.NullDropped++
			continue
		}
		def, mapped := t.defs[obs.SeriesID]
		if !mapped {
			stats.UnmappedKeys++
			continue
		}

		out = append(out, &domain.StagedObservation{
			Table:           t.table,
			SeriesID:        obs.SeriesID,
			SemanticKey:     def.SemanticKey,
			Indicator:       def.Indicator,
			ObservationDate: obs.ObservationDate,
			Value:           obs.Value,
			Country:         def.Country,
			AssetClass:      def.AssetClass,
			Unit:            def.Unit,
			Frequency:       def.Frequency,
			Source:          obs.Source,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SeriesID != out[j].SeriesID {
			return out[i].SeriesID < out[j].SeriesID
		}
		return out[i].ObservationDate.Before(out[j].ObservationDate)
	})

	stats.RowsOut = len(out)
	if stats.NullDropped > 0 || stats.UnmappedKeys > 0 {
		t.logger.Printf("[staging] %s: %d in, %d out, %d null dropped, %d unmapped keys",
			t.table, stats.RowsIn, stats.RowsOut, stats.NullDropped, stats.UnmappedKeys)
	}

	return out, stats
}
