package domain

import "time"

// StagedObservation is a cleaned, canonical row produced by a staging
// transform from the current projection of a raw table. Exactly one row
// per (table, series_id, observation_date) survives staging.
type StagedObservation struct {
	Table           string
	SeriesID        string
	SemanticKey     string // canonical key attached from SeriesDefinition
	Indicator       string
	ObservationDate time.Time
	Value           float64
	Country         string
	AssetClass      string
	Unit            string
	Frequency       string
	Source          string
}

// StagingStats accounts for rows handled by a staging transform. Dropped
// rows are counted, never silently lost.
type StagingStats struct {
	RowsIn       int
	RowsOut      int
	NullDropped  int // null/NaN value, key or date
	UnmappedKeys int // source keys absent from the series registry
}
