package domain

import "time"

// RawObservation is a single fact as delivered by an upstream provider,
// before any revision tracking has been applied.
type RawObservation struct {
	SeriesID        string     // source-native identifier (e.g. DGS10)
	ObservationDate time.Time  // valid-time date of the fact
	Value           float64    // observed value
	Missing         bool       // provider marked the value as missing
	RealtimeStart   *time.Time // vintage window start, nil for non-vintage series
	RealtimeEnd     *time.Time // vintage window end, nil for non-vintage series
	Source          string     // provider name (e.g. FRED)
}

// Observation is a stored revision interval for a (table, series_id,
// observation_date) key. Corresponds to the raw_observations table.
//
// RealtimeEnd == nil marks the currently-open interval: the value that is
// the recorded truth right now. Closing an interval sets RealtimeEnd; the
// value itself is never mutated.
type Observation struct {
	ID              int64
	Table           string // logical raw table (treasury_yields, ...)
	SeriesID        string
	ObservationDate time.Time
	Value           float64
	RealtimeStart   time.Time
	RealtimeEnd     *time.Time // nil = open (current revision)
	Source          string
	LoadedAt        time.Time
}

// Current reports whether this interval is the open (current) revision.
func (o *Observation) Current() bool {
	return o.RealtimeEnd == nil
}

// Covers reports whether the interval [RealtimeStart, RealtimeEnd) contains t.
func (o *Observation) Covers(t time.Time) bool {
	if t.Before(o.RealtimeStart) {
		return false
	}
	return o.RealtimeEnd == nil || t.Before(*o.RealtimeEnd)
}

// Logical raw table names. One per configured data source.
const (
	TableTreasuryYields     = "treasury_yields"
	TableEconomicIndicators = "economic_indicators"
	TableMarketData         = "market_data"
)

// AllTables lists every logical raw table in canonical order.
func AllTables() []string {
	return []string{TableTreasuryYields, TableEconomicIndicators, TableMarketData}
}
