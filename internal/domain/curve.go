package domain

import "time"

// CurveShape classifies the slope of the yield curve from a spread value.
type CurveShape string

const (
	CurveNormal   CurveShape = "NORMAL"
	CurveFlat     CurveShape = "FLAT"
	CurveInverted CurveShape = "INVERTED"
)

// YieldCurveRow is a wide-format yield curve observation for one
// (date, country). Maturity columns are nullable: a date does not need
// every tenor to exist in the pivot. Spread columns are populated only
// when both legs are present.
//
// Corresponds to the mart_yield_curve table in ClickHouse.
type YieldCurveRow struct {
	Date    time.Time
	Country string

	Yield2Y  *float64
	Yield5Y  *float64
	Yield10Y *float64
	Yield30Y *float64

	// Spreads in basis points.
	Spread2s10s *float64
	Spread5s30s *float64

	CurveShape *CurveShape // from Spread2s10s; nil when spread absent

	// Provenance: DAG node that produced the row and the source series
	// that fed each populated column.
	SourceNode   string
	SourceSeries []string
}

// IndicatorChangeRow is a mart row for an economic indicator or market
// factor with its lagged period change. Previous/ChangePct are nil on the
// first observation of a partition and when the previous value is zero.
//
// Corresponds to the mart_indicator_changes table in ClickHouse.
type IndicatorChangeRow struct {
	SeriesID        string // partition key
	Indicator       string
	Country         string
	AssetClass      string
	ObservationDate time.Time
	Value           float64
	PreviousValue   *float64
	ChangePct       *float64
	SourceNode      string
}

// MarketFactorRow is a mart row for a scalar market factor (VIX, FX,
// credit spreads) on a given date.
//
// Corresponds to the mart_market_factors table in ClickHouse.
type MarketFactorRow struct {
	SeriesID        string
	Indicator       string
	AssetClass      string
	ObservationDate time.Time
	Value           float64
	SourceNode      string
}
