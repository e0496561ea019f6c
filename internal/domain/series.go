package domain

// SeriesDefinition maps a source-native series identifier to its canonical
// semantics. Definitions are immutable reference data loaded at startup
// from the registry; staging uses them to attach semantic keys.
type SeriesDefinition struct {
	SeriesID    string // source-native identifier (e.g. DGS10)
	Table       string // logical raw table this series feeds
	SemanticKey string // canonical key (maturity label or indicator name)
	Indicator   string // human-readable indicator name
	Maturity    string // maturity label for yield series (2Y, 10Y, ...), empty otherwise
	AssetClass  string // rates, equity, credit, fx, ...
	Country     string // ISO country code
	Unit        string // percent, index, bp, ...
	Frequency   string // daily, monthly, quarterly
	Vintaged    bool   // fetch full revision history (ALFRED all-releases)
}

// Canonical treasury maturity labels in ascending tenor order.
var MaturityOrder = []string{"1M", "3M", "6M", "1Y", "2Y", "3Y", "5Y", "7Y", "10Y", "20Y", "30Y"}
