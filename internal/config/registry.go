package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"macrokit-datalake/internal/domain"
)

//go:embed registry.yaml
var defaultRegistry []byte

// registryFile is the on-disk shape of the series registry.
type registryFile struct {
	Series []registryEntry `yaml:"series"`
}

type registryEntry struct {
	SeriesID    string `yaml:"series_id"`
	Table       string `yaml:"table"`
	SemanticKey string `yaml:"semantic_key"`
	Indicator   string `yaml:"indicator"`
	Maturity    string `yaml:"maturity"`
	AssetClass  string `yaml:"asset_class"`
	Country     string `yaml:"country"`
	Unit        string `yaml:"unit"`
	Frequency   string `yaml:"frequency"`
	Vintaged    bool   `yaml:"vintaged"`
}

// DefaultSeries parses the embedded registry.
func DefaultSeries() ([]domain.SeriesDefinition, error) {
	return ParseSeries(defaultRegistry)
}

// LoadSeries reads a registry file from disk. An empty path falls back
// to the embedded registry.
func LoadSeries(path string) ([]domain.SeriesDefinition, error) {
	if path == "" {
		return DefaultSeries()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return ParseSeries(raw)
}

// ParseSeries decodes and validates a YAML series registry.
func ParseSeries(raw []byte) ([]domain.SeriesDefinition, error) {
	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if len(file.Series) == 0 {
		return nil, fmt.Errorf("parse registry: no series defined")
	}

	validTables := make(map[string]bool, len(domain.AllTables()))
	for _, table := range domain.AllTables() {
		validTables[table] = true
	}

	seen := make(map[string]bool, len(file.Series))
	defs := make([]domain.SeriesDefinition, 0, len(file.Series))
	for i, entry := range file.Series {
		if entry.SeriesID == "" {
			return nil, fmt.Errorf("parse registry: series %d: missing series_id", i)
		}
		if seen[entry.SeriesID] {
			return nil, fmt.Errorf("parse registry: duplicate series %s", entry.SeriesID)
		}
		seen[entry.SeriesID] = true
		if !validTables[entry.Table] {
			return nil, fmt.Errorf("parse registry: series %s: unknown table %q", entry.SeriesID, entry.Table)
		}
		if entry.SemanticKey == "" {
			return nil, fmt.Errorf("parse registry: series %s: missing semantic_key", entry.SeriesID)
		}
		if entry.Table == domain.TableTreasuryYields && !validMaturity(entry.Maturity) {
			return nil, fmt.Errorf("parse registry: series %s: unknown maturity %q", entry.SeriesID, entry.Maturity)
		}
		defs = append(defs, domain.SeriesDefinition{
			SeriesID:    entry.SeriesID,
			Table:       entry.Table,
			SemanticKey: entry.SemanticKey,
			Indicator:   entry.Indicator,
			Maturity:    entry.Maturity,
			AssetClass:  entry.AssetClass,
			Country:     entry.Country,
			Unit:        entry.Unit,
			Frequency:   entry.Frequency,
			Vintaged:    entry.Vintaged,
		})
	}
	return defs, nil
}

func validMaturity(label string) bool {
	for _, m := range domain.MaturityOrder {
		if m == label {
			return true
		}
	}
	return false
}
