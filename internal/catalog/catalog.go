// Package catalog loads the indicator catalog: reference metadata for every
// indicator, its live source spec, the static seed observations used as a
// fallback, the dashboard headline set and the cross-country comparisons.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"trendboard/internal/models"
	"trendboard/internal/validation"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog represents the structure of the catalog YAML file.
type Catalog struct {
	Headline    []string           `yaml:"headline"`
	Indicators  []IndicatorConfig  `yaml:"indicators"`
	Comparisons []ComparisonConfig `yaml:"comparisons"`
}

// IndicatorConfig defines one indicator in the catalog.
type IndicatorConfig struct {
	ID        string             `yaml:"id"`
	NameZh    string             `yaml:"name_zh"`
	NameJa    string             `yaml:"name_ja"`
	Unit      string             `yaml:"unit"`
	Source    string             `yaml:"source"`
	Category  string             `yaml:"category"`
	Frequency string             `yaml:"frequency"`
	Fetch     *models.SourceSpec `yaml:"fetch,omitempty"` // nil = seed data only
	Seed      []models.Point     `yaml:"seed"`
}

// ComparisonConfig maps a comparison key to the two indicators it aligns.
type ComparisonConfig struct {
	Key    string `yaml:"key"`
	Label  string `yaml:"label"`
	Source string `yaml:"source"`
	China  string `yaml:"china"`
	Japan  string `yaml:"japan"`
}

// Load reads the catalog from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks ids, source specs and seed periods. Seed periods are
// normalized in place so the store only ever sees canonical periods.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Indicators))
	for i := range c.Indicators {
		ind := &c.Indicators[i]
		if !validation.ValidateIndicatorID(ind.ID) {
			return fmt.Errorf("catalog: invalid indicator id %q", ind.ID)
		}
		if seen[ind.ID] {
			return fmt.Errorf("catalog: duplicate indicator id %q", ind.ID)
		}
		seen[ind.ID] = true

		switch ind.Frequency {
		case models.FrequencyAnnual, models.FrequencyQuarterly, models.FrequencyMonthly:
		default:
			return fmt.Errorf("catalog: indicator %s: unknown frequency %q", ind.ID, ind.Frequency)
		}

		if ind.Fetch != nil {
			switch ind.Fetch.Kind {
			case models.SourceEStat:
				if ind.Fetch.TableID == "" {
					return fmt.Errorf("catalog: indicator %s: estat source requires table_id", ind.ID)
				}
			case models.SourceWorldBank:
				if ind.Fetch.Country == "" || ind.Fetch.Code == "" {
					return fmt.Errorf("catalog: indicator %s: worldbank source requires country and code", ind.ID)
				}
			default:
				return fmt.Errorf("catalog: indicator %s: unknown source kind %q", ind.ID, ind.Fetch.Kind)
			}
		}

		for j := range ind.Seed {
			p, err := validation.NormalizePeriod(ind.Seed[j].Period)
			if err != nil {
				return fmt.Errorf("catalog: indicator %s: %w", ind.ID, err)
			}
			ind.Seed[j].Period = p
		}
	}

	for _, id := range c.Headline {
		if !seen[id] {
			return fmt.Errorf("catalog: headline indicator %q is not defined", id)
		}
	}
	for _, cmp := range c.Comparisons {
		if cmp.Key == "" {
			return fmt.Errorf("catalog: comparison without key")
		}
		if !seen[cmp.China] || !seen[cmp.Japan] {
			return fmt.Errorf("catalog: comparison %s references undefined indicators", cmp.Key)
		}
	}
	return nil
}

// Models returns the indicator reference data.
func (c *Catalog) Models() []models.Indicator {
	out := make([]models.Indicator, 0, len(c.Indicators))
	for _, ind := range c.Indicators {
		out = append(out, ind.Model())
	}
	return out
}

// Model converts the config entry to the stored indicator type.
func (ic IndicatorConfig) Model() models.Indicator {
	return models.Indicator{
		ID:        ic.ID,
		NameZh:    ic.NameZh,
		NameJa:    ic.NameJa,
		Unit:      ic.Unit,
		Source:    ic.Source,
		Category:  ic.Category,
		Frequency: ic.Frequency,
	}
}

// GetIndicator finds an indicator by id.
func (c *Catalog) GetIndicator(id string) *IndicatorConfig {
	if c == nil {
		return nil
	}
	for i := range c.Indicators {
		if c.Indicators[i].ID == id {
			return &c.Indicators[i]
		}
	}
	return nil
}

// Seed returns the static fallback observations for an indicator.
func (c *Catalog) Seed(id string) []models.Point {
	ind := c.GetIndicator(id)
	if ind == nil {
		return nil
	}
	out := make([]models.Point, len(ind.Seed))
	copy(out, ind.Seed)
	return out
}

// GetComparison finds a comparison by key.
func (c *Catalog) GetComparison(key string) *ComparisonConfig {
	if c == nil {
		return nil
	}
	for i := range c.Comparisons {
		if c.Comparisons[i].Key == key {
			return &c.Comparisons[i]
		}
	}
	return nil
}

// Frequency returns the frequency of an indicator, defaulting to annual.
func (c *Catalog) Frequency(id string) string {
	if ind := c.GetIndicator(id); ind != nil {
		return ind.Frequency
	}
	return models.FrequencyAnnual
}
