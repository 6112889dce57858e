package models

// Indicator frequency constants
const (
	FrequencyAnnual    = "annual"
	FrequencyQuarterly = "quarterly"
	FrequencyMonthly   = "monthly"
)

// Source kind constants
const (
	SourceEStat     = "estat"
	SourceWorldBank = "worldbank"
)

// Indicator is a named statistical series. Reference data: written from the
// catalog at startup, never touched by a sync run.
type Indicator struct {
	ID        string `json:"id"`
	NameZh    string `json:"name_zh"`
	NameJa    string `json:"name_ja"`
	Unit      string `json:"unit"`
	Source    string `json:"source"`
	Category  string `json:"category"`
	Frequency string `json:"frequency"`
}

// SourceSpec describes where live observations for an indicator come from.
type SourceSpec struct {
	Kind string `yaml:"kind"`

	// e-Stat
	TableID string            `yaml:"table_id,omitempty"`
	Filters map[string]string `yaml:"filters,omitempty"` // classification id -> code, e.g. cat01: "0001"

	// World Bank
	Country string `yaml:"country,omitempty"`
	Code    string `yaml:"code,omitempty"`
}
