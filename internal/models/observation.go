package models

import "time"

// Provenance constants
const (
	ProvenanceLive = "live"
	ProvenanceSeed = "seed"
	ProvenanceNone = "none"
)

// Observation is one stored (indicator, period) data point.
type Observation struct {
	IndicatorID string    `json:"indicator_id"`
	Period      string    `json:"period"`
	Value       float64   `json:"value"`
	YoYChange   *float64  `json:"yoy_change"`
	MoMChange   *float64  `json:"mom_change"`
	Revision    int       `json:"revision"`
	Provenance  string    `json:"provenance"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Point is a normalized observation as produced by a source adapter or the
// seed catalog, before it is reconciled into the store.
type Point struct {
	Period string   `json:"period" yaml:"period"`
	Value  float64  `json:"value" yaml:"value"`
	YoY    *float64 `json:"yoy,omitempty" yaml:"yoy,omitempty"`
	MoM    *float64 `json:"mom,omitempty" yaml:"mom,omitempty"`
}

// UpsertResult reports what an upsert did to the store.
type UpsertResult struct {
	Added   bool
	Updated bool
}
