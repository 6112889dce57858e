package models

// ObservationStat is a per-indicator, per-provenance row count used by metrics.
type ObservationStat struct {
	IndicatorID string
	Provenance  string
	Count       int64
	Revisions   int64
}
