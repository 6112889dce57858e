package models

import "time"

// HeadlineValue is the latest observation of a headline indicator on the
// dashboard. Value is nil when the indicator has no observations yet.
type HeadlineValue struct {
	Value      *float64 `json:"value"`
	YoYChange  *float64 `json:"yoy_change,omitempty"`
	MoMChange  *float64 `json:"mom_change,omitempty"`
	TimePeriod string   `json:"time_period,omitempty"`
}

// DashboardOverview is the headline snapshot payload.
type DashboardOverview struct {
	Indicators map[string]HeadlineValue `json:"indicators"`
	LastSync   *string                  `json:"lastSync"`
	NextSync   time.Time                `json:"nextSync"`
}

// SyncStatus is the payload of the last-sync endpoint.
type SyncStatus struct {
	LastSyncTime *string   `json:"lastSyncTime"`
	NextSyncTime time.Time `json:"nextSyncTime"`
	LastSyncLog  *SyncLog  `json:"lastSyncLog"`
}

// LatestValue is the latest observation of an indicator.
type LatestValue struct {
	Period    string   `json:"period"`
	Value     float64  `json:"value"`
	YoYChange *float64 `json:"yoy_change"`
	MoMChange *float64 `json:"mom_change"`
}

// IndicatorMeta is the display metadata returned alongside a latest value.
type IndicatorMeta struct {
	NameZh string `json:"name_zh"`
	NameJa string `json:"name_ja"`
	Unit   string `json:"unit"`
	Source string `json:"source"`
}

// IndicatorLatest is the payload of the per-indicator latest endpoint.
type IndicatorLatest struct {
	Indicator string        `json:"indicator"`
	Latest    LatestValue   `json:"latest"`
	Meta      IndicatorMeta `json:"meta"`
}

// SeriesPoint is one element of a chronological series response.
type SeriesPoint struct {
	TimePeriod string   `json:"time_period"`
	Value      float64  `json:"value"`
	YoYChange  *float64 `json:"yoy_change"`
	MoMChange  *float64 `json:"mom_change"`
}

// IndicatorSeries is the payload of the series endpoint, ascending by period.
type IndicatorSeries struct {
	Indicator string        `json:"indicator"`
	Series    []SeriesPoint `json:"series"`
}

// YearValue is one observation of a country in a comparison.
type YearValue struct {
	Year   int     `json:"year"`
	Period string  `json:"period"`
	Value  float64 `json:"value"`
}

// AlignedSeries holds two country series on the union of their periods.
// Missing periods are explicit nulls.
type AlignedSeries struct {
	Periods []string   `json:"periods"`
	China   []*float64 `json:"china"`
	Japan   []*float64 `json:"japan"`
}

// Comparison is the payload of the macro comparison endpoint.
type Comparison struct {
	Indicator string        `json:"indicator"`
	Label     string        `json:"label"`
	Source    string        `json:"source"`
	China     []YearValue   `json:"china"`
	Japan     []YearValue   `json:"japan"`
	Aligned   AlignedSeries `json:"aligned"`
}
