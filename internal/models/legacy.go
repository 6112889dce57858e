package models

// Pre-v1 stats payloads. Field names are part of the public contract.

// LegacyYearPoint is one annual element of a legacy trend.
type LegacyYearPoint struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// LegacyMonthPoint is one monthly element of a legacy trend.
type LegacyMonthPoint struct {
	Month string  `json:"month"`
	Value float64 `json:"value"`
}

type LegacyStudentsSummary struct {
	Total            float64 `json:"total"`
	YoYChange        float64 `json:"yoyChange"`
	YoYChangePercent float64 `json:"yoyChangePercent"`
}

type LegacyStudents struct {
	Summary LegacyStudentsSummary `json:"summary"`
	Trend   []LegacyYearPoint     `json:"trend"`
	Insight string                `json:"insight"`
}

type LegacyCPISummary struct {
	Current   float64 `json:"current"`
	MoMChange float64 `json:"momChange"`
	YoYChange float64 `json:"yoyChange"`
}

type LegacyCPI struct {
	Summary LegacyCPISummary   `json:"summary"`
	Trend   []LegacyMonthPoint `json:"trend"`
	Insight string             `json:"insight"`
}

type LegacyJobsSummary struct {
	Ratio float64 `json:"ratio"`
	Trend string  `json:"trend"`
}

type LegacyJobs struct {
	Summary LegacyJobsSummary  `json:"summary"`
	Trend   []LegacyMonthPoint `json:"trend"`
	Insight string             `json:"insight"`
}
