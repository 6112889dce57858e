package query

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"trendboard/internal/models"
)

const legacyRows = 6

// Values reported by the pre-v1 endpoints before any data has been stored.
const (
	legacyStudentsTotal = 33.67
	legacyStudentsYoY   = 20.6
	legacyCPICurrent    = 110.0
	legacyCPIMoM        = 0.4
	legacyCPIYoY        = 2.9
	legacyJobsRatio     = 1.25
)

// legacyRecent returns the most recent rows newest first.
func (s *Service) legacyRecent(ctx context.Context, indicatorID string) ([]models.Observation, error) {
	rows, err := s.store.QueryObservations(ctx, indicatorID, legacyRows)
	if err != nil {
		return nil, fmt.Errorf("observations %s: %w", indicatorID, err)
	}
	return rows, nil
}

// LegacyStudents returns the pre-v1 students payload.
func (s *Service) LegacyStudents(ctx context.Context) (*models.LegacyStudents, error) {
	rows, err := s.legacyRecent(ctx, "students_total")
	if err != nil {
		return nil, err
	}

	total := legacyStudentsTotal
	yoy := legacyStudentsYoY
	year := "2024"
	if len(rows) > 0 {
		total = rows[0].Value
		year = rows[0].Period[:4]
	}
	if len(rows) > 1 && rows[1].Value != 0 {
		yoy = round1((rows[0].Value - rows[1].Value) / rows[1].Value * 100)
	}

	trend := make([]models.LegacyYearPoint, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		y, _ := strconv.Atoi(rows[i].Period[:4])
		trend = append(trend, models.LegacyYearPoint{Year: y, Value: rows[i].Value})
	}

	return &models.LegacyStudents{
		Summary: models.LegacyStudentsSummary{
			Total:            total,
			YoYChange:        yoy,
			YoYChangePercent: yoy,
		},
		Trend:   trend,
		Insight: fmt.Sprintf("%s年%s万人，创历史新高", year, formatNumber(total)),
	}, nil
}

// LegacyCPI returns the pre-v1 CPI payload.
func (s *Service) LegacyCPI(ctx context.Context) (*models.LegacyCPI, error) {
	rows, err := s.legacyRecent(ctx, "cpi_total")
	if err != nil {
		return nil, err
	}

	current, mom, yoy := legacyCPICurrent, legacyCPIMoM, legacyCPIYoY
	month := 11
	if len(rows) > 0 {
		latest := rows[0]
		current = latest.Value
		if latest.MoMChange != nil {
			mom = *latest.MoMChange
		}
		if latest.YoYChange != nil {
			yoy = *latest.YoYChange
		}
		if len(latest.Period) == len("2024-11") {
			month, _ = strconv.Atoi(latest.Period[5:])
		}
	}

	return &models.LegacyCPI{
		Summary: models.LegacyCPISummary{
			Current:   current,
			MoMChange: mom,
			YoYChange: yoy,
		},
		Trend:   monthTrend(rows),
		Insight: fmt.Sprintf("%d月CPI %s（2020年=100），同比%+.1f%%", month, formatNumber(current), yoy),
	}, nil
}

// LegacyJobs returns the pre-v1 job-opening ratio payload.
func (s *Service) LegacyJobs(ctx context.Context) (*models.LegacyJobs, error) {
	rows, err := s.legacyRecent(ctx, "job_ratio")
	if err != nil {
		return nil, err
	}

	ratio := legacyJobsRatio
	direction := "stable"
	if len(rows) > 0 {
		ratio = rows[0].Value
	}
	if len(rows) > 1 {
		switch diff := rows[0].Value - rows[1].Value; {
		case diff > 0.005:
			direction = "up"
		case diff < -0.005:
			direction = "down"
		}
	}

	outlook := map[string]string{
		"up":     "就业市场持续改善",
		"down":   "就业市场有所降温",
		"stable": "就业市场保持温和",
	}[direction]

	return &models.LegacyJobs{
		Summary: models.LegacyJobsSummary{Ratio: ratio, Trend: direction},
		Trend:   monthTrend(rows),
		Insight: fmt.Sprintf("求人倍率%s倍，%s", formatNumber(ratio), outlook),
	}, nil
}

// monthTrend reverses newest-first rows into a chronological trend.
func monthTrend(rows []models.Observation) []models.LegacyMonthPoint {
	trend := make([]models.LegacyMonthPoint, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		trend = append(trend, models.LegacyMonthPoint{Month: rows[i].Period, Value: rows[i].Value})
	}
	return trend
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
