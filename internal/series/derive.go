// Package series holds pure transformations over observation sequences:
// derived change metrics and cross-country alignment.
package series

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"trendboard/internal/models"
	"trendboard/internal/validation"
)

// Derive fills in YoY and MoM percentages that the source did not supply.
// YoY compares against the same period one year earlier (any kind); MoM
// compares against the previous month and only applies to monthly periods.
// Points must already carry canonical periods. The result is sorted ascending.
func Derive(points []models.Point) []models.Point {
	out := make([]models.Point, len(points))
	copy(out, points)
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })

	byPeriod := make(map[string]float64, len(out))
	for _, p := range out {
		byPeriod[p.Period] = p.Value
	}

	for i := range out {
		p := &out[i]
		if p.YoY == nil {
			if prev, ok := shiftPeriod(p.Period, -1, 0); ok {
				if base, ok := byPeriod[prev]; ok {
					p.YoY = percentChange(base, p.Value)
				}
			}
		}
		if p.MoM == nil && validation.PeriodKind(p.Period) == validation.PeriodMonth {
			if prev, ok := shiftPeriod(p.Period, 0, -1); ok {
				if base, ok := byPeriod[prev]; ok {
					p.MoM = percentChange(base, p.Value)
				}
			}
		}
	}
	return out
}

func percentChange(base, value float64) *float64 {
	if base == 0 {
		return nil
	}
	v := math.Round((value-base)/math.Abs(base)*100*100) / 100
	return &v
}

// shiftPeriod moves a canonical period by whole years and, for monthly
// periods, by months.
func shiftPeriod(p string, years, months int) (string, bool) {
	year, err := validation.PeriodYearOf(p)
	if err != nil {
		return "", false
	}
	switch validation.PeriodKind(p) {
	case validation.PeriodYear:
		if months != 0 {
			return "", false
		}
		return strconv.Itoa(year + years), true
	case validation.PeriodQuarter:
		if months != 0 {
			return "", false
		}
		return fmt.Sprintf("%04d-%s", year+years, p[5:]), true
	case validation.PeriodMonth:
		month, err := strconv.Atoi(p[5:])
		if err != nil {
			return "", false
		}
		total := (year+years)*12 + (month - 1) + months
		return fmt.Sprintf("%04d-%02d", total/12, total%12+1), true
	}
	return "", false
}
