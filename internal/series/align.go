package series

import (
	"sort"

	"trendboard/internal/models"
)

// Align places two series on the union of their periods, ascending. A period
// missing from one side becomes an explicit nil for that side; nothing is
// interpolated or dropped.
func Align(china, japan []models.YearValue) models.AlignedSeries {
	cn := index(china)
	jp := index(japan)

	seen := make(map[string]struct{}, len(cn)+len(jp))
	periods := make([]string, 0, len(cn)+len(jp))
	for _, set := range []map[string]float64{cn, jp} {
		for p := range set {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			periods = append(periods, p)
		}
	}
	sort.Strings(periods)

	aligned := models.AlignedSeries{
		Periods: periods,
		China:   make([]*float64, len(periods)),
		Japan:   make([]*float64, len(periods)),
	}
	for i, p := range periods {
		if v, ok := cn[p]; ok {
			aligned.China[i] = &v
		}
		if v, ok := jp[p]; ok {
			aligned.Japan[i] = &v
		}
	}
	return aligned
}

func index(values []models.YearValue) map[string]float64 {
	m := make(map[string]float64, len(values))
	for _, v := range values {
		m[v.Period] = v.Value
	}
	return m
}
