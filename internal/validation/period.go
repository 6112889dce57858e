package validation

import (
	"fmt"
	"regexp"
	"strconv"
)

// Period kinds
const (
	PeriodYear    = "year"
	PeriodMonth   = "month"
	PeriodQuarter = "quarter"
)

// Canonical period encodings. All are fixed-width and zero-padded, so
// lexicographic order equals chronological order within one kind.
var (
	yearPattern    = regexp.MustCompile(`^\d{4}$`)
	monthPattern   = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
	quarterPattern = regexp.MustCompile(`^\d{4}-Q[1-4]$`)

	yyyymmPattern  = regexp.MustCompile(`^(\d{4})(\d{2})$`)
	estatPattern   = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})(\d{2})$`)
	wbQuarterRegex = regexp.MustCompile(`^(\d{4})Q([1-4])$`)
	wbMonthRegex   = regexp.MustCompile(`^(\d{4})M(\d{2})$`)
)

// ErrInvalidPeriod is returned for periods that cannot be normalized.
type ErrInvalidPeriod struct {
	Period string
}

func (e *ErrInvalidPeriod) Error() string {
	return fmt.Sprintf("invalid period %q", e.Period)
}

// IsCanonicalPeriod reports whether p is already "YYYY", "YYYY-MM" or "YYYY-Qn".
func IsCanonicalPeriod(p string) bool {
	return PeriodKind(p) != ""
}

// PeriodKind returns the kind of a canonical period, or "" if p is not canonical.
func PeriodKind(p string) string {
	switch {
	case yearPattern.MatchString(p):
		return PeriodYear
	case monthPattern.MatchString(p):
		return PeriodMonth
	case quarterPattern.MatchString(p):
		return PeriodQuarter
	}
	return ""
}

// NormalizePeriod converts the time codes used by upstream sources into the
// canonical encoding. Accepted inputs:
//
//	2024, 2024-06, 2024-Q3            canonical, returned as is
//	202406                            year-month
//	2024000000                        e-Stat annual
//	2024000606                        e-Stat monthly
//	2024000103, 2024000406 ...        e-Stat quarterly (first and last month of the quarter)
//	2023Q1, 2023M01                   World Bank quarterly and monthly
func NormalizePeriod(raw string) (string, error) {
	if IsCanonicalPeriod(raw) {
		return raw, nil
	}

	if m := yyyymmPattern.FindStringSubmatch(raw); m != nil {
		return monthPeriod(raw, m[1], m[2])
	}

	if m := estatPattern.FindStringSubmatch(raw); m != nil {
		year, from, to := m[1], m[3], m[4]
		if m[2] != "00" {
			return "", &ErrInvalidPeriod{Period: raw}
		}
		switch {
		case from == "00" && to == "00":
			return year, nil
		case from == to:
			return monthPeriod(raw, year, from)
		default:
			f, _ := strconv.Atoi(from)
			t, _ := strconv.Atoi(to)
			if t-f == 2 && (f-1)%3 == 0 && f >= 1 && f <= 10 {
				return fmt.Sprintf("%s-Q%d", year, (f-1)/3+1), nil
			}
		}
		return "", &ErrInvalidPeriod{Period: raw}
	}

	if m := wbQuarterRegex.FindStringSubmatch(raw); m != nil {
		return m[1] + "-Q" + m[2], nil
	}

	if m := wbMonthRegex.FindStringSubmatch(raw); m != nil {
		return monthPeriod(raw, m[1], m[2])
	}

	return "", &ErrInvalidPeriod{Period: raw}
}

func monthPeriod(raw, year, month string) (string, error) {
	p := year + "-" + month
	if !monthPattern.MatchString(p) {
		return "", &ErrInvalidPeriod{Period: raw}
	}
	return p, nil
}

// PeriodYearOf returns the year component of a canonical period.
func PeriodYearOf(p string) (int, error) {
	if !IsCanonicalPeriod(p) {
		return 0, &ErrInvalidPeriod{Period: p}
	}
	return strconv.Atoi(p[:4])
}
