package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"finassist/internal/core"
)

const (
	minReportYear = 1
	maxReportYear = 9999
)

// ResolveMonthly turns a "YYYY-MM" key into the window covering that month.
func ResolveMonthly(key string) (core.Period, error) {
	key = strings.TrimSpace(key)
	t, err := time.Parse("2006-01", key)
	if err != nil || t.Year() < minReportYear {
		return core.Period{}, fmt.Errorf("%w: monthly key %q must be YYYY-MM", core.ErrInvalidPeriod, key)
	}
	start := core.NewDate(t.Year(), int(t.Month()), 1)
	end := core.Date{Time: start.AddDate(0, 1, -1)}
	return core.Period{
		Type:   core.ReportMonthly,
		Key:    start.MonthKey(),
		Window: core.Window{Start: start, End: end},
	}, nil
}

// ResolveAnnual returns the Jan 1 to Dec 31 window of year.
func ResolveAnnual(year int) (core.Period, error) {
	if year < minReportYear || year > maxReportYear {
		return core.Period{}, fmt.Errorf("%w: year %d out of range", core.ErrInvalidPeriod, year)
	}
	return core.Period{
		Type: core.ReportAnnual,
		Key:  fmt.Sprintf("%04d", year),
		Window: core.Window{
			Start: core.NewDate(year, 1, 1),
			End:   core.NewDate(year, 12, 31),
		},
	}, nil
}

// ParseYear parses a four digit year string for ResolveAnnual.
func ParseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return 0, fmt.Errorf("%w: year %q must be YYYY", core.ErrInvalidPeriod, s)
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: year %q must be YYYY", core.ErrInvalidPeriod, s)
	}
	return year, nil
}

// ResolveCustom keeps the given bounds and requires start < end.
func ResolveCustom(start, end core.Date) (core.Period, error) {
	if start.IsZero() || end.IsZero() {
		return core.Period{}, fmt.Errorf("%w: start and end dates are required", core.ErrInvalidRange)
	}
	if !start.Before(end.Time) {
		return core.Period{}, fmt.Errorf("%w: start %s must be before end %s", core.ErrInvalidRange, start, end)
	}
	return core.Period{
		Type:   core.ReportCustom,
		Key:    start.String() + "_" + end.String(),
		Window: core.Window{Start: start, End: end},
	}, nil
}

// ResolvePeriodKey rebuilds a period from a stored type and key.
func ResolvePeriodKey(t core.ReportType, key string) (core.Period, error) {
	switch t {
	case core.ReportMonthly:
		return ResolveMonthly(key)
	case core.ReportAnnual:
		year, err := ParseYear(key)
		if err != nil {
			return core.Period{}, err
		}
		return ResolveAnnual(year)
	case core.ReportCustom:
		from, to, ok := strings.Cut(key, "_")
		if !ok {
			return core.Period{}, fmt.Errorf("%w: custom key %q", core.ErrInvalidPeriod, key)
		}
		start, err := core.ParseDate(from)
		if err != nil {
			return core.Period{}, fmt.Errorf("%w: %w", core.ErrInvalidPeriod, err)
		}
		end, err := core.ParseDate(to)
		if err != nil {
			return core.Period{}, fmt.Errorf("%w: %w", core.ErrInvalidPeriod, err)
		}
		return ResolveCustom(start, end)
	default:
		return core.Period{}, fmt.Errorf("%w: unknown report type %q", core.ErrInvalidPeriod, t)
	}
}
