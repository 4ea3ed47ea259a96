// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for report trend bucketing.
// Each report type has its own strategy that decides which keys the
// monthlyTrend mapping carries.

package services

import (
	"fmt"

	"finassist/internal/core"
)

const (
	TrendKeyIncome  = "Income"
	TrendKeyExpense = "Expense"
	TrendKeyBalance = "Balance"
)

// TrendInput is what a trend strategy may look at.
type TrendInput struct {
	TotalIncome  core.Money
	TotalExpense core.Money
	Balance      core.Money
	Expenses     []core.Expense
}

// TrendStrategy builds the monthlyTrend mapping of a report.
type TrendStrategy interface {
	Trend(in TrendInput) map[string]core.Money
}

// FixedTotalsTrend implements TrendStrategy for monthly reports.
type FixedTotalsTrend struct{}

// Trend returns exactly the Income, Expense and Balance entries.
func (FixedTotalsTrend) Trend(in TrendInput) map[string]core.Money {
	return map[string]core.Money{
		TrendKeyIncome:  in.TotalIncome,
		TrendKeyExpense: in.TotalExpense,
		TrendKeyBalance: in.Balance,
	}
}

// CalendarMonthTrend implements TrendStrategy for annual and custom reports.
type CalendarMonthTrend struct{}

// Trend sums expense amounts per YYYY-MM of the expense date.
func (CalendarMonthTrend) Trend(in TrendInput) map[string]core.Money {
	out := make(map[string]core.Money)
	for _, e := range in.Expenses {
		k := e.Date.MonthKey()
		out[k] = out[k].Add(e.Amount)
	}
	return out
}

// TrendStrategyFor returns the trend strategy of a report type.
func TrendStrategyFor(t core.ReportType) (TrendStrategy, error) {
	switch t {
	case core.ReportMonthly:
		return FixedTotalsTrend{}, nil
	case core.ReportAnnual, core.ReportCustom:
		return CalendarMonthTrend{}, nil
	default:
		return nil, fmt.Errorf("unknown report type: %s", t)
	}
}
