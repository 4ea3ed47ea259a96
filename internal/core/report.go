package core

import (
	"maps"
	"time"
)

// Report is an immutable snapshot of one owner's finances over a period.
// It is unique per (Owner, Type, Period).
type Report struct {
	ID              int64            `json:"id"`
	Owner           string           `json:"owner"`
	Type            ReportType       `json:"type"`
	Period          string           `json:"period"`
	Title           string           `json:"title"`
	StartDate       Date             `json:"startDate"`
	EndDate         Date             `json:"endDate"`
	TotalIncome     Money            `json:"totalIncome"`
	TotalExpense    Money            `json:"totalExpense"`
	Balance         Money            `json:"balance"`
	CategorySummary map[string]Money `json:"categorySummary"`
	MonthlyTrend    map[string]Money `json:"monthlyTrend"`
	Notes           string           `json:"notes,omitempty"`
	GeneratedAt     time.Time        `json:"generatedAt"`
}

// ReportDetail holds per-category statistics of a report. ReportID is a
// lookup key only.
type ReportDetail struct {
	ID                int64            `json:"id"`
	ReportID          int64            `json:"reportId"`
	Category          string           `json:"category"`
	Amount            Money            `json:"amount"`
	TransactionCount  int              `json:"transactionCount"`
	AverageAmount     Money            `json:"averageAmount"`
	PercentageOfTotal Percent          `json:"percentageOfTotal"`
	DailyDistribution map[string]Money `json:"dailyDistribution"`
}

// Computation is the output of an aggregation run before persistence.
// Details are in first-occurrence order of their categories.
type Computation struct {
	TotalIncome     Money
	TotalExpense    Money
	Balance         Money
	CategorySummary map[string]Money
	MonthlyTrend    map[string]Money
	Details         []ReportDetail
}

// Notification is an in-app message addressed to one owner.
type Notification struct {
	ID            int64     `json:"id"`
	Owner         string    `json:"owner"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	Type          string    `json:"type"`
	IsRead        bool      `json:"isRead"`
	CreatedAt     time.Time `json:"createdAt"`
	ReferenceID   int64     `json:"referenceId,omitempty"`
	ReferenceType string    `json:"referenceType,omitempty"`
}

const (
	NotificationTypeReport = "Report"
	ReferenceTypeReport    = "FinancialReport"
)

// Window returns the report's inclusive date range.
func (r Report) Window() Window {
	return Window{Start: r.StartDate, End: r.EndDate}
}

// Clone returns a copy of r that shares no maps with it.
func (r Report) Clone() Report {
	r.CategorySummary = maps.Clone(r.CategorySummary)
	r.MonthlyTrend = maps.Clone(r.MonthlyTrend)
	return r
}

// CloneDetails deep-copies details, including each daily distribution.
func CloneDetails(details []ReportDetail) []ReportDetail {
	if details == nil {
		return nil
	}
	out := make([]ReportDetail, len(details))
	for i, d := range details {
		d.DailyDistribution = maps.Clone(d.DailyDistribution)
		out[i] = d
	}
	return out
}
