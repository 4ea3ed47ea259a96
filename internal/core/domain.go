package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	ReportMonthly ReportType = "Monthly"
	ReportAnnual  ReportType = "Annual"
	ReportCustom  ReportType = "Custom"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// UncategorizedCategory collects expenses recorded without a category.
const UncategorizedCategory = "Uncategorized"

type (
	// ReportType is the closed set of report kinds.
	ReportType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Window is an inclusive [Start, End] range of calendar days.
	Window struct {
		Start Date
		End   Date
	}

	// Period is a resolved report request: its type, canonical key and window.
	Period struct {
		Type   ReportType
		Key    string
		Window Window
	}

	Income struct {
		ID          int64  `json:"id"`
		Owner       string `json:"owner"`
		Amount      Money  `json:"amount"`
		Date        Date   `json:"date"`
		Description string `json:"description,omitempty"`
	}

	Expense struct {
		ID          int64  `json:"id"`
		Owner       string `json:"owner"`
		Amount      Money  `json:"amount"`
		Date        Date   `json:"date"`
		Category    string `json:"category"`
		Description string `json:"description,omitempty"`
	}

	Bill struct {
		ID          int64  `json:"id"`
		Owner       string `json:"owner"`
		Amount      Money  `json:"amount"`
		DueDate     Date   `json:"dueDate"`
		IsPaid      bool   `json:"isPaid"`
		Description string `json:"description,omitempty"`
	}

	Invoice struct {
		ID          int64  `json:"id"`
		Owner       string `json:"owner"`
		Amount      Money  `json:"amount"`
		DueDate     Date   `json:"dueDate"`
		IsPaid      bool   `json:"isPaid"`
		Description string `json:"description,omitempty"`
	}

	// Records groups everything a report is computed from.
	Records struct {
		Incomes  []Income  `json:"incomes"`
		Expenses []Expense `json:"expenses"`
		Bills    []Bill    `json:"bills"`
		Invoices []Invoice `json:"invoices"`
	}
)

var (
	ErrInvalidDay    = errors.New("invalid day")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyOwner    = errors.New("empty owner")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(dateLayout)
}

// MonthKey returns the YYYY-MM bucket the date falls in.
func (d Date) MonthKey() string {
	return d.Format(monthLayout)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Contains reports whether d falls inside the window, bounds included.
func (w Window) Contains(d Date) bool {
	return !d.Before(w.Start.Time) && !d.After(w.End.Time)
}

// Valid reports whether t is one of the three report kinds.
func (t ReportType) Valid() bool {
	switch t {
	case ReportMonthly, ReportAnnual, ReportCustom:
		return true
	default:
		return false
	}
}

func (t ReportType) String() string {
	return string(t)
}

// ParseReportType accepts the type name case-insensitively.
func ParseReportType(s string) (ReportType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly":
		return ReportMonthly, nil
	case "annual":
		return ReportAnnual, nil
	case "custom":
		return ReportCustom, nil
	default:
		return "", fmt.Errorf("unknown report type %q", s)
	}
}

// Title is the human readable report name stored alongside the report.
func (p Period) Title() string {
	switch p.Type {
	case ReportMonthly:
		return "Monthly Report - " + p.Key
	case ReportAnnual:
		return "Annual Report - " + p.Key
	case ReportCustom:
		return fmt.Sprintf("Custom Report (%s - %s)", p.Window.Start, p.Window.End)
	default:
		return p.Key
	}
}

// CategoryKey returns the trimmed expense category, or UncategorizedCategory when blank.
func (e Expense) CategoryKey() string {
	if c := strings.TrimSpace(e.Category); c != "" {
		return c
	}
	return UncategorizedCategory
}

// ValidateOwner rejects blank owner identifiers.
func ValidateOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return ErrEmptyOwner
	}
	return nil
}
