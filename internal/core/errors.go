package core

import "errors"

var (
	// ErrInvalidPeriod is returned for a malformed monthly key or year.
	ErrInvalidPeriod = errors.New("invalid period")
	// ErrInvalidRange is returned for a custom window with start >= end.
	ErrInvalidRange = errors.New("invalid range")
	// ErrSourceUnavailable wraps record source and report store I/O failures.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrDuplicateReport signals a lost race on the (owner, type, period) key.
	ErrDuplicateReport = errors.New("duplicate report")
	// ErrInconsistentWrite means the report row could not be saved with its details.
	ErrInconsistentWrite = errors.New("inconsistent write")
	ErrReportNotFound    = errors.New("report not found")
)
