// Package ports declares the interfaces between the report services and
// their outbound adapters (SQL, memory, AMQP, Google Sheets).
package ports

import (
	"context"

	"finassist/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordSource returns an owner's records whose relevant date falls in
	// the inclusive window.
	RecordSource interface {
		ListIncomes(ctx context.Context, owner string, w core.Window) ([]core.Income, error)
		ListExpenses(ctx context.Context, owner string, w core.Window) ([]core.Expense, error)
		// ListPaidBills returns only bills flagged as paid.
		ListPaidBills(ctx context.Context, owner string, w core.Window) ([]core.Bill, error)
		// ListPaidInvoices returns only invoices flagged as paid.
		ListPaidInvoices(ctx context.Context, owner string, w core.Window) ([]core.Invoice, error)
	}

	// RecordImporter bulk-loads records, e.g. from a JSON export.
	RecordImporter interface {
		ImportRecords(ctx context.Context, rec core.Records) error
	}

	// ReportWriter is the write half of a report store, valid inside WithinTx.
	ReportWriter interface {
		// InsertReport assigns and returns the new report id. It returns
		// core.ErrDuplicateReport when (owner, type, period) already exists.
		InsertReport(ctx context.Context, r core.Report) (int64, error)
		InsertReportDetails(ctx context.Context, details []core.ReportDetail) error
	}

	ReportReader interface {
		// FindReport returns core.ErrReportNotFound when no report exists for the key.
		FindReport(ctx context.Context, owner string, t core.ReportType, period string) (core.Report, error)
		GetReport(ctx context.Context, owner string, id int64) (core.Report, error)
		// ListReports returns the owner's reports, newest first.
		ListReports(ctx context.Context, owner string) ([]core.Report, error)
		ListReportDetails(ctx context.Context, reportID int64) ([]core.ReportDetail, error)
	}

	ReportStore interface {
		ReportReader
		// WithinTx runs fn in one transaction. Any error from fn rolls back.
		WithinTx(ctx context.Context, fn func(ReportWriter) error) error
		// DeleteReport removes the owner's report and its details.
		DeleteReport(ctx context.Context, owner string, id int64) error
	}

	NotificationWriter interface {
		CreateNotification(ctx context.Context, n core.Notification) (int64, error)
	}

	// ReportExporter copies a generated report to an external destination.
	ReportExporter interface {
		ExportReport(ctx context.Context, r core.Report, details []core.ReportDetail) error
	}

	// ReportEventPublisher announces report lifecycle changes.
	ReportEventPublisher interface {
		PublishReportGenerated(ctx context.Context, r core.Report) error
		PublishReportDeleted(ctx context.Context, owner string, id int64) error
	}
)
