// Package google exports generated reports to a Google spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finassist/internal/core"
	applog "finassist/internal/log"
	"finassist/internal/ports"
)

// DefaultSheetName is used when no sheet name is configured.
const DefaultSheetName = "Reports"

// SummaryCategory marks the totals row written before the category rows.
const SummaryCategory = "TOTAL"

// Header lists the columns written for every row.
var Header = []any{"Generated At", "Owner", "Type", "Period", "Category", "Income", "Expense", "Balance", "Transactions", "Percentage"}

type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *applog.Logger
}

var _ ports.ReportExporter = (*Exporter)(nil)

// New creates an exporter authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *applog.Logger) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *applog.Logger) *Exporter {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = DefaultSheetName
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(spreadsheetID),
		sheetName:     strings.TrimSpace(sheetName),
		logger:        logger.WithComponent(applog.ComponentSheets),
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Inline JSON wins over a file; GOOGLE_APPLICATION_CREDENTIALS is the fallback.
func newSheetsService(ctx context.Context, cfg Config, logger *applog.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	if logger != nil {
		logger.InfoContext(ctx, "Creating Google Sheets service with Service Account",
			"credentials_size", len(credentialsJSON),
			"scope", gsheet.SpreadsheetsScope)
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// ExportReport appends the summary row and one row per category.
func (e *Exporter) ExportReport(ctx context.Context, r core.Report, details []core.ReportDetail) error {
	if e.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := sheetRange(e.sheetName, "A1")
	vr := &gsheet.ValueRange{Values: ReportRows(r, details)}
	resp, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append report %d to sheet %s: %w", r.ID, e.sheetName, err)
	}

	updated := ""
	if resp.Updates != nil {
		updated = resp.Updates.UpdatedRange
	}
	e.logger.InfoContext(ctx, "Report appended to spreadsheet",
		applog.FieldReportID, r.ID,
		applog.FieldOperation, applog.OpExport,
		"range", updated,
		"rows", len(vr.Values))
	return nil
}

// ReportRows renders a report in Header column order.
func ReportRows(r core.Report, details []core.ReportDetail) [][]any {
	generated := r.GeneratedAt.UTC().Format(time.RFC3339)
	rows := make([][]any, 0, len(details)+1)
	rows = append(rows, []any{
		generated, r.Owner, string(r.Type), r.Period, SummaryCategory,
		r.TotalIncome.Euros(), r.TotalExpense.Euros(), r.Balance.Euros(), "", "",
	})
	for _, d := range details {
		rows = append(rows, []any{
			generated, r.Owner, string(r.Type), r.Period, d.Category,
			"", d.Amount.Euros(), "", d.TransactionCount, d.PercentageOfTotal.InexactFloat64(),
		})
	}
	return rows
}

// sheetRange builds an A1 range, quoting sheet names that need it.
func sheetRange(sheet, cells string) string {
	if strings.ContainsAny(sheet, " '!") {
		sheet = "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	}
	return sheet + "!" + cells
}
