package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finassist/internal/core"
	applog "finassist/internal/log"
	"finassist/internal/ports"
)

// Materializer returns the stored report for a period or computes and
// persists it on first request. Stored reports are never recomputed.
type Materializer struct {
	store     ports.ReportStore
	computer  Computer
	publisher ports.ReportEventPublisher
	logger    *applog.Logger
	now       func() time.Time
}

// MaterializerOption customises a Materializer.
type MaterializerOption func(*Materializer)

// WithPublisher announces generated and deleted reports. Publish failures
// are logged and never fail the request.
func WithPublisher(p ports.ReportEventPublisher) MaterializerOption {
	return func(m *Materializer) { m.publisher = p }
}

// WithClock overrides the source of generatedAt timestamps.
func WithClock(now func() time.Time) MaterializerOption {
	return func(m *Materializer) { m.now = now }
}

func WithLogger(l *applog.Logger) MaterializerOption {
	return func(m *Materializer) { m.logger = l }
}

func NewMaterializer(store ports.ReportStore, computer Computer, opts ...MaterializerOption) *Materializer {
	m := &Materializer{
		store:    store,
		computer: computer,
		now:      time.Now,
		logger:   applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentReport),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetOrCreate returns the owner's report for p, generating it on a miss.
// A lost insert race is resolved by returning the winner's report.
func (m *Materializer) GetOrCreate(ctx context.Context, owner string, p core.Period) (core.Report, error) {
	existing, err := m.store.FindReport(ctx, owner, p.Type, p.Key)
	switch {
	case err == nil:
		m.logger.DebugContext(ctx, "Report cache hit", applog.NewFields().WithReport(owner, string(p.Type), p.Key, existing.ID).ToSlice()...)
		return existing, nil
	case !errors.Is(err, core.ErrReportNotFound):
		return core.Report{}, fmt.Errorf("%w: find report: %w", core.ErrSourceUnavailable, err)
	}

	comp, err := m.computer.Compute(ctx, owner, p)
	if err != nil {
		return core.Report{}, fmt.Errorf("compute %s report %s: %w", p.Type, p.Key, err)
	}

	report := core.Report{
		Owner:           owner,
		Type:            p.Type,
		Period:          p.Key,
		Title:           p.Title(),
		StartDate:       p.Window.Start,
		EndDate:         p.Window.End,
		TotalIncome:     comp.TotalIncome,
		TotalExpense:    comp.TotalExpense,
		Balance:         comp.Balance,
		CategorySummary: comp.CategorySummary,
		MonthlyTrend:    comp.MonthlyTrend,
		GeneratedAt:     m.now().UTC().Truncate(time.Microsecond),
	}

	err = m.store.WithinTx(ctx, func(w ports.ReportWriter) error {
		id, err := w.InsertReport(ctx, report)
		if err != nil {
			return err
		}
		details := make([]core.ReportDetail, len(comp.Details))
		for i, d := range comp.Details {
			d.ReportID = id
			details[i] = d
		}
		if err := w.InsertReportDetails(ctx, details); err != nil {
			return fmt.Errorf("%w: insert details of report %d: %w", core.ErrInconsistentWrite, id, err)
		}
		report.ID = id
		return nil
	})
	switch {
	case errors.Is(err, core.ErrDuplicateReport):
		winner, ferr := m.store.FindReport(ctx, owner, p.Type, p.Key)
		if ferr != nil {
			return core.Report{}, fmt.Errorf("%w: re-read report after duplicate insert: %w", core.ErrSourceUnavailable, ferr)
		}
		m.logger.InfoContext(ctx, "Concurrent report generation resolved", applog.NewFields().WithReport(owner, string(p.Type), p.Key, winner.ID).ToSlice()...)
		return winner, nil
	case errors.Is(err, core.ErrInconsistentWrite):
		return core.Report{}, err
	case err != nil:
		return core.Report{}, fmt.Errorf("%w: save report: %w", core.ErrSourceUnavailable, err)
	}

	m.logger.InfoContext(ctx, "Report generated",
		applog.NewFields().
			WithReport(owner, string(p.Type), p.Key, report.ID).
			WithOperation(applog.OpCreate).
			ToSlice()...)

	if m.publisher != nil {
		if err := m.publisher.PublishReportGenerated(ctx, report); err != nil {
			m.logger.WarnContext(ctx, "Failed to publish report generated event", "report_id", report.ID, "error", err)
		}
	}

	return report, nil
}

// Delete removes the owner's report together with its details.
func (m *Materializer) Delete(ctx context.Context, owner string, id int64) error {
	if err := m.store.DeleteReport(ctx, owner, id); err != nil {
		if errors.Is(err, core.ErrReportNotFound) {
			return err
		}
		return fmt.Errorf("%w: delete report %d: %w", core.ErrSourceUnavailable, id, err)
	}

	m.logger.InfoContext(ctx, "Report deleted", "owner", owner, "report_id", id)

	if m.publisher != nil {
		if err := m.publisher.PublishReportDeleted(ctx, owner, id); err != nil {
			m.logger.WarnContext(ctx, "Failed to publish report deleted event", "report_id", id, "error", err)
		}
	}
	return nil
}
