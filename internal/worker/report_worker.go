package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finassist/internal/amqp"
	"finassist/internal/core"
	applog "finassist/internal/log"
	"finassist/internal/ports"
)

// ReportWorker reacts to report lifecycle events: it notifies the owner
// and copies the report to the configured exporter.
type ReportWorker struct {
	reader        ports.ReportReader
	notifications ports.NotificationWriter
	exporter      ports.ReportExporter
	logger        *applog.Logger
	now           func() time.Time
}

// NewReportWorker creates a worker. exporter may be nil to skip exports.
func NewReportWorker(reader ports.ReportReader, notifications ports.NotificationWriter, exporter ports.ReportExporter, logger *applog.Logger) *ReportWorker {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ReportWorker{
		reader:        reader,
		notifications: notifications,
		exporter:      exporter,
		logger:        logger.WithComponent(applog.ComponentWorker),
		now:           time.Now,
	}
}

// HandleEvent dispatches one message from the report queue. A returned
// error makes the consumer requeue the message.
func (w *ReportWorker) HandleEvent(ctx context.Context, msg *amqp.ReportEventMessage) error {
	switch msg.Event {
	case amqp.EventReportGenerated:
		return w.handleGenerated(ctx, msg)
	case amqp.EventReportDeleted:
		w.logger.InfoContext(ctx, "Report deleted",
			applog.FieldEventID, msg.EventID,
			applog.FieldOwner, msg.Owner,
			applog.FieldReportID, msg.ReportID)
		return nil
	default:
		return fmt.Errorf("unsupported event %q", msg.Event)
	}
}

func (w *ReportWorker) handleGenerated(ctx context.Context, msg *amqp.ReportEventMessage) error {
	report, err := w.reader.GetReport(ctx, msg.Owner, msg.ReportID)
	if errors.Is(err, core.ErrReportNotFound) {
		// Deleted before the event was consumed.
		w.logger.WarnContext(ctx, "Skipping event for missing report",
			applog.FieldEventID, msg.EventID,
			applog.FieldReportID, msg.ReportID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load report %d: %w", msg.ReportID, err)
	}

	n := core.Notification{
		Owner:         report.Owner,
		Title:         "Report ready",
		Message:       fmt.Sprintf("%s is ready. Balance: %s", report.Title, report.Balance),
		Type:          core.NotificationTypeReport,
		CreatedAt:     w.now().UTC(),
		ReferenceID:   report.ID,
		ReferenceType: core.ReferenceTypeReport,
	}
	id, err := w.notifications.CreateNotification(ctx, n)
	if err != nil {
		return fmt.Errorf("create notification for report %d: %w", report.ID, err)
	}

	fields := applog.NewFields().
		WithReport(report.Owner, string(report.Type), report.Period, report.ID).
		WithOperation(applog.OpConsume)
	w.logger.InfoContext(ctx, "Report notification created", append(fields.ToSlice(), "notification_id", id)...)

	if w.exporter == nil {
		return nil
	}

	details, err := w.reader.ListReportDetails(ctx, report.ID)
	if err != nil {
		return fmt.Errorf("load details of report %d: %w", report.ID, err)
	}
	if err := w.exporter.ExportReport(ctx, report, details); err != nil {
		// The notification exists already; a retry would duplicate it.
		w.logger.ErrorContext(ctx, "Failed to export report",
			applog.NewFields().
				WithReport(report.Owner, string(report.Type), report.Period, report.ID).
				WithOperation(applog.OpExport).
				WithError(err).
				ToSlice()...)
		return nil
	}
	w.logger.InfoContext(ctx, "Report exported", applog.FieldReportID, report.ID, "details", len(details))
	return nil
}
