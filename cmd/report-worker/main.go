package main

import (
	"errors"
	"time"

	"finassist/internal/amqp"
	"finassist/internal/backend"
	"finassist/internal/cli"
	applog "finassist/internal/log"
	"finassist/internal/ports"
	gsheet "finassist/internal/sheets/google"
	"finassist/internal/worker"
)

const (
	prefetch       = 10
	reconnectDelay = 5 * time.Second
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentWorker)
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	logger.Info("Starting report-worker")

	if !cfg.AMQPEnabled() {
		cli.Fatal(logger, "AMQP_URL is required for the report worker", errors.New("missing AMQP_URL"))
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}
	defer res.Close()

	var exporter ports.ReportExporter
	if cfg.SheetsEnabled() {
		exp, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		}, logger.WithComponent(applog.ComponentSheets))
		if err != nil {
			cli.Fatal(logger, "Failed to initialize Google Sheets exporter", err)
		}
		exporter = exp
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(applog.ComponentAMQP))
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer client.Close()

	w := worker.NewReportWorker(res.Reports, res.Notifications, exporter, logger.WithComponent(applog.ComponentWorker))

	for {
		err := client.ConsumeReportEvents(ctx, prefetch, w.HandleEvent)
		if ctx.Err() != nil {
			break
		}
		logger.Error("Message consumption stopped, reconnecting",
			applog.FieldOperation, applog.OpConsume,
			applog.FieldError, err.Error(),
			"retry_in", reconnectDelay.String())
		select {
		case <-ctx.Done():
		case <-time.After(reconnectDelay):
		}
		if ctx.Err() != nil {
			break
		}
	}

	logger.Info("Worker shutdown complete", applog.FieldOperation, applog.OpShutdown)
}
