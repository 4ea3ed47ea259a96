package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"finassist/internal/amqp"
	"finassist/internal/backend"
	"finassist/internal/cli"
	"finassist/internal/config"
	applog "finassist/internal/log"
	"finassist/internal/services"
)

// app carries state shared by the subcommands. The backend is opened on
// first use so that migrate commands never run the automatic migration.
type app struct {
	cfg    *config.Config
	logger *applog.Logger
	out    io.Writer
	errOut io.Writer

	backend   *backend.BackendResult
	publisher *amqp.Client
	service   *services.ReportService
}

func newRootCmd(out, errOut io.Writer) (*cobra.Command, *app) {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "reportctl",
		Short:         "Administer finassist financial reports",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.AddCommand(
		newMigrateCmd(a),
		newReportCmd(a),
		newImportCmd(a),
	)
	return root, a
}

func (a *app) init() error {
	cli.LoadEnvFile()
	cfg, err := cli.LoadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = cli.SetupLoggerTo(cfg, applog.ComponentCLI, a.errOut)
	return nil
}

func (a *app) openBackend(ctx context.Context) (*backend.BackendResult, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	bc, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(a.logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, err
	}
	a.backend = res
	return res, nil
}

// reportService wires the materializer; report events are published when
// AMQP is configured so that workers see CLI generated reports too.
func (a *app) reportService(ctx context.Context) (*services.ReportService, error) {
	if a.service != nil {
		return a.service, nil
	}
	res, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}

	opts := []services.MaterializerOption{services.WithLogger(a.logger.WithComponent(applog.ComponentReport))}
	if a.cfg.AMQPEnabled() {
		client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue, a.logger.WithComponent(applog.ComponentAMQP))
		if err != nil {
			a.logger.Warn("AMQP unavailable, report events will not be published", applog.FieldError, err.Error())
		} else {
			a.publisher = client
			opts = append(opts, services.WithPublisher(client))
		}
	}

	m := services.NewMaterializer(res.Reports, services.NewEngine(res.Records), opts...)
	a.service = services.NewReportService(m, res.Reports)
	return a.service, nil
}

func (a *app) close() error {
	if a.publisher != nil {
		a.publisher.Close()
		a.publisher = nil
	}
	if a.backend != nil {
		err := a.backend.Close()
		a.backend = nil
		return err
	}
	return nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
