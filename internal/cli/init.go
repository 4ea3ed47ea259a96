// Package cli holds the start-up steps shared by cmd/finassist,
// cmd/report-worker and cmd/reportctl.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"finassist/internal/config"
	applog "finassist/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// A missing file is ignored since production sets real variables.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig loads and validates configuration.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	return SetupLoggerTo(cfg, component, os.Stdout)
}

// SetupLoggerTo is SetupLogger writing to w; reportctl logs to stderr so
// stdout carries only command output.
func SetupLoggerTo(cfg *config.Config, component string, w io.Writer) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Component = component
	lc.Output = w
	if cfg != nil {
		if level, err := applog.ParseLevel(cfg.LogLevel); err == nil {
			lc.Level = level
		}
		if strings.TrimSpace(cfg.LogFormat) != "" {
			lc.Format = cfg.LogFormat
		}
	}
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// Bootstrap loads .env, config and the logger, exiting on invalid config.
func Bootstrap(component string) (*config.Config, *applog.Logger) {
	LoadEnvFile()
	cfg, err := LoadConfig()
	if err != nil {
		logger := SetupLogger(nil, component)
		logger.Error("Configuration validation failed",
			applog.FieldOperation, applog.OpStartup,
			applog.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg, SetupLogger(cfg, component)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Fatal logs err and exits with status 1.
func Fatal(logger *applog.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append([]any{applog.FieldError, fmt.Sprint(err)}, args...)...)
	os.Exit(1)
}
