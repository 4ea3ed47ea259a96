package cli

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"finassist/internal/config"
	applog "finassist/internal/log"
)

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"}, applog.ComponentWorker)
	t.Cleanup(func() { applog.SetDefault(applog.New(applog.DefaultConfig())) })

	assert.Equal(t, applog.ComponentWorker, logger.Component())
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestSetupLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	logger := SetupLogger(&config.Config{LogLevel: "loud"}, applog.ComponentApp)
	t.Cleanup(func() { applog.SetDefault(applog.New(applog.DefaultConfig())) })

	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
}

func TestLoadConfig_ValidationError(t *testing.T) {
	t.Setenv("DATA_BACKEND", "sheets")

	_, err := LoadConfig()

	assert.ErrorContains(t, err, "invalid data backend")
}
