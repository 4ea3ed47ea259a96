package backend

import (
	"context"
	"fmt"

	applog "finassist/internal/log"
	"finassist/internal/storage"
	"finassist/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLBackend(ctx, config.Type, func() (*storage.SQLRepository, error) {
			return storage.NewSQLiteRepository(config.SQLiteDBPath)
		}, "db_path", config.SQLiteDBPath)
	case PostgresBackend:
		return f.createSQLBackend(ctx, config.Type, func() (*storage.SQLRepository, error) {
			return storage.NewPostgresRepository(config.PostgresDSN)
		})
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLBackend(ctx context.Context, t BackendType, open func() (*storage.SQLRepository, error), logArgs ...any) (*BackendResult, error) {
	repo, err := open()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s repository: %w", t, err)
	}
	repo.SetLogger(f.logger.WithComponent(applog.ComponentStorage))

	f.logger.InfoContext(ctx, "Initialized SQL backend", append([]any{"backend", t.String()}, logArgs...)...)

	return &BackendResult{
		Records:       repo,
		Reports:       repo,
		Notifications: repo,
		Importer:      repo,
		Ping:          repo.Ping,
		Cleanup:       repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = DefaultDataDirectory
	}

	store, err := memory.NewFromFiles(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Records:       store,
		Reports:       store,
		Notifications: store,
		Importer:      store,
	}, nil
}
