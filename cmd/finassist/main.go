package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"finassist/internal/amqp"
	"finassist/internal/backend"
	"finassist/internal/cache"
	"finassist/internal/cli"
	apphttp "finassist/internal/http"
	applog "finassist/internal/log"
	"finassist/internal/ports"
	"finassist/internal/services"
	"finassist/internal/worker"
)

const (
	reportCacheSize  = 500
	reportCacheTTL   = 30 * time.Minute
	shutdownTimeout  = 30 * time.Second
	resubscribeDelay = 5 * time.Second
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentApp)
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}
	defer res.Close()

	cached := cache.NewReportStore(res.Reports, reportCacheSize, reportCacheTTL)
	cacheManager := cache.NewManager(logger.WithComponent(applog.ComponentStorage))
	cached.Register(cacheManager)
	cacheManager.StartCleanup(10 * time.Minute)
	defer cacheManager.Stop()

	opts := []services.MaterializerOption{
		services.WithLogger(logger.WithComponent(applog.ComponentReport)),
	}
	var client *amqp.Client
	if cfg.AMQPEnabled() {
		client, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(applog.ComponentAMQP))
		if err != nil {
			// Events are best effort; the API keeps serving without them.
			logger.Warn("Failed to initialize AMQP client, continuing without report events", applog.FieldError, err.Error())
		} else {
			defer client.Close()
			opts = append(opts, services.WithPublisher(client))
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	// A store shared with other instances can lose reports to their
	// deletions; the cache is only safe while it hears about them.
	var reports ports.ReportStore = cached
	switch {
	case backendCfg.Type == backend.MemoryBackend:
	case client != nil:
		invalidator := worker.NewCacheInvalidator(cached, logger)
		go subscribeDeletions(ctx, client, cached, invalidator, logger)
	default:
		reports = res.Reports
		logger.Warn("Report cache disabled: shared store without report event feed", "backend", cfg.DataBackend)
	}

	materializer := services.NewMaterializer(reports, services.NewEngine(res.Records), opts...)
	svc := services.NewReportService(materializer, reports)

	ready := map[string]apphttp.ReadinessCheck{}
	if res.Ping != nil {
		ready["store"] = res.Ping
	}
	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RequestTimeout:     cfg.RequestTimeout,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
		Ready:              ready,
	}, svc)

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err.Error())
		}
	}()

	logger.Info("Starting finassist server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", cfg.AMQPEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}

	hits, misses := cached.Stats()
	logger.Info("Server stopped gracefully", "cache_hits", hits, "cache_misses", misses)
}

// subscribeDeletions feeds report.deleted events into the cache until ctx
// is done. Each (re)subscription purges the cache, since events published
// while disconnected are lost.
func subscribeDeletions(ctx context.Context, client *amqp.Client, cached *cache.ReportStore, inv *worker.CacheInvalidator, logger *applog.Logger) {
	ready := func() {
		if n := cached.Purge(); n > 0 {
			logger.Info("Purged report cache after subscribing", "entries", n)
		}
	}
	for {
		err := client.SubscribeReportEvents(ctx, ready, inv.HandleEvent)
		if ctx.Err() != nil {
			return
		}
		cached.Purge()
		logger.Error("Report event subscription stopped, retrying",
			applog.FieldOperation, applog.OpConsume,
			applog.FieldError, err.Error(),
			"retry_in", resubscribeDelay.String())
		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeDelay):
		}
	}
}
