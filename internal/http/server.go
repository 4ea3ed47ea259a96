// Package http exposes the report service over a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"finassist/internal/core"
	applog "finassist/internal/log"
	"finassist/internal/middleware/ratelimit"
	"finassist/internal/middleware/security"
	"finassist/internal/middleware/trace"
)

// OwnerHeader carries the authenticated owner id, set by the auth proxy.
const OwnerHeader = "X-User-ID"

// ReportAPI is the set of report operations served over HTTP.
type ReportAPI interface {
	GetMonthlyReport(ctx context.Context, owner, month string) (core.Report, error)
	GetAnnualReport(ctx context.Context, owner string, year int) (core.Report, error)
	GetCustomReport(ctx context.Context, owner string, start, end core.Date) (core.Report, error)
	DeleteReport(ctx context.Context, owner string, id int64) error
	GetReport(ctx context.Context, owner string, id int64) (core.Report, error)
	ListReports(ctx context.Context, owner string) ([]core.Report, error)
	GetReportDetails(ctx context.Context, owner string, id int64) ([]core.ReportDetail, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Config struct {
	Addr               string
	RequestTimeout     time.Duration
	RateLimitPerMinute int
	Logger             *applog.Logger
	// Ready checks run on /readyz; any failure answers 503.
	Ready map[string]ReadinessCheck
}

type Server struct {
	http.Server
	reports ReportAPI
	logger  *applog.Logger
	ready   map[string]ReadinessCheck

	tracer       *trace.Middleware
	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, reports ReportAPI) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	s := &Server{
		reports: reports,
		logger:  logger,
		ready:   cfg.Ready,
		tracer:  trace.NewMiddleware(logger, trace.ClientIP),
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
	}

	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api/v1/reports", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(requireOwner)

		r.Get("/", s.handleListReports)
		r.Get("/{id}", s.handleGetReport)
		r.Get("/{id}/details", s.handleGetReportDetails)
		r.Delete("/{id}", s.handleDeleteReport)

		// Generation may run the aggregation, so it is throttled per owner.
		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware(ownerKey, s.onRateLimit))
			r.Get("/monthly/{period}", s.handleMonthlyReport)
			r.Get("/annual/{year}", s.handleAnnualReport)
			r.Get("/custom", s.handleCustomReport)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// Slightly above the per-request timeout so the handler can answer.
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		m := s.tracer.GetMetrics()
		s.logger.InfoContext(ctx, "HTTP server shutting down",
			applog.FieldOperation, applog.OpShutdown,
			"total_requests", m.TotalRequests,
			"server_errors", m.ServerErrors,
			"rate_limited", s.limiter.GetMetrics().Rejected)
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldOwner, ownerFrom(r.Context()),
		applog.FieldPath, r.URL.Path)
	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.ready))
	status := http.StatusOK
	for name, check := range s.ready {
		if err := check(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "check", name, applog.FieldError, err.Error())
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{"status": "ready", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "not ready"
	}
	writeJSON(w, status, body)
}
