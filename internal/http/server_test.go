package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finassist/internal/core"
	applog "finassist/internal/log"
	"finassist/internal/services"
	"finassist/internal/storage/memory"
)

func testRecords() core.Records {
	return core.Records{
		Incomes: []core.Income{{Owner: "u1", Amount: core.Money{Cents: 50000}, Date: core.NewDate(2024, 1, 2)}},
		Expenses: []core.Expense{
			{Owner: "u1", Amount: core.Money{Cents: 10000}, Date: core.NewDate(2024, 1, 3), Category: "Food"},
			{Owner: "u1", Amount: core.Money{Cents: 5000}, Date: core.NewDate(2024, 1, 4), Category: "Food"},
			{Owner: "u1", Amount: core.Money{Cents: 3000}, Date: core.NewDate(2024, 1, 5), Category: "Transport"},
		},
	}
}

func newTestServer(t *testing.T, cfg Config) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New(testRecords())
	m := services.NewMaterializer(store, services.NewEngine(store), services.WithLogger(applog.Discard()))
	if cfg.Logger == nil {
		cfg.Logger = applog.Discard()
	}
	srv := NewServer(cfg, services.NewReportService(m, store))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, path, owner string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, Config{Ready: map[string]ReadinessCheck{
		"store": func(context.Context) error { return nil },
	}})

	rr := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"store":"ok"`)
}

func TestReady_FailingCheck(t *testing.T) {
	srv, _ := newTestServer(t, Config{Ready: map[string]ReadinessCheck{
		"store": func(context.Context) error { return errors.New("database is locked") },
	}})

	rr := do(t, srv, http.MethodGet, "/readyz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"store":"unavailable"`)
	assert.NotContains(t, rr.Body.String(), "locked")
}

func TestMonthlyReport_GeneratesOnceAndServesDetails(t *testing.T) {
	srv, store := newTestServer(t, Config{})

	rr := do(t, srv, http.MethodGet, "/api/v1/reports/monthly/2024-01", "u1")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	first := decode[core.Report](t, rr)
	assert.Equal(t, core.Money{Cents: 50000}, first.TotalIncome)
	assert.Equal(t, core.Money{Cents: 18000}, first.TotalExpense)
	assert.Equal(t, core.Money{Cents: 32000}, first.Balance)
	assert.Equal(t, "2024-01", first.Period)

	again := decode[core.Report](t, do(t, srv, http.MethodGet, "/api/v1/reports/monthly/2024-01", "u1"))
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, first.GeneratedAt.Equal(again.GeneratedAt))
	assert.Equal(t, 2, store.DetailCount())

	rr = do(t, srv, http.MethodGet, "/api/v1/reports/"+itoa(first.ID)+"/details", "u1")
	require.Equal(t, http.StatusOK, rr.Code)
	details := decode[[]core.ReportDetail](t, rr)
	require.Len(t, details, 2)
	assert.Equal(t, "Food", details[0].Category)
}

func TestAnnualAndCustomReports(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rr := do(t, srv, http.MethodGet, "/api/v1/reports/annual/2024", "u1")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	annual := decode[core.Report](t, rr)
	assert.Equal(t, core.ReportAnnual, annual.Type)
	assert.Equal(t, "2024", annual.Period)

	rr = do(t, srv, http.MethodGet, "/api/v1/reports/custom?startDate=2024-01-01&endDate=2024-01-03", "u1")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	custom := decode[core.Report](t, rr)
	assert.Equal(t, core.ReportCustom, custom.Type)
	assert.Equal(t, core.Money{Cents: 10000}, custom.TotalExpense)
}

func TestInvalidInputs(t *testing.T) {
	srv, store := newTestServer(t, Config{})

	tests := []struct {
		name   string
		method string
		path   string
		owner  string
		want   int
	}{
		{"missing owner", http.MethodGet, "/api/v1/reports", "", http.StatusUnauthorized},
		{"bad month", http.MethodGet, "/api/v1/reports/monthly/2024-13", "u1", http.StatusBadRequest},
		{"bad month format", http.MethodGet, "/api/v1/reports/monthly/january", "u1", http.StatusBadRequest},
		{"bad year", http.MethodGet, "/api/v1/reports/annual/24", "u1", http.StatusBadRequest},
		{"reversed range", http.MethodGet, "/api/v1/reports/custom?startDate=2024-01-31&endDate=2024-01-01", "u1", http.StatusBadRequest},
		{"equal bounds", http.MethodGet, "/api/v1/reports/custom?startDate=2024-01-01&endDate=2024-01-01", "u1", http.StatusBadRequest},
		{"missing end", http.MethodGet, "/api/v1/reports/custom?startDate=2024-01-01", "u1", http.StatusBadRequest},
		{"malformed date", http.MethodGet, "/api/v1/reports/custom?startDate=01/01/2024&endDate=2024-02-01", "u1", http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/v1/reports/abc", "u1", http.StatusBadRequest},
		{"zero id", http.MethodDelete, "/api/v1/reports/0", "u1", http.StatusBadRequest},
		{"unknown id", http.MethodGet, "/api/v1/reports/404", "u1", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/v2/reports", "u1", http.StatusNotFound},
		{"wrong method", http.MethodPost, "/api/v1/reports/monthly/2024-01", "u1", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, tt.owner)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.Contains(t, rr.Body.String(), `"error"`)
		})
	}

	reports, err := store.ListReports(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, reports, "rejected requests must not create reports")
}

func TestListAndDeleteAreOwnerScoped(t *testing.T) {
	srv, store := newTestServer(t, Config{})

	rep := decode[core.Report](t, do(t, srv, http.MethodGet, "/api/v1/reports/monthly/2024-01", "u1"))
	do(t, srv, http.MethodGet, "/api/v1/reports/annual/2024", "u1")

	list := decode[[]core.Report](t, do(t, srv, http.MethodGet, "/api/v1/reports", "u1"))
	assert.Len(t, list, 2)

	rr := do(t, srv, http.MethodGet, "/api/v1/reports", "u2")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rr.Body.String()))

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/v1/reports/"+itoa(rep.ID), "u2").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/api/v1/reports/"+itoa(rep.ID), "u2").Code)

	rr = do(t, srv, http.MethodDelete, "/api/v1/reports/"+itoa(rep.ID), "u1")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/v1/reports/"+itoa(rep.ID), "u1").Code)

	details, err := store.ListReportDetails(context.Background(), rep.ID)
	require.NoError(t, err)
	assert.Empty(t, details)
	assert.Equal(t, 2, store.DetailCount(), "only the annual report's details remain")
}

func TestGenerationIsRateLimitedPerOwner(t *testing.T) {
	srv, _ := newTestServer(t, Config{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/v1/reports/monthly/2024-01", "u1").Code)
	}
	rr := do(t, srv, http.MethodGet, "/api/v1/reports/monthly/2024-01", "u1")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/v1/reports/monthly/2024-01", "u2").Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/v1/reports", "u1").Code, "reads are not throttled")
}

type failingReports struct {
	ReportAPI
	err   error
	panic bool
}

func (f failingReports) ListReports(context.Context, string) ([]core.Report, error) {
	if f.panic {
		panic("boom")
	}
	return nil, f.err
}

func TestServerErrorsAreNotLeaked(t *testing.T) {
	tests := []struct {
		name string
		api  failingReports
		want int
		body string
	}{
		{"source failure", failingReports{err: errors.New("dial tcp 10.0.0.5:5432: connection refused")}, http.StatusInternalServerError, "internal server error"},
		{"deadline", failingReports{err: context.DeadlineExceeded}, http.StatusGatewayTimeout, "request timed out"},
		{"panic", failingReports{panic: true}, http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(Config{Logger: applog.Discard()}, tt.api)
			defer srv.Shutdown(context.Background())

			rr := do(t, srv, http.MethodGet, "/api/v1/reports", "u1")

			assert.Equal(t, tt.want, rr.Code)
			assert.NotContains(t, rr.Body.String(), "10.0.0.5")
			if tt.body != "" {
				assert.Contains(t, rr.Body.String(), tt.body)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, statusFor(core.ErrEmptyOwner))
	assert.Equal(t, http.StatusBadRequest, statusFor(errors.Join(errors.New("x"), core.ErrInvalidPeriod)))
	assert.Equal(t, http.StatusNotFound, statusFor(core.ErrReportNotFound))
	assert.Equal(t, http.StatusInternalServerError, statusFor(core.ErrInconsistentWrite))
	assert.Equal(t, http.StatusInternalServerError, statusFor(core.ErrSourceUnavailable))
}
