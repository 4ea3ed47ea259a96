package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"finassist/internal/core"
	applog "finassist/internal/log"
)

type ownerKeyType struct{}

// requireOwner rejects requests without an owner header and stores the
// owner in the request context.
func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if owner == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing "+OwnerHeader+" header")
			return
		}
		ctx := context.WithValue(r.Context(), ownerKeyType{}, owner)
		logger := applog.FromContext(ctx).With(applog.FieldOwner, owner)
		next.ServeHTTP(w, r.WithContext(applog.NewContext(ctx, logger)))
	})
}

func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKeyType{}).(string)
	return owner
}

// ownerKey keys the rate limiter by owner.
func ownerKey(r *http.Request) string {
	return ownerFrom(r.Context())
}

func parseReportID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid report id %q", raw)
	}
	return id, nil
}

// parseCustomRange reads the startDate and endDate query parameters as
// YYYY-MM-DD dates.
func parseCustomRange(r *http.Request) (core.Date, core.Date, error) {
	q := r.URL.Query()
	rawStart := strings.TrimSpace(q.Get("startDate"))
	rawEnd := strings.TrimSpace(q.Get("endDate"))
	if rawStart == "" || rawEnd == "" {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: startDate and endDate are required", core.ErrInvalidRange)
	}
	start, err := core.ParseDate(rawStart)
	if err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: startDate: %w", core.ErrInvalidRange, err)
	}
	end, err := core.ParseDate(rawEnd)
	if err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: endDate: %w", core.ErrInvalidRange, err)
	}
	return start, end, nil
}
