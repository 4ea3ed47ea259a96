package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"finassist/internal/core"
	applog "finassist/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrEmptyOwner):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrInvalidPeriod), errors.Is(err, core.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrReportNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the mapped status. Client errors echo the
// message; server errors are logged and answered generically.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		writeJSONError(w, status, err.Error())
		return
	}

	applog.FromContext(r.Context()).ErrorContext(r.Context(), "Report request failed",
		applog.NewFields().WithOperation(op).WithError(err).ToSlice()...)
	msg := "internal server error"
	if status == http.StatusGatewayTimeout {
		msg = "request timed out"
	}
	writeJSONError(w, status, msg)
}
