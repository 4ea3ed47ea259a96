package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"finassist/internal/core"
	applog "finassist/internal/log"
	"finassist/internal/services"
)

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.reports.GetMonthlyReport(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "period"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAnnualReport(w http.ResponseWriter, r *http.Request) {
	year, err := services.ParseYear(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	report, err := s.reports.GetAnnualReport(r.Context(), ownerFrom(r.Context()), year)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCustomReport(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseCustomRange(r)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	report, err := s.reports.GetCustomReport(r.Context(), ownerFrom(r.Context()), start, end)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.reports.ListReports(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	if reports == nil {
		reports = []core.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, err := parseReportID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.reports.GetReport(r.Context(), ownerFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetReportDetails(w http.ResponseWriter, r *http.Request) {
	id, err := parseReportID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	details, err := s.reports.GetReportDetails(r.Context(), ownerFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, applog.OpRead, err)
		return
	}
	if details == nil {
		details = []core.ReportDetail{}
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id, err := parseReportID(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.reports.DeleteReport(r.Context(), ownerFrom(r.Context()), id); err != nil {
		writeError(w, r, applog.OpDelete, fmt.Errorf("delete report %d: %w", id, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
