package services

import (
	"context"
	"errors"
	"fmt"

	"finassist/internal/core"
	"finassist/internal/ports"
)

// ReportService exposes report operations to the HTTP API and the CLI.
type ReportService struct {
	materializer *Materializer
	reader       ports.ReportReader
}

func NewReportService(materializer *Materializer, reader ports.ReportReader) *ReportService {
	return &ReportService{
		materializer: materializer,
		reader:       reader,
	}
}

// GetMonthlyReport returns the report for a "YYYY-MM" month.
func (s *ReportService) GetMonthlyReport(ctx context.Context, owner, month string) (core.Report, error) {
	if err := core.ValidateOwner(owner); err != nil {
		return core.Report{}, err
	}
	p, err := ResolveMonthly(month)
	if err != nil {
		return core.Report{}, err
	}
	return s.materializer.GetOrCreate(ctx, owner, p)
}

// GetAnnualReport returns the report for a calendar year.
func (s *ReportService) GetAnnualReport(ctx context.Context, owner string, year int) (core.Report, error) {
	if err := core.ValidateOwner(owner); err != nil {
		return core.Report{}, err
	}
	p, err := ResolveAnnual(year)
	if err != nil {
		return core.Report{}, err
	}
	return s.materializer.GetOrCreate(ctx, owner, p)
}

// GetCustomReport returns the report for an inclusive date range.
func (s *ReportService) GetCustomReport(ctx context.Context, owner string, start, end core.Date) (core.Report, error) {
	if err := core.ValidateOwner(owner); err != nil {
		return core.Report{}, err
	}
	p, err := ResolveCustom(start, end)
	if err != nil {
		return core.Report{}, err
	}
	return s.materializer.GetOrCreate(ctx, owner, p)
}

func (s *ReportService) DeleteReport(ctx context.Context, owner string, id int64) error {
	if err := core.ValidateOwner(owner); err != nil {
		return err
	}
	return s.materializer.Delete(ctx, owner, id)
}

func (s *ReportService) GetReport(ctx context.Context, owner string, id int64) (core.Report, error) {
	if err := core.ValidateOwner(owner); err != nil {
		return core.Report{}, err
	}
	r, err := s.reader.GetReport(ctx, owner, id)
	if err != nil {
		return core.Report{}, wrapReadErr(err, "get report %d", id)
	}
	return r, nil
}

// ListReports returns every report of the owner, newest first.
func (s *ReportService) ListReports(ctx context.Context, owner string) ([]core.Report, error) {
	if err := core.ValidateOwner(owner); err != nil {
		return nil, err
	}
	reports, err := s.reader.ListReports(ctx, owner)
	if err != nil {
		return nil, wrapReadErr(err, "list reports")
	}
	return reports, nil
}

// GetReportDetails returns the per-category rows of one of the owner's reports.
func (s *ReportService) GetReportDetails(ctx context.Context, owner string, id int64) ([]core.ReportDetail, error) {
	if _, err := s.GetReport(ctx, owner, id); err != nil {
		return nil, err
	}
	details, err := s.reader.ListReportDetails(ctx, id)
	if err != nil {
		return nil, wrapReadErr(err, "list details of report %d", id)
	}
	return details, nil
}

func wrapReadErr(err error, format string, args ...any) error {
	if errors.Is(err, core.ErrReportNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", core.ErrSourceUnavailable, fmt.Sprintf(format, args...), err)
}
