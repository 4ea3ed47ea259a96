package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finassist/internal/core"
	applog "finassist/internal/log"
	"finassist/internal/storage/memory"
)

func newTestReportService(t *testing.T, rec core.Records) (*ReportService, *memory.Store) {
	t.Helper()
	store := memory.New(rec)
	m := NewMaterializer(store, NewEngine(store), WithLogger(applog.Discard()))
	return NewReportService(m, store), store
}

func TestReportService_InvalidRangeFetchesNothing(t *testing.T) {
	store := memory.New(januaryRecords(t))
	source := &countingSource{RecordSource: store}
	svc := NewReportService(NewMaterializer(store, NewEngine(source), WithLogger(applog.Discard())), store)

	_, err := svc.GetCustomReport(context.Background(), "u1", core.NewDate(2024, 1, 31), core.NewDate(2024, 1, 1))

	assert.ErrorIs(t, err, core.ErrInvalidRange)
	assert.Zero(t, source.calls.Load())
	reports, _ := store.ListReports(context.Background(), "u1")
	assert.Empty(t, reports)
}

func TestReportService_RejectsBlankOwner(t *testing.T) {
	svc, _ := newTestReportService(t, core.Records{})
	ctx := context.Background()

	_, err := svc.GetMonthlyReport(ctx, " ", "2024-01")
	assert.ErrorIs(t, err, core.ErrEmptyOwner)
	_, err = svc.GetAnnualReport(ctx, "", 2024)
	assert.ErrorIs(t, err, core.ErrEmptyOwner)
	_, err = svc.ListReports(ctx, "")
	assert.ErrorIs(t, err, core.ErrEmptyOwner)
	assert.ErrorIs(t, svc.DeleteReport(ctx, "", 1), core.ErrEmptyOwner)
}

func TestReportService_OwnersAreIsolated(t *testing.T) {
	svc, _ := newTestReportService(t, januaryRecords(t))
	ctx := context.Background()

	rep, err := svc.GetMonthlyReport(ctx, "u1", "2024-01")
	require.NoError(t, err)

	_, err = svc.GetReport(ctx, "u2", rep.ID)
	assert.ErrorIs(t, err, core.ErrReportNotFound)
	_, err = svc.GetReportDetails(ctx, "u2", rep.ID)
	assert.ErrorIs(t, err, core.ErrReportNotFound)
	assert.ErrorIs(t, svc.DeleteReport(ctx, "u2", rep.ID), core.ErrReportNotFound)

	other, err := svc.GetMonthlyReport(ctx, "u2", "2024-01")
	require.NoError(t, err)
	assert.NotEqual(t, rep.ID, other.ID)
	assert.Zero(t, other.TotalIncome.Cents)
}

func TestReportService_ListAndDetails(t *testing.T) {
	svc, _ := newTestReportService(t, januaryRecords(t))
	ctx := context.Background()

	monthly, err := svc.GetMonthlyReport(ctx, "u1", "2024-01")
	require.NoError(t, err)
	annual, err := svc.GetAnnualReport(ctx, "u1", 2024)
	require.NoError(t, err)
	custom, err := svc.GetCustomReport(ctx, "u1", core.NewDate(2024, 1, 3), core.NewDate(2024, 1, 4))
	require.NoError(t, err)
	assert.Equal(t, "150.00", custom.TotalExpense.String())

	list, err := svc.ListReports(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 3)

	details, err := svc.GetReportDetails(ctx, "u1", annual.ID)
	require.NoError(t, err)
	assert.Len(t, details, 2)

	require.NoError(t, svc.DeleteReport(ctx, "u1", monthly.ID))
	_, err = svc.GetReport(ctx, "u1", monthly.ID)
	assert.ErrorIs(t, err, core.ErrReportNotFound)
}

func TestReportService_InvalidPeriods(t *testing.T) {
	svc, _ := newTestReportService(t, core.Records{})
	ctx := context.Background()

	_, err := svc.GetMonthlyReport(ctx, "u1", "2024-00")
	assert.True(t, errors.Is(err, core.ErrInvalidPeriod))
	_, err = svc.GetAnnualReport(ctx, "u1", 0)
	assert.True(t, errors.Is(err, core.ErrInvalidPeriod))
}
