package storage_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finassist/internal/core"
	applog "finassist/internal/log"
	"finassist/internal/services"
	"finassist/internal/storage"
)

func openSQLite(t *testing.T) *storage.SQLRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	repo.SetLogger(applog.Discard())
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seed(t *testing.T, repo *storage.SQLRepository) {
	t.Helper()
	money := func(s string) core.Money {
		m, err := core.ParseMoney(s)
		require.NoError(t, err)
		return m
	}
	err := repo.ImportRecords(context.Background(), core.Records{
		Incomes: []core.Income{
			{Owner: "u1", Amount: money("1000.00"), Date: core.NewDate(2024, 1, 5)},
			{Owner: "u1", Amount: money("999.00"), Date: core.NewDate(2024, 2, 1)},
		},
		Expenses: []core.Expense{
			{Owner: "u1", Amount: money("200.00"), Date: core.NewDate(2024, 1, 5), Category: "Food"},
			{Owner: "u1", Amount: money("300.00"), Date: core.NewDate(2024, 1, 20), Category: "Food"},
			{Owner: "u1", Amount: money("100.00"), Date: core.NewDate(2024, 1, 10), Category: "Transport"},
			{Owner: "u2", Amount: money("50.00"), Date: core.NewDate(2024, 1, 10), Category: "Food"},
		},
		Bills: []core.Bill{
			{Owner: "u1", Amount: money("50.00"), DueDate: core.NewDate(2024, 1, 15), IsPaid: true},
			{Owner: "u1", Amount: money("70.00"), DueDate: core.NewDate(2024, 1, 16), IsPaid: false},
		},
	})
	require.NoError(t, err)
}

func newMaterializer(repo *storage.SQLRepository) *services.Materializer {
	return services.NewMaterializer(repo, services.NewEngine(repo),
		services.WithLogger(applog.Discard()),
		services.WithClock(func() time.Time { return time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC) }),
	)
}

func TestSQLite_MonthlyReportRoundTrip(t *testing.T) {
	repo := openSQLite(t)
	seed(t, repo)
	ctx := context.Background()

	p, err := services.ResolveMonthly("2024-01")
	require.NoError(t, err)

	rep, err := newMaterializer(repo).GetOrCreate(ctx, "u1", p)
	require.NoError(t, err)

	assert.NotZero(t, rep.ID)
	assert.Equal(t, int64(100000), rep.TotalIncome.Cents)
	assert.Equal(t, int64(65000), rep.TotalExpense.Cents)
	assert.Equal(t, int64(35000), rep.Balance.Cents)

	stored, err := repo.GetReport(ctx, "u1", rep.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.CategorySummary, stored.CategorySummary)
	assert.Equal(t, rep.MonthlyTrend, stored.MonthlyTrend)
	assert.True(t, rep.GeneratedAt.Equal(stored.GeneratedAt))
	assert.Equal(t, "2024-01-01", stored.StartDate.String())

	details, err := repo.ListReportDetails(ctx, rep.ID)
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, "Food", details[0].Category)
	assert.Equal(t, 2, details[0].TransactionCount)
	assert.Equal(t, int64(25000), details[0].AverageAmount.Cents)
	assert.Equal(t, "76.92", details[0].PercentageOfTotal.String())
	assert.Equal(t, int64(30000), details[0].DailyDistribution["2024-01-20"].Cents)

	again, err := newMaterializer(repo).GetOrCreate(ctx, "u1", p)
	require.NoError(t, err)
	assert.Equal(t, rep.ID, again.ID)
}

func TestSQLite_ConcurrentRequestsShareOneReport(t *testing.T) {
	repo := openSQLite(t)
	seed(t, repo)
	ctx := context.Background()

	p, err := services.ResolveAnnual(2024)
	require.NoError(t, err)
	m := newMaterializer(repo)

	const callers = 4
	ids := make([]int64, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rep, err := m.GetOrCreate(ctx, "u1", p)
			ids[i], errs[i] = rep.ID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	reports, err := repo.ListReports(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestSQLite_DeleteReportRemovesDetails(t *testing.T) {
	repo := openSQLite(t)
	seed(t, repo)
	ctx := context.Background()

	p, err := services.ResolveMonthly("2024-01")
	require.NoError(t, err)
	m := newMaterializer(repo)
	rep, err := m.GetOrCreate(ctx, "u1", p)
	require.NoError(t, err)

	assert.ErrorIs(t, repo.DeleteReport(ctx, "u2", rep.ID), core.ErrReportNotFound)
	require.NoError(t, m.Delete(ctx, "u1", rep.ID))

	details, err := repo.ListReportDetails(ctx, rep.ID)
	require.NoError(t, err)
	assert.Empty(t, details)
	_, err = repo.FindReport(ctx, "u1", core.ReportMonthly, "2024-01")
	assert.ErrorIs(t, err, core.ErrReportNotFound)
}

func TestSQLite_Notifications(t *testing.T) {
	repo := openSQLite(t)
	ctx := context.Background()

	id, err := repo.CreateNotification(ctx, core.Notification{
		Owner:         "u1",
		Title:         "Report ready",
		Message:       "Monthly Report - 2024-01 is ready",
		Type:          core.NotificationTypeReport,
		ReferenceID:   12,
		ReferenceType: core.ReferenceTypeReport,
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	got, err := repo.ListNotifications(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(12), got[0].ReferenceID)
	assert.False(t, got[0].IsRead)

	_, err = repo.CreateNotification(ctx, core.Notification{Title: "orphan"})
	assert.ErrorIs(t, err, core.ErrEmptyOwner)
}

func TestSQLite_MigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.db")
	repo, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	repo.Close()

	version, dirty, err := storage.MigrationVersion(storage.DialectSQLite, storage.SQLiteDSN(path))
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}
