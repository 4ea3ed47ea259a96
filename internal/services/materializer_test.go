package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finassist/internal/core"
	applog "finassist/internal/log"
	"finassist/internal/ports"
	"finassist/internal/storage/memory"
)

func euros(t *testing.T, s string) core.Money {
	t.Helper()
	m, err := core.ParseMoney(s)
	require.NoError(t, err)
	return m
}

// countingSource records how often each record kind is read.
type countingSource struct {
	ports.RecordSource
	calls atomic.Int32
	err   error
}

func (c *countingSource) ListIncomes(ctx context.Context, owner string, w core.Window) ([]core.Income, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.RecordSource.ListIncomes(ctx, owner, w)
}

// failingDetailsStore accepts the report row and rejects its details.
type failingDetailsStore struct {
	ports.ReportStore
}

func (s failingDetailsStore) WithinTx(ctx context.Context, fn func(ports.ReportWriter) error) error {
	return s.ReportStore.WithinTx(ctx, func(w ports.ReportWriter) error {
		return fn(failingDetailsWriter{w})
	})
}

type failingDetailsWriter struct {
	ports.ReportWriter
}

func (failingDetailsWriter) InsertReportDetails(context.Context, []core.ReportDetail) error {
	return errors.New("detail table unavailable")
}

// racingStore simulates another writer committing between FindReport and
// InsertReport.
type racingStore struct {
	ports.ReportStore
	once sync.Once
	race func()
}

func (s *racingStore) WithinTx(ctx context.Context, fn func(ports.ReportWriter) error) error {
	s.once.Do(s.race)
	return s.ReportStore.WithinTx(ctx, fn)
}

type recordingPublisher struct {
	mu        sync.Mutex
	generated []int64
	deleted   []int64
	err       error
}

func (p *recordingPublisher) PublishReportGenerated(_ context.Context, r core.Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generated = append(p.generated, r.ID)
	return p.err
}

func (p *recordingPublisher) PublishReportDeleted(_ context.Context, _ string, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, id)
	return p.err
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2024, 2, 1, 12, 0, 0, 123456789, time.UTC) }
}

func januaryRecords(t *testing.T) core.Records {
	return core.Records{
		Incomes: []core.Income{{Owner: "u1", Amount: euros(t, "500"), Date: core.NewDate(2024, 1, 2)}},
		Expenses: []core.Expense{
			{Owner: "u1", Amount: euros(t, "100"), Date: core.NewDate(2024, 1, 3), Category: "Food"},
			{Owner: "u1", Amount: euros(t, "50"), Date: core.NewDate(2024, 1, 4), Category: "Food"},
			{Owner: "u1", Amount: euros(t, "30"), Date: core.NewDate(2024, 1, 5), Category: "Transport"},
		},
	}
}

func TestMaterializer_ComputesTotalsAndDetails(t *testing.T) {
	store := memory.New(januaryRecords(t))
	m := NewMaterializer(store, NewEngine(store), WithLogger(applog.Discard()), WithClock(fixedClock()))
	p, err := ResolveMonthly("2024-01")
	require.NoError(t, err)

	rep, err := m.GetOrCreate(context.Background(), "u1", p)
	require.NoError(t, err)

	assert.Equal(t, "500.00", rep.TotalIncome.String())
	assert.Equal(t, "180.00", rep.TotalExpense.String())
	assert.Equal(t, "320.00", rep.Balance.String())
	assert.Equal(t, map[string]core.Money{"Food": euros(t, "150"), "Transport": euros(t, "30")}, rep.CategorySummary)
	assert.Equal(t, "Monthly Report - 2024-01", rep.Title)

	details, err := store.ListReportDetails(context.Background(), rep.ID)
	require.NoError(t, err)
	require.Len(t, details, 2)
	food := details[0]
	assert.Equal(t, "Food", food.Category)
	assert.Equal(t, 2, food.TransactionCount)
	assert.Equal(t, "75.00", food.AverageAmount.String())
	assert.Equal(t, "83.33", food.PercentageOfTotal.String())
	assert.Equal(t, rep.ID, food.ReportID)
}

func TestMaterializer_SecondRequestReturnsStoredSnapshot(t *testing.T) {
	store := memory.New(januaryRecords(t))
	source := &countingSource{RecordSource: store}

	var tick atomic.Int64
	clock := func() time.Time {
		return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(tick.Add(1)) * time.Minute)
	}
	m := NewMaterializer(store, NewEngine(source), WithLogger(applog.Discard()), WithClock(clock))
	p, err := ResolveMonthly("2024-01")
	require.NoError(t, err)

	first, err := m.GetOrCreate(context.Background(), "u1", p)
	require.NoError(t, err)

	// New records after generation must not change the stored snapshot.
	store.AddRecords(core.Records{Incomes: []core.Income{{Owner: "u1", Amount: euros(t, "1"), Date: core.NewDate(2024, 1, 9)}}})

	second, err := m.GetOrCreate(context.Background(), "u1", p)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.GeneratedAt.Equal(second.GeneratedAt))
	assert.Equal(t, first.TotalIncome, second.TotalIncome)
	assert.Equal(t, int32(1), source.calls.Load(), "stored report must not be recomputed")
}

func TestMaterializer_OnlyPaidBillsAndInvoicesCount(t *testing.T) {
	store := memory.New(core.Records{
		Bills:    []core.Bill{{Owner: "u1", Amount: euros(t, "200"), DueDate: core.NewDate(2024, 1, 10), IsPaid: true}},
		Invoices: []core.Invoice{{Owner: "u1", Amount: euros(t, "300"), DueDate: core.NewDate(2024, 1, 11), IsPaid: false}},
	})
	m := NewMaterializer(store, NewEngine(store), WithLogger(applog.Discard()))
	p, err := ResolveMonthly("2024-01")
	require.NoError(t, err)

	rep, err := m.GetOrCreate(context.Background(), "u1", p)
	require.NoError(t, err)

	assert.Equal(t, "200.00", rep.TotalExpense.String())
	assert.Equal(t, "-200.00", rep.Balance.String())
	assert.Empty(t, rep.CategorySummary)
}

func TestMaterializer_ConcurrentFirstRequestsShareOneReport(t *testing.T) {
	store := memory.New(januaryRecords(t))
	m := NewMaterializer(store, NewEngine(store), WithLogger(applog.Discard()))
	p, err := ResolveMonthly("2024-01")
	require.NoError(t, err)

	const callers = 8
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		ids   = make([]int64, callers)
		errs  = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			rep, err := m.GetOrCreate(context.Background(), "u1", p)
			ids[i], errs[i] = rep.ID, err
		}(i)
	}
	close(start)
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	reports, err := store.ListReports(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestMaterializer_LostRaceReturnsWinner(t *testing.T) {
	store := memory.New(januaryRecords(t))
	p, err := ResolveMonthly("2024-01")
	require.NoError(t, err)

	var winnerID int64
	racing := &racingStore{ReportStore: store}
	racing.race = func() {
		winner := NewMaterializer(store, NewEngine(store), WithLogger(applog.Discard()))
		rep, err := winner.GetOrCreate(context.Background(), "u1", p)
		require.NoError(t, err)
		winnerID = rep.ID
	}

	pub := &recordingPublisher{}
	m := NewMaterializer(racing, NewEngine(store), WithLogger(applog.Discard()), WithPublisher(pub))
	rep, err := m.GetOrCreate(context.Background(), "u1", p)

	require.NoError(t, err)
	assert.Equal(t, winnerID, rep.ID)
	assert.Empty(t, pub.generated, "the loser must not announce a report it did not create")
}

func TestMaterializer_DetailFailureIsInconsistentWrite(t *testing.T) {
	store := memory.New(januaryRecords(t))
	m := NewMaterializer(failingDetailsStore{store}, NewEngine(store), WithLogger(applog.Discard()))
	p, err := ResolveMonthly("2024-01")
	require.NoError(t, err)

	_, err = m.GetOrCreate(context.Background(), "u1", p)

	assert.ErrorIs(t, err, core.ErrInconsistentWrite)
	_, findErr := store.FindReport(context.Background(), "u1", core.ReportMonthly, "2024-01")
	assert.ErrorIs(t, findErr, core.ErrReportNotFound, "report row must be rolled back")
}

func TestMaterializer_SourceFailure(t *testing.T) {
	store := memory.New(januaryRecords(t))
	source := &countingSource{RecordSource: store, err: errors.New("connection refused")}
	m := NewMaterializer(store, NewEngine(source), WithLogger(applog.Discard()))
	p, err := ResolveMonthly("2024-01")
	require.NoError(t, err)

	_, err = m.GetOrCreate(context.Background(), "u1", p)

	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
	reports, _ := store.ListReports(context.Background(), "u1")
	assert.Empty(t, reports)
}

func TestMaterializer_PublishFailureDoesNotFailRequest(t *testing.T) {
	store := memory.New(januaryRecords(t))
	pub := &recordingPublisher{err: errors.New("broker down")}
	m := NewMaterializer(store, NewEngine(store), WithLogger(applog.Discard()), WithPublisher(pub))
	p, err := ResolveMonthly("2024-01")
	require.NoError(t, err)

	rep, err := m.GetOrCreate(context.Background(), "u1", p)
	require.NoError(t, err)
	assert.Equal(t, []int64{rep.ID}, pub.generated)

	require.NoError(t, m.Delete(context.Background(), "u1", rep.ID))
	assert.Equal(t, []int64{rep.ID}, pub.deleted)

	assert.ErrorIs(t, m.Delete(context.Background(), "u1", rep.ID), core.ErrReportNotFound)
}

func TestMaterializer_GeneratedAtIsUTCMicroseconds(t *testing.T) {
	store := memory.New(januaryRecords(t))
	m := NewMaterializer(store, NewEngine(store), WithLogger(applog.Discard()), WithClock(fixedClock()))
	p, err := ResolveAnnual(2024)
	require.NoError(t, err)

	rep, err := m.GetOrCreate(context.Background(), "u1", p)
	require.NoError(t, err)

	assert.Equal(t, time.UTC, rep.GeneratedAt.Location())
	assert.Equal(t, 123456000, rep.GeneratedAt.Nanosecond())
}
