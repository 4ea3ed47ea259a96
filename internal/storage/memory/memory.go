// Package memory is an in-process backend for development and tests. It
// enforces the same (owner, type, period) uniqueness as the SQL schema.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"finassist/internal/core"
	"finassist/internal/ports"
)

// SeedFile is the records file NewFromFiles looks for in its directory.
const SeedFile = "records.json"

type reportKey struct {
	owner  string
	typ    core.ReportType
	period string
}

type Store struct {
	mu sync.RWMutex

	records core.Records

	reports       map[int64]core.Report
	keys          map[reportKey]int64
	details       map[int64][]core.ReportDetail
	notifications []core.Notification

	nextReportID int64
	nextDetailID int64
}

var (
	_ ports.RecordSource       = (*Store)(nil)
	_ ports.ReportStore        = (*Store)(nil)
	_ ports.NotificationWriter = (*Store)(nil)
)

func New(records core.Records) *Store {
	return &Store{
		records: records,
		reports: make(map[int64]core.Report),
		keys:    make(map[reportKey]int64),
		details: make(map[int64][]core.ReportDetail),
	}
}

// NewFromFiles seeds the store from base/records.json. A missing file
// yields an empty store.
func NewFromFiles(base string) (*Store, error) {
	rec, err := LoadRecords(filepath.Join(base, SeedFile))
	if errors.Is(err, os.ErrNotExist) {
		return New(core.Records{}), nil
	}
	if err != nil {
		return nil, err
	}
	return New(rec), nil
}

// LoadRecords reads a JSON document with incomes, expenses, bills and invoices.
func LoadRecords(path string) (core.Records, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return core.Records{}, fmt.Errorf("read records file: %w", err)
	}
	var rec core.Records
	if err := json.Unmarshal(b, &rec); err != nil {
		return core.Records{}, fmt.Errorf("decode records file %s: %w", path, err)
	}
	return rec, nil
}

// AddRecords appends records, e.g. from a test fixture.
func (s *Store) AddRecords(rec core.Records) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records.Incomes = append(s.records.Incomes, rec.Incomes...)
	s.records.Expenses = append(s.records.Expenses, rec.Expenses...)
	s.records.Bills = append(s.records.Bills, rec.Bills...)
	s.records.Invoices = append(s.records.Invoices, rec.Invoices...)
}

// ImportRecords validates owners and appends the records.
func (s *Store) ImportRecords(_ context.Context, rec core.Records) error {
	for _, r := range rec.Incomes {
		if err := core.ValidateOwner(r.Owner); err != nil {
			return fmt.Errorf("income: %w", err)
		}
	}
	for _, r := range rec.Expenses {
		if err := core.ValidateOwner(r.Owner); err != nil {
			return fmt.Errorf("expense: %w", err)
		}
	}
	for _, r := range rec.Bills {
		if err := core.ValidateOwner(r.Owner); err != nil {
			return fmt.Errorf("bill: %w", err)
		}
	}
	for _, r := range rec.Invoices {
		if err := core.ValidateOwner(r.Owner); err != nil {
			return fmt.Errorf("invoice: %w", err)
		}
	}
	s.AddRecords(rec)
	return nil
}

func (s *Store) ListIncomes(_ context.Context, owner string, w core.Window) ([]core.Income, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Income
	for _, in := range s.records.Incomes {
		if in.Owner == owner && w.Contains(in.Date) {
			out = append(out, in)
		}
	}
	return out, nil
}

func (s *Store) ListExpenses(_ context.Context, owner string, w core.Window) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Expense
	for _, e := range s.records.Expenses {
		if e.Owner == owner && w.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) ListPaidBills(_ context.Context, owner string, w core.Window) ([]core.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Bill
	for _, b := range s.records.Bills {
		if b.Owner == owner && b.IsPaid && w.Contains(b.DueDate) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) ListPaidInvoices(_ context.Context, owner string, w core.Window) ([]core.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Invoice
	for _, inv := range s.records.Invoices {
		if inv.Owner == owner && inv.IsPaid && w.Contains(inv.DueDate) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *Store) FindReport(_ context.Context, owner string, t core.ReportType, period string) (core.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.keys[reportKey{owner: owner, typ: t, period: period}]
	if !ok {
		return core.Report{}, core.ErrReportNotFound
	}
	return s.reports[id].Clone(), nil
}

func (s *Store) GetReport(_ context.Context, owner string, id int64) (core.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok || r.Owner != owner {
		return core.Report{}, core.ErrReportNotFound
	}
	return r.Clone(), nil
}

func (s *Store) ListReports(_ context.Context, owner string) ([]core.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Report, 0)
	for _, r := range s.reports {
		if r.Owner == owner {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	return out, nil
}

func (s *Store) ListReportDetails(_ context.Context, reportID int64) ([]core.ReportDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.CloneDetails(s.details[reportID]), nil
}

// WithinTx holds the write lock for the whole of fn and applies its writes
// only when fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(ports.ReportWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, nextReportID: s.nextReportID, nextDetailID: s.nextDetailID}
	if err := fn(tx); err != nil {
		return err
	}
	for _, r := range tx.reports {
		s.reports[r.ID] = r.Clone()
		s.keys[reportKey{owner: r.Owner, typ: r.Type, period: r.Period}] = r.ID
	}
	for _, d := range tx.details {
		d.DailyDistribution = maps.Clone(d.DailyDistribution)
		s.details[d.ReportID] = append(s.details[d.ReportID], d)
	}
	s.nextReportID = tx.nextReportID
	s.nextDetailID = tx.nextDetailID
	return nil
}

func (s *Store) DeleteReport(_ context.Context, owner string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok || r.Owner != owner {
		return core.ErrReportNotFound
	}
	delete(s.details, id)
	delete(s.keys, reportKey{owner: r.Owner, typ: r.Type, period: r.Period})
	delete(s.reports, id)
	return nil
}

func (s *Store) CreateNotification(_ context.Context, n core.Notification) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = int64(len(s.notifications) + 1)
	s.notifications = append(s.notifications, n)
	return n.ID, nil
}

// ListNotifications returns the owner's notifications in creation order.
func (s *Store) ListNotifications(_ context.Context, owner string) ([]core.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Notification
	for _, n := range s.notifications {
		if n.Owner == owner {
			out = append(out, n)
		}
	}
	return out, nil
}

// DetailCount returns the number of stored detail rows across all reports.
func (s *Store) DetailCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.details {
		n += len(d)
	}
	return n
}

// memTx stages writes made inside WithinTx. The store lock is held.
type memTx struct {
	store        *Store
	reports      []core.Report
	details      []core.ReportDetail
	nextReportID int64
	nextDetailID int64
}

func (tx *memTx) InsertReport(_ context.Context, r core.Report) (int64, error) {
	if strings.TrimSpace(r.Owner) == "" {
		return 0, core.ErrEmptyOwner
	}
	key := reportKey{owner: r.Owner, typ: r.Type, period: r.Period}
	if _, exists := tx.store.keys[key]; exists {
		return 0, core.ErrDuplicateReport
	}
	for _, staged := range tx.reports {
		if staged.Owner == r.Owner && staged.Type == r.Type && staged.Period == r.Period {
			return 0, core.ErrDuplicateReport
		}
	}
	tx.nextReportID++
	r.ID = tx.nextReportID
	tx.reports = append(tx.reports, r)
	return r.ID, nil
}

func (tx *memTx) InsertReportDetails(_ context.Context, details []core.ReportDetail) error {
	for _, d := range details {
		if !tx.hasReport(d.ReportID) {
			return fmt.Errorf("report %d does not exist", d.ReportID)
		}
		tx.nextDetailID++
		d.ID = tx.nextDetailID
		tx.details = append(tx.details, d)
	}
	return nil
}

func (tx *memTx) hasReport(id int64) bool {
	if _, ok := tx.store.reports[id]; ok {
		return true
	}
	for _, r := range tx.reports {
		if r.ID == id {
			return true
		}
	}
	return false
}
