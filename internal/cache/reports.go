package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"finassist/internal/core"
	"finassist/internal/ports"
)

var _ ports.ReportStore = (*ReportStore)(nil)

// ReportStore is a read-through cache in front of another ReportStore.
// Only successful lookups are cached; misses always reach the store so a
// report written by another process is found on the next call. Deletions
// made by other processes are only seen through Invalidate or Purge, so a
// shared store needs a feed of report.deleted events.
//
// Returned reports and details are copies; callers may mutate them.
type ReportStore struct {
	next    ports.ReportStore
	reports *LRUCache[core.Report]
	keys    *LRUCache[int64]
	details *LRUCache[[]core.ReportDetail]
}

func NewReportStore(next ports.ReportStore, maxSize int, ttl time.Duration) *ReportStore {
	return &ReportStore{
		next:    next,
		reports: NewLRUCache[core.Report](maxSize, ttl),
		keys:    NewLRUCache[int64](maxSize, ttl),
		details: NewLRUCache[[]core.ReportDetail](maxSize, ttl),
	}
}

// Register hands the underlying caches to m for periodic expiry.
func (s *ReportStore) Register(m *Manager) {
	m.Register(s.reports)
	m.Register(s.keys)
	m.Register(s.details)
}

func idKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func periodKey(owner string, t core.ReportType, period string) string {
	return fmt.Sprintf("%s\x00%s\x00%s", owner, t, period)
}

func (s *ReportStore) remember(r core.Report) {
	s.reports.Set(idKey(r.ID), r.Clone())
	s.keys.Set(periodKey(r.Owner, r.Type, r.Period), r.ID)
}

func (s *ReportStore) FindReport(ctx context.Context, owner string, t core.ReportType, period string) (core.Report, error) {
	if id, ok := s.keys.Get(periodKey(owner, t, period)); ok {
		if r, ok := s.reports.Get(idKey(id)); ok && r.Owner == owner {
			return r.Clone(), nil
		}
	}
	r, err := s.next.FindReport(ctx, owner, t, period)
	if err != nil {
		return core.Report{}, err
	}
	s.remember(r)
	return r, nil
}

func (s *ReportStore) GetReport(ctx context.Context, owner string, id int64) (core.Report, error) {
	if r, ok := s.reports.Get(idKey(id)); ok {
		if r.Owner != owner {
			return core.Report{}, core.ErrReportNotFound
		}
		return r.Clone(), nil
	}
	r, err := s.next.GetReport(ctx, owner, id)
	if err != nil {
		return core.Report{}, err
	}
	s.remember(r)
	return r, nil
}

// ListReports is not cached; the owner's list grows with every generation.
func (s *ReportStore) ListReports(ctx context.Context, owner string) ([]core.Report, error) {
	return s.next.ListReports(ctx, owner)
}

func (s *ReportStore) ListReportDetails(ctx context.Context, reportID int64) ([]core.ReportDetail, error) {
	if d, ok := s.details.Get(idKey(reportID)); ok {
		return core.CloneDetails(d), nil
	}
	d, err := s.next.ListReportDetails(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if len(d) > 0 {
		s.details.Set(idKey(reportID), core.CloneDetails(d))
	}
	return d, nil
}

func (s *ReportStore) WithinTx(ctx context.Context, fn func(ports.ReportWriter) error) error {
	return s.next.WithinTx(ctx, fn)
}

func (s *ReportStore) DeleteReport(ctx context.Context, owner string, id int64) error {
	if err := s.next.DeleteReport(ctx, owner, id); err != nil {
		return err
	}
	s.Invalidate(id)
	return nil
}

// Invalidate drops a report and its details. The period key is dropped
// only while it still points at id.
func (s *ReportStore) Invalidate(id int64) {
	if r, ok := s.reports.Get(idKey(id)); ok {
		key := periodKey(r.Owner, r.Type, r.Period)
		if cur, ok := s.keys.Get(key); ok && cur == id {
			s.keys.Delete(key)
		}
	}
	s.reports.Delete(idKey(id))
	s.details.Delete(idKey(id))
}

// Purge empties the cache. It runs whenever the deletion feed may have
// missed events, e.g. after a broker reconnect.
func (s *ReportStore) Purge() int {
	return s.reports.Clear() + s.keys.Clear() + s.details.Clear()
}

// Stats sums hits and misses of the report lookups.
func (s *ReportStore) Stats() (hits, misses int64) {
	h1, m1 := s.reports.Stats()
	h2, m2 := s.keys.Stats()
	return h1 + h2, m1 + m2
}
