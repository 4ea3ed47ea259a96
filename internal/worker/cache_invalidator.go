package worker

import (
	"context"

	"finassist/internal/amqp"
	applog "finassist/internal/log"
)

// Invalidator drops one cached report.
type Invalidator interface {
	Invalidate(id int64)
}

// CacheInvalidator keeps an API instance's report cache in step with
// deletions made through other instances sharing the same store.
type CacheInvalidator struct {
	cache  Invalidator
	logger *applog.Logger
}

func NewCacheInvalidator(cache Invalidator, logger *applog.Logger) *CacheInvalidator {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &CacheInvalidator{cache: cache, logger: logger.WithComponent(applog.ComponentStorage)}
}

// HandleEvent invalidates the report named by a report.deleted event and
// ignores every other event.
func (c *CacheInvalidator) HandleEvent(ctx context.Context, msg *amqp.ReportEventMessage) error {
	if msg.Event != amqp.EventReportDeleted {
		return nil
	}
	c.cache.Invalidate(msg.ReportID)
	c.logger.DebugContext(ctx, "Invalidated cached report",
		applog.FieldEventID, msg.EventID,
		applog.FieldReportID, msg.ReportID)
	return nil
}
