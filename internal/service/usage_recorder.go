package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reviewlens/reviewlens/internal/model"
	"github.com/reviewlens/reviewlens/internal/queue"
)

// UsageStore persists usage rows and answers the admin aggregation.
type UsageStore interface {
	Insert(ctx context.Context, rec model.UsageRecord) error
	StatsSince(ctx context.Context, since time.Time) ([]model.EndpointStat, error)
}

// UsagePublisher mirrors usage records to the message broker.  Nil-able;
// publishing is always best effort.
type UsagePublisher interface {
	PublishUsageRecorded(ctx context.Context, ev queue.UsageRecordedEvent) error
}

// UsageRecorder appends one record per authenticated request without
// ever delaying or failing the request it describes.  Record hands the
// row to a buffered channel; a single worker drains it into the store
// and, when a publisher is wired, onto the usage.recorded queue.  A full
// buffer or a failing store costs a log line and a dropped record,
// nothing more.
type UsageRecorder struct {
	store     UsageStore
	publisher UsagePublisher
	log       *zap.Logger
	ch        chan model.UsageRecord
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	now       func() time.Time
}

// insertTimeout bounds each storage write made by the worker.
const insertTimeout = 5 * time.Second

func NewUsageRecorder(store UsageStore, publisher UsagePublisher, log *zap.Logger, buffer int) *UsageRecorder {
	if buffer <= 0 {
		buffer = 256
	}
	r := &UsageRecorder{
		store:     store,
		publisher: publisher,
		log:       log,
		ch:        make(chan model.UsageRecord, buffer),
		done:      make(chan struct{}),
		now:       time.Now,
	}
	go r.run()
	return r
}

// Record enqueues a usage record.  Never blocks: when the buffer is full
// the record is dropped and counted in the log.  After Close, records
// are silently discarded.
func (r *UsageRecorder) Record(userID uint64, endpoint string, statusCode int, duration time.Duration) {
	rec := model.UsageRecord{
		UserID:     userID,
		Endpoint:   endpoint,
		StatusCode: statusCode,
		DurationMs: duration.Milliseconds(),
		RecordedAt: r.now().UTC(),
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- rec:
	default:
		r.log.Warn("usage buffer full, record dropped",
			zap.Uint64("user_id", userID), zap.String("endpoint", endpoint))
	}
}

func (r *UsageRecorder) run() {
	defer close(r.done)
	for rec := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		if err := r.store.Insert(ctx, rec); err != nil {
			// Best effort: observability must not become a failure source.
			r.log.Warn("usage insert failed", zap.String("endpoint", rec.Endpoint), zap.Error(err))
		}
		if r.publisher != nil {
			ev := queue.UsageRecordedEvent{
				UserID:     rec.UserID,
				Endpoint:   rec.Endpoint,
				StatusCode: rec.StatusCode,
				DurationMs: rec.DurationMs,
				RecordedAt: rec.RecordedAt.Format(time.RFC3339),
			}
			if err := r.publisher.PublishUsageRecorded(ctx, ev); err != nil {
				r.log.Debug("usage event publish failed", zap.Error(err))
			}
		}
		cancel()
	}
}

// StatsSince aggregates usage per endpoint over the trailing window.
func (r *UsageRecorder) StatsSince(ctx context.Context, sinceDays int) ([]model.EndpointStat, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	since := r.now().UTC().AddDate(0, 0, -sinceDays)
	stats, err := r.store.StatsSince(ctx, since)
	if err != nil {
		return nil, ErrStorageUnavailable
	}
	return stats, nil
}

// Close drains buffered records and stops the worker.
func (r *UsageRecorder) Close() {
	r.closeOnce.Do(func() {
		// Flip closed under the write lock so no Record send can be in
		// flight when the channel closes.
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.ch)
		<-r.done
	})
}
