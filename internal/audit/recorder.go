package audit

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/metrics"
)

const defaultWriteTimeout = 5 * time.Second

type Recorder struct {
	store        Store
	alerter      Alerter
	logger       *zap.Logger
	writeTimeout time.Duration
	clock        *clock
}

type Option func(*Recorder)

func WithAlerter(a Alerter) Option {
	return func(r *Recorder) { r.alerter = a }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// WithWriteTimeout bounds a single store write made from a cleanup region.
func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.clock = newClock(now) }
}

func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:        store,
		logger:       zap.NewNop(),
		writeTimeout: defaultWriteTimeout,
		clock:        newClock(time.Now),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.alerter == nil {
		r.alerter = NewLogAlerter(r.logger, nil)
	}
	return r
}

// Record writes exactly one entry for call with the given status. A store
// failure is reported to the alerter and returned wrapped in ErrStoreWrite.
func (r *Recorder) Record(ctx context.Context, call Call, status Status) (*Entry, error) {
	if call.Action == "" {
		return nil, ErrEmptyAction
	}
	if !status.Valid() {
		return nil, fmt.Errorf("invalid audit status %q", status)
	}

	entry := &Entry{
		UserID:     call.UserID,
		Action:     call.Action,
		ResourceID: call.ResourceID,
		Status:     status,
		IP:         call.IP,
		RequestID:  call.RequestID,
		Metadata:   maps.Clone(call.Metadata),
		CreatedAt:  r.clock.Now(),
	}

	if err := r.store.InsertAndCommit(ctx, entry); err != nil {
		metrics.AuditStoreFailuresTotal.Inc()
		r.alerter.StoreFailed(ctx, entry, err)
		return entry, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}

	metrics.AuditEntriesTotal.WithLabelValues(entry.Action, string(entry.Status)).Inc()
	r.logger.Debug("Audit entry recorded",
		zap.Int64("audit_id", entry.ID),
		zap.String("action", entry.Action),
		zap.String("status", string(entry.Status)))
	return entry, nil
}

// writeContext detaches from the caller's cancellation so that a client
// disconnect does not skip the write.
func (r *Recorder) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.writeTimeout)
}

// clock hands out non-decreasing UTC timestamps even if the wall clock steps
// backwards.
type clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newClock(now func() time.Time) *clock {
	return &clock{now: now}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
