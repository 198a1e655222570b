package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ridgeline-io/datagate/internal/domain/ratelimit"
)

// defaultAuditChannelSize bounds how many pending audit events the
// queue holds before new writes are dropped.
const defaultAuditChannelSize = 1000

// AuditService provides best-effort async audit logging: decisions
// enqueue an event and return immediately; a single background worker
// drains the queue into the Policy Store Gateway. A full queue drops
// the newest event and counts the drop rather than blocking the
// request path.
type AuditService struct {
	store   ratelimit.AuditWriter
	events  chan ratelimit.AuditEvent
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger
	dropped atomic.Int64
}

// AuditOption configures AuditService.
type AuditOption func(*AuditService)

// WithQueueSize overrides the default queue capacity.
func WithQueueSize(size int) AuditOption {
	return func(s *AuditService) {
		s.events = make(chan ratelimit.AuditEvent, size)
	}
}

// NewAuditService creates an AuditService writing to store.
func NewAuditService(store ratelimit.AuditWriter, logger *slog.Logger, opts ...AuditOption) *AuditService {
	s := &AuditService{
		store:  store,
		events: make(chan ratelimit.AuditEvent, defaultAuditChannelSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the background worker. ctx cancellation drains and
// flushes any pending events with a bounded deadline before returning.
func (s *AuditService) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.worker(ctx)
}

// AppendEvent enqueues event for async persistence. Never blocks: a
// full queue drops the event and increments the drop counter.
func (s *AuditService) AppendEvent(ctx context.Context, event ratelimit.AuditEvent) error {
	select {
	case s.events <- event:
	default:
		drops := s.dropped.Add(1)
		s.logger.Warn("audit event dropped, queue full",
			"username", event.Username, "endpoint", event.Endpoint, "total_drops", drops)
	}
	return nil
}

// DroppedEvents returns the total number of events dropped for
// monitoring.
func (s *AuditService) DroppedEvents() int64 {
	return s.dropped.Load()
}

// QueueDepth returns the number of events currently queued, for health checks.
func (s *AuditService) QueueDepth() int {
	return len(s.events)
}

// QueueCapacity returns the queue's configured capacity, for health checks.
func (s *AuditService) QueueCapacity() int {
	return cap(s.events)
}

// Stop closes the queue and waits for the worker to drain it.
func (s *AuditService) Stop() {
	close(s.events)
	s.wg.Wait()
}

func (s *AuditService) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case event, ok := <-s.events:
			if !ok {
				return
			}
			s.write(ctx, event)
		case <-ctx.Done():
			s.drain()
			return
		}
	}
}

// drain flushes whatever is left in the queue with a bounded deadline,
// used only on context cancellation (not on explicit Stop, which relies
// on the channel close path above).
func (s *AuditService) drain() {
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event, ok := <-s.events:
			if !ok {
				return
			}
			s.write(flushCtx, event)
		default:
			return
		}
	}
}

func (s *AuditService) write(ctx context.Context, event ratelimit.AuditEvent) {
	if err := s.store.AppendEvent(ctx, event); err != nil {
		s.logger.Error("failed to persist audit event", "error", err,
			"username", event.Username, "endpoint", event.Endpoint)
	}
}

var _ ratelimit.AuditWriter = (*AuditService)(nil)
