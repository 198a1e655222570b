package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/ridgeline-io/datagate/internal/domain/ratelimit"
)

type fakeAuditWriter struct {
	mu     sync.Mutex
	events []ratelimit.AuditEvent
}

func (f *fakeAuditWriter) AppendEvent(ctx context.Context, event ratelimit.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAuditWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestAuditService_WritesEnqueuedEvents(t *testing.T) {
	writer := &fakeAuditWriter{}
	svc := NewAuditService(writer, silentLogger())
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)

	for i := 0; i < 5; i++ {
		_ = svc.AppendEvent(context.Background(), ratelimit.AuditEvent{Username: "u1"})
	}

	deadline := time.After(time.Second)
	for writer.count() < 5 {
		select {
		case <-deadline:
			t.Fatalf("writer.count() = %d after timeout, want 5", writer.count())
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	svc.Stop()
}

func TestAuditService_DropsOnFullQueue(t *testing.T) {
	writer := &fakeAuditWriter{}
	svc := NewAuditService(writer, silentLogger(), WithQueueSize(1))

	// No worker started: the queue fills immediately.
	_ = svc.AppendEvent(context.Background(), ratelimit.AuditEvent{Username: "u1"})
	_ = svc.AppendEvent(context.Background(), ratelimit.AuditEvent{Username: "u2"})
	_ = svc.AppendEvent(context.Background(), ratelimit.AuditEvent{Username: "u3"})

	if dropped := svc.DroppedEvents(); dropped < 1 {
		t.Errorf("DroppedEvents() = %d, want >= 1", dropped)
	}

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	cancel()
	svc.Stop()
}

func TestAuditServiceNoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	writer := &fakeAuditWriter{}
	svc := NewAuditService(writer, silentLogger())
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	_ = svc.AppendEvent(context.Background(), ratelimit.AuditEvent{Username: "u1"})
	cancel()
	svc.Stop()
}
