package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/spec-kit/warranty-service/internal/notification"
)

type collectingSink struct {
	mu   sync.Mutex
	sent []notification.Message
	err  error
}

func (s *collectingSink) Send(_ context.Context, msg notification.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *collectingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestWorkerDeliversQueuedMessages(t *testing.T) {
	sink := &collectingSink{}
	w := NewNotificationWorker(sink, 8, nil)
	w.Start(context.Background())

	for i := 0; i < 5; i++ {
		if !w.Enqueue(notification.Message{ClaimID: "c1"}) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}
	w.Stop()

	if got := sink.count(); got != 5 {
		t.Fatalf("delivered = %d, want 5", got)
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	sink := &collectingSink{}
	w := NewNotificationWorker(sink, 2, nil)

	if !w.Enqueue(notification.Message{}) || !w.Enqueue(notification.Message{}) {
		t.Fatal("queue rejected messages under capacity")
	}
	if w.Enqueue(notification.Message{}) {
		t.Fatal("full queue accepted a message")
	}

	w.Start(context.Background())
	w.Stop()
	if got := sink.count(); got != 2 {
		t.Fatalf("delivered = %d, want 2", got)
	}
}

func TestSinkErrorsDoNotStopWorker(t *testing.T) {
	sink := &collectingSink{err: errors.New("unreachable")}
	w := NewNotificationWorker(sink, 4, nil)
	w.Start(context.Background())
	w.Enqueue(notification.Message{})
	w.Enqueue(notification.Message{})
	w.Stop()
	if got := sink.count(); got != 2 {
		t.Fatalf("attempts = %d, want 2", got)
	}
}

func TestCancelledContextDrainsQueue(t *testing.T) {
	sink := &collectingSink{}
	w := NewNotificationWorker(sink, 4, nil)
	w.Enqueue(notification.Message{})
	w.Enqueue(notification.Message{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)
	w.wg.Wait()

	if got := sink.count(); got != 2 {
		t.Fatalf("delivered = %d, want 2", got)
	}
}
