package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/warranty-service/internal/notification"
)

const sendTimeout = 10 * time.Second

// NotificationWorker drains a bounded queue of messages into a sink on a
// single goroutine. Enqueue never blocks; when the queue is full the message
// is dropped and logged.
type NotificationWorker struct {
	sink   notification.Sink
	logger *zap.Logger
	queue  chan notification.Message
	wg     sync.WaitGroup
	once   sync.Once
}

// NewNotificationWorker creates a worker with the given queue capacity.
func NewNotificationWorker(sink notification.Sink, size int, logger *zap.Logger) *NotificationWorker {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		sink:   sink,
		logger: logger,
		queue:  make(chan notification.Message, size),
	}
}

// Enqueue schedules msg for delivery and reports whether it was accepted.
func (w *NotificationWorker) Enqueue(msg notification.Message) bool {
	select {
	case w.queue <- msg:
		return true
	default:
		w.logger.Warn("notification queue full; dropping message",
			zap.String("claim_id", msg.ClaimID),
			zap.String("event", msg.Event))
		return false
	}
}

// Start launches the delivery loop. It returns after the loop has started;
// the loop exits when ctx is cancelled or Stop is called.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-ctx.Done():
				w.drain()
				return
			case msg, ok := <-w.queue:
				if !ok {
					return
				}
				w.deliver(msg)
			}
		}
	}()
}

// Stop closes the queue, delivers what is left and waits for the loop.
func (w *NotificationWorker) Stop() {
	w.once.Do(func() { close(w.queue) })
	w.wg.Wait()
}

func (w *NotificationWorker) drain() {
	for {
		select {
		case msg, ok := <-w.queue:
			if !ok {
				return
			}
			w.deliver(msg)
		default:
			return
		}
	}
}

func (w *NotificationWorker) deliver(msg notification.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := w.sink.Send(ctx, msg); err != nil {
		w.logger.Warn("notification delivery failed",
			zap.String("claim_id", msg.ClaimID),
			zap.String("event", msg.Event),
			zap.Error(err))
	}
}
