// Package notification delivers customer and staff messages. Delivery is
// best-effort: callers never block on or fail because of a sink.
package notification

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Audience identifies who a message is for.
type Audience string

const (
	AudienceCustomer Audience = "CUSTOMER"
	AudienceStaff    Audience = "STAFF"
)

// Message is a single notification.
type Message struct {
	ID        string    `json:"id"`
	Audience  Audience  `json:"audience"`
	Recipient string    `json:"recipient,omitempty"`
	ClaimID   string    `json:"claim_id"`
	ClaimNo   string    `json:"claim_number,omitempty"`
	Event     string    `json:"event"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink delivers messages.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// LogSink writes messages to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(_ context.Context, msg Message) error {
	s.logger.Info("notification",
		zap.String("audience", string(msg.Audience)),
		zap.String("recipient", msg.Recipient),
		zap.String("claim_id", msg.ClaimID),
		zap.String("event", msg.Event),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// MultiSink fans a message out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AudienceFilter forwards only messages for one audience.
type AudienceFilter struct {
	Audience Audience
	Next     Sink
}

func (f AudienceFilter) Send(ctx context.Context, msg Message) error {
	if msg.Audience != f.Audience {
		return nil
	}
	return f.Next.Send(ctx, msg)
}
