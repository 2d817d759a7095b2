package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/warranty-service/internal/domain"
	"github.com/spec-kit/warranty-service/internal/events"
	"github.com/spec-kit/warranty-service/internal/notification"
)

// Enqueuer accepts messages for asynchronous delivery.
type Enqueuer interface {
	Enqueue(msg notification.Message) bool
}

// NotificationService turns domain events into customer and staff messages.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      Enqueuer
	logger     *zap.Logger
	now        Clock
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, queue Enqueuer, logger *zap.Logger, clock Clock) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		logger:     logger,
		now:        clock,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventClaimCreated, n.handleClaimCreated)
	n.dispatcher.Subscribe(events.EventClaimStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventClaimRejected, n.handleClaimRejected)
	n.dispatcher.Subscribe(events.EventPartsReserved, n.handlePartsReserved)
	n.dispatcher.Subscribe(events.EventReadyForHandover, n.handleReadyForHandover)
	n.dispatcher.Subscribe(events.EventCustomerQuoteIssued, n.handleQuoteIssued)
	for _, t := range []events.EventType{
		events.EventCancellationRequested,
		events.EventCancellationAccepted,
		events.EventCancellationRejected,
		events.EventCancellationCompleted,
		events.EventCancellationReopened,
	} {
		n.dispatcher.Subscribe(t, n.handleCancellation)
	}
}

// NotifyHandoverOverdue reminds the customer and staff that a repaired
// vehicle has not been collected.
func (n *NotificationService) NotifyHandoverOverdue(ctx context.Context, claim domain.Claim, waiting time.Duration) {
	event := events.Event{
		ID:         uuid.NewString(),
		Type:       events.EventHandoverOverdue,
		ClaimID:    claim.ID,
		ClaimNo:    claim.ClaimNumber,
		CustomerID: claim.CustomerID,
		ActorID:    domain.SystemActor.ID,
		Timestamp:  n.now(),
	}
	hours := int(waiting.Hours())
	n.customer(event, "Your vehicle is waiting for pickup",
		fmt.Sprintf("Claim %s has been ready for handover for %d hours.", claim.ClaimNumber, hours))
	n.staff(event, "Handover overdue",
		fmt.Sprintf("Claim %s ready for %d hours without pickup.", claim.ClaimNumber, hours))
}

func (n *NotificationService) handleClaimCreated(_ context.Context, event events.Event) error {
	n.customer(event, "Warranty claim received",
		fmt.Sprintf("We opened claim %s for your vehicle.", event.ClaimNo))
	return nil
}

func (n *NotificationService) handleStatusChanged(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ClaimStatusChangedPayload)
	if !ok {
		return nil
	}
	n.staff(event, "Claim status changed",
		fmt.Sprintf("%s moved from %s to %s.", event.ClaimNo, payload.OldStatus, payload.NewStatus))
	return nil
}

func (n *NotificationService) handleClaimRejected(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ClaimRejectedPayload)
	if !ok {
		return nil
	}
	body := fmt.Sprintf("Claim %s was rejected: %s.", event.ClaimNo, payload.Reason)
	if !payload.CanResubmit {
		body += " The claim can no longer be resubmitted."
	}
	n.customer(event, "Warranty claim update", body)
	n.staff(event, "Claim rejected by manufacturer",
		fmt.Sprintf("%s rejected (%d so far): %s", event.ClaimNo, payload.RejectionCount, payload.Reason))
	return nil
}

func (n *NotificationService) handlePartsReserved(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PartsReservedPayload)
	if !ok {
		return nil
	}
	n.staff(event, "Parts reserved",
		fmt.Sprintf("%d serial(s) reserved for %s.", len(payload.SerialIDs), event.ClaimNo))
	return nil
}

func (n *NotificationService) handleReadyForHandover(_ context.Context, event events.Event) error {
	n.customer(event, "Your vehicle is ready",
		fmt.Sprintf("Work on claim %s is finished. Your vehicle is ready for pickup.", event.ClaimNo))
	return nil
}

func (n *NotificationService) handleQuoteIssued(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CustomerQuotePayload)
	if !ok {
		return nil
	}
	n.customer(event, "Repair quote",
		fmt.Sprintf("The repair for claim %s is not covered by warranty. Quote: %s.", event.ClaimNo, formatCents(payload.QuotedCents)))
	return nil
}

func (n *NotificationService) handleCancellation(_ context.Context, event events.Event) error {
	subject := map[events.EventType]string{
		events.EventCancellationRequested: "Cancellation requested",
		events.EventCancellationAccepted:  "Cancellation accepted",
		events.EventCancellationRejected:  "Cancellation rejected",
		events.EventCancellationCompleted: "Claim cancelled",
		events.EventCancellationReopened:  "Claim reopened",
	}[event.Type]
	body := fmt.Sprintf("Claim %s: %s.", event.ClaimNo, subject)
	if payload, ok := event.Payload.(events.CancellationPayload); ok && payload.Reason != "" {
		body = fmt.Sprintf("Claim %s: %s (%s).", event.ClaimNo, subject, payload.Reason)
	}
	n.customer(event, subject, body)
	n.staff(event, subject, body)
	return nil
}

func (n *NotificationService) customer(event events.Event, subject, body string) {
	if event.CustomerID == "" {
		return
	}
	n.enqueue(event, notification.AudienceCustomer, event.CustomerID, subject, body)
}

func (n *NotificationService) staff(event events.Event, subject, body string) {
	n.enqueue(event, notification.AudienceStaff, "", subject, body)
}

func (n *NotificationService) enqueue(event events.Event, audience notification.Audience, recipient, subject, body string) {
	if n.queue == nil {
		return
	}
	msg := notification.Message{
		ID:        uuid.NewString(),
		Audience:  audience,
		Recipient: recipient,
		ClaimID:   event.ClaimID,
		ClaimNo:   event.ClaimNo,
		Event:     string(event.Type),
		Subject:   subject,
		Body:      body,
		CreatedAt: n.now(),
	}
	if !n.queue.Enqueue(msg) {
		n.logger.Warn("notification dropped",
			zap.String("claim_id", event.ClaimID),
			zap.String("event", string(event.Type)),
			zap.String("audience", string(audience)))
	}
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
