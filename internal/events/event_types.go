package events

import (
	"time"

	"github.com/spec-kit/warranty-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventClaimCreated          EventType = "claim_created"
	EventClaimStatusChanged    EventType = "claim_status_changed"
	EventClaimRejected         EventType = "claim_rejected"
	EventPartsReserved         EventType = "parts_reserved"
	EventReadyForHandover      EventType = "ready_for_handover"
	EventHandoverOverdue       EventType = "handover_overdue"
	EventCustomerQuoteIssued   EventType = "customer_quote_issued"
	EventCancellationRequested EventType = "cancellation_requested"
	EventCancellationAccepted  EventType = "cancellation_accepted"
	EventCancellationRejected  EventType = "cancellation_rejected"
	EventCancellationCompleted EventType = "cancellation_completed"
	EventCancellationReopened  EventType = "cancellation_reopened"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	ClaimID    string      `json:"claim_id"`
	ClaimNo    string      `json:"claim_number"`
	CustomerID string      `json:"customer_id,omitempty"`
	ActorID    string      `json:"actor_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload,omitempty"`
}

// ClaimCreatedPayload payload.
type ClaimCreatedPayload struct {
	VehicleID  string             `json:"vehicle_id"`
	Status     domain.ClaimStatus `json:"status"`
	RepairPath domain.RepairPath  `json:"repair_path"`
}

// ClaimStatusChangedPayload payload.
type ClaimStatusChangedPayload struct {
	OldStatus domain.ClaimStatus `json:"old_status"`
	NewStatus domain.ClaimStatus `json:"new_status"`
	Comment   string             `json:"comment,omitempty"`
}

// ClaimRejectedPayload payload.
type ClaimRejectedPayload struct {
	Reason         string `json:"reason"`
	RejectionCount int    `json:"rejection_count"`
	CanResubmit    bool   `json:"can_resubmit"`
}

// PartsReservedPayload payload.
type PartsReservedPayload struct {
	SerialIDs []string `json:"serial_ids"`
}

// CustomerQuotePayload payload.
type CustomerQuotePayload struct {
	QuotedCents int64 `json:"quoted_cents"`
}

// CancellationPayload payload.
type CancellationPayload struct {
	Reason         string             `json:"reason,omitempty"`
	PreviousStatus domain.ClaimStatus `json:"previous_status,omitempty"`
	RequestCount   int                `json:"request_count"`
}
