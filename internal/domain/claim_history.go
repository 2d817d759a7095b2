package domain

import "time"

// ClaimChangeType captures what changed in a history entry.
type ClaimChangeType string

const (
	ChangeTypeStatus       ClaimChangeType = "STATUS_CHANGE"
	ChangeTypeDiagnosis    ClaimChangeType = "DIAGNOSIS"
	ChangeTypeEligibility  ClaimChangeType = "ELIGIBILITY"
	ChangeTypeOverride     ClaimChangeType = "MANUAL_OVERRIDE"
	ChangeTypeReservation  ClaimChangeType = "RESERVATION"
	ChangeTypeCancellation ClaimChangeType = "CANCELLATION"
	ChangeTypePayment      ClaimChangeType = "PAYMENT"
)

// ClaimHistory is an immutable audit trail entry.
type ClaimHistory struct {
	ID         string
	ClaimID    string
	ActorID    string
	ChangeType ClaimChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
