package domain

import "time"

// CancellationStatus tracks the cancellation sub-flow.
type CancellationStatus string

const (
	CancellationStatusNone              CancellationStatus = "NONE"
	CancellationStatusRequested         CancellationStatus = "REQUESTED"
	CancellationStatusAccepted          CancellationStatus = "ACCEPTED"
	CancellationStatusHandoverConfirmed CancellationStatus = "HANDOVER_CONFIRMED"
)

// ClaimCancellation shadows a claim while a cancellation is in flight.
// RequestCount survives rejections and reopenings.
type ClaimCancellation struct {
	ClaimID        string
	Status         CancellationStatus
	RequestCount   int
	PreviousStatus *ClaimStatus
	Reason         string
	RequestedBy    string
	HandledBy      *string
	RequestedAt    *time.Time
	HandledAt      *time.Time
	UpdatedAt      time.Time
	Version        int64
}

// InFlight reports whether a cancellation is requested or accepted.
func (c *ClaimCancellation) InFlight() bool {
	return c != nil && (c.Status == CancellationStatusRequested || c.Status == CancellationStatusAccepted)
}

// Clear resets in-flight fields, keeping the request counter.
func (c *ClaimCancellation) Clear() {
	c.Status = CancellationStatusNone
	c.PreviousStatus = nil
	c.Reason = ""
	c.RequestedBy = ""
	c.RequestedAt = nil
}

// Clone returns a deep copy.
func (c *ClaimCancellation) Clone() *ClaimCancellation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.PreviousStatus = clonePtr(c.PreviousStatus)
	cp.HandledBy = clonePtr(c.HandledBy)
	cp.RequestedAt = clonePtr(c.RequestedAt)
	cp.HandledAt = clonePtr(c.HandledAt)
	return &cp
}
