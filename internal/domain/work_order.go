package domain

import "time"

// WorkOrderStatus enumerates repair work order states.
type WorkOrderStatus string

const (
	WorkOrderStatusOpen      WorkOrderStatus = "OPEN"
	WorkOrderStatusDone      WorkOrderStatus = "DONE"
	WorkOrderStatusCancelled WorkOrderStatus = "CANCELLED"
)

// WorkOrder tracks repair work performed by a technician for a claim.
type WorkOrder struct {
	ID           string
	ClaimID      string
	TechnicianID string
	Status       WorkOrderStatus
	OpenedAt     time.Time
	ClosedAt     *time.Time
	Version      int64
}
