package domain

import "time"

// SerialStatus enumerates lifecycle states for a physical part unit.
type SerialStatus string

const (
	SerialStatusAvailable   SerialStatus = "AVAILABLE"
	SerialStatusReserved    SerialStatus = "RESERVED"
	SerialStatusUsed        SerialStatus = "USED"
	SerialStatusDeactivated SerialStatus = "DEACTIVATED"
)

// PartSerial is an individually tracked unit of a replacement part. Stock on
// hand is always derived by counting AVAILABLE serials.
type PartSerial struct {
	ID               string
	PartID           string
	SerialNumber     string
	ThirdParty       bool
	Status           SerialStatus
	ReservedForClaim *string
	ReservedAt       *time.Time
	InstalledVIN     *string
	WorkOrderID      *string
	InstalledBy      *string
	InstalledAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int64
}

// Clone returns a deep copy.
func (s *PartSerial) Clone() *PartSerial {
	if s == nil {
		return nil
	}
	cp := *s
	cp.ReservedForClaim = clonePtr(s.ReservedForClaim)
	cp.ReservedAt = clonePtr(s.ReservedAt)
	cp.InstalledVIN = clonePtr(s.InstalledVIN)
	cp.WorkOrderID = clonePtr(s.WorkOrderID)
	cp.InstalledBy = clonePtr(s.InstalledBy)
	cp.InstalledAt = clonePtr(s.InstalledAt)
	return &cp
}
