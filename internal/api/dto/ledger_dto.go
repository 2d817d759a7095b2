package dto

import (
	"time"

	"github.com/spec-kit/warranty-service/internal/domain"
)

// RegisterSerialRequest payload.
type RegisterSerialRequest struct {
	PartID       string `json:"part_id"`
	SerialNumber string `json:"serial_number"`
	ThirdParty   bool   `json:"third_party"`
}

// ReserveRequest payload.
type ReserveRequest struct {
	PartID   string `json:"part_id"`
	Quantity int    `json:"quantity"`
}

// InstallRequest payload.
type InstallRequest struct {
	VehicleVIN  string  `json:"vehicle_vin"`
	WorkOrderID *string `json:"work_order_id"`
	ClaimID     *string `json:"claim_id"`
}

// PartSerialResponse represents a serial.
type PartSerialResponse struct {
	ID               string              `json:"id"`
	PartID           string              `json:"part_id"`
	SerialNumber     string              `json:"serial_number"`
	ThirdParty       bool                `json:"third_party"`
	Status           domain.SerialStatus `json:"status"`
	ReservedForClaim *string             `json:"reserved_for_claim"`
	ReservedAt       *time.Time          `json:"reserved_at"`
	InstalledVIN     *string             `json:"installed_vin"`
	WorkOrderID      *string             `json:"work_order_id"`
	InstalledBy      *string             `json:"installed_by"`
	InstalledAt      *time.Time          `json:"installed_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// VehicleRequest registers a vehicle.
type VehicleRequest struct {
	ID               string     `json:"id"`
	VIN              string     `json:"vin"`
	Model            string     `json:"model"`
	CustomerID       string     `json:"customer_id"`
	RegistrationDate *time.Time `json:"registration_date"`
	MileageKm        int        `json:"mileage_km"`
}

// VehicleResponse represents a vehicle.
type VehicleResponse struct {
	ID               string     `json:"id"`
	VIN              string     `json:"vin"`
	Model            string     `json:"model"`
	CustomerID       string     `json:"customer_id"`
	RegistrationDate *time.Time `json:"registration_date"`
	MileageKm        int        `json:"mileage_km"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// EligibilityResponse reports an evaluator decision.
type EligibilityResponse struct {
	Eligible     bool      `json:"eligible"`
	Reasons      []string  `json:"reasons"`
	AppliedYears *int      `json:"applied_years"`
	AppliedKm    *int      `json:"applied_km"`
	RuleID       string    `json:"rule_id,omitempty"`
	AsOf         time.Time `json:"as_of"`
}
