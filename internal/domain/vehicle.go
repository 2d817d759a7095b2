package domain

import "time"

// Vehicle is the registry view of a customer vehicle. Claims reference it by
// ID; the warranty service never mutates it.
type Vehicle struct {
	ID               string
	VIN              string
	Model            string
	CustomerID       string
	RegistrationDate *time.Time
	MileageKm        int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
