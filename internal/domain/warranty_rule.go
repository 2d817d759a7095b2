package domain

import "time"

// WarrantyRule defines coverage for a vehicle model and, optionally, a
// component category. A nil dimension is not checked.
type WarrantyRule struct {
	ID                string     `yaml:"id"`
	VehicleModel      string     `yaml:"vehicle_model"`
	ComponentCategory string     `yaml:"component_category"`
	CoverageYears     *int       `yaml:"coverage_years"`
	CoverageKm        *int       `yaml:"coverage_km"`
	EffectiveFrom     time.Time  `yaml:"effective_from"`
	EffectiveTo       *time.Time `yaml:"effective_to"`
	Priority          int        `yaml:"priority"`
}

// ActiveAt reports whether asOf falls inside the effective range (inclusive).
func (r WarrantyRule) ActiveAt(asOf time.Time) bool {
	if asOf.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && asOf.After(*r.EffectiveTo) {
		return false
	}
	return true
}
