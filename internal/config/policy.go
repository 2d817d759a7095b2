package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/warranty-service/internal/domain"
)

// Policy is the warranty rule seed file.
//
//	rules:
//	  - id: vf8-standard
//	    vehicle_model: VF8
//	    coverage_years: 3
//	    coverage_km: 100000
//	    effective_from: 2023-01-01T00:00:00Z
//	    priority: 10
type Policy struct {
	Rules []domain.WarrantyRule `yaml:"rules"`
}

// LoadPolicyFile reads a YAML policy file from path.
func LoadPolicyFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	return ParsePolicy(data)
}

// ParsePolicy unmarshals YAML bytes into a validated Policy.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("policy: parse: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Policy) validate() error {
	var errs []string
	seen := make(map[string]bool, len(p.Rules))
	for i, r := range p.Rules {
		label := fmt.Sprintf("rules[%d]", i)
		if r.ID == "" {
			errs = append(errs, label+": id is required")
		} else if seen[r.ID] {
			errs = append(errs, fmt.Sprintf("%s: duplicate id %q", label, r.ID))
		}
		seen[r.ID] = true
		if strings.TrimSpace(r.VehicleModel) == "" {
			errs = append(errs, label+": vehicle_model is required")
		}
		if r.EffectiveFrom.IsZero() {
			errs = append(errs, label+": effective_from is required")
		}
		if r.EffectiveTo != nil && r.EffectiveTo.Before(r.EffectiveFrom) {
			errs = append(errs, label+": effective_to is before effective_from")
		}
		if r.CoverageYears != nil && *r.CoverageYears < 0 {
			errs = append(errs, label+": coverage_years must be >= 0")
		}
		if r.CoverageKm != nil && *r.CoverageKm < 0 {
			errs = append(errs, label+": coverage_km must be >= 0")
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("policy: validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}
