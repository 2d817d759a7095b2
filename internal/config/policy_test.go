package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const samplePolicy = `
rules:
  - id: vf8-standard
    vehicle_model: VF8
    coverage_years: 3
    coverage_km: 100000
    effective_from: 2023-01-01T00:00:00Z
    priority: 10
  - id: vf8-battery
    vehicle_model: VF8
    component_category: BATTERY
    coverage_years: 8
    effective_from: 2023-01-01T00:00:00Z
    effective_to: 2030-12-31T23:59:59Z
    priority: 20
`

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy([]byte(samplePolicy))
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	if len(p.Rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(p.Rules))
	}
	std := p.Rules[0]
	if std.CoverageYears == nil || *std.CoverageYears != 3 {
		t.Errorf("coverage_years = %v", std.CoverageYears)
	}
	if std.CoverageKm == nil || *std.CoverageKm != 100000 {
		t.Errorf("coverage_km = %v", std.CoverageKm)
	}
	if !std.EffectiveFrom.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("effective_from = %v", std.EffectiveFrom)
	}
	battery := p.Rules[1]
	if battery.CoverageKm != nil {
		t.Errorf("absent coverage_km should stay nil, got %d", *battery.CoverageKm)
	}
	if battery.EffectiveTo == nil {
		t.Fatal("effective_to not parsed")
	}
	if battery.ComponentCategory != "BATTERY" {
		t.Errorf("component_category = %q", battery.ComponentCategory)
	}
}

func TestParsePolicyValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing id",
			yaml: "rules:\n  - vehicle_model: VF8\n    effective_from: 2023-01-01T00:00:00Z\n",
			want: "id is required",
		},
		{
			name: "duplicate id",
			yaml: "rules:\n  - id: a\n    vehicle_model: VF8\n    effective_from: 2023-01-01T00:00:00Z\n  - id: a\n    vehicle_model: VF9\n    effective_from: 2023-01-01T00:00:00Z\n",
			want: "duplicate id",
		},
		{
			name: "missing model",
			yaml: "rules:\n  - id: a\n    effective_from: 2023-01-01T00:00:00Z\n",
			want: "vehicle_model is required",
		},
		{
			name: "inverted range",
			yaml: "rules:\n  - id: a\n    vehicle_model: VF8\n    effective_from: 2024-01-01T00:00:00Z\n    effective_to: 2023-01-01T00:00:00Z\n",
			want: "effective_to is before",
		},
		{
			name: "negative years",
			yaml: "rules:\n  - id: a\n    vehicle_model: VF8\n    coverage_years: -1\n    effective_from: 2023-01-01T00:00:00Z\n",
			want: "coverage_years must be >= 0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePolicy([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(samplePolicy), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadPolicyFile(path)
	if err != nil {
		t.Fatalf("LoadPolicyFile: %v", err)
	}
	if len(p.Rules) != 2 {
		t.Errorf("rules = %d", len(p.Rules))
	}
	if _, err := LoadPolicyFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WARRANTY_MAX_REJECTIONS", "")
	t.Setenv("WARRANTY_HANDOVER_REMINDER_HOURS", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Warranty.MaxRejections != 3 {
		t.Errorf("MaxRejections = %d, want 3", cfg.Warranty.MaxRejections)
	}
	if cfg.Warranty.HandoverReminderAge() != 48*time.Hour {
		t.Errorf("HandoverReminderAge = %v", cfg.Warranty.HandoverReminderAge())
	}
}

func TestLoadRejectsZeroMaxRejections(t *testing.T) {
	t.Setenv("WARRANTY_MAX_REJECTIONS", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for WARRANTY_MAX_REJECTIONS=0")
	}
}
