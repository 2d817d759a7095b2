package eligibility

import (
	"testing"
	"time"

	"github.com/spec-kit/warranty-service/internal/domain"
)

func intPtr(v int) *int { return &v }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func baseRule() domain.WarrantyRule {
	return domain.WarrantyRule{
		ID:            "vf8-basic",
		VehicleModel:  "VF8",
		CoverageYears: intPtr(3),
		CoverageKm:    intPtr(60000),
		EffectiveFrom: date(2020, 1, 1),
		Priority:      10,
	}
}

func TestEvaluateWithinCoverage(t *testing.T) {
	reg := date(2022, 1, 1)
	res := Evaluate(Input{
		RegistrationDate: &reg,
		MileageKm:        40000,
		VehicleModel:     "VF8",
		AsOf:             date(2024, 6, 1),
	}, []domain.WarrantyRule{baseRule()})

	if !res.Eligible {
		t.Fatalf("expected eligible, reasons=%v", res.Reasons)
	}
	if *res.AppliedYears != 3 || *res.AppliedKm != 60000 {
		t.Fatalf("applied = %d/%d", *res.AppliedYears, *res.AppliedKm)
	}
	if res.Reasons[0] != ReasonWithinCoverage {
		t.Fatalf("reasons = %v", res.Reasons)
	}
}

func TestEvaluateExpiredByTime(t *testing.T) {
	reg := date(2022, 1, 1)
	res := Evaluate(Input{
		RegistrationDate: &reg,
		MileageKm:        40000,
		VehicleModel:     "VF8",
		AsOf:             date(2025, 6, 1),
	}, []domain.WarrantyRule{baseRule()})

	if res.Eligible {
		t.Fatalf("expected ineligible")
	}
	if len(res.Reasons) != 1 || res.Reasons[0] != ReasonExpiredByTime {
		t.Fatalf("reasons = %v", res.Reasons)
	}
}

func TestEvaluateNoApplicablePolicy(t *testing.T) {
	reg := date(2022, 1, 1)
	tests := []struct {
		name  string
		in    Input
		rules []domain.WarrantyRule
	}{
		{"no rules", Input{RegistrationDate: &reg, VehicleModel: "VF8", AsOf: date(2024, 1, 1)}, nil},
		{"other model", Input{RegistrationDate: &reg, VehicleModel: "VF9", AsOf: date(2024, 1, 1)}, []domain.WarrantyRule{baseRule()}},
		{"not yet effective", Input{RegistrationDate: &reg, VehicleModel: "VF8", AsOf: date(2019, 1, 1)}, []domain.WarrantyRule{baseRule()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(tt.in, tt.rules)
			if res.Eligible || res.Reasons[0] != ReasonNoApplicablePolicy {
				t.Fatalf("got %+v", res)
			}
			if res.AppliedYears != nil || res.AppliedKm != nil {
				t.Fatalf("no rule means nothing applied")
			}
		})
	}
}

func TestEvaluateHighestPriorityWins(t *testing.T) {
	reg := date(2022, 1, 1)
	extended := baseRule()
	extended.ID = "vf8-extended"
	extended.CoverageYears = intPtr(5)
	extended.CoverageKm = intPtr(100000)
	extended.Priority = 20

	res := Evaluate(Input{
		RegistrationDate: &reg,
		MileageKm:        80000,
		VehicleModel:     "vf8",
		AsOf:             date(2025, 6, 1),
	}, []domain.WarrantyRule{baseRule(), extended})

	if !res.Eligible || res.RuleID != "vf8-extended" {
		t.Fatalf("got %+v", res)
	}
}

func TestEvaluateSingleDimensionRules(t *testing.T) {
	reg := date(2015, 1, 1)
	kmOnly := domain.WarrantyRule{ID: "km", VehicleModel: "VF8", CoverageKm: intPtr(200000), EffectiveFrom: date(2010, 1, 1)}
	res := Evaluate(Input{RegistrationDate: &reg, MileageKm: 150000, VehicleModel: "VF8", AsOf: date(2025, 1, 1)}, []domain.WarrantyRule{kmOnly})
	if !res.Eligible {
		t.Fatalf("km-only rule must ignore elapsed time: %+v", res)
	}

	timeOnly := domain.WarrantyRule{ID: "time", VehicleModel: "VF8", CoverageYears: intPtr(8), EffectiveFrom: date(2010, 1, 1)}
	res = Evaluate(Input{MileageKm: 10, VehicleModel: "VF8", AsOf: date(2025, 1, 1)}, []domain.WarrantyRule{timeOnly})
	if res.Eligible || res.Reasons[0] != ReasonMissingRegistrationDate {
		t.Fatalf("time rule without registration date: %+v", res)
	}
}

func TestEvaluateReportsBothFailures(t *testing.T) {
	reg := date(2018, 1, 1)
	res := Evaluate(Input{RegistrationDate: &reg, MileageKm: 90000, VehicleModel: "VF8", AsOf: date(2024, 1, 1)}, []domain.WarrantyRule{baseRule()})
	if res.Eligible || len(res.Reasons) != 2 {
		t.Fatalf("got %+v", res)
	}
}

func TestEvaluateComponentRules(t *testing.T) {
	reg := date(2018, 1, 1)
	battery := domain.WarrantyRule{ID: "battery", VehicleModel: "VF8", ComponentCategory: "BATTERY", CoverageYears: intPtr(10), EffectiveFrom: date(2010, 1, 1), Priority: 50}
	rules := []domain.WarrantyRule{baseRule(), battery}

	res := Evaluate(Input{RegistrationDate: &reg, MileageKm: 50000, VehicleModel: "VF8", Component: "battery", AsOf: date(2024, 1, 1)}, rules)
	if !res.Eligible || res.RuleID != "battery" {
		t.Fatalf("battery rule should apply: %+v", res)
	}
	res = Evaluate(Input{RegistrationDate: &reg, MileageKm: 50000, VehicleModel: "VF8", AsOf: date(2024, 1, 1)}, rules)
	if res.RuleID != "vf8-basic" {
		t.Fatalf("component rule must not apply without component: %+v", res)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	reg := date(2022, 1, 1)
	a := baseRule()
	b := baseRule()
	b.ID = "vf8-alt"
	b.CoverageYears = intPtr(1)
	in := Input{RegistrationDate: &reg, MileageKm: 40000, VehicleModel: "VF8", AsOf: date(2024, 6, 1)}

	first := Evaluate(in, []domain.WarrantyRule{a, b})
	for i := 0; i < 20; i++ {
		rules := []domain.WarrantyRule{b, a}
		if i%2 == 0 {
			rules = []domain.WarrantyRule{a, b}
		}
		got := Evaluate(in, rules)
		if got.Eligible != first.Eligible || got.RuleID != first.RuleID || *got.AppliedYears != *first.AppliedYears {
			t.Fatalf("iteration %d: %+v != %+v", i, got, first)
		}
	}
}
