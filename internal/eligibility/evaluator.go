// Package eligibility decides warranty coverage for a vehicle from a set of
// warranty rules. It has no side effects.
package eligibility

import (
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/warranty-service/internal/domain"
)

// Reason codes explain an eligibility decision.
const (
	ReasonNoApplicablePolicy      = "NO_APPLICABLE_POLICY"
	ReasonExpiredByTime           = "EXPIRED_BY_TIME"
	ReasonExceededMileage         = "EXCEEDED_MILEAGE"
	ReasonMissingRegistrationDate = "MISSING_REGISTRATION_DATE"
	ReasonWithinCoverage          = "WITHIN_COVERAGE"
)

// Input describes the vehicle being evaluated. Component is optional; when
// empty only model-wide rules are considered.
type Input struct {
	RegistrationDate *time.Time
	MileageKm        int
	VehicleModel     string
	Component        string
	AsOf             time.Time
}

// Result is the evaluator output. AppliedYears/AppliedKm snapshot the winning
// rule so later rule edits do not change past decisions.
type Result struct {
	Eligible     bool
	Reasons      []string
	AppliedYears *int
	AppliedKm    *int
	RuleID       string
}

// Evaluate selects the highest-priority rule active at AsOf for the vehicle's
// model and checks elapsed time and mileage against it.
func Evaluate(in Input, rules []domain.WarrantyRule) Result {
	rule, ok := selectRule(in, rules)
	if !ok {
		return Result{Reasons: []string{ReasonNoApplicablePolicy}}
	}

	res := Result{
		RuleID:       rule.ID,
		AppliedYears: copyInt(rule.CoverageYears),
		AppliedKm:    copyInt(rule.CoverageKm),
	}

	if rule.CoverageYears != nil {
		switch {
		case in.RegistrationDate == nil:
			res.Reasons = append(res.Reasons, ReasonMissingRegistrationDate)
		case in.AsOf.After(in.RegistrationDate.AddDate(*rule.CoverageYears, 0, 0)):
			res.Reasons = append(res.Reasons, ReasonExpiredByTime)
		}
	}
	if rule.CoverageKm != nil && in.MileageKm > *rule.CoverageKm {
		res.Reasons = append(res.Reasons, ReasonExceededMileage)
	}

	if len(res.Reasons) == 0 {
		res.Eligible = true
		res.Reasons = []string{ReasonWithinCoverage}
	}
	return res
}

// selectRule picks the winner among applicable rules: highest priority, then
// latest EffectiveFrom, then smallest ID.
func selectRule(in Input, rules []domain.WarrantyRule) (domain.WarrantyRule, bool) {
	candidates := make([]domain.WarrantyRule, 0, len(rules))
	for _, r := range rules {
		if !strings.EqualFold(r.VehicleModel, in.VehicleModel) {
			continue
		}
		if r.ComponentCategory != "" && !strings.EqualFold(r.ComponentCategory, in.Component) {
			continue
		}
		if !r.ActiveAt(in.AsOf) {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return domain.WarrantyRule{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
			return a.EffectiveFrom.After(b.EffectiveFrom)
		}
		return a.ID < b.ID
	})
	return candidates[0], true
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
