package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/warranty-service/internal/domain"
	"github.com/spec-kit/warranty-service/internal/eligibility"
	"github.com/spec-kit/warranty-service/internal/events"
	"github.com/spec-kit/warranty-service/internal/observability"
	"github.com/spec-kit/warranty-service/internal/repository"
	apperrors "github.com/spec-kit/warranty-service/pkg/util/errorutil"
)

// EligibilityService loads vehicles and rules for the pure evaluator and
// stores decisions and manual overrides on claims.
type EligibilityService struct {
	claimWriter
	vehicles repository.VehicleRepository
	rules    repository.WarrantyRuleRepository
}

// EligibilityDependencies bundles collaborators.
type EligibilityDependencies struct {
	ClaimRepo   repository.ClaimRepository
	VehicleRepo repository.VehicleRepository
	RuleRepo    repository.WarrantyRuleRepository
	HistoryRepo repository.ClaimHistoryRepository
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Clock       Clock
}

// OverrideInput records a staff decision that supersedes the evaluator.
type OverrideInput struct {
	Covered    bool
	Assessment string
}

// NewEligibilityService constructs the service.
func NewEligibilityService(deps EligibilityDependencies) *EligibilityService {
	return &EligibilityService{
		claimWriter: newClaimWriter(deps.ClaimRepo, deps.HistoryRepo, deps.Dispatcher, deps.Metrics, deps.Logger, deps.Clock),
		vehicles:    deps.VehicleRepo,
		rules:       deps.RuleRepo,
	}
}

// SeedRules upserts rules, typically from the policy file at startup.
func (s *EligibilityService) SeedRules(ctx context.Context, rules []domain.WarrantyRule) error {
	for i := range rules {
		if err := s.rules.Save(ctx, &rules[i]); err != nil {
			return err
		}
	}
	s.logger.Info("warranty rules seeded", zap.Int("count", len(rules)))
	return nil
}

// RegisterVehicle stores a vehicle registry entry used by evaluations.
func (s *EligibilityService) RegisterVehicle(ctx context.Context, vehicle domain.Vehicle) (*domain.Vehicle, error) {
	if strings.TrimSpace(vehicle.ID) == "" || strings.TrimSpace(vehicle.VIN) == "" || strings.TrimSpace(vehicle.Model) == "" {
		return nil, apperrors.NewValidationError("id, vin and model required", nil)
	}
	if vehicle.MileageKm < 0 {
		return nil, apperrors.NewValidationError("mileage_km must not be negative", nil)
	}
	now := s.now()
	if vehicle.CreatedAt.IsZero() {
		vehicle.CreatedAt = now
	}
	vehicle.UpdatedAt = now
	if err := s.vehicles.Save(ctx, &vehicle); err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// EvaluateForVehicle runs the evaluator for a registered vehicle. A nil asOf
// means now.
func (s *EligibilityService) EvaluateForVehicle(ctx context.Context, vehicleID, component string, asOf *time.Time) (eligibility.Result, error) {
	vehicle, err := s.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return eligibility.Result{}, mapRepoError("vehicle", vehicleID, err)
	}
	return s.evaluate(ctx, vehicle, component, s.asOf(asOf))
}

// EvaluateForClaim runs the evaluator for the claim's vehicle and the
// component named by its latest diagnosis. It does not modify the claim.
func (s *EligibilityService) EvaluateForClaim(ctx context.Context, claimID string, asOf *time.Time) (eligibility.Result, error) {
	claim, err := s.load(ctx, ClaimRef{ID: claimID})
	if err != nil {
		return eligibility.Result{}, err
	}
	return s.evaluateClaim(ctx, claim, s.asOf(asOf))
}

// RecordOverride stores a manual coverage decision next to the automatic one.
func (s *EligibilityService) RecordOverride(ctx context.Context, actor domain.Actor, ref ClaimRef, input OverrideInput) (*domain.Claim, error) {
	assessment := strings.TrimSpace(input.Assessment)
	if assessment == "" {
		return nil, apperrors.NewValidationError("assessment required", nil)
	}
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if claim.Status.IsTerminal() {
		return nil, apperrors.NewConflictReason(apperrors.ReasonInvalidTransition, "claim is closed", map[string]any{"status": claim.Status})
	}

	previous := claim.Eligibility.ManualOverride
	now := s.now()
	claim.Eligibility.ManualOverride = ptr(input.Covered)
	claim.Eligibility.ManualConfirmedAt = ptr(now)
	claim.Eligibility.ManualAssessment = assessment
	claim.Eligibility.ManualBy = actor.ID

	if err := s.save(ctx, actor, claim, claim.Status, ""); err != nil {
		return nil, err
	}
	s.record(ctx, actor, claim.ID, domain.ChangeTypeOverride,
		map[string]any{"manual_override": previous, "auto_eligible": claim.Eligibility.Eligible},
		map[string]any{"manual_override": input.Covered, "assessment": assessment})
	return claim, nil
}

// evaluateClaim evaluates without persisting.
func (s *EligibilityService) evaluateClaim(ctx context.Context, claim *domain.Claim, asOf time.Time) (eligibility.Result, error) {
	vehicle, err := s.vehicles.GetByID(ctx, claim.VehicleID)
	if err != nil {
		return eligibility.Result{}, mapRepoError("vehicle", claim.VehicleID, err)
	}
	return s.evaluate(ctx, vehicle, latestComponent(claim), asOf)
}

// applySnapshot evaluates and writes the result onto the claim in memory.
// Manual override fields are left untouched.
func (s *EligibilityService) applySnapshot(ctx context.Context, claim *domain.Claim, asOf *time.Time) (eligibility.Result, error) {
	at := s.asOf(asOf)
	res, err := s.evaluateClaim(ctx, claim, at)
	if err != nil {
		return res, err
	}
	evaluatedAt := s.now()
	claim.Eligibility.Evaluated = true
	claim.Eligibility.Eligible = res.Eligible
	claim.Eligibility.Reasons = append([]string(nil), res.Reasons...)
	claim.Eligibility.AppliedYears = res.AppliedYears
	claim.Eligibility.AppliedKm = res.AppliedKm
	claim.Eligibility.RuleID = res.RuleID
	claim.Eligibility.EvaluatedAt = &evaluatedAt
	return res, nil
}

func (s *EligibilityService) evaluate(ctx context.Context, vehicle *domain.Vehicle, component string, asOf time.Time) (eligibility.Result, error) {
	rules, err := s.rules.ListByModel(ctx, vehicle.Model)
	if err != nil {
		return eligibility.Result{}, err
	}
	return eligibility.Evaluate(eligibility.Input{
		RegistrationDate: vehicle.RegistrationDate,
		MileageKm:        vehicle.MileageKm,
		VehicleModel:     vehicle.Model,
		Component:        component,
		AsOf:             asOf,
	}, rules), nil
}

func (s *EligibilityService) asOf(asOf *time.Time) time.Time {
	if asOf != nil {
		return *asOf
	}
	return s.now()
}

func latestComponent(claim *domain.Claim) string {
	for i := len(claim.Diagnoses) - 1; i >= 0; i-- {
		if c := strings.TrimSpace(claim.Diagnoses[i].Component); c != "" {
			return c
		}
	}
	return ""
}
