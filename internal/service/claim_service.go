package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/warranty-service/internal/domain"
	"github.com/spec-kit/warranty-service/internal/events"
	"github.com/spec-kit/warranty-service/internal/observability"
	"github.com/spec-kit/warranty-service/internal/repository"
	apperrors "github.com/spec-kit/warranty-service/pkg/util/errorutil"
)

// DefaultMaxRejections applies when no limit is configured.
const DefaultMaxRejections = 3

// NextActionContinueRepair sends a confirmed resolution straight back to repair.
const NextActionContinueRepair = "CONTINUE_REPAIR"

// ClaimService drives the warranty claim workflow. Every command validates the
// current status against the transition table and writes the claim
// conditionally on its version.
type ClaimService struct {
	claimWriter
	tasks         repository.ApprovalTaskRepository
	workOrders    repository.WorkOrderRepository
	vehicles      repository.VehicleRepository
	serials       repository.PartSerialRepository
	ledger        *LedgerService
	eligibility   *EligibilityService
	maxRejections int
	numberPrefix  string
}

// ClaimDependencies bundles collaborators for the claim service.
type ClaimDependencies struct {
	ClaimRepo         repository.ClaimRepository
	TaskRepo          repository.ApprovalTaskRepository
	WorkOrderRepo     repository.WorkOrderRepository
	VehicleRepo       repository.VehicleRepository
	SerialRepo        repository.PartSerialRepository
	HistoryRepo       repository.ClaimHistoryRepository
	Ledger            *LedgerService
	Eligibility       *EligibilityService
	Dispatcher        events.Dispatcher
	Metrics           *observability.Metrics
	Logger            *zap.Logger
	Clock             Clock
	MaxRejections     int
	ClaimNumberPrefix string
}

// ClaimInput carries intake and draft fields.
type ClaimInput struct {
	CustomerID         string
	VehicleID          string
	FailureDescription string
	RepairPath         domain.RepairPath
	Attachments        []string
}

// DiagnosticInput carries technician findings.
type DiagnosticInput struct {
	Findings                 string
	Component                string
	LaborHours               float64
	Parts                    []domain.ClaimPart
	Attachments              []string
	WarrantyCostCents        *int64
	ServiceCostCents         *int64
	ThirdPartyPartsCostCents *int64
	Evaluate                 bool
	AsOf                     *time.Time
}

// PartRequest asks the ledger for serials of one part.
type PartRequest struct {
	PartID   string
	Quantity int
}

// ApproveInput carries the EVM approval decision.
type ApproveInput struct {
	Notes                string
	CompanyPaidCostCents *int64
	Reservations         []PartRequest
	// ReserveClaimParts reserves the claim's own OEM line items.
	ReserveClaimParts bool
}

// RejectInput carries the EVM rejection decision.
type RejectInput struct {
	Reason string
	Notes  string
}

// ConfirmResolutionInput carries the technician's answer to an EVM resolution.
type ConfirmResolutionInput struct {
	Confirmed      bool
	NextAction     string
	NewDescription string
}

// HandoverInput records the customer's reaction at pickup.
type HandoverInput struct {
	Satisfied bool
	Issue     string
}

// QuoteInput opens a self-pay quote for the customer.
type QuoteInput struct {
	QuotedCents int64
	LineItemID  *string
	Comment     string
}

// ChecklistItem is one line of the submission checklist.
type ChecklistItem struct {
	Code     string `json:"code"`
	Passed   bool   `json:"passed"`
	Required bool   `json:"required"`
	Message  string `json:"message"`
}

// SubmissionChecklist reports whether a claim is ready for EVM review.
type SubmissionChecklist struct {
	ClaimID string          `json:"claim_id"`
	Ready   bool            `json:"ready"`
	Items   []ChecklistItem `json:"items"`
}

// ClaimSummary is a read model for dashboards.
type ClaimSummary struct {
	ClaimID         string                `json:"claim_id"`
	ClaimNumber     string                `json:"claim_number"`
	Status          domain.ClaimStatus    `json:"status"`
	AllowedNext     []domain.ClaimStatus  `json:"allowed_next"`
	RepairPath      domain.RepairPath     `json:"repair_path"`
	RejectionCount  int                   `json:"rejection_count"`
	ResubmitCount   int                   `json:"resubmit_count"`
	CanResubmit     bool                  `json:"can_resubmit"`
	Covered         bool                  `json:"covered"`
	Costs           domain.ClaimCosts     `json:"costs"`
	PaymentStatus   domain.PaymentStatus  `json:"payment_status,omitempty"`
	ReservedSerials int                   `json:"reserved_serials"`
	UsedSerials     int                   `json:"used_serials"`
	OpenTasks       []domain.ApprovalTask `json:"open_tasks"`
	OpenWorkOrders  int                   `json:"open_work_orders"`
	ProblemReports  int                   `json:"problem_reports"`
	Version         int64                 `json:"version"`
}

// NewClaimService constructs the service.
func NewClaimService(deps ClaimDependencies) *ClaimService {
	maxRejections := deps.MaxRejections
	if maxRejections <= 0 {
		maxRejections = DefaultMaxRejections
	}
	prefix := deps.ClaimNumberPrefix
	if prefix == "" {
		prefix = "WC"
	}
	return &ClaimService{
		claimWriter:   newClaimWriter(deps.ClaimRepo, deps.HistoryRepo, deps.Dispatcher, deps.Metrics, deps.Logger, deps.Clock),
		tasks:         deps.TaskRepo,
		workOrders:    deps.WorkOrderRepo,
		vehicles:      deps.VehicleRepo,
		serials:       deps.SerialRepo,
		ledger:        deps.Ledger,
		eligibility:   deps.Eligibility,
		maxRejections: maxRejections,
		numberPrefix:  prefix,
	}
}

// MaxRejections returns the configured rejection limit.
func (s *ClaimService) MaxRejections() int {
	return s.maxRejections
}

// ---- intake ----

// SaveDraft creates a draft or updates an existing one.
func (s *ClaimService) SaveDraft(ctx context.Context, actor domain.Actor, ref ClaimRef, input ClaimInput) (*domain.Claim, error) {
	if err := s.validateClaimInput(ctx, input); err != nil {
		return nil, err
	}
	if ref.ID == "" {
		claim := s.newClaim(actor, input, domain.ClaimStatusDraft)
		if err := s.create(ctx, actor, claim); err != nil {
			return nil, err
		}
		return claim, nil
	}

	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if claim.Status != domain.ClaimStatusDraft {
		return nil, apperrors.NewConflictReason(apperrors.ReasonInvalidTransition, "only drafts can be edited", map[string]any{"status": claim.Status})
	}
	applyClaimInput(claim, input)
	if err := s.save(ctx, actor, claim, claim.Status, ""); err != nil {
		return nil, err
	}
	return claim, nil
}

// DeleteDraft removes a draft. Intake claims are never deleted.
func (s *ClaimService) DeleteDraft(ctx context.Context, actor domain.Actor, ref ClaimRef) error {
	claim, err := s.load(ctx, ref)
	if err != nil {
		return err
	}
	if claim.Status != domain.ClaimStatusDraft {
		return apperrors.NewConflictReason(apperrors.ReasonInvalidTransition, "only drafts can be deleted", map[string]any{"status": claim.Status})
	}
	if err := s.claims.Delete(ctx, claim.ID, claim.Version); err != nil {
		return mapRepoError("claim", claim.ID, err)
	}
	s.logger.Info("draft deleted", zap.String("claim_id", claim.ID), zap.String("actor_id", actor.ID))
	return nil
}

// CreateIntake opens a claim, either fresh or by promoting a draft.
func (s *ClaimService) CreateIntake(ctx context.Context, actor domain.Actor, ref ClaimRef, input ClaimInput) (*domain.Claim, error) {
	if ref.ID == "" {
		if err := s.validateClaimInput(ctx, input); err != nil {
			return nil, err
		}
		claim := s.newClaim(actor, input, domain.ClaimStatusOpen)
		if err := s.create(ctx, actor, claim); err != nil {
			return nil, err
		}
		return claim, nil
	}

	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(claim, domain.ClaimStatusOpen, domain.ClaimStatusDraft); err != nil {
		return nil, err
	}
	merged := mergeClaimInput(claim, input)
	if err := s.validateClaimInput(ctx, merged); err != nil {
		return nil, err
	}
	applyClaimInput(claim, merged)
	from := claim.Status
	claim.Status = domain.ClaimStatusOpen
	claim.Diagnoses = append(claim.Diagnoses, s.intakeDiagnosis(claim.FailureDescription))
	if err := s.save(ctx, actor, claim, from, "intake"); err != nil {
		return nil, err
	}
	return claim, nil
}

// ---- diagnosis and submission ----

// UpdateDiagnostic appends technician findings and optionally evaluates
// warranty eligibility.
func (s *ClaimService) UpdateDiagnostic(ctx context.Context, actor domain.Actor, ref ClaimRef, input DiagnosticInput) (*domain.Claim, error) {
	findings := strings.TrimSpace(input.Findings)
	if findings == "" {
		return nil, apperrors.NewValidationError("findings required", nil)
	}
	if input.LaborHours < 0 {
		return nil, apperrors.NewValidationError("labor_hours must not be negative", nil)
	}
	if err := validateCosts(input.WarrantyCostCents, input.ServiceCostCents, input.ThirdPartyPartsCostCents); err != nil {
		return nil, err
	}
	parts, err := normalizeParts(input.Parts)
	if err != nil {
		return nil, err
	}

	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(claim, domain.ClaimStatusDiagnosed, domain.ClaimStatusOpen, domain.ClaimStatusDiagnosed); err != nil {
		return nil, err
	}

	from := claim.Status
	claim.Diagnoses = append(claim.Diagnoses, domain.Diagnosis{
		ID:           uuid.NewString(),
		Source:       domain.DiagnosisSourceTechnician,
		TechnicianID: actor.ID,
		Component:    strings.TrimSpace(input.Component),
		Findings:     findings,
		LaborHours:   input.LaborHours,
		RecordedAt:   s.now(),
	})
	if claim.TechnicianID == nil && actor.HasRole(domain.RoleTechnician) {
		claim.TechnicianID = ptr(actor.ID)
	}
	if input.Parts != nil {
		claim.Parts = parts
	}
	claim.Attachments = appendUnique(claim.Attachments, input.Attachments...)
	if input.WarrantyCostCents != nil {
		claim.Costs.WarrantyCostCents = ptr(*input.WarrantyCostCents)
	}
	if input.ServiceCostCents != nil {
		claim.Costs.ServiceCostCents = ptr(*input.ServiceCostCents)
	}
	if input.ThirdPartyPartsCostCents != nil {
		claim.Costs.ThirdPartyPartsCostCents = ptr(*input.ThirdPartyPartsCostCents)
	}
	claim.Costs.Recalculate()

	evaluated := false
	if input.Evaluate && s.eligibility != nil {
		if _, err := s.eligibility.applySnapshot(ctx, claim, input.AsOf); err != nil {
			return nil, err
		}
		evaluated = true
	}
	claim.Status = domain.ClaimStatusDiagnosed

	if err := s.save(ctx, actor, claim, from, "diagnosis updated"); err != nil {
		return nil, err
	}
	s.record(ctx, actor, claim.ID, domain.ChangeTypeDiagnosis, nil, map[string]any{
		"findings":    findings,
		"component":   input.Component,
		"parts":       len(claim.Parts),
		"labor_hours": input.LaborHours,
	})
	if evaluated {
		s.record(ctx, actor, claim.ID, domain.ChangeTypeEligibility, nil, map[string]any{
			"eligible": claim.Eligibility.Eligible,
			"reasons":  claim.Eligibility.Reasons,
			"rule_id":  claim.Eligibility.RuleID,
		})
	}
	return claim, nil
}

// ValidateForSubmission runs the submission checklist without side effects.
func (s *ClaimService) ValidateForSubmission(ctx context.Context, claimID string) (*SubmissionChecklist, error) {
	claim, err := s.load(ctx, ClaimRef{ID: claimID})
	if err != nil {
		return nil, err
	}
	return buildChecklist(claim), nil
}

// SubmitToEvm sends a diagnosed warranty claim for manufacturer approval.
func (s *ClaimService) SubmitToEvm(ctx context.Context, actor domain.Actor, ref ClaimRef, comment string) (*domain.Claim, error) {
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(claim, domain.ClaimStatusPendingEVMApproval, domain.ClaimStatusDiagnosed); err != nil {
		return nil, err
	}
	if claim.RepairPath == domain.RepairPathSelfPay {
		return nil, apperrors.NewValidationError("self-pay claims use customer approval, not EVM submission", nil)
	}
	checklist := buildChecklist(claim)
	if !checklist.Ready {
		return nil, apperrors.NewValidationError("claim is not ready for submission", map[string]any{"checklist": checklist.Items})
	}

	task, err := s.openTask(ctx, actor, claim, domain.ApprovalTypeEVM, nil, nil, comment)
	if err != nil {
		return nil, err
	}
	from := claim.Status
	claim.Status = domain.ClaimStatusPendingEVMApproval
	if err := s.save(ctx, actor, claim, from, comment); err != nil {
		s.cancelTask(ctx, actor, task)
		return nil, err
	}
	return claim, nil
}

// ---- EVM decisions ----

// Approve accepts the claim. Requested reservations succeed for every part
// or for none.
func (s *ClaimService) Approve(ctx context.Context, actor domain.Actor, ref ClaimRef, input ApproveInput) (*domain.Claim, error) {
	if err := validateCosts(input.CompanyPaidCostCents); err != nil {
		return nil, err
	}
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(claim, domain.ClaimStatusEVMApproved, domain.ClaimStatusPendingEVMApproval); err != nil {
		return nil, err
	}

	requests, err := reservationRequests(claim, input)
	if err != nil {
		return nil, err
	}
	reserved, err := s.reserveAll(ctx, claim.ID, requests)
	if err != nil {
		return nil, err
	}

	from := claim.Status
	now := s.now()
	claim.Status = domain.ClaimStatusEVMApproved
	claim.ApprovedAt = ptr(now)
	claim.ApprovalNotes = strings.TrimSpace(input.Notes)
	if input.CompanyPaidCostCents != nil {
		claim.Costs.CompanyPaidCostCents = ptr(*input.CompanyPaidCostCents)
	}
	if err := s.save(ctx, actor, claim, from, input.Notes); err != nil {
		s.releaseSerials(ctx, claim.ID, reserved)
		return nil, err
	}

	s.decideOpenTask(ctx, actor, claim.ID, domain.ApprovalTypeEVM, domain.ApprovalStatusApproved, input.Notes)
	if len(reserved) > 0 {
		ids := serialIDs(reserved)
		s.record(ctx, actor, claim.ID, domain.ChangeTypeReservation, nil, map[string]any{"serial_ids": ids})
		s.publish(ctx, claim, actor, events.EventPartsReserved, events.PartsReservedPayload{SerialIDs: ids})
	}
	return claim, nil
}

// Reject declines the claim and decides whether it may be resubmitted.
func (s *ClaimService) Reject(ctx context.Context, actor domain.Actor, ref ClaimRef, input RejectInput) (*domain.Claim, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("rejection reason required", nil)
	}
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(claim, domain.ClaimStatusEVMRejected, domain.ClaimStatusPendingEVMApproval); err != nil {
		return nil, err
	}

	from := claim.Status
	claim.Status = domain.ClaimStatusEVMRejected
	claim.RejectionCount++
	claim.CanResubmit = claim.RejectionCount < s.maxRejections
	claim.RejectionReason = reason
	claim.RejectionNotes = strings.TrimSpace(input.Notes)
	claim.RejectedAt = ptr(s.now())
	if err := s.save(ctx, actor, claim, from, reason); err != nil {
		return nil, err
	}

	s.decideOpenTask(ctx, actor, claim.ID, domain.ApprovalTypeEVM, domain.ApprovalStatusRejected, reason)
	s.publish(ctx, claim, actor, events.EventClaimRejected, events.ClaimRejectedPayload{
		Reason:         reason,
		RejectionCount: claim.RejectionCount,
		CanResubmit:    claim.CanResubmit,
	})
	return claim, nil
}

// RequestMoreInfo returns the claim to the service center for more evidence.
func (s *ClaimService) RequestMoreInfo(ctx context.Context, actor domain.Actor, ref ClaimRef, notes string) (*domain.Claim, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, apperrors.NewValidationError("notes required", nil)
	}
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(claim, domain.ClaimStatusReturnedForInfo, domain.ClaimStatusPendingEVMApproval); err != nil {
		return nil, err
	}
	from := claim.Status
	claim.Status = domain.ClaimStatusReturnedForInfo
	claim.RejectionNotes = notes
	if err := s.save(ctx, actor, claim, from, notes); err != nil {
		return nil, err
	}
	s.decideOpenTask(ctx, actor, claim.ID, domain.ApprovalTypeEVM, domain.ApprovalStatusNeedMoreInfo, notes)
	return claim, nil
}

// Resubmit sends a rejected or returned claim back for approval.
func (s *ClaimService) Resubmit(ctx context.Context, actor domain.Actor, ref ClaimRef, comment string) (*domain.Claim, error) {
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !claim.Status.IsRejectedOrReturned() {
		return nil, invalidTransition(claim, domain.ClaimStatusPendingEVMApproval)
	}
	if !claim.CanResubmit {
		return nil, apperrors.NewConflictReason(apperrors.ReasonResubmitExhausted,
			"claim reached the rejection limit and cannot be resubmitted",
			map[string]any{"rejection_count": claim.RejectionCount, "max_rejections": s.maxRejections})
	}
	if err := requireTransition(claim, domain.ClaimStatusPendingEVMApproval); err != nil {
		return nil, err
	}

	task, err := s.openTask(ctx, actor, claim, domain.ApprovalTypeEVM, nil, nil, comment)
	if err != nil {
		return nil, err
	}
	from := claim.Status
	claim.Status = domain.ClaimStatusPendingEVMApproval
	claim.ResubmitCount++
	claim.RejectionReason = ""
	claim.RejectionNotes = ""
	claim.RejectedAt = nil
	if err := s.save(ctx, actor, claim, from, comment); err != nil {
		s.cancelTask(ctx, actor, task)
		return nil, err
	}
	return claim, nil
}

// ---- repair loop ----

// StartRepair moves an approved claim into repair and opens a work order.
func (s *ClaimService) StartRepair(ctx context.Context, actor domain.Actor, ref ClaimRef, technicianID string) (*domain.Claim, error) {
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(claim, domain.ClaimStatusInRepair, domain.ClaimStatusEVMApproved); err != nil {
		return nil, err
	}
	tech, err := resolveTechnician(claim, actor, technicianID)
	if err != nil {
		return nil, err
	}

	order, err := s.openWorkOrder(ctx, claim.ID, tech)
	if err != nil {
		return nil, err
	}
	from := claim.Status
	claim.Status = domain.ClaimStatusInRepair
	claim.TechnicianID = ptr(tech)
	if err := s.save(ctx, actor, claim, from, ""); err != nil {
		s.finishWorkOrder(ctx, order, domain.WorkOrderStatusCancelled)
		return nil, err
	}
	return claim, nil
}

// ReportProblem flags that the approved plan does not match the vehicle and
// asks the manufacturer to review. Diagnoses are kept.
func (s *ClaimService) ReportProblem(ctx context.Context, actor domain.Actor, ref ClaimRef, description string) (*domain.Claim, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperrors.NewValidationError("problem description required", nil)
	}
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(claim, domain.ClaimStatusProblemReported, domain.ClaimStatusInRepair, domain.ClaimStatusResolutionConfirmed); err != nil {
		return nil, err
	}
	return s.raiseProblem(ctx, actor, claim, description)
}

// ResolveProblem records the manufacturer's answer to a problem report.
func (s *ClaimService) ResolveProblem(ctx context.Context, actor domain.Actor, ref ClaimRef, resolution string) (*domain.Claim, error) {
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		return nil, apperrors.NewValidationError("resolution required", nil)
	}
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(claim, domain.ClaimStatusProblemSolved, domain.ClaimStatusProblemReported); err != nil {
		return nil, err
	}
	report := claim.LatestProblem()
	if report == nil {
		return nil, apperrors.NewValidationError("claim has no problem report", nil)
	}
	from := claim.Status
	report.Resolution = resolution
	report.ResolvedBy = actor.ID
	report.ResolvedAt = ptr(s.now())
	claim.Status = domain.ClaimStatusProblemSolved
	if err := s.save(ctx, actor, claim, from, resolution); err != nil {
		return nil, err
	}
	s.decideOpenTask(ctx, actor, claim.ID, domain.ApprovalTypeEVM, domain.ApprovalStatusApproved, resolution)
	return claim, nil
}

// ConfirmResolution lets the technician accept the resolution or re-raise.
func (s *ClaimService) ConfirmResolution(ctx context.Context, actor domain.Actor, ref ClaimRef, input ConfirmResolutionInput) (*domain.Claim, error) {
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if claim.Status != domain.ClaimStatusProblemSolved {
		return nil, invalidTransition(claim, domain.ClaimStatusResolutionConfirmed)
	}
	report := claim.LatestProblem()

	if !input.Confirmed {
		description := strings.TrimSpace(input.NewDescription)
		if description == "" {
			return nil, apperrors.NewValidationError("new problem description required when resolution is not confirmed", nil)
		}
		if report != nil {
			report.Confirmed = ptr(false)
			report.ConfirmedAt = ptr(s.now())
		}
		return s.raiseProblem(ctx, actor, claim, description)
	}

	to := domain.ClaimStatusResolutionConfirmed
	if input.NextAction == NextActionContinueRepair {
		to = domain.ClaimStatusInRepair
	}
	if err := requireTransition(claim, to); err != nil {
		return nil, err
	}
	if report != nil {
		report.Confirmed = ptr(true)
		report.ConfirmedAt = ptr(s.now())
	}
	from := claim.Status
	claim.Status = to
	if err := s.save(ctx, actor, claim, from, input.NextAction); err != nil {
		return nil, err
	}
	return claim, nil
}

// CompleteRepair marks the repair finished and closes open work orders.
func (s *ClaimService) CompleteRepair(ctx context.Context, actor domain.Actor, ref ClaimRef, notes string) (*domain.Claim, error) {
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(claim, domain.ClaimStatusWorkDone, domain.ClaimStatusInRepair, domain.ClaimStatusResolutionConfirmed); err != nil {
		return nil, err
	}
	from := claim.Status
	claim.Status = domain.ClaimStatusWorkDone
	if err := s.save(ctx, actor, claim, from, notes); err != nil {
		return nil, err
	}
	s.closeWorkOrders(ctx, claim.ID, domain.WorkOrderStatusDone)
	return claim, nil
}

// PerformFinalInspection records the quality check. A failed inspection sends
// the claim back to repair with a fresh work order.
func (s *ClaimService) PerformFinalInspection(ctx context.Context, actor domain.Actor, ref ClaimRef, passed bool, notes string) (*domain.Claim, error) {
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	to := domain.ClaimStatusFinalInspection
	if !passed {
		to = domain.ClaimStatusInRepair
	}
	if err := requireStatus(claim, to, domain.ClaimStatusWorkDone); err != nil {
		return nil, err
	}

	var order *domain.WorkOrder
	if !passed && claim.TechnicianID != nil {
		order, err = s.openWorkOrder(ctx, claim.ID, *claim.TechnicianID)
		if err != nil {
			return nil, err
		}
	}
	from := claim.Status
	claim.Status = to
	claim.Inspection = &domain.Inspection{
		InspectorID: actor.ID,
		Passed:      passed,
		Notes:       strings.TrimSpace(notes),
		InspectedAt: s.now(),
	}
	if err := s.save(ctx, actor, claim, from, notes); err != nil {
		if order != nil {
			s.finishWorkOrder(ctx, order, domain.WorkOrderStatusCancelled)
		}
		return nil, err
	}
	return claim, nil
}

// MarkReadyForHandover notifies the customer that the vehicle can be collected.
func (s *ClaimService) MarkReadyForHandover(ctx context.Context, actor domain.Actor, ref ClaimRef) (*domain.Claim, error) {
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(claim, domain.ClaimStatusReadyForHandover, domain.ClaimStatusFinalInspection); err != nil {
		return nil, err
	}
	from := claim.Status
	claim.Status = domain.ClaimStatusReadyForHandover
	claim.ReadyForHandoverAt = ptr(s.now())
	if err := s.save(ctx, actor, claim, from, ""); err != nil {
		return nil, err
	}
	s.publish(ctx, claim, actor, events.EventReadyForHandover, nil)
	return claim, nil
}

// HandoverVehicle completes the claim or, when the customer reports an
// unresolved issue, reopens it with a new diagnosis entry.
func (s *ClaimService) HandoverVehicle(ctx context.Context, actor domain.Actor, ref ClaimRef, input HandoverInput) (*domain.Claim, error) {
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	to := domain.ClaimStatusClaimDone
	if !input.Satisfied {
		to = domain.ClaimStatusOpen
	}
	if err := requireStatus(claim, to, domain.ClaimStatusReadyForHandover); err != nil {
		return nil, err
	}

	from := claim.Status
	if input.Satisfied {
		if claim.PaymentStatus == domain.PaymentStatusPending {
			return nil, apperrors.NewValidationError("payment is still pending", map[string]any{"payment_status": claim.PaymentStatus})
		}
	} else {
		issue := strings.TrimSpace(input.Issue)
		if issue == "" {
			return nil, apperrors.NewValidationError("issue description required when the customer is not satisfied", nil)
		}
		claim.Diagnoses = append(claim.Diagnoses, domain.Diagnosis{
			ID:         uuid.NewString(),
			Source:     domain.DiagnosisSourceHandover,
			Findings:   issue,
			RecordedAt: s.now(),
		})
		claim.Inspection = nil
		claim.ReadyForHandoverAt = nil
	}
	claim.Status = to
	if err := s.save(ctx, actor, claim, from, input.Issue); err != nil {
		return nil, err
	}
	if !input.Satisfied {
		s.releaseUnused(ctx, actor, claim)
	}
	return claim, nil
}

// releaseUnused returns serials still RESERVED from the previous repair cycle
// so the next approval can reserve afresh. Installed serials stay USED.
func (s *ClaimService) releaseUnused(ctx context.Context, actor domain.Actor, claim *domain.Claim) {
	if s.ledger == nil {
		return
	}
	released, err := s.ledger.ReleaseAllForClaim(ctx, claim.ID)
	if err != nil {
		s.logger.Error("failed to release unused reservations", zap.String("claim_id", claim.ID), zap.Error(err))
		return
	}
	if released > 0 {
		s.record(ctx, actor, claim.ID, domain.ChangeTypeReservation,
			map[string]any{"released": released}, map[string]any{"reason": "reopened at handover"})
	}
}

// CloseClaim finalizes a completed claim, or a rejected one that can no
// longer be resubmitted.
func (s *ClaimService) CloseClaim(ctx context.Context, actor domain.Actor, ref ClaimRef, notes string) (*domain.Claim, error) {
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	switch claim.Status {
	case domain.ClaimStatusClaimDone:
	case domain.ClaimStatusEVMRejected:
		if claim.CanResubmit {
			return nil, apperrors.NewConflictReason(apperrors.ReasonInvalidTransition,
				"rejected claim can still be resubmitted; close it only once resubmission is exhausted",
				map[string]any{"rejection_count": claim.RejectionCount, "max_rejections": s.maxRejections})
		}
	default:
		return nil, invalidTransition(claim, domain.ClaimStatusClosed)
	}
	from := claim.Status
	claim.Status = domain.ClaimStatusClosed
	claim.ClosedAt = ptr(s.now())
	if err := s.save(ctx, actor, claim, from, notes); err != nil {
		return nil, err
	}
	return claim, nil
}

// AssignTechnician sets the technician responsible for the claim.
func (s *ClaimService) AssignTechnician(ctx context.Context, actor domain.Actor, ref ClaimRef, technicianID string) (*domain.Claim, error) {
	technicianID = strings.TrimSpace(technicianID)
	if technicianID == "" {
		return nil, apperrors.NewValidationError("technician_id required", nil)
	}
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if claim.Status.IsTerminal() {
		return nil, apperrors.NewConflictReason(apperrors.ReasonInvalidTransition, "claim is closed", map[string]any{"status": claim.Status})
	}
	previous := claim.TechnicianID
	claim.TechnicianID = ptr(technicianID)
	if err := s.save(ctx, actor, claim, claim.Status, ""); err != nil {
		return nil, err
	}
	s.record(ctx, actor, claim.ID, domain.ChangeTypeStatus,
		map[string]any{"technician_id": previous},
		map[string]any{"technician_id": technicianID})
	return claim, nil
}

// ---- manual reservations ----

// ReserveParts reserves serials for an active claim outside the approval step.
func (s *ClaimService) ReserveParts(ctx context.Context, actor domain.Actor, claimID, partID string, quantity int) ([]domain.PartSerial, error) {
	claim, err := s.load(ctx, ClaimRef{ID: claimID})
	if err != nil {
		return nil, err
	}
	if err := requireReservable(claim); err != nil {
		return nil, err
	}
	if s.ledger == nil {
		return nil, apperrors.NewValidationError("parts ledger not configured", nil)
	}
	serials, err := s.ledger.ReserveForClaim(ctx, claim.ID, partID, quantity)
	if err != nil {
		return nil, err
	}
	// a cancellation that started meanwhile may already have run its release
	current, err := s.claims.GetByID(ctx, claim.ID)
	if err != nil {
		s.releaseSerials(ctx, claim.ID, serials)
		return nil, mapRepoError("claim", claim.ID, err)
	}
	if err := requireReservable(current); err != nil {
		s.releaseSerials(ctx, claim.ID, serials)
		return nil, err
	}

	ids := serialIDs(serials)
	s.record(ctx, actor, claim.ID, domain.ChangeTypeReservation, nil, map[string]any{"part_id": partID, "serial_ids": ids})
	s.publish(ctx, current, actor, events.EventPartsReserved, events.PartsReservedPayload{SerialIDs: ids})
	return serials, nil
}

// ReleaseParts returns the claim's reserved serials of a part to stock.
// Releasing when nothing is held is a no-op.
func (s *ClaimService) ReleaseParts(ctx context.Context, actor domain.Actor, claimID, partID string) (int, error) {
	claim, err := s.load(ctx, ClaimRef{ID: claimID})
	if err != nil {
		return 0, err
	}
	if s.ledger == nil {
		return 0, apperrors.NewValidationError("parts ledger not configured", nil)
	}
	released, err := s.ledger.ReleaseForClaimAndPart(ctx, claim.ID, partID)
	if err != nil {
		return 0, err
	}
	if released > 0 {
		s.record(ctx, actor, claim.ID, domain.ChangeTypeReservation,
			map[string]any{"part_id": partID, "released": released}, nil)
	}
	return released, nil
}

// ---- self-pay branch ----

// RequestCustomerApproval switches a diagnosed claim to the self-pay path and
// asks the customer to accept a quote.
func (s *ClaimService) RequestCustomerApproval(ctx context.Context, actor domain.Actor, ref ClaimRef, input QuoteInput) (*domain.Claim, error) {
	if input.QuotedCents <= 0 {
		return nil, apperrors.NewValidationError("quoted amount must be positive", nil)
	}
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(claim, domain.ClaimStatusPendingCustomerApproval, domain.ClaimStatusDiagnosed); err != nil {
		return nil, err
	}

	task, err := s.openTask(ctx, actor, claim, domain.ApprovalTypeCustomer, input.LineItemID, ptr(input.QuotedCents), input.Comment)
	if err != nil {
		return nil, err
	}
	from := claim.Status
	claim.Status = domain.ClaimStatusPendingCustomerApproval
	claim.RepairPath = domain.RepairPathSelfPay
	claim.PaymentStatus = domain.PaymentStatusPending
	claim.Costs.ServiceCostCents = ptr(input.QuotedCents)
	claim.Costs.Recalculate()
	if err := s.save(ctx, actor, claim, from, input.Comment); err != nil {
		s.cancelTask(ctx, actor, task)
		return nil, err
	}
	s.publish(ctx, claim, actor, events.EventCustomerQuoteIssued, events.CustomerQuotePayload{QuotedCents: input.QuotedCents})
	return claim, nil
}

// RecordCustomerApproval stores the customer's answer to the quote. A declined
// quote returns the vehicle unrepaired.
func (s *ClaimService) RecordCustomerApproval(ctx context.Context, actor domain.Actor, ref ClaimRef, approved bool, comment string) (*domain.Claim, error) {
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	to := domain.ClaimStatusSCRepair
	if !approved {
		to = domain.ClaimStatusReadyForHandover
	}
	if err := requireStatus(claim, to, domain.ClaimStatusPendingCustomerApproval); err != nil {
		return nil, err
	}

	var order *domain.WorkOrder
	if approved && claim.TechnicianID != nil {
		order, err = s.openWorkOrder(ctx, claim.ID, *claim.TechnicianID)
		if err != nil {
			return nil, err
		}
	}
	from := claim.Status
	claim.Status = to
	if !approved {
		claim.PaymentStatus = domain.PaymentStatusNone
		claim.ReadyForHandoverAt = ptr(s.now())
	}
	if err := s.save(ctx, actor, claim, from, comment); err != nil {
		if order != nil {
			s.finishWorkOrder(ctx, order, domain.WorkOrderStatusCancelled)
		}
		return nil, err
	}

	decision := domain.ApprovalStatusApproved
	if !approved {
		decision = domain.ApprovalStatusRejected
	}
	s.decideOpenTask(ctx, actor, claim.ID, domain.ApprovalTypeCustomer, decision, comment)
	if !approved {
		s.publish(ctx, claim, actor, events.EventReadyForHandover, nil)
	}
	return claim, nil
}

// UpdatePaymentStatus advances payment on a self-pay claim. Payment only
// moves forward: none, PENDING, PAID.
func (s *ClaimService) UpdatePaymentStatus(ctx context.Context, actor domain.Actor, ref ClaimRef, status domain.PaymentStatus) (*domain.Claim, error) {
	if status != domain.PaymentStatusPending && status != domain.PaymentStatusPaid {
		return nil, apperrors.NewValidationError("payment status must be PENDING or PAID", map[string]any{"payment_status": status})
	}
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if claim.RepairPath != domain.RepairPathSelfPay {
		return nil, apperrors.NewValidationError("payment status applies to self-pay claims only", nil)
	}
	if claim.Status.IsTerminal() {
		return nil, apperrors.NewConflictReason(apperrors.ReasonInvalidTransition, "claim is closed", map[string]any{"status": claim.Status})
	}
	if claim.PaymentStatus == status {
		return claim, nil
	}
	if claim.PaymentStatus == domain.PaymentStatusPaid {
		return nil, apperrors.NewConflict("payment already recorded as PAID", map[string]any{"payment_status": claim.PaymentStatus})
	}

	previous := claim.PaymentStatus
	claim.PaymentStatus = status
	if err := s.save(ctx, actor, claim, claim.Status, ""); err != nil {
		return nil, err
	}
	s.record(ctx, actor, claim.ID, domain.ChangeTypePayment,
		map[string]any{"payment_status": previous},
		map[string]any{"payment_status": status})
	return claim, nil
}

// MarkWorkDone finishes service-center repair on the self-pay path.
func (s *ClaimService) MarkWorkDone(ctx context.Context, actor domain.Actor, ref ClaimRef) (*domain.Claim, error) {
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(claim, domain.ClaimStatusWorkDone, domain.ClaimStatusSCRepair); err != nil {
		return nil, err
	}
	from := claim.Status
	claim.Status = domain.ClaimStatusWorkDone
	if err := s.save(ctx, actor, claim, from, ""); err != nil {
		return nil, err
	}
	s.closeWorkOrders(ctx, claim.ID, domain.WorkOrderStatusDone)
	return claim, nil
}

// MarkClaimDone completes a paid self-pay claim.
func (s *ClaimService) MarkClaimDone(ctx context.Context, actor domain.Actor, ref ClaimRef) (*domain.Claim, error) {
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(claim, domain.ClaimStatusClaimDone, domain.ClaimStatusWorkDone, domain.ClaimStatusReadyForHandover); err != nil {
		return nil, err
	}
	if claim.RepairPath != domain.RepairPathSelfPay {
		return nil, apperrors.NewValidationError("only self-pay claims can be marked done directly", nil)
	}
	if claim.PaymentStatus != domain.PaymentStatusPaid {
		return nil, apperrors.NewValidationError("payment must be PAID before the claim is done", map[string]any{"payment_status": claim.PaymentStatus})
	}
	from := claim.Status
	claim.Status = domain.ClaimStatusClaimDone
	if err := s.save(ctx, actor, claim, from, ""); err != nil {
		return nil, err
	}
	return claim, nil
}

// ---- queries ----

// GetClaim returns a claim by ID.
func (s *ClaimService) GetClaim(ctx context.Context, claimID string) (*domain.Claim, error) {
	return s.load(ctx, ClaimRef{ID: claimID})
}

// ListClaimsByStatus lists claims in any of the given statuses.
func (s *ClaimService) ListClaimsByStatus(ctx context.Context, statuses []domain.ClaimStatus, limit, offset int) ([]domain.Claim, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": st})
		}
	}
	return s.claims.List(ctx, repository.ClaimFilter{Statuses: statuses, Limit: limit, Offset: offset})
}

// ListClaimsByTechnician lists claims assigned to a technician.
func (s *ClaimService) ListClaimsByTechnician(ctx context.Context, technicianID string, statuses []domain.ClaimStatus, limit, offset int) ([]domain.Claim, error) {
	if strings.TrimSpace(technicianID) == "" {
		return nil, apperrors.NewValidationError("technician_id required", nil)
	}
	return s.claims.List(ctx, repository.ClaimFilter{
		Statuses:     statuses,
		TechnicianID: &technicianID,
		Limit:        limit,
		Offset:       offset,
	})
}

// CountClaimsByStatus returns the number of claims per status.
func (s *ClaimService) CountClaimsByStatus(ctx context.Context) (map[domain.ClaimStatus]int, error) {
	return s.claims.CountByStatus(ctx)
}

// ListHistory returns the claim's audit trail.
func (s *ClaimService) ListHistory(ctx context.Context, claimID string, limit, offset int) ([]domain.ClaimHistory, error) {
	if s.history == nil {
		return []domain.ClaimHistory{}, nil
	}
	if _, err := s.load(ctx, ClaimRef{ID: claimID}); err != nil {
		return nil, err
	}
	return s.history.ListByClaim(ctx, claimID, limit, offset)
}

// ListTasks returns the claim's approval tasks.
func (s *ClaimService) ListTasks(ctx context.Context, claimID string) ([]domain.ApprovalTask, error) {
	return s.tasks.ListByClaim(ctx, claimID)
}

// GetClaimSummary aggregates the claim with its tasks, work orders and serials.
func (s *ClaimService) GetClaimSummary(ctx context.Context, claimID string) (*ClaimSummary, error) {
	claim, err := s.load(ctx, ClaimRef{ID: claimID})
	if err != nil {
		return nil, err
	}
	summary := &ClaimSummary{
		ClaimID:        claim.ID,
		ClaimNumber:    claim.ClaimNumber,
		Status:         claim.Status,
		AllowedNext:    domain.AllowedNext(claim.Status),
		RepairPath:     claim.RepairPath,
		RejectionCount: claim.RejectionCount,
		ResubmitCount:  claim.ResubmitCount,
		CanResubmit:    claim.CanResubmit,
		Covered:        claim.Eligibility.Covered(),
		Costs:          claim.Costs,
		PaymentStatus:  claim.PaymentStatus,
		OpenTasks:      []domain.ApprovalTask{},
		ProblemReports: len(claim.ProblemReports),
		Version:        claim.Version,
	}

	tasks, err := s.tasks.ListByClaim(ctx, claim.ID)
	if err != nil {
		return nil, err
	}
	for _, task := range tasks {
		if task.IsOpen() {
			summary.OpenTasks = append(summary.OpenTasks, task)
		}
	}
	if s.workOrders != nil {
		orders, err := s.workOrders.ListOpenByClaim(ctx, claim.ID)
		if err != nil {
			return nil, err
		}
		summary.OpenWorkOrders = len(orders)
	}
	if s.serials != nil {
		serials, err := s.serials.ListByClaim(ctx, claim.ID, "")
		if err != nil {
			return nil, err
		}
		for _, serial := range serials {
			switch serial.Status {
			case domain.SerialStatusReserved:
				summary.ReservedSerials++
			case domain.SerialStatusUsed:
				summary.UsedSerials++
			}
		}
	}
	return summary, nil
}

// ListAwaitingPickup returns claims that have been ready for handover since
// before the cutoff.
func (s *ClaimService) ListAwaitingPickup(ctx context.Context, cutoff time.Time) ([]domain.Claim, error) {
	const pageSize = 100
	var result []domain.Claim
	for offset := 0; ; offset += pageSize {
		page, err := s.claims.List(ctx, repository.ClaimFilter{
			Statuses: []domain.ClaimStatus{domain.ClaimStatusReadyForHandover},
			Limit:    pageSize,
			Offset:   offset,
		})
		if err != nil {
			return nil, err
		}
		for _, claim := range page {
			if claim.ReadyForHandoverAt != nil && !claim.ReadyForHandoverAt.After(cutoff) {
				result = append(result, claim)
			}
		}
		if len(page) < pageSize {
			return result, nil
		}
	}
}

// ---- helpers ----

func (s *ClaimService) newClaim(actor domain.Actor, input ClaimInput, status domain.ClaimStatus) *domain.Claim {
	now := s.now()
	path := input.RepairPath
	if path == "" {
		path = domain.RepairPathWarranty
	}
	claim := &domain.Claim{
		ID:                 uuid.NewString(),
		ClaimNumber:        s.claimNumber(now),
		VehicleID:          strings.TrimSpace(input.VehicleID),
		CustomerID:         strings.TrimSpace(input.CustomerID),
		Status:             status,
		RepairPath:         path,
		FailureDescription: strings.TrimSpace(input.FailureDescription),
		CreatedBy:          actor.ID,
		Attachments:        appendUnique(nil, input.Attachments...),
		CanResubmit:        true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if status == domain.ClaimStatusOpen {
		claim.Diagnoses = append(claim.Diagnoses, s.intakeDiagnosis(claim.FailureDescription))
	}
	return claim
}

func (s *ClaimService) create(ctx context.Context, actor domain.Actor, claim *domain.Claim) error {
	if err := s.claims.Create(ctx, claim); err != nil {
		return mapRepoError("claim", claim.ID, err)
	}
	s.logger.Info("claim created",
		zap.String("claim_id", claim.ID),
		zap.String("status", string(claim.Status)),
		zap.String("actor_id", actor.ID))
	s.record(ctx, actor, claim.ID, domain.ChangeTypeStatus, nil, map[string]any{"status": claim.Status})
	s.publish(ctx, claim, actor, events.EventClaimCreated, events.ClaimCreatedPayload{
		VehicleID:  claim.VehicleID,
		Status:     claim.Status,
		RepairPath: claim.RepairPath,
	})
	return nil
}

func (s *ClaimService) intakeDiagnosis(description string) domain.Diagnosis {
	return domain.Diagnosis{
		ID:         uuid.NewString(),
		Source:     domain.DiagnosisSourceIntake,
		Findings:   description,
		RecordedAt: s.now(),
	}
}

func (s *ClaimService) claimNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", s.numberPrefix, now.Format("20060102"), suffix)
}

func (s *ClaimService) validateClaimInput(ctx context.Context, input ClaimInput) error {
	missing := []string{}
	if strings.TrimSpace(input.CustomerID) == "" {
		missing = append(missing, "customer_id")
	}
	if strings.TrimSpace(input.VehicleID) == "" {
		missing = append(missing, "vehicle_id")
	}
	if strings.TrimSpace(input.FailureDescription) == "" {
		missing = append(missing, "failure_description")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}
	if input.RepairPath != "" && input.RepairPath != domain.RepairPathWarranty && input.RepairPath != domain.RepairPathSelfPay {
		return apperrors.NewValidationError("unknown repair path", map[string]any{"repair_path": input.RepairPath})
	}
	if s.vehicles != nil {
		vehicle, err := s.vehicles.GetByID(ctx, strings.TrimSpace(input.VehicleID))
		if err != nil {
			return mapRepoError("vehicle", input.VehicleID, err)
		}
		if vehicle.CustomerID != "" && vehicle.CustomerID != strings.TrimSpace(input.CustomerID) {
			return apperrors.NewValidationError("vehicle does not belong to customer", map[string]any{
				"vehicle_id":  vehicle.ID,
				"customer_id": input.CustomerID,
			})
		}
	}
	return nil
}

// raiseProblem appends a problem report and opens an EVM review task.
func (s *ClaimService) raiseProblem(ctx context.Context, actor domain.Actor, claim *domain.Claim, description string) (*domain.Claim, error) {
	if err := requireTransition(claim, domain.ClaimStatusProblemReported); err != nil {
		return nil, err
	}
	task, err := s.openTask(ctx, actor, claim, domain.ApprovalTypeEVM, nil, nil, description)
	if err != nil {
		return nil, err
	}
	from := claim.Status
	claim.ProblemReports = append(claim.ProblemReports, domain.ProblemReport{
		ID:          uuid.NewString(),
		Description: description,
		ReportedBy:  actor.ID,
		ReportedAt:  s.now(),
	})
	claim.Status = domain.ClaimStatusProblemReported
	if err := s.save(ctx, actor, claim, from, description); err != nil {
		s.cancelTask(ctx, actor, task)
		return nil, err
	}
	return claim, nil
}

func (s *ClaimService) openTask(ctx context.Context, actor domain.Actor, claim *domain.Claim, taskType domain.ApprovalType, lineItemID *string, quoted *int64, comment string) (*domain.ApprovalTask, error) {
	task := &domain.ApprovalTask{
		ID:          uuid.NewString(),
		ClaimID:     claim.ID,
		LineItemID:  lineItemID,
		Type:        taskType,
		Status:      domain.ApprovalStatusPending,
		RequestedBy: actor.ID,
		QuotedCents: quoted,
		Comment:     strings.TrimSpace(comment),
		CreatedAt:   s.now(),
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflictReason(apperrors.ReasonOpenTaskExists,
				fmt.Sprintf("claim already has an open %s approval task", taskType),
				map[string]any{"claim_id": claim.ID, "type": taskType})
		}
		return nil, err
	}
	return task, nil
}

// decideOpenTask resolves the open task of the given type after the claim was
// committed. Failures are logged: the claim state is authoritative.
func (s *ClaimService) decideOpenTask(ctx context.Context, actor domain.Actor, claimID string, taskType domain.ApprovalType, status domain.ApprovalStatus, comment string) {
	task, err := s.tasks.FindOpen(ctx, claimID, taskType)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("failed to load approval task", zap.String("claim_id", claimID), zap.Error(err))
		}
		return
	}
	s.decideTask(ctx, actor, task, status, comment)
}

func (s *ClaimService) cancelTask(ctx context.Context, actor domain.Actor, task *domain.ApprovalTask) {
	s.decideTask(ctx, actor, task, domain.ApprovalStatusCancelled, "")
}

func (s *ClaimService) decideTask(ctx context.Context, actor domain.Actor, task *domain.ApprovalTask, status domain.ApprovalStatus, comment string) {
	task.Status = status
	task.ApproverID = ptr(actor.ID)
	task.DecidedAt = ptr(s.now())
	if c := strings.TrimSpace(comment); c != "" {
		task.Comment = c
	}
	if err := s.tasks.Update(ctx, task); err != nil {
		s.logger.Error("failed to update approval task",
			zap.String("task_id", task.ID),
			zap.String("claim_id", task.ClaimID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

func (s *ClaimService) openWorkOrder(ctx context.Context, claimID, technicianID string) (*domain.WorkOrder, error) {
	if s.workOrders == nil {
		return nil, nil
	}
	order := &domain.WorkOrder{
		ID:           uuid.NewString(),
		ClaimID:      claimID,
		TechnicianID: technicianID,
		Status:       domain.WorkOrderStatusOpen,
		OpenedAt:     s.now(),
	}
	if err := s.workOrders.Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *ClaimService) closeWorkOrders(ctx context.Context, claimID string, status domain.WorkOrderStatus) {
	if s.workOrders == nil {
		return
	}
	orders, err := s.workOrders.ListOpenByClaim(ctx, claimID)
	if err != nil {
		s.logger.Error("failed to list work orders", zap.String("claim_id", claimID), zap.Error(err))
		return
	}
	for i := range orders {
		s.finishWorkOrder(ctx, &orders[i], status)
	}
}

func (s *ClaimService) finishWorkOrder(ctx context.Context, order *domain.WorkOrder, status domain.WorkOrderStatus) {
	if order == nil || s.workOrders == nil {
		return
	}
	order.Status = status
	order.ClosedAt = ptr(s.now())
	if err := s.workOrders.Update(ctx, order); err != nil {
		s.logger.Error("failed to update work order",
			zap.String("work_order_id", order.ID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

// reserveAll reserves every request or none. Serials reserved earlier in the
// same call are released when a later part fails.
func (s *ClaimService) reserveAll(ctx context.Context, claimID string, requests []PartRequest) ([]domain.PartSerial, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	if s.ledger == nil {
		return nil, apperrors.NewValidationError("parts ledger not configured", nil)
	}
	var reserved []domain.PartSerial
	for _, req := range requests {
		serials, err := s.ledger.ReserveForClaim(ctx, claimID, req.PartID, req.Quantity)
		if err != nil {
			s.releaseSerials(ctx, claimID, reserved)
			return nil, err
		}
		reserved = append(reserved, serials...)
	}
	return reserved, nil
}

// releaseSerials undoes this call's own reservations only.
func (s *ClaimService) releaseSerials(ctx context.Context, claimID string, serials []domain.PartSerial) {
	if len(serials) == 0 {
		return
	}
	ids := serialIDs(serials)
	if _, err := s.ledger.ReleaseSerials(ctx, claimID, ids); err != nil {
		s.logger.Error("failed to release reservation",
			zap.String("claim_id", claimID),
			zap.Strings("serial_ids", ids),
			zap.Error(err))
	}
}

func serialIDs(serials []domain.PartSerial) []string {
	ids := make([]string, len(serials))
	for i, serial := range serials {
		ids[i] = serial.ID
	}
	return ids
}

// requireReservable rejects claims that are not in an active workflow state.
// Cancellation releases a claim's parts once, so nothing may be reserved
// after it starts.
func requireReservable(claim *domain.Claim) error {
	if claim.Status == domain.ClaimStatusDraft || claim.Status.IsTerminal() || claim.Status.IsCancelling() {
		return apperrors.NewConflict("claim does not accept reservations", map[string]any{
			"claim_id": claim.ID,
			"status":   claim.Status,
		})
	}
	return nil
}

func reservationRequests(claim *domain.Claim, input ApproveInput) ([]PartRequest, error) {
	totals := map[string]int{}
	var order []string
	add := func(partID string, qty int) error {
		partID = strings.TrimSpace(partID)
		if partID == "" || qty <= 0 {
			return apperrors.NewValidationError("reservation requires part_id and positive quantity", map[string]any{"part_id": partID, "quantity": qty})
		}
		if _, ok := totals[partID]; !ok {
			order = append(order, partID)
		}
		totals[partID] += qty
		return nil
	}
	for _, req := range input.Reservations {
		if err := add(req.PartID, req.Quantity); err != nil {
			return nil, err
		}
	}
	if input.ReserveClaimParts {
		for _, part := range claim.Parts {
			if part.ThirdParty {
				continue
			}
			if err := add(part.PartID, part.Quantity); err != nil {
				return nil, err
			}
		}
	}
	requests := make([]PartRequest, len(order))
	for i, partID := range order {
		requests[i] = PartRequest{PartID: partID, Quantity: totals[partID]}
	}
	return requests, nil
}

func buildChecklist(claim *domain.Claim) *SubmissionChecklist {
	items := []ChecklistItem{
		{
			Code:     "FAILURE_DESCRIPTION",
			Passed:   strings.TrimSpace(claim.FailureDescription) != "",
			Required: true,
			Message:  "failure description recorded",
		},
		{
			Code:     "DIAGNOSIS",
			Passed:   claim.HasDiagnosis(),
			Required: true,
			Message:  "technician diagnosis attached",
		},
		{
			Code:     "EVIDENCE",
			Passed:   len(claim.Attachments) > 0 || len(claim.Parts) > 0,
			Required: true,
			Message:  "at least one attachment or part line item",
		},
		{
			Code:     "WARRANTY_COST",
			Passed:   claim.Costs.WarrantyCostCents != nil,
			Required: false,
			Message:  "warranty cost estimated",
		},
		{
			Code:     "ELIGIBILITY",
			Passed:   claim.Eligibility.Evaluated || claim.Eligibility.ManualOverride != nil,
			Required: false,
			Message:  "warranty eligibility evaluated or confirmed manually",
		},
	}
	ready := true
	for _, item := range items {
		if item.Required && !item.Passed {
			ready = false
		}
	}
	return &SubmissionChecklist{ClaimID: claim.ID, Ready: ready, Items: items}
}

func resolveTechnician(claim *domain.Claim, actor domain.Actor, requested string) (string, error) {
	if t := strings.TrimSpace(requested); t != "" {
		return t, nil
	}
	if claim.TechnicianID != nil {
		return *claim.TechnicianID, nil
	}
	if actor.HasRole(domain.RoleTechnician) {
		return actor.ID, nil
	}
	return "", apperrors.NewValidationError("technician_id required", nil)
}

func mergeClaimInput(claim *domain.Claim, input ClaimInput) ClaimInput {
	merged := ClaimInput{
		CustomerID:         claim.CustomerID,
		VehicleID:          claim.VehicleID,
		FailureDescription: claim.FailureDescription,
		RepairPath:         claim.RepairPath,
		Attachments:        input.Attachments,
	}
	if input.CustomerID != "" {
		merged.CustomerID = input.CustomerID
	}
	if input.VehicleID != "" {
		merged.VehicleID = input.VehicleID
	}
	if input.FailureDescription != "" {
		merged.FailureDescription = input.FailureDescription
	}
	if input.RepairPath != "" {
		merged.RepairPath = input.RepairPath
	}
	return merged
}

func applyClaimInput(claim *domain.Claim, input ClaimInput) {
	claim.CustomerID = strings.TrimSpace(input.CustomerID)
	claim.VehicleID = strings.TrimSpace(input.VehicleID)
	claim.FailureDescription = strings.TrimSpace(input.FailureDescription)
	if input.RepairPath != "" {
		claim.RepairPath = input.RepairPath
	}
	claim.Attachments = appendUnique(claim.Attachments, input.Attachments...)
}

func normalizeParts(parts []domain.ClaimPart) ([]domain.ClaimPart, error) {
	out := make([]domain.ClaimPart, 0, len(parts))
	for _, part := range parts {
		part.PartID = strings.TrimSpace(part.PartID)
		if part.PartID == "" || part.Quantity <= 0 {
			return nil, apperrors.NewValidationError("each part needs part_id and positive quantity", map[string]any{"part_id": part.PartID})
		}
		if part.UnitCostCents < 0 {
			return nil, apperrors.NewValidationError("unit cost must not be negative", map[string]any{"part_id": part.PartID})
		}
		if part.LineItemID == "" {
			part.LineItemID = uuid.NewString()
		}
		out = append(out, part)
	}
	return out, nil
}

func validateCosts(values ...*int64) error {
	for _, v := range values {
		if v != nil && *v < 0 {
			return apperrors.NewValidationError("costs must not be negative", nil)
		}
	}
	return nil
}

func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, v := range dst {
		seen[v] = true
	}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		dst = append(dst, v)
	}
	return dst
}
