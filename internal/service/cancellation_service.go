package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/warranty-service/internal/domain"
	"github.com/spec-kit/warranty-service/internal/events"
	"github.com/spec-kit/warranty-service/internal/observability"
	"github.com/spec-kit/warranty-service/internal/repository"
	apperrors "github.com/spec-kit/warranty-service/pkg/util/errorutil"
)

// CancellationService runs the cancellation sub-flow next to the main
// workflow. The claim's pre-cancel status is snapshotted so a rejected or
// reopened cancellation resumes where the claim left off.
type CancellationService struct {
	claimWriter
	cancellations repository.CancellationRepository
	tasks         repository.ApprovalTaskRepository
	workOrders    repository.WorkOrderRepository
	ledger        *LedgerService
}

// CancellationDependencies bundles collaborators for the cancellation service.
type CancellationDependencies struct {
	ClaimRepo        repository.ClaimRepository
	CancellationRepo repository.CancellationRepository
	TaskRepo         repository.ApprovalTaskRepository
	WorkOrderRepo    repository.WorkOrderRepository
	HistoryRepo      repository.ClaimHistoryRepository
	Ledger           *LedgerService
	Dispatcher       events.Dispatcher
	Metrics          *observability.Metrics
	Logger           *zap.Logger
	Clock            Clock
}

// NewCancellationService constructs the service.
func NewCancellationService(deps CancellationDependencies) *CancellationService {
	return &CancellationService{
		claimWriter:   newClaimWriter(deps.ClaimRepo, deps.HistoryRepo, deps.Dispatcher, deps.Metrics, deps.Logger, deps.Clock),
		cancellations: deps.CancellationRepo,
		tasks:         deps.TaskRepo,
		workOrders:    deps.WorkOrderRepo,
		ledger:        deps.Ledger,
	}
}

// GetCancellation returns the claim's cancellation record. Claims that never
// requested cancellation report status NONE.
func (s *CancellationService) GetCancellation(ctx context.Context, claimID string) (*domain.ClaimCancellation, error) {
	if _, err := s.load(ctx, ClaimRef{ID: claimID}); err != nil {
		return nil, err
	}
	return s.loadRecord(ctx, claimID)
}

// RequestCancel starts a cancellation for an active claim.
func (s *CancellationService) RequestCancel(ctx context.Context, actor domain.Actor, ref ClaimRef, reason string) (*domain.Claim, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("cancellation reason required", nil)
	}
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if claim.Status.IsCancelling() {
		return nil, apperrors.NewConflictReason(apperrors.ReasonInvalidTransition, "cancellation already in progress", map[string]any{"status": claim.Status})
	}
	if err := requireTransition(claim, domain.ClaimStatusCancelRequested); err != nil {
		return nil, err
	}
	record, err := s.loadRecord(ctx, claim.ID)
	if err != nil {
		return nil, err
	}
	if record.InFlight() {
		return nil, apperrors.NewConflictReason(apperrors.ReasonInvalidTransition, "cancellation already in progress", map[string]any{"cancellation_status": record.Status})
	}

	before := record.Clone()
	now := s.now()
	previous := claim.Status
	record.Status = domain.CancellationStatusRequested
	record.RequestCount++
	record.PreviousStatus = &previous
	record.Reason = reason
	record.RequestedBy = actor.ID
	record.RequestedAt = ptr(now)
	record.HandledBy = nil
	record.HandledAt = nil
	record.UpdatedAt = now
	if err := s.saveRecord(ctx, record); err != nil {
		return nil, err
	}

	claim.Status = domain.ClaimStatusCancelRequested
	claim.CancelRequested = true
	if err := s.save(ctx, actor, claim, previous, reason); err != nil {
		s.restoreRecord(ctx, before, record)
		return nil, err
	}
	s.audit(ctx, actor, claim, before, record)
	s.publish(ctx, claim, actor, events.EventCancellationRequested, events.CancellationPayload{
		Reason:         reason,
		PreviousStatus: previous,
		RequestCount:   record.RequestCount,
	})
	return claim, nil
}

// AcceptCancel confirms the request; the vehicle still has to be handed back.
func (s *CancellationService) AcceptCancel(ctx context.Context, actor domain.Actor, ref ClaimRef, comment string) (*domain.Claim, error) {
	claim, record, err := s.loadInFlight(ctx, ref, domain.ClaimStatusCancelAccepted, domain.CancellationStatusRequested)
	if err != nil {
		return nil, err
	}
	if err := requireTransition(claim, domain.ClaimStatusCancelAccepted); err != nil {
		return nil, err
	}

	before := record.Clone()
	now := s.now()
	record.Status = domain.CancellationStatusAccepted
	record.HandledBy = ptr(actor.ID)
	record.HandledAt = ptr(now)
	record.UpdatedAt = now
	if err := s.saveRecord(ctx, record); err != nil {
		return nil, err
	}

	from := claim.Status
	claim.Status = domain.ClaimStatusCancelAccepted
	if err := s.save(ctx, actor, claim, from, comment); err != nil {
		s.restoreRecord(ctx, before, record)
		return nil, err
	}
	s.audit(ctx, actor, claim, before, record)
	s.publish(ctx, claim, actor, events.EventCancellationAccepted, s.payload(record))
	return claim, nil
}

// RejectCancel declines the request and returns the claim to its previous
// status. The request counter is kept.
func (s *CancellationService) RejectCancel(ctx context.Context, actor domain.Actor, ref ClaimRef, comment string) (*domain.Claim, error) {
	claim, record, err := s.loadInFlight(ctx, ref, "", domain.CancellationStatusRequested)
	if err != nil {
		return nil, err
	}
	if claim.Status != domain.ClaimStatusCancelRequested {
		return nil, invalidCancelState(claim, record)
	}
	return s.restore(ctx, actor, claim, record, comment, events.EventCancellationRejected)
}

// ReopenAfterCancel abandons a cancellation that has not been handed over.
func (s *CancellationService) ReopenAfterCancel(ctx context.Context, actor domain.Actor, ref ClaimRef, comment string) (*domain.Claim, error) {
	claim, record, err := s.loadInFlight(ctx, ref, "", domain.CancellationStatusRequested, domain.CancellationStatusAccepted)
	if err != nil {
		return nil, err
	}
	if !claim.Status.IsCancelling() {
		return nil, invalidCancelState(claim, record)
	}
	return s.restore(ctx, actor, claim, record, comment, events.EventCancellationReopened)
}

// ConfirmHandoverCancel finishes the cancellation once the vehicle is back
// with the customer: reservations are released, open work orders and pending
// approvals are cancelled, and the claim becomes CANCELLED.
func (s *CancellationService) ConfirmHandoverCancel(ctx context.Context, actor domain.Actor, ref ClaimRef, comment string) (*domain.Claim, error) {
	claim, record, err := s.loadInFlight(ctx, ref, domain.ClaimStatusCancelled, domain.CancellationStatusAccepted)
	if err != nil {
		return nil, err
	}
	if err := requireTransition(claim, domain.ClaimStatusCancelled); err != nil {
		return nil, err
	}

	// Cleanup is idempotent, so a retry after a failed claim write is safe.
	released, err := s.ledger.ReleaseAllForClaim(ctx, claim.ID)
	if err != nil {
		return nil, err
	}
	if err := s.cancelWorkOrders(ctx, claim.ID); err != nil {
		return nil, err
	}
	if err := s.cancelTasks(ctx, actor, claim.ID); err != nil {
		return nil, err
	}

	before := record.Clone()
	now := s.now()
	record.Status = domain.CancellationStatusHandoverConfirmed
	record.HandledBy = ptr(actor.ID)
	record.HandledAt = ptr(now)
	record.UpdatedAt = now
	if err := s.saveRecord(ctx, record); err != nil {
		return nil, err
	}

	from := claim.Status
	claim.Status = domain.ClaimStatusCancelled
	claim.ClosedAt = ptr(now)
	if err := s.save(ctx, actor, claim, from, comment); err != nil {
		s.restoreRecord(ctx, before, record)
		return nil, err
	}
	s.audit(ctx, actor, claim, before, record)
	if released > 0 {
		s.record(ctx, actor, claim.ID, domain.ChangeTypeReservation, nil, map[string]any{"released": released})
	}
	s.publish(ctx, claim, actor, events.EventCancellationCompleted, s.payload(record))
	return claim, nil
}

func (s *CancellationService) restore(ctx context.Context, actor domain.Actor, claim *domain.Claim, record *domain.ClaimCancellation, comment string, eventType events.EventType) (*domain.Claim, error) {
	if record.PreviousStatus == nil {
		return nil, apperrors.NewConflict("cancellation has no previous status to restore", map[string]any{"claim_id": claim.ID})
	}
	target := *record.PreviousStatus

	before := record.Clone()
	now := s.now()
	record.Clear()
	record.HandledBy = ptr(actor.ID)
	record.HandledAt = ptr(now)
	record.UpdatedAt = now
	if err := s.saveRecord(ctx, record); err != nil {
		return nil, err
	}

	from := claim.Status
	claim.Status = target
	claim.CancelRequested = false
	if err := s.save(ctx, actor, claim, from, comment); err != nil {
		s.restoreRecord(ctx, before, record)
		return nil, err
	}
	s.audit(ctx, actor, claim, before, record)
	s.publish(ctx, claim, actor, eventType, events.CancellationPayload{
		Reason:         strings.TrimSpace(comment),
		PreviousStatus: target,
		RequestCount:   record.RequestCount,
	})
	return claim, nil
}

// loadInFlight loads the claim and its record and checks the record status.
func (s *CancellationService) loadInFlight(ctx context.Context, ref ClaimRef, to domain.ClaimStatus, statuses ...domain.CancellationStatus) (*domain.Claim, *domain.ClaimCancellation, error) {
	claim, err := s.load(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	record, err := s.loadRecord(ctx, claim.ID)
	if err != nil {
		return nil, nil, err
	}
	for _, st := range statuses {
		if record.Status == st {
			return claim, record, nil
		}
	}
	if to != "" && !claim.Status.IsCancelling() {
		return nil, nil, invalidTransition(claim, to)
	}
	return nil, nil, invalidCancelState(claim, record)
}

func (s *CancellationService) loadRecord(ctx context.Context, claimID string) (*domain.ClaimCancellation, error) {
	record, err := s.cancellations.Get(ctx, claimID)
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.ClaimCancellation{ClaimID: claimID, Status: domain.CancellationStatusNone}, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *CancellationService) saveRecord(ctx context.Context, record *domain.ClaimCancellation) error {
	if err := s.cancellations.Save(ctx, record); err != nil {
		return mapRepoError("cancellation", record.ClaimID, err)
	}
	return nil
}

// restoreRecord undoes a record write after the claim write failed.
func (s *CancellationService) restoreRecord(ctx context.Context, before, after *domain.ClaimCancellation) {
	restored := before.Clone()
	restored.Version = after.Version
	if err := s.cancellations.Save(ctx, restored); err != nil {
		s.logger.Error("failed to restore cancellation record",
			zap.String("claim_id", after.ClaimID),
			zap.String("status", string(before.Status)),
			zap.Error(err))
	}
}

func (s *CancellationService) audit(ctx context.Context, actor domain.Actor, claim *domain.Claim, before, after *domain.ClaimCancellation) {
	s.record(ctx, actor, claim.ID, domain.ChangeTypeCancellation,
		map[string]any{"status": before.Status, "request_count": before.RequestCount},
		map[string]any{"status": after.Status, "request_count": after.RequestCount})
}

func (s *CancellationService) cancelWorkOrders(ctx context.Context, claimID string) error {
	if s.workOrders == nil {
		return nil
	}
	orders, err := s.workOrders.ListOpenByClaim(ctx, claimID)
	if err != nil {
		return err
	}
	now := s.now()
	for i := range orders {
		orders[i].Status = domain.WorkOrderStatusCancelled
		orders[i].ClosedAt = ptr(now)
		if err := s.workOrders.Update(ctx, &orders[i]); err != nil {
			return mapRepoError("work order", orders[i].ID, err)
		}
	}
	return nil
}

func (s *CancellationService) cancelTasks(ctx context.Context, actor domain.Actor, claimID string) error {
	tasks, err := s.tasks.ListByClaim(ctx, claimID)
	if err != nil {
		return err
	}
	now := s.now()
	for i := range tasks {
		if !tasks[i].IsOpen() {
			continue
		}
		tasks[i].Status = domain.ApprovalStatusCancelled
		tasks[i].ApproverID = ptr(actor.ID)
		tasks[i].DecidedAt = ptr(now)
		if err := s.tasks.Update(ctx, &tasks[i]); err != nil {
			return mapRepoError("approval task", tasks[i].ID, err)
		}
	}
	return nil
}

func (s *CancellationService) payload(record *domain.ClaimCancellation) events.CancellationPayload {
	p := events.CancellationPayload{Reason: record.Reason, RequestCount: record.RequestCount}
	if record.PreviousStatus != nil {
		p.PreviousStatus = *record.PreviousStatus
	}
	return p
}

func invalidCancelState(claim *domain.Claim, record *domain.ClaimCancellation) error {
	return apperrors.NewConflictReason(apperrors.ReasonInvalidTransition,
		"cancellation is not in a state that allows this action",
		map[string]any{"status": claim.Status, "cancellation_status": record.Status})
}
