package service

import (
	"context"
	"testing"

	"github.com/spec-kit/warranty-service/internal/domain"
	"github.com/spec-kit/warranty-service/internal/events"
	apperrors "github.com/spec-kit/warranty-service/pkg/util/errorutil"
)

func TestRejectCancelRestoresPreviousStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	claim := f.diagnosedClaim(t)
	ref := ClaimRef{ID: claim.ID}

	requested, err := f.cancellation.RequestCancel(ctx, staff, ref, "customer sold the car")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if requested.Status != domain.ClaimStatusCancelRequested || !requested.CancelRequested {
		t.Fatalf("unexpected requested claim %+v", requested)
	}
	if _, err := f.cancellation.RequestCancel(ctx, staff, ref, "again"); !apperrors.HasReason(err, apperrors.ReasonInvalidTransition) {
		t.Fatalf("second request must conflict, got %v", err)
	}

	restored, err := f.cancellation.RejectCancel(ctx, staff, ref, "car not sold")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if restored.Status != domain.ClaimStatusDiagnosed || restored.CancelRequested {
		t.Fatalf("status = %s, want DIAGNOSED", restored.Status)
	}
	record, _ := f.cancellation.GetCancellation(ctx, claim.ID)
	if record.Status != domain.CancellationStatusNone || record.RequestCount != 1 || record.PreviousStatus != nil {
		t.Fatalf("unexpected record after reject %+v", record)
	}

	if _, err := f.cancellation.RequestCancel(ctx, staff, ref, "changed mind again"); err != nil {
		t.Fatalf("second request after reject: %v", err)
	}
	record, _ = f.cancellation.GetCancellation(ctx, claim.ID)
	if record.RequestCount != 2 {
		t.Fatalf("request count = %d, want 2", record.RequestCount)
	}
}

func TestConfirmHandoverCancelCleansUp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addSerials(t, "P-BMS", 1)
	claim := f.pendingClaim(t)
	ref := ClaimRef{ID: claim.ID}

	mustStep(t, func() (*domain.Claim, error) {
		return f.claimSvc.Approve(ctx, evm, ref, ApproveInput{ReserveClaimParts: true})
	})
	mustStep(t, func() (*domain.Claim, error) { return f.claimSvc.StartRepair(ctx, technician, ref, "") })
	mustStep(t, func() (*domain.Claim, error) {
		return f.claimSvc.ReportProblem(ctx, technician, ref, "wrong module revision")
	})

	if _, err := f.cancellation.ConfirmHandoverCancel(ctx, staff, ref, ""); err == nil {
		t.Fatalf("handover before acceptance must fail")
	}
	mustStep(t, func() (*domain.Claim, error) { return f.cancellation.RequestCancel(ctx, staff, ref, "customer withdrew") })
	mustStep(t, func() (*domain.Claim, error) { return f.cancellation.AcceptCancel(ctx, staff, ref, "") })
	cancelled := mustStep(t, func() (*domain.Claim, error) {
		return f.cancellation.ConfirmHandoverCancel(ctx, staff, ref, "vehicle returned")
	})
	if cancelled.Status != domain.ClaimStatusCancelled || !cancelled.Status.IsTerminal() {
		t.Fatalf("status = %s, want CANCELLED", cancelled.Status)
	}

	if avail, _ := f.ledger.CheckAvailability(ctx, "P-BMS", 1); avail.Available != 1 {
		t.Fatalf("reservation not released: %+v", avail)
	}
	if orders, _ := f.workOrders.ListOpenByClaim(ctx, claim.ID); len(orders) != 0 {
		t.Fatalf("work orders still open: %+v", orders)
	}
	tasks, _ := f.tasks.ListByClaim(ctx, claim.ID)
	for _, task := range tasks {
		if task.IsOpen() {
			t.Fatalf("task %s still open", task.ID)
		}
	}
	record, _ := f.cancellation.GetCancellation(ctx, claim.ID)
	if record.Status != domain.CancellationStatusHandoverConfirmed {
		t.Fatalf("record status = %s", record.Status)
	}
	if _, err := f.cancellation.ReopenAfterCancel(ctx, staff, ref, ""); !apperrors.IsConflict(err) {
		t.Fatalf("reopen after handover must conflict, got %v", err)
	}
	if got := f.queue.byEvent(events.EventCancellationCompleted); len(got) != 2 {
		t.Fatalf("expected customer and staff notifications, got %d", len(got))
	}
}

func TestReopenAfterAcceptedCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	claim := f.pendingClaim(t)
	ref := ClaimRef{ID: claim.ID}

	mustStep(t, func() (*domain.Claim, error) { return f.cancellation.RequestCancel(ctx, staff, ref, "duplicate claim") })
	mustStep(t, func() (*domain.Claim, error) { return f.cancellation.AcceptCancel(ctx, staff, ref, "") })
	reopened := mustStep(t, func() (*domain.Claim, error) { return f.cancellation.ReopenAfterCancel(ctx, staff, ref, "not a duplicate") })
	if reopened.Status != domain.ClaimStatusPendingEVMApproval {
		t.Fatalf("status = %s, want PENDING_EVM_APPROVAL", reopened.Status)
	}
	if _, err := f.claimSvc.Approve(ctx, evm, ref, ApproveInput{}); err != nil {
		t.Fatalf("workflow should resume after reopen: %v", err)
	}
}

func TestRequestCancelRejectsTerminalAndDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	draft, _ := f.claimSvc.SaveDraft(ctx, staff, ClaimRef{}, ClaimInput{
		CustomerID: "cust-1", VehicleID: "veh-1", FailureDescription: "x",
	})
	if _, err := f.cancellation.RequestCancel(ctx, staff, ClaimRef{ID: draft.ID}, "n/a"); !apperrors.HasReason(err, apperrors.ReasonInvalidTransition) {
		t.Fatalf("draft cancellation must conflict, got %v", err)
	}
	if _, err := f.cancellation.RequestCancel(ctx, staff, ClaimRef{ID: draft.ID}, ""); !apperrors.IsValidation(err) {
		t.Fatalf("missing reason must fail validation, got %v", err)
	}
}
