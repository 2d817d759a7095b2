package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/warranty-service/internal/domain"
)

func TestMemoryClaimRepositoryRejectsStaleWrites(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryClaimRepository()
	claim := &domain.Claim{ID: "c1", ClaimNumber: "WC-1", Status: domain.ClaimStatusOpen}
	if err := repo.Create(ctx, claim); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, _ := repo.GetByID(ctx, "c1")
	second, _ := repo.GetByID(ctx, "c1")

	first.Status = domain.ClaimStatusDiagnosed
	if err := repo.Update(ctx, first); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if first.Version != 2 {
		t.Fatalf("version = %d, want 2", first.Version)
	}

	second.Status = domain.ClaimStatusCancelRequested
	if err := repo.Update(ctx, second); !errors.Is(err, ErrStaleVersion) {
		t.Fatalf("expected ErrStaleVersion, got %v", err)
	}

	stored, _ := repo.GetByID(ctx, "c1")
	if stored.Status != domain.ClaimStatusDiagnosed {
		t.Fatalf("stale writer overwrote state: %s", stored.Status)
	}
}

func TestMemoryClaimRepositoryIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryClaimRepository()
	claim := &domain.Claim{ID: "c1", ClaimNumber: "WC-1", Diagnoses: []domain.Diagnosis{{ID: "d1"}}}
	_ = repo.Create(ctx, claim)

	claim.Diagnoses[0].Findings = "mutated after create"
	got, _ := repo.GetByID(ctx, "c1")
	if got.Diagnoses[0].Findings != "" {
		t.Fatalf("store shares memory with caller")
	}
}

func TestMemoryClaimRepositoryListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryClaimRepository()
	tech := "tech-1"
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = repo.Create(ctx, &domain.Claim{ID: "a", ClaimNumber: "1", Status: domain.ClaimStatusOpen, TechnicianID: &tech, UpdatedAt: base})
	_ = repo.Create(ctx, &domain.Claim{ID: "b", ClaimNumber: "2", Status: domain.ClaimStatusInRepair, TechnicianID: &tech, UpdatedAt: base.Add(time.Hour)})
	_ = repo.Create(ctx, &domain.Claim{ID: "c", ClaimNumber: "3", Status: domain.ClaimStatusOpen, UpdatedAt: base.Add(2 * time.Hour)})

	open, _ := repo.List(ctx, ClaimFilter{Statuses: []domain.ClaimStatus{domain.ClaimStatusOpen}})
	if len(open) != 2 || open[0].ID != "c" {
		t.Fatalf("open claims = %+v", open)
	}
	mine, _ := repo.List(ctx, ClaimFilter{TechnicianID: &tech})
	if len(mine) != 2 {
		t.Fatalf("technician claims = %d", len(mine))
	}
	paged, _ := repo.List(ctx, ClaimFilter{Limit: 1, Offset: 1})
	if len(paged) != 1 || paged[0].ID != "b" {
		t.Fatalf("paged = %+v", paged)
	}
}

func TestMemoryPartSerialSaveAllIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPartSerialRepository()
	for _, id := range []string{"s1", "s2"} {
		_ = repo.Create(ctx, &domain.PartSerial{ID: id, PartID: "p", Status: domain.SerialStatusAvailable})
	}

	s1, _ := repo.GetByID(ctx, "s1")
	s2, _ := repo.GetByID(ctx, "s2")
	s2.Version = 99

	claim := "c1"
	s1.Status, s1.ReservedForClaim = domain.SerialStatusReserved, &claim
	s2.Status, s2.ReservedForClaim = domain.SerialStatusReserved, &claim

	if err := repo.SaveAll(ctx, []*domain.PartSerial{s1, s2}); !errors.Is(err, ErrStaleVersion) {
		t.Fatalf("expected ErrStaleVersion, got %v", err)
	}
	n, _ := repo.CountAvailable(ctx, "p")
	if n != 2 {
		t.Fatalf("partial batch applied: available=%d", n)
	}
}

func TestMemoryApprovalTaskOneOpenPerType(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryApprovalTaskRepository()
	open := &domain.ApprovalTask{ID: "t1", ClaimID: "c1", Type: domain.ApprovalTypeEVM, Status: domain.ApprovalStatusPending}
	if err := repo.Create(ctx, open); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &domain.ApprovalTask{ID: "t2", ClaimID: "c1", Type: domain.ApprovalTypeEVM, Status: domain.ApprovalStatusPending}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	other := &domain.ApprovalTask{ID: "t3", ClaimID: "c1", Type: domain.ApprovalTypeCustomer, Status: domain.ApprovalStatusPending}
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("different type must be allowed: %v", err)
	}
}

func TestMemoryCancellationSaveVersions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCancellationRepository()
	c := &domain.ClaimCancellation{ClaimID: "c1", Status: domain.CancellationStatusRequested, RequestCount: 1}
	if err := repo.Save(ctx, c); err != nil {
		t.Fatalf("insert: %v", err)
	}
	again := &domain.ClaimCancellation{ClaimID: "c1", Status: domain.CancellationStatusRequested}
	if err := repo.Save(ctx, again); !errors.Is(err, ErrStaleVersion) {
		t.Fatalf("second insert must conflict, got %v", err)
	}
	c.Status = domain.CancellationStatusAccepted
	if err := repo.Save(ctx, c); err != nil || c.Version != 2 {
		t.Fatalf("update: err=%v version=%d", err, c.Version)
	}
}
