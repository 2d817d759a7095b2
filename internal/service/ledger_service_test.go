package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/warranty-service/internal/domain"
	"github.com/spec-kit/warranty-service/internal/repository"
	apperrors "github.com/spec-kit/warranty-service/pkg/util/errorutil"
)

func TestReserveForClaimAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addSerials(t, "P", 3)

	got, err := f.ledger.ReserveForClaim(ctx, "C1", "P", 2)
	if err != nil {
		t.Fatalf("reserve for C1: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("reserved %d serials, want 2", len(got))
	}
	for _, s := range got {
		if s.Status != domain.SerialStatusReserved || s.ReservedForClaim == nil || *s.ReservedForClaim != "C1" {
			t.Fatalf("serial %s not reserved for C1: %+v", s.ID, s)
		}
	}

	_, err = f.ledger.ReserveForClaim(ctx, "C2", "P", 2)
	if !apperrors.HasReason(err, apperrors.ReasonInsufficientStock) {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}
	if available := apperrors.ToDomainError(err).Details["available"]; available != 1 {
		t.Fatalf("available = %v, want 1", available)
	}

	avail, err := f.ledger.CheckAvailability(ctx, "P", 1)
	if err != nil {
		t.Fatalf("check availability: %v", err)
	}
	if avail.Available != 1 || !avail.Sufficient {
		t.Fatalf("availability = %+v, want 1 sufficient", avail)
	}
	held, _ := f.ledger.GetSerialsForClaim(ctx, "C2")
	if len(held) != 0 {
		t.Fatalf("failed reservation left %d serials on C2", len(held))
	}
}

func TestReserveForClaimRejectsDoubleReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addSerials(t, "P", 4)

	if _, err := f.ledger.ReserveForClaim(ctx, "C1", "P", 1); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	_, err := f.ledger.ReserveForClaim(ctx, "C1", "P", 1)
	if !apperrors.HasReason(err, apperrors.ReasonAlreadyReserved) {
		t.Fatalf("expected ALREADY_RESERVED, got %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addSerials(t, "P", 2)
	f.addSerials(t, "Q", 1)

	if _, err := f.ledger.ReserveForClaim(ctx, "C1", "P", 2); err != nil {
		t.Fatalf("reserve P: %v", err)
	}
	if _, err := f.ledger.ReserveForClaim(ctx, "C1", "Q", 1); err != nil {
		t.Fatalf("reserve Q: %v", err)
	}

	n, err := f.ledger.ReleaseForClaimAndPart(ctx, "C1", "P")
	if err != nil || n != 2 {
		t.Fatalf("release P = %d, %v; want 2", n, err)
	}
	n, err = f.ledger.ReleaseForClaimAndPart(ctx, "C1", "P")
	if err != nil || n != 0 {
		t.Fatalf("second release P = %d, %v; want 0", n, err)
	}

	n, err = f.ledger.ReleaseAllForClaim(ctx, "C1")
	if err != nil || n != 1 {
		t.Fatalf("release all = %d, %v; want 1", n, err)
	}
	n, err = f.ledger.ReleaseAllForClaim(ctx, "C1")
	if err != nil || n != 0 {
		t.Fatalf("second release all = %d, %v; want 0", n, err)
	}

	avail, _ := f.ledger.CheckAvailability(ctx, "P", 2)
	if !avail.Sufficient {
		t.Fatalf("released serials not back in stock: %+v", avail)
	}
}

func TestDeactivateRequiresAvailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addSerials(t, "P", 2)

	reserved, err := f.ledger.ReserveForClaim(ctx, "C1", "P", 1)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := f.ledger.Deactivate(ctx, reserved[0].ID); !apperrors.HasReason(err, apperrors.ReasonSerialState) {
		t.Fatalf("expected SERIAL_STATE for reserved serial, got %v", err)
	}

	free, _ := f.ledger.GetAvailableSerials(ctx, "P")
	if len(free) != 1 {
		t.Fatalf("available = %d, want 1", len(free))
	}
	deactivated, err := f.ledger.Deactivate(ctx, free[0].ID)
	if err != nil || deactivated.Status != domain.SerialStatusDeactivated {
		t.Fatalf("deactivate: %v %+v", err, deactivated)
	}
	if avail, _ := f.ledger.CheckAvailability(ctx, "P", 1); avail.Available != 0 {
		t.Fatalf("deactivated serial still counted: %+v", avail)
	}
	activated, err := f.ledger.Activate(ctx, free[0].ID)
	if err != nil || activated.Status != domain.SerialStatusAvailable {
		t.Fatalf("activate: %v %+v", err, activated)
	}
}

func TestInstallOnVehicleChecksWorkOrderClaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addSerials(t, "P", 1)

	reserved, err := f.ledger.ReserveForClaim(ctx, "C1", "P", 1)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	other := &domain.WorkOrder{ID: "wo-other", ClaimID: "C2", Status: domain.WorkOrderStatusOpen, OpenedAt: f.now}
	own := &domain.WorkOrder{ID: "wo-own", ClaimID: "C1", Status: domain.WorkOrderStatusOpen, OpenedAt: f.now}
	_ = f.workOrders.Create(ctx, other)
	_ = f.workOrders.Create(ctx, own)

	if _, err := f.ledger.InstallOnVehicle(ctx, technician, InstallInput{
		SerialID: reserved[0].ID, VehicleVIN: "VIN0001", WorkOrderID: ptr("wo-other"),
	}); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for foreign work order, got %v", err)
	}

	installed, err := f.ledger.InstallOnVehicle(ctx, technician, InstallInput{
		SerialID: reserved[0].ID, VehicleVIN: "VIN0001", WorkOrderID: ptr("wo-own"),
	})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if installed.Status != domain.SerialStatusUsed || *installed.InstalledVIN != "VIN0001" || *installed.InstalledBy != technician.ID {
		t.Fatalf("unexpected installed serial: %+v", installed)
	}
	if _, err := f.ledger.InstallOnVehicle(ctx, technician, InstallInput{SerialID: reserved[0].ID, VehicleVIN: "VIN0001"}); !apperrors.HasReason(err, apperrors.ReasonSerialState) {
		t.Fatalf("expected SERIAL_STATE on reinstall, got %v", err)
	}
}

// interleavingSerials runs a competing reservation between the stock read and
// the write of the first ReserveForClaim that reaches it.
type interleavingSerials struct {
	*repository.MemoryPartSerialRepository
	once    sync.Once
	compete func()
}

func (r *interleavingSerials) ListByPart(ctx context.Context, partID string, status *domain.SerialStatus) ([]domain.PartSerial, error) {
	list, err := r.MemoryPartSerialRepository.ListByPart(ctx, partID, status)
	r.once.Do(r.compete)
	return list, err
}

func TestReserveForClaimHeldCheckIsAtomicWithWrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addSerials(t, "P", 4)

	repo := &interleavingSerials{MemoryPartSerialRepository: f.serials}
	ledger := NewLedgerService(LedgerDependencies{
		SerialRepo:    repo,
		WorkOrderRepo: f.workOrders,
		Clock:         func() time.Time { return f.now },
	})
	var competing error
	repo.compete = func() {
		_, competing = ledger.ReserveForClaim(ctx, "C1", "P", 2)
	}

	_, err := ledger.ReserveForClaim(ctx, "C1", "P", 2)
	if competing != nil {
		t.Fatalf("competing reserve: %v", competing)
	}
	if !apperrors.HasReason(err, apperrors.ReasonAlreadyReserved) {
		t.Fatalf("expected ALREADY_RESERVED for the late writer, got %v", err)
	}
	held, _ := ledger.GetSerialsForClaim(ctx, "C1")
	if len(held) != 2 {
		t.Fatalf("C1 holds %d serials, want 2", len(held))
	}
	if avail, _ := ledger.CheckAvailability(ctx, "P", 2); avail.Available != 2 {
		t.Fatalf("available = %d, want 2", avail.Available)
	}
}

func TestConcurrentClaimsRaceForLastSerial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addSerials(t, "P", 1)

	claims := []string{"C1", "C2", "C3", "C4"}
	errs := make([]error, len(claims))
	var wg sync.WaitGroup
	for i, claimID := range claims {
		wg.Add(1)
		go func(i int, claimID string) {
			defer wg.Done()
			_, errs[i] = f.ledger.ReserveForClaim(ctx, claimID, "P", 1)
		}(i, claimID)
	}
	wg.Wait()

	winners, holders := 0, 0
	for i, err := range errs {
		if err == nil {
			winners++
		} else if !apperrors.IsConflict(err) {
			t.Fatalf("%s: expected conflict, got %v", claims[i], err)
		}
		held, _ := f.ledger.GetSerialsForClaim(ctx, claims[i])
		holders += len(held)
	}
	if winners != 1 || holders != 1 {
		t.Fatalf("winners = %d, holders = %d; want exactly one of each", winners, holders)
	}
	if avail, _ := f.ledger.CheckAvailability(ctx, "P", 1); avail.Available != 0 {
		t.Fatalf("available = %d, want 0", avail.Available)
	}
}

func TestConcurrentReleaseConverges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addSerials(t, "P", 3)

	if _, err := f.ledger.ReserveForClaim(ctx, "C1", "P", 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	const workers = 8
	counts := make([]int, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			counts[i], errs[i] = f.ledger.ReleaseForClaimAndPart(ctx, "C1", "P")
		}(i)
	}
	wg.Wait()

	total := 0
	for i := range counts {
		if errs[i] != nil {
			t.Fatalf("release %d: %v", i, errs[i])
		}
		total += counts[i]
	}
	if total != 3 {
		t.Fatalf("released %d serials in total, want 3", total)
	}
	if held, _ := f.ledger.GetSerialsForClaim(ctx, "C1"); len(held) != 0 {
		t.Fatalf("C1 still holds %d serials", len(held))
	}
	if avail, _ := f.ledger.CheckAvailability(ctx, "P", 3); !avail.Sufficient {
		t.Fatalf("stock not restored: %+v", avail)
	}
}

func TestInstallReservedSerialRequiresOwningClaim(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addSerials(t, "P", 1)

	reserved, err := f.ledger.ReserveForClaim(ctx, "C1", "P", 1)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	serialID := reserved[0].ID

	cases := []struct {
		name    string
		claimID *string
	}{
		{"no claim", nil},
		{"other claim", ptr("C2")},
	}
	for _, tc := range cases {
		_, err := f.ledger.InstallOnVehicle(ctx, technician, InstallInput{SerialID: serialID, VehicleVIN: "VIN0001", ClaimID: tc.claimID})
		if !apperrors.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}

	installed, err := f.ledger.InstallOnVehicle(ctx, technician, InstallInput{SerialID: serialID, VehicleVIN: "VIN0001", ClaimID: ptr("C1")})
	if err != nil {
		t.Fatalf("install with owning claim: %v", err)
	}
	if installed.Status != domain.SerialStatusUsed {
		t.Fatalf("status = %s, want USED", installed.Status)
	}
}
