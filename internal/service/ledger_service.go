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
	"github.com/spec-kit/warranty-service/internal/repository"
	apperrors "github.com/spec-kit/warranty-service/pkg/util/errorutil"
)

// LedgerService tracks serialized replacement parts. Stock on hand is never
// stored; it is the count of AVAILABLE serials.
type LedgerService struct {
	serials    repository.PartSerialRepository
	workOrders repository.WorkOrderRepository
	logger     *zap.Logger
	now        Clock
}

// LedgerDependencies bundles collaborators for the ledger.
type LedgerDependencies struct {
	SerialRepo    repository.PartSerialRepository
	WorkOrderRepo repository.WorkOrderRepository
	Logger        *zap.Logger
	Clock         Clock
}

// Availability is the result of a stock check.
type Availability struct {
	PartID     string `json:"part_id"`
	Requested  int    `json:"requested"`
	Available  int    `json:"available"`
	Sufficient bool   `json:"sufficient"`
}

// RegisterSerialInput adds a physical unit to stock.
type RegisterSerialInput struct {
	PartID       string
	SerialNumber string
	ThirdParty   bool
}

// InstallInput describes fitting a serial to a vehicle.
type InstallInput struct {
	SerialID    string
	VehicleVIN  string
	WorkOrderID *string
	// ClaimID must match the reservation when no work order is given.
	ClaimID *string
}

// NewLedgerService constructs the service.
func NewLedgerService(deps LedgerDependencies) *LedgerService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &LedgerService{
		serials:    deps.SerialRepo,
		workOrders: deps.WorkOrderRepo,
		logger:     logger,
		now:        clock,
	}
}

// RegisterSerial adds an AVAILABLE serial for a part.
func (s *LedgerService) RegisterSerial(ctx context.Context, input RegisterSerialInput) (*domain.PartSerial, error) {
	partID := strings.TrimSpace(input.PartID)
	number := strings.TrimSpace(input.SerialNumber)
	if partID == "" || number == "" {
		return nil, apperrors.NewValidationError("part_id and serial_number required", nil)
	}
	now := s.now()
	serial := &domain.PartSerial{
		ID:           uuid.NewString(),
		PartID:       partID,
		SerialNumber: number,
		ThirdParty:   input.ThirdParty,
		Status:       domain.SerialStatusAvailable,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.serials.Create(ctx, serial); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("serial number already registered", map[string]any{"serial_number": number})
		}
		return nil, err
	}
	return serial, nil
}

// CheckAvailability counts AVAILABLE serials without reserving anything.
func (s *LedgerService) CheckAvailability(ctx context.Context, partID string, quantity int) (Availability, error) {
	if strings.TrimSpace(partID) == "" {
		return Availability{}, apperrors.NewValidationError("part_id required", nil)
	}
	if quantity < 0 {
		return Availability{}, apperrors.NewValidationError("quantity must not be negative", nil)
	}
	count, err := s.serials.CountAvailable(ctx, partID)
	if err != nil {
		return Availability{}, err
	}
	return Availability{
		PartID:     partID,
		Requested:  quantity,
		Available:  count,
		Sufficient: count >= quantity,
	}, nil
}

// ReserveForClaim reserves exactly quantity serials of the part for the claim
// or none at all. A claim that already holds a reservation for the part must
// release it first.
func (s *LedgerService) ReserveForClaim(ctx context.Context, claimID, partID string, quantity int) ([]domain.PartSerial, error) {
	if strings.TrimSpace(claimID) == "" || strings.TrimSpace(partID) == "" {
		return nil, apperrors.NewValidationError("claim_id and part_id required", nil)
	}
	if quantity <= 0 {
		return nil, apperrors.NewValidationError("quantity must be positive", map[string]any{"quantity": quantity})
	}

	held, err := s.serials.ListByClaim(ctx, claimID, partID)
	if err != nil {
		return nil, err
	}
	for _, serial := range held {
		if serial.Status == domain.SerialStatusReserved {
			return nil, alreadyReserved(claimID, partID)
		}
	}

	available, err := s.serials.ListByPart(ctx, partID, ptr(domain.SerialStatusAvailable))
	if err != nil {
		return nil, err
	}
	if len(available) < quantity {
		return nil, apperrors.NewConflictReason(apperrors.ReasonInsufficientStock,
			fmt.Sprintf("requested %d of part %s but only %d available", quantity, partID, len(available)),
			map[string]any{"part_id": partID, "requested": quantity, "available": len(available)})
	}

	now := s.now()
	batch := make([]*domain.PartSerial, 0, quantity)
	for i := 0; i < quantity; i++ {
		serial := available[i]
		serial.Status = domain.SerialStatusReserved
		serial.ReservedForClaim = ptr(claimID)
		serial.ReservedAt = ptr(now)
		serial.UpdatedAt = now
		batch = append(batch, &serial)
	}
	// the store re-checks the claim's holding atomically with the write
	if err := s.serials.ReserveBatch(ctx, claimID, partID, batch); err != nil {
		if errors.Is(err, repository.ErrAlreadyHeld) {
			return nil, alreadyReserved(claimID, partID)
		}
		return nil, mapRepoError("part serial", partID, err)
	}

	s.logger.Info("serials reserved",
		zap.String("claim_id", claimID),
		zap.String("part_id", partID),
		zap.Int("quantity", quantity))
	return derefSerials(batch), nil
}

// ReleaseForClaimAndPart returns the claim's reserved serials of the part to
// stock. Releasing when nothing is reserved is a no-op.
func (s *LedgerService) ReleaseForClaimAndPart(ctx context.Context, claimID, partID string) (int, error) {
	if strings.TrimSpace(claimID) == "" || strings.TrimSpace(partID) == "" {
		return 0, apperrors.NewValidationError("claim_id and part_id required", nil)
	}
	return s.release(ctx, claimID, partID)
}

// ReleaseAllForClaim returns every serial reserved by the claim to stock.
func (s *LedgerService) ReleaseAllForClaim(ctx context.Context, claimID string) (int, error) {
	if strings.TrimSpace(claimID) == "" {
		return 0, apperrors.NewValidationError("claim_id required", nil)
	}
	return s.release(ctx, claimID, "")
}

// ReleaseSerials returns exactly the given serials to stock if they are still
// reserved for the claim. Compensation uses it so that it never touches
// reservations made by another caller.
func (s *LedgerService) ReleaseSerials(ctx context.Context, claimID string, serialIDs []string) (int, error) {
	if len(serialIDs) == 0 {
		return 0, nil
	}
	want := make(map[string]bool, len(serialIDs))
	for _, id := range serialIDs {
		want[id] = true
	}
	return s.releaseMatching(ctx, claimID, "", func(serial domain.PartSerial) bool { return want[serial.ID] })
}

func (s *LedgerService) release(ctx context.Context, claimID, partID string) (int, error) {
	return s.releaseMatching(ctx, claimID, partID, func(domain.PartSerial) bool { return true })
}

func (s *LedgerService) releaseMatching(ctx context.Context, claimID, partID string, match func(domain.PartSerial) bool) (int, error) {
	for attempt := 0; ; attempt++ {
		released, err := s.releaseOnce(ctx, claimID, partID, match)
		// a concurrent release of the same serials already did the work; re-read
		if errors.Is(err, repository.ErrStaleVersion) {
			if attempt < 2 {
				continue
			}
			return 0, mapRepoError("part serial", claimID, err)
		}
		return released, err
	}
}

func (s *LedgerService) releaseOnce(ctx context.Context, claimID, partID string, match func(domain.PartSerial) bool) (int, error) {
	held, err := s.serials.ListByClaim(ctx, claimID, partID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	batch := make([]*domain.PartSerial, 0, len(held))
	for i := range held {
		serial := held[i]
		if serial.Status != domain.SerialStatusReserved || !match(serial) {
			continue
		}
		serial.Status = domain.SerialStatusAvailable
		serial.ReservedForClaim = nil
		serial.ReservedAt = nil
		serial.UpdatedAt = now
		batch = append(batch, &serial)
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if err := s.serials.SaveAll(ctx, batch); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return 0, err
		}
		return 0, mapRepoError("part serial", claimID, err)
	}
	s.logger.Info("serials released",
		zap.String("claim_id", claimID),
		zap.String("part_id", partID),
		zap.Int("count", len(batch)))
	return len(batch), nil
}

// InstallOnVehicle marks a serial USED. RESERVED serials are the normal path;
// AVAILABLE serials may be fitted directly on non-warranty repairs.
func (s *LedgerService) InstallOnVehicle(ctx context.Context, actor domain.Actor, input InstallInput) (*domain.PartSerial, error) {
	vin := strings.TrimSpace(input.VehicleVIN)
	if vin == "" {
		return nil, apperrors.NewValidationError("vehicle_vin required", nil)
	}
	serial, err := s.serials.GetByID(ctx, input.SerialID)
	if err != nil {
		return nil, mapRepoError("part serial", input.SerialID, err)
	}
	if serial.Status != domain.SerialStatusReserved && serial.Status != domain.SerialStatusAvailable {
		return nil, serialStateConflict(serial, "install")
	}
	if serial.Status == domain.SerialStatusReserved && input.WorkOrderID == nil {
		if input.ClaimID == nil || strings.TrimSpace(*input.ClaimID) == "" {
			return nil, apperrors.NewValidationError("work_order_id or claim_id required to install a reserved serial", map[string]any{"serial_id": serial.ID})
		}
		if serial.ReservedForClaim == nil || *serial.ReservedForClaim != strings.TrimSpace(*input.ClaimID) {
			return nil, apperrors.NewValidationError("serial is reserved for a different claim", map[string]any{
				"serial_id": serial.ID,
				"claim_id":  *input.ClaimID,
			})
		}
	}
	if input.WorkOrderID != nil && s.workOrders != nil {
		order, err := s.workOrders.GetByID(ctx, *input.WorkOrderID)
		if err != nil {
			return nil, mapRepoError("work order", *input.WorkOrderID, err)
		}
		if order.Status == domain.WorkOrderStatusCancelled {
			return nil, apperrors.NewConflict("work order is cancelled", map[string]any{"work_order_id": order.ID})
		}
		if serial.ReservedForClaim != nil && *serial.ReservedForClaim != order.ClaimID {
			return nil, apperrors.NewValidationError("serial is reserved for a different claim", map[string]any{
				"serial_id":     serial.ID,
				"work_order_id": order.ID,
			})
		}
	}

	now := s.now()
	serial.Status = domain.SerialStatusUsed
	serial.InstalledVIN = ptr(vin)
	serial.WorkOrderID = input.WorkOrderID
	serial.InstalledBy = ptr(actor.ID)
	serial.InstalledAt = ptr(now)
	serial.UpdatedAt = now
	if err := s.serials.SaveAll(ctx, []*domain.PartSerial{serial}); err != nil {
		return nil, mapRepoError("part serial", serial.ID, err)
	}
	return serial, nil
}

// Deactivate pulls an AVAILABLE serial out of stock.
func (s *LedgerService) Deactivate(ctx context.Context, serialID string) (*domain.PartSerial, error) {
	return s.toggle(ctx, serialID, domain.SerialStatusAvailable, domain.SerialStatusDeactivated)
}

// Activate returns a DEACTIVATED serial to stock.
func (s *LedgerService) Activate(ctx context.Context, serialID string) (*domain.PartSerial, error) {
	return s.toggle(ctx, serialID, domain.SerialStatusDeactivated, domain.SerialStatusAvailable)
}

func (s *LedgerService) toggle(ctx context.Context, serialID string, from, to domain.SerialStatus) (*domain.PartSerial, error) {
	serial, err := s.serials.GetByID(ctx, serialID)
	if err != nil {
		return nil, mapRepoError("part serial", serialID, err)
	}
	if serial.Status == to {
		return serial, nil
	}
	if serial.Status != from {
		return nil, serialStateConflict(serial, strings.ToLower(string(to)))
	}
	serial.Status = to
	serial.UpdatedAt = s.now()
	if err := s.serials.SaveAll(ctx, []*domain.PartSerial{serial}); err != nil {
		return nil, mapRepoError("part serial", serial.ID, err)
	}
	return serial, nil
}

// GetAvailableSerials lists the part's AVAILABLE serials.
func (s *LedgerService) GetAvailableSerials(ctx context.Context, partID string) ([]domain.PartSerial, error) {
	return s.serials.ListByPart(ctx, partID, ptr(domain.SerialStatusAvailable))
}

// GetSerialsForClaim lists serials reserved for or consumed by the claim.
func (s *LedgerService) GetSerialsForClaim(ctx context.Context, claimID string) ([]domain.PartSerial, error) {
	return s.serials.ListByClaim(ctx, claimID, "")
}

func alreadyReserved(claimID, partID string) error {
	return apperrors.NewConflictReason(apperrors.ReasonAlreadyReserved,
		"claim already holds a reservation for this part; release it first",
		map[string]any{"claim_id": claimID, "part_id": partID})
}

func serialStateConflict(serial *domain.PartSerial, action string) error {
	return apperrors.NewConflictReason(apperrors.ReasonSerialState,
		fmt.Sprintf("cannot %s serial in status %s", action, serial.Status),
		map[string]any{"serial_id": serial.ID, "status": serial.Status})
}

func derefSerials(in []*domain.PartSerial) []domain.PartSerial {
	out := make([]domain.PartSerial, len(in))
	for i, s := range in {
		out[i] = *s
	}
	return out
}
