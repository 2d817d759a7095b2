package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/warranty-service/internal/domain"
)

var (
	// ErrNotFound is returned when the requested aggregate does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrStaleVersion is returned when a conditional write observes a newer version.
	ErrStaleVersion = errors.New("repository: stale version")
	// ErrDuplicate is returned when a uniqueness constraint is violated.
	ErrDuplicate = errors.New("repository: duplicate")
	// ErrAlreadyHeld is returned when a claim already holds reserved serials of a part.
	ErrAlreadyHeld = errors.New("repository: part already reserved for claim")
)

// ClaimFilter captures claim listing parameters.
type ClaimFilter struct {
	Statuses     []domain.ClaimStatus
	TechnicianID *string
	CustomerID   *string
	VehicleID    *string
	UpdatedTo    *time.Time
	Limit        int
	Offset       int
}

// ClaimRepository persists claims with optimistic versioning. Update succeeds
// only when claim.Version matches the stored version and bumps it on success.
type ClaimRepository interface {
	Create(ctx context.Context, claim *domain.Claim) error
	Update(ctx context.Context, claim *domain.Claim) error
	Delete(ctx context.Context, id string, version int64) error
	GetByID(ctx context.Context, id string) (*domain.Claim, error)
	GetByNumber(ctx context.Context, number string) (*domain.Claim, error)
	List(ctx context.Context, filter ClaimFilter) ([]domain.Claim, error)
	CountByStatus(ctx context.Context) (map[domain.ClaimStatus]int, error)
}

// ApprovalTaskRepository persists approval tasks. Create returns ErrDuplicate
// when an open task of the same type already exists for the claim.
type ApprovalTaskRepository interface {
	Create(ctx context.Context, task *domain.ApprovalTask) error
	Update(ctx context.Context, task *domain.ApprovalTask) error
	GetByID(ctx context.Context, id string) (*domain.ApprovalTask, error)
	FindOpen(ctx context.Context, claimID string, taskType domain.ApprovalType) (*domain.ApprovalTask, error)
	ListByClaim(ctx context.Context, claimID string) ([]domain.ApprovalTask, error)
}

// CancellationRepository persists the one-to-one cancellation shadow record.
// Save inserts when Version is 0 and otherwise updates conditionally.
type CancellationRepository interface {
	Get(ctx context.Context, claimID string) (*domain.ClaimCancellation, error)
	Save(ctx context.Context, cancellation *domain.ClaimCancellation) error
}

// PartSerialRepository persists serialized part units. SaveAll writes every
// serial conditionally in a single unit: all rows commit or none do.
type PartSerialRepository interface {
	Create(ctx context.Context, serial *domain.PartSerial) error
	GetByID(ctx context.Context, id string) (*domain.PartSerial, error)
	ListByPart(ctx context.Context, partID string, status *domain.SerialStatus) ([]domain.PartSerial, error)
	ListByClaim(ctx context.Context, claimID, partID string) ([]domain.PartSerial, error)
	CountAvailable(ctx context.Context, partID string) (int, error)
	SaveAll(ctx context.Context, serials []*domain.PartSerial) error
	// ReserveBatch saves serials reserved for the claim in one atomic step and
	// fails with ErrAlreadyHeld if the claim already holds the part.
	ReserveBatch(ctx context.Context, claimID, partID string, serials []*domain.PartSerial) error
}

// WorkOrderRepository persists repair work orders.
type WorkOrderRepository interface {
	Create(ctx context.Context, order *domain.WorkOrder) error
	Update(ctx context.Context, order *domain.WorkOrder) error
	GetByID(ctx context.Context, id string) (*domain.WorkOrder, error)
	ListOpenByClaim(ctx context.Context, claimID string) ([]domain.WorkOrder, error)
}

// VehicleRepository loads vehicles referenced by claims.
type VehicleRepository interface {
	Save(ctx context.Context, vehicle *domain.Vehicle) error
	GetByID(ctx context.Context, id string) (*domain.Vehicle, error)
}

// WarrantyRuleRepository loads coverage rules.
type WarrantyRuleRepository interface {
	Save(ctx context.Context, rule *domain.WarrantyRule) error
	ListByModel(ctx context.Context, model string) ([]domain.WarrantyRule, error)
}

// ClaimHistoryRepository stores audit entries.
type ClaimHistoryRepository interface {
	Create(ctx context.Context, history *domain.ClaimHistory) error
	ListByClaim(ctx context.Context, claimID string, limit, offset int) ([]domain.ClaimHistory, error)
}
