package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/warranty-service/internal/domain"
)

// MemoryPartSerialRepository keeps serials in memory. SaveAll validates every
// version before writing any row.
type MemoryPartSerialRepository struct {
	mu      sync.RWMutex
	serials map[string]*domain.PartSerial
}

func NewMemoryPartSerialRepository() *MemoryPartSerialRepository {
	return &MemoryPartSerialRepository{serials: make(map[string]*domain.PartSerial)}
}

func (r *MemoryPartSerialRepository) Create(ctx context.Context, s *domain.PartSerial) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.serials[s.ID]; ok {
		return ErrDuplicate
	}
	s.Version = 1
	r.serials[s.ID] = s.Clone()
	return nil
}

func (r *MemoryPartSerialRepository) GetByID(ctx context.Context, id string) (*domain.PartSerial, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.serials[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (r *MemoryPartSerialRepository) ListByPart(ctx context.Context, partID string, status *domain.SerialStatus) ([]domain.PartSerial, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.collect(func(s *domain.PartSerial) bool {
		return s.PartID == partID && (status == nil || s.Status == *status)
	}), nil
}

func (r *MemoryPartSerialRepository) ListByClaim(ctx context.Context, claimID, partID string) ([]domain.PartSerial, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.collect(func(s *domain.PartSerial) bool {
		if s.ReservedForClaim == nil || *s.ReservedForClaim != claimID {
			return false
		}
		return partID == "" || s.PartID == partID
	}), nil
}

func (r *MemoryPartSerialRepository) CountAvailable(ctx context.Context, partID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, s := range r.serials {
		if s.PartID == partID && s.Status == domain.SerialStatusAvailable {
			count++
		}
	}
	return count, nil
}

func (r *MemoryPartSerialRepository) SaveAll(ctx context.Context, serials []*domain.PartSerial) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(serials)
}

func (r *MemoryPartSerialRepository) ReserveBatch(ctx context.Context, claimID, partID string, serials []*domain.PartSerial) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.serials {
		if s.PartID == partID && s.Status == domain.SerialStatusReserved &&
			s.ReservedForClaim != nil && *s.ReservedForClaim == claimID {
			return ErrAlreadyHeld
		}
	}
	return r.saveLocked(serials)
}

// saveLocked validates every version before writing any row. r.mu must be held.
func (r *MemoryPartSerialRepository) saveLocked(serials []*domain.PartSerial) error {
	for _, s := range serials {
		existing, ok := r.serials[s.ID]
		if !ok {
			return ErrNotFound
		}
		if existing.Version != s.Version {
			return ErrStaleVersion
		}
	}
	for _, s := range serials {
		s.Version++
		r.serials[s.ID] = s.Clone()
	}
	return nil
}

func (r *MemoryPartSerialRepository) collect(match func(*domain.PartSerial) bool) []domain.PartSerial {
	r.mu.RLock()
	result := make([]domain.PartSerial, 0)
	for _, s := range r.serials {
		if match(s) {
			result = append(result, *s.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// MemoryWorkOrderRepository keeps work orders in memory.
type MemoryWorkOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]domain.WorkOrder
}

func NewMemoryWorkOrderRepository() *MemoryWorkOrderRepository {
	return &MemoryWorkOrderRepository{orders: make(map[string]domain.WorkOrder)}
}

func (r *MemoryWorkOrderRepository) Create(ctx context.Context, o *domain.WorkOrder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return ErrDuplicate
	}
	o.Version = 1
	r.orders[o.ID] = *o
	return nil
}

func (r *MemoryWorkOrderRepository) Update(ctx context.Context, o *domain.WorkOrder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.orders[o.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Version != o.Version {
		return ErrStaleVersion
	}
	o.Version++
	r.orders[o.ID] = *o
	return nil
}

func (r *MemoryWorkOrderRepository) GetByID(ctx context.Context, id string) (*domain.WorkOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (r *MemoryWorkOrderRepository) ListOpenByClaim(ctx context.Context, claimID string) ([]domain.WorkOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	result := make([]domain.WorkOrder, 0)
	for _, o := range r.orders {
		if o.ClaimID == claimID && o.Status == domain.WorkOrderStatusOpen {
			result = append(result, o)
		}
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].OpenedAt.Before(result[j].OpenedAt) })
	return result, nil
}
