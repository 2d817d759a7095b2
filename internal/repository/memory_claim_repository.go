package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/warranty-service/internal/domain"
)

// MemoryClaimRepository is an in-process ClaimRepository with the same
// versioning semantics as the Postgres implementation.
type MemoryClaimRepository struct {
	mu     sync.RWMutex
	claims map[string]*domain.Claim
}

func NewMemoryClaimRepository() *MemoryClaimRepository {
	return &MemoryClaimRepository{claims: make(map[string]*domain.Claim)}
}

func (r *MemoryClaimRepository) Create(ctx context.Context, claim *domain.Claim) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.claims[claim.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range r.claims {
		if existing.ClaimNumber == claim.ClaimNumber {
			return ErrDuplicate
		}
	}
	claim.Version = 1
	r.claims[claim.ID] = claim.Clone()
	return nil
}

func (r *MemoryClaimRepository) Update(ctx context.Context, claim *domain.Claim) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.claims[claim.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Version != claim.Version {
		return ErrStaleVersion
	}
	claim.Version++
	r.claims[claim.ID] = claim.Clone()
	return nil
}

func (r *MemoryClaimRepository) Delete(ctx context.Context, id string, version int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.claims[id]
	if !ok {
		return ErrNotFound
	}
	if existing.Version != version {
		return ErrStaleVersion
	}
	delete(r.claims, id)
	return nil
}

func (r *MemoryClaimRepository) GetByID(ctx context.Context, id string) (*domain.Claim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	claim, ok := r.claims[id]
	if !ok {
		return nil, ErrNotFound
	}
	return claim.Clone(), nil
}

func (r *MemoryClaimRepository) GetByNumber(ctx context.Context, number string) (*domain.Claim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, claim := range r.claims {
		if claim.ClaimNumber == number {
			return claim.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryClaimRepository) List(ctx context.Context, filter ClaimFilter) ([]domain.Claim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	matched := make([]domain.Claim, 0)
	for _, claim := range r.claims {
		if matchesClaimFilter(claim, filter) {
			matched = append(matched, *claim.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	if offset >= len(matched) {
		return []domain.Claim{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *MemoryClaimRepository) CountByStatus(ctx context.Context) (map[domain.ClaimStatus]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[domain.ClaimStatus]int)
	for _, claim := range r.claims {
		counts[claim.Status]++
	}
	return counts, nil
}

func matchesClaimFilter(claim *domain.Claim, filter ClaimFilter) bool {
	if len(filter.Statuses) > 0 {
		found := false
		for _, s := range filter.Statuses {
			if claim.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.TechnicianID != nil && (claim.TechnicianID == nil || *claim.TechnicianID != *filter.TechnicianID) {
		return false
	}
	if filter.CustomerID != nil && claim.CustomerID != *filter.CustomerID {
		return false
	}
	if filter.VehicleID != nil && claim.VehicleID != *filter.VehicleID {
		return false
	}
	if filter.UpdatedTo != nil && claim.UpdatedAt.After(*filter.UpdatedTo) {
		return false
	}
	return true
}
