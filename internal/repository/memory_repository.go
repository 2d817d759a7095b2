package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/spec-kit/warranty-service/internal/domain"
)

// MemoryApprovalTaskRepository keeps approval tasks in memory and enforces
// one open task per claim and type.
type MemoryApprovalTaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]*domain.ApprovalTask
}

func NewMemoryApprovalTaskRepository() *MemoryApprovalTaskRepository {
	return &MemoryApprovalTaskRepository{tasks: make(map[string]*domain.ApprovalTask)}
}

func (r *MemoryApprovalTaskRepository) Create(ctx context.Context, task *domain.ApprovalTask) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; ok {
		return ErrDuplicate
	}
	if task.IsOpen() {
		for _, existing := range r.tasks {
			if existing.ClaimID == task.ClaimID && existing.Type == task.Type && existing.IsOpen() {
				return ErrDuplicate
			}
		}
	}
	task.Version = 1
	r.tasks[task.ID] = task.Clone()
	return nil
}

func (r *MemoryApprovalTaskRepository) Update(ctx context.Context, task *domain.ApprovalTask) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.tasks[task.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Version != task.Version {
		return ErrStaleVersion
	}
	task.Version++
	r.tasks[task.ID] = task.Clone()
	return nil
}

func (r *MemoryApprovalTaskRepository) GetByID(ctx context.Context, id string) (*domain.ApprovalTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return task.Clone(), nil
}

func (r *MemoryApprovalTaskRepository) FindOpen(ctx context.Context, claimID string, taskType domain.ApprovalType) (*domain.ApprovalTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, task := range r.tasks {
		if task.ClaimID == claimID && task.Type == taskType && task.IsOpen() {
			return task.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryApprovalTaskRepository) ListByClaim(ctx context.Context, claimID string) ([]domain.ApprovalTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	result := make([]domain.ApprovalTask, 0)
	for _, task := range r.tasks {
		if task.ClaimID == claimID {
			result = append(result, *task.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// MemoryCancellationRepository keeps cancellation records in memory.
type MemoryCancellationRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.ClaimCancellation
}

func NewMemoryCancellationRepository() *MemoryCancellationRepository {
	return &MemoryCancellationRepository{records: make(map[string]*domain.ClaimCancellation)}
}

func (r *MemoryCancellationRepository) Get(ctx context.Context, claimID string) (*domain.ClaimCancellation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.records[claimID]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (r *MemoryCancellationRepository) Save(ctx context.Context, c *domain.ClaimCancellation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.records[c.ClaimID]
	switch {
	case c.Version == 0 && ok:
		return ErrStaleVersion
	case c.Version != 0 && !ok:
		return ErrNotFound
	case ok && existing.Version != c.Version:
		return ErrStaleVersion
	}
	c.Version++
	r.records[c.ClaimID] = c.Clone()
	return nil
}

// MemoryVehicleRepository keeps vehicles in memory.
type MemoryVehicleRepository struct {
	mu       sync.RWMutex
	vehicles map[string]domain.Vehicle
}

func NewMemoryVehicleRepository() *MemoryVehicleRepository {
	return &MemoryVehicleRepository{vehicles: make(map[string]domain.Vehicle)}
}

func (r *MemoryVehicleRepository) Save(ctx context.Context, v *domain.Vehicle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vehicles[v.ID] = *v
	return nil
}

func (r *MemoryVehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vehicles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

// MemoryWarrantyRuleRepository keeps rules in memory. It also serves as the
// store for rules seeded from the policy file.
type MemoryWarrantyRuleRepository struct {
	mu    sync.RWMutex
	rules map[string]domain.WarrantyRule
}

func NewMemoryWarrantyRuleRepository(seed ...domain.WarrantyRule) *MemoryWarrantyRuleRepository {
	repo := &MemoryWarrantyRuleRepository{rules: make(map[string]domain.WarrantyRule)}
	for _, rule := range seed {
		repo.rules[rule.ID] = rule
	}
	return repo
}

func (r *MemoryWarrantyRuleRepository) Save(ctx context.Context, rule *domain.WarrantyRule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.ID] = *rule
	return nil
}

func (r *MemoryWarrantyRuleRepository) ListByModel(ctx context.Context, model string) ([]domain.WarrantyRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	result := make([]domain.WarrantyRule, 0)
	for _, rule := range r.rules {
		if strings.EqualFold(rule.VehicleModel, model) {
			result = append(result, rule)
		}
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// MemoryClaimHistoryRepository keeps audit entries in insertion order.
type MemoryClaimHistoryRepository struct {
	mu      sync.RWMutex
	entries []domain.ClaimHistory
}

func NewMemoryClaimHistoryRepository() *MemoryClaimHistoryRepository {
	return &MemoryClaimHistoryRepository{}
}

func (r *MemoryClaimHistoryRepository) Create(ctx context.Context, history *domain.ClaimHistory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *history)
	return nil
}

func (r *MemoryClaimHistoryRepository) ListByClaim(ctx context.Context, claimID string, limit, offset int) ([]domain.ClaimHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.ClaimHistory, 0)
	skipped := 0
	for _, entry := range r.entries {
		if entry.ClaimID != claimID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(result) == limit {
			break
		}
		result = append(result, entry)
	}
	return result, nil
}
