package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/warranty-service/internal/domain"
)

type workOrderRepository struct {
	pool *pgxpool.Pool
}

// NewWorkOrderRepository builds the Postgres work order repository.
func NewWorkOrderRepository(pool *pgxpool.Pool) WorkOrderRepository {
	return &workOrderRepository{pool: pool}
}

func (r *workOrderRepository) Create(ctx context.Context, o *domain.WorkOrder) error {
	const query = `
        INSERT INTO work_orders (id, claim_id, technician_id, status, opened_at, closed_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,1)`
	if _, err := r.pool.Exec(ctx, query, o.ID, o.ClaimID, o.TechnicianID, o.Status, o.OpenedAt, o.ClosedAt); err != nil {
		return mapWriteError(err)
	}
	o.Version = 1
	return nil
}

func (r *workOrderRepository) Update(ctx context.Context, o *domain.WorkOrder) error {
	const query = `
        UPDATE work_orders SET status=$1, closed_at=$2, version=version+1
        WHERE id=$3 AND version=$4`
	cmd, err := r.pool.Exec(ctx, query, o.Status, o.ClosedAt, o.ID, o.Version)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return missOrStale(ctx, r.pool, "work_orders", "id", o.ID)
	}
	o.Version++
	return nil
}

func (r *workOrderRepository) GetByID(ctx context.Context, id string) (*domain.WorkOrder, error) {
	const query = `SELECT id, claim_id, technician_id, status, opened_at, closed_at, version FROM work_orders WHERE id=$1`
	var o domain.WorkOrder
	err := r.pool.QueryRow(ctx, query, id).Scan(&o.ID, &o.ClaimID, &o.TechnicianID, &o.Status, &o.OpenedAt, &o.ClosedAt, &o.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *workOrderRepository) ListOpenByClaim(ctx context.Context, claimID string) ([]domain.WorkOrder, error) {
	const query = `
        SELECT id, claim_id, technician_id, status, opened_at, closed_at, version
        FROM work_orders WHERE claim_id=$1 AND status='OPEN' ORDER BY opened_at ASC`
	rows, err := r.pool.Query(ctx, query, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WorkOrder
	for rows.Next() {
		var o domain.WorkOrder
		if err := rows.Scan(&o.ID, &o.ClaimID, &o.TechnicianID, &o.Status, &o.OpenedAt, &o.ClosedAt, &o.Version); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}
