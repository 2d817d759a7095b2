package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/warranty-service/internal/domain"
)

const approvalTaskColumns = `id, claim_id, line_item_id, type, status, requested_by, approver_id,
       quoted_cents, comment, created_at, decided_at, version`

type approvalTaskRepository struct {
	pool *pgxpool.Pool
}

// NewApprovalTaskRepository builds the Postgres approval task repository.
// The one-open-task-per-type rule is backed by a partial unique index.
func NewApprovalTaskRepository(pool *pgxpool.Pool) ApprovalTaskRepository {
	return &approvalTaskRepository{pool: pool}
}

func (r *approvalTaskRepository) Create(ctx context.Context, task *domain.ApprovalTask) error {
	const query = `
        INSERT INTO approval_tasks (id, claim_id, line_item_id, type, status, requested_by, approver_id,
            quoted_cents, comment, created_at, decided_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,1)`
	_, err := r.pool.Exec(ctx, query,
		task.ID,
		task.ClaimID,
		task.LineItemID,
		task.Type,
		task.Status,
		task.RequestedBy,
		task.ApproverID,
		task.QuotedCents,
		task.Comment,
		task.CreatedAt,
		task.DecidedAt,
	)
	if err != nil {
		return mapWriteError(err)
	}
	task.Version = 1
	return nil
}

func (r *approvalTaskRepository) Update(ctx context.Context, task *domain.ApprovalTask) error {
	const query = `
        UPDATE approval_tasks SET status=$1, approver_id=$2, quoted_cents=$3, comment=$4, decided_at=$5,
            version=version+1
        WHERE id=$6 AND version=$7`
	cmd, err := r.pool.Exec(ctx, query,
		task.Status,
		task.ApproverID,
		task.QuotedCents,
		task.Comment,
		task.DecidedAt,
		task.ID,
		task.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return missOrStale(ctx, r.pool, "approval_tasks", "id", task.ID)
	}
	task.Version++
	return nil
}

func (r *approvalTaskRepository) GetByID(ctx context.Context, id string) (*domain.ApprovalTask, error) {
	task, err := scanApprovalTask(r.pool.QueryRow(ctx, `SELECT `+approvalTaskColumns+` FROM approval_tasks WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return task, err
}

func (r *approvalTaskRepository) FindOpen(ctx context.Context, claimID string, taskType domain.ApprovalType) (*domain.ApprovalTask, error) {
	const query = `SELECT ` + approvalTaskColumns + ` FROM approval_tasks
        WHERE claim_id=$1 AND type=$2 AND status='PENDING'`
	task, err := scanApprovalTask(r.pool.QueryRow(ctx, query, claimID, taskType))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return task, err
}

func (r *approvalTaskRepository) ListByClaim(ctx context.Context, claimID string) ([]domain.ApprovalTask, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+approvalTaskColumns+` FROM approval_tasks WHERE claim_id=$1 ORDER BY created_at ASC`, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ApprovalTask
	for rows.Next() {
		task, err := scanApprovalTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *task)
	}
	return result, rows.Err()
}

func scanApprovalTask(row pgx.Row) (*domain.ApprovalTask, error) {
	var task domain.ApprovalTask
	if err := row.Scan(
		&task.ID,
		&task.ClaimID,
		&task.LineItemID,
		&task.Type,
		&task.Status,
		&task.RequestedBy,
		&task.ApproverID,
		&task.QuotedCents,
		&task.Comment,
		&task.CreatedAt,
		&task.DecidedAt,
		&task.Version,
	); err != nil {
		return nil, err
	}
	return &task, nil
}

// missOrStale distinguishes a missing row from a version mismatch after a
// conditional write affected nothing.
func missOrStale(ctx context.Context, pool *pgxpool.Pool, table, keyColumn, key string) error {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM ` + table + ` WHERE ` + keyColumn + `=$1)`
	if err := pool.QueryRow(ctx, query, key).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStaleVersion
}
