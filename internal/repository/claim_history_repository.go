package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/warranty-service/internal/domain"
)

type claimHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewClaimHistoryRepository builds repository.
func NewClaimHistoryRepository(pool *pgxpool.Pool) ClaimHistoryRepository {
	return &claimHistoryRepository{pool: pool}
}

func (r *claimHistoryRepository) Create(ctx context.Context, history *domain.ClaimHistory) error {
	const query = `
        INSERT INTO claim_history (id, claim_id, actor_id, change_type, old_value, new_value, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.pool.Exec(ctx, query,
		history.ID,
		history.ClaimID,
		history.ActorID,
		history.ChangeType,
		history.OldValue,
		history.NewValue,
		history.CreatedAt,
	)
	return err
}

func (r *claimHistoryRepository) ListByClaim(ctx context.Context, claimID string, limit, offset int) ([]domain.ClaimHistory, error) {
	limit, offset = normalizePage(limit, offset)
	const query = `
        SELECT id, claim_id, actor_id, change_type, old_value, new_value, created_at
        FROM claim_history WHERE claim_id=$1 ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, claimID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ClaimHistory
	for rows.Next() {
		var history domain.ClaimHistory
		if err := rows.Scan(
			&history.ID,
			&history.ClaimID,
			&history.ActorID,
			&history.ChangeType,
			&history.OldValue,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
