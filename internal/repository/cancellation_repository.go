package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/warranty-service/internal/domain"
)

type cancellationRepository struct {
	pool *pgxpool.Pool
}

// NewCancellationRepository builds the Postgres cancellation repository.
func NewCancellationRepository(pool *pgxpool.Pool) CancellationRepository {
	return &cancellationRepository{pool: pool}
}

func (r *cancellationRepository) Get(ctx context.Context, claimID string) (*domain.ClaimCancellation, error) {
	const query = `
        SELECT claim_id, status, request_count, previous_status, reason, requested_by, handled_by,
               requested_at, handled_at, updated_at, version
        FROM claim_cancellations WHERE claim_id=$1`
	var c domain.ClaimCancellation
	err := r.pool.QueryRow(ctx, query, claimID).Scan(
		&c.ClaimID,
		&c.Status,
		&c.RequestCount,
		&c.PreviousStatus,
		&c.Reason,
		&c.RequestedBy,
		&c.HandledBy,
		&c.RequestedAt,
		&c.HandledAt,
		&c.UpdatedAt,
		&c.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *cancellationRepository) Save(ctx context.Context, c *domain.ClaimCancellation) error {
	if c.Version == 0 {
		const insert = `
            INSERT INTO claim_cancellations (claim_id, status, request_count, previous_status, reason,
                requested_by, handled_by, requested_at, handled_at, updated_at, version)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,1)`
		if _, err := r.pool.Exec(ctx, insert,
			c.ClaimID, c.Status, c.RequestCount, c.PreviousStatus, c.Reason,
			c.RequestedBy, c.HandledBy, c.RequestedAt, c.HandledAt, c.UpdatedAt,
		); err != nil {
			if errors.Is(mapWriteError(err), ErrDuplicate) {
				return ErrStaleVersion
			}
			return err
		}
		c.Version = 1
		return nil
	}

	const update = `
        UPDATE claim_cancellations SET status=$1, request_count=$2, previous_status=$3, reason=$4,
            requested_by=$5, handled_by=$6, requested_at=$7, handled_at=$8, updated_at=$9, version=version+1
        WHERE claim_id=$10 AND version=$11`
	cmd, err := r.pool.Exec(ctx, update,
		c.Status, c.RequestCount, c.PreviousStatus, c.Reason, c.RequestedBy,
		c.HandledBy, c.RequestedAt, c.HandledAt, c.UpdatedAt, c.ClaimID, c.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return missOrStale(ctx, r.pool, "claim_cancellations", "claim_id", c.ClaimID)
	}
	c.Version++
	return nil
}
