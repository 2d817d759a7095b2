package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/warranty-service/internal/domain"
)

const partSerialColumns = `id, part_id, serial_number, third_party, status, reserved_for_claim, reserved_at,
       installed_vin, work_order_id, installed_by, installed_at, created_at, updated_at, version`

type partSerialRepository struct {
	pool *pgxpool.Pool
}

// NewPartSerialRepository builds the Postgres serial ledger store.
func NewPartSerialRepository(pool *pgxpool.Pool) PartSerialRepository {
	return &partSerialRepository{pool: pool}
}

func (r *partSerialRepository) Create(ctx context.Context, s *domain.PartSerial) error {
	const query = `
        INSERT INTO part_serials (id, part_id, serial_number, third_party, status, reserved_for_claim, reserved_at,
            installed_vin, work_order_id, installed_by, installed_at, created_at, updated_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,1)`
	_, err := r.pool.Exec(ctx, query,
		s.ID, s.PartID, s.SerialNumber, s.ThirdParty, s.Status, s.ReservedForClaim, s.ReservedAt,
		s.InstalledVIN, s.WorkOrderID, s.InstalledBy, s.InstalledAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(err)
	}
	s.Version = 1
	return nil
}

func (r *partSerialRepository) GetByID(ctx context.Context, id string) (*domain.PartSerial, error) {
	s, err := scanPartSerial(r.pool.QueryRow(ctx, `SELECT `+partSerialColumns+` FROM part_serials WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func (r *partSerialRepository) ListByPart(ctx context.Context, partID string, status *domain.SerialStatus) ([]domain.PartSerial, error) {
	query := `SELECT ` + partSerialColumns + ` FROM part_serials WHERE part_id=$1`
	args := []any{partID}
	if status != nil {
		args = append(args, *status)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}
	query += " ORDER BY created_at ASC, id ASC"
	return r.query(ctx, query, args...)
}

func (r *partSerialRepository) ListByClaim(ctx context.Context, claimID, partID string) ([]domain.PartSerial, error) {
	query := `SELECT ` + partSerialColumns + ` FROM part_serials WHERE reserved_for_claim=$1`
	args := []any{claimID}
	if partID != "" {
		args = append(args, partID)
		query += fmt.Sprintf(" AND part_id=$%d", len(args))
	}
	query += " ORDER BY id ASC"
	serials, err := r.query(ctx, query, args...)
	if isInvalidKey(err) {
		return nil, nil
	}
	return serials, err
}

func (r *partSerialRepository) CountAvailable(ctx context.Context, partID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM part_serials WHERE part_id=$1 AND status='AVAILABLE'`, partID).Scan(&count)
	return count, err
}

// SaveAll applies every conditional update inside one transaction. Any
// version mismatch rolls the whole batch back.
func (r *partSerialRepository) SaveAll(ctx context.Context, serials []*domain.PartSerial) error {
	if len(serials) == 0 {
		return nil
	}
	return r.inTx(ctx, serials, func(pgx.Tx) error { return nil })
}

// ReserveBatch serializes reservations per claim and part with a transaction
// scoped advisory lock, then re-checks the claim's holding before writing.
func (r *partSerialRepository) ReserveBatch(ctx context.Context, claimID, partID string, serials []*domain.PartSerial) error {
	if len(serials) == 0 {
		return nil
	}
	return r.inTx(ctx, serials, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1 || '/' || $2))`, claimID, partID); err != nil {
			return err
		}
		var held bool
		err := tx.QueryRow(ctx, `
            SELECT EXISTS(SELECT 1 FROM part_serials
                WHERE reserved_for_claim=$1 AND part_id=$2 AND status='RESERVED')`, claimID, partID).Scan(&held)
		if err != nil {
			if isInvalidKey(err) {
				return ErrNotFound
			}
			return err
		}
		if held {
			return ErrAlreadyHeld
		}
		return nil
	})
}

// inTx runs guard and then the conditional updates in one transaction.
func (r *partSerialRepository) inTx(ctx context.Context, serials []*domain.PartSerial, guard func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := guard(tx); err != nil {
		return err
	}

	const update = `
        UPDATE part_serials SET status=$1, reserved_for_claim=$2, reserved_at=$3, installed_vin=$4,
            work_order_id=$5, installed_by=$6, installed_at=$7, updated_at=$8, version=version+1
        WHERE id=$9 AND version=$10`
	for _, s := range serials {
		cmd, err := tx.Exec(ctx, update,
			s.Status, s.ReservedForClaim, s.ReservedAt, s.InstalledVIN,
			s.WorkOrderID, s.InstalledBy, s.InstalledAt, s.UpdatedAt, s.ID, s.Version,
		)
		if err != nil {
			return mapWriteError(err)
		}
		if cmd.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM part_serials WHERE id=$1)`, s.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrStaleVersion
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	for _, s := range serials {
		s.Version++
	}
	return nil
}

func (r *partSerialRepository) query(ctx context.Context, query string, args ...any) ([]domain.PartSerial, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PartSerial
	for rows.Next() {
		s, err := scanPartSerial(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func scanPartSerial(row pgx.Row) (*domain.PartSerial, error) {
	var s domain.PartSerial
	if err := row.Scan(
		&s.ID,
		&s.PartID,
		&s.SerialNumber,
		&s.ThirdParty,
		&s.Status,
		&s.ReservedForClaim,
		&s.ReservedAt,
		&s.InstalledVIN,
		&s.WorkOrderID,
		&s.InstalledBy,
		&s.InstalledAt,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.Version,
	); err != nil {
		return nil, err
	}
	return &s, nil
}
