package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/warranty-service/internal/domain"
)

const claimColumns = `id, claim_number, vehicle_id, customer_id, status, repair_path, failure_description,
       created_by, technician_id, diagnoses, parts, attachments, costs, eligibility,
       rejection_count, resubmit_count, can_resubmit, rejection_reason, rejection_notes, approval_notes,
       problem_reports, inspection, cancel_requested, payment_status,
       created_at, updated_at, approved_at, rejected_at, ready_for_handover_at, closed_at, version`

type claimRepository struct {
	pool *pgxpool.Pool
}

// NewClaimRepository instantiates the Postgres claim repository.
func NewClaimRepository(pool *pgxpool.Pool) ClaimRepository {
	return &claimRepository{pool: pool}
}

func (r *claimRepository) Create(ctx context.Context, claim *domain.Claim) error {
	const query = `
        INSERT INTO claims (id, claim_number, vehicle_id, customer_id, status, repair_path, failure_description,
            created_by, technician_id, diagnoses, parts, attachments, costs, eligibility,
            rejection_count, resubmit_count, can_resubmit, rejection_reason, rejection_notes, approval_notes,
            problem_reports, inspection, cancel_requested, payment_status,
            created_at, updated_at, approved_at, rejected_at, ready_for_handover_at, closed_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,1)`
	_, err := r.pool.Exec(ctx, query,
		claim.ID,
		claim.ClaimNumber,
		claim.VehicleID,
		claim.CustomerID,
		claim.Status,
		claim.RepairPath,
		claim.FailureDescription,
		claim.CreatedBy,
		claim.TechnicianID,
		claim.Diagnoses,
		claim.Parts,
		claim.Attachments,
		claim.Costs,
		claim.Eligibility,
		claim.RejectionCount,
		claim.ResubmitCount,
		claim.CanResubmit,
		claim.RejectionReason,
		claim.RejectionNotes,
		claim.ApprovalNotes,
		claim.ProblemReports,
		claim.Inspection,
		claim.CancelRequested,
		claim.PaymentStatus,
		claim.CreatedAt,
		claim.UpdatedAt,
		claim.ApprovedAt,
		claim.RejectedAt,
		claim.ReadyForHandoverAt,
		claim.ClosedAt,
	)
	if err != nil {
		return mapWriteError(err)
	}
	claim.Version = 1
	return nil
}

func (r *claimRepository) Update(ctx context.Context, claim *domain.Claim) error {
	const query = `
        UPDATE claims SET status=$1, repair_path=$2, failure_description=$3, technician_id=$4,
            diagnoses=$5, parts=$6, attachments=$7, costs=$8, eligibility=$9,
            rejection_count=$10, resubmit_count=$11, can_resubmit=$12, rejection_reason=$13,
            rejection_notes=$14, approval_notes=$15, problem_reports=$16, inspection=$17,
            cancel_requested=$18, payment_status=$19, updated_at=$20, approved_at=$21,
            rejected_at=$22, ready_for_handover_at=$23, closed_at=$24, version=version+1
        WHERE id=$25 AND version=$26`
	cmd, err := r.pool.Exec(ctx, query,
		claim.Status,
		claim.RepairPath,
		claim.FailureDescription,
		claim.TechnicianID,
		claim.Diagnoses,
		claim.Parts,
		claim.Attachments,
		claim.Costs,
		claim.Eligibility,
		claim.RejectionCount,
		claim.ResubmitCount,
		claim.CanResubmit,
		claim.RejectionReason,
		claim.RejectionNotes,
		claim.ApprovalNotes,
		claim.ProblemReports,
		claim.Inspection,
		claim.CancelRequested,
		claim.PaymentStatus,
		claim.UpdatedAt,
		claim.ApprovedAt,
		claim.RejectedAt,
		claim.ReadyForHandoverAt,
		claim.ClosedAt,
		claim.ID,
		claim.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return r.missOrStale(ctx, claim.ID)
	}
	claim.Version++
	return nil
}

func (r *claimRepository) Delete(ctx context.Context, id string, version int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM claims WHERE id=$1 AND version=$2`, id, version)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return r.missOrStale(ctx, id)
	}
	return nil
}

func (r *claimRepository) GetByID(ctx context.Context, id string) (*domain.Claim, error) {
	return r.fetchSingle(ctx, `SELECT `+claimColumns+` FROM claims WHERE id=$1`, id)
}

func (r *claimRepository) GetByNumber(ctx context.Context, number string) (*domain.Claim, error) {
	return r.fetchSingle(ctx, `SELECT `+claimColumns+` FROM claims WHERE claim_number=$1`, number)
}

func (r *claimRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Claim, error) {
	claim, err := scanClaim(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidKey(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return claim, nil
}

func (r *claimRepository) List(ctx context.Context, filter ClaimFilter) ([]domain.Claim, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.VehicleID != nil {
		args = append(args, *filter.VehicleID)
		clauses = append(clauses, fmt.Sprintf("vehicle_id=$%d", len(args)))
	}
	if filter.UpdatedTo != nil {
		args = append(args, *filter.UpdatedTo)
		clauses = append(clauses, fmt.Sprintf("updated_at <= $%d", len(args)))
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM claims WHERE %s ORDER BY updated_at DESC, id LIMIT %d OFFSET %d`,
		claimColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *claim)
	}
	return result, rows.Err()
}

func (r *claimRepository) CountByStatus(ctx context.Context) (map[domain.ClaimStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM claims GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.ClaimStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.ClaimStatus(status)] = n
	}
	return counts, rows.Err()
}

func (r *claimRepository) missOrStale(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM claims WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStaleVersion
}

func scanClaim(row pgx.Row) (*domain.Claim, error) {
	var claim domain.Claim
	if err := row.Scan(
		&claim.ID,
		&claim.ClaimNumber,
		&claim.VehicleID,
		&claim.CustomerID,
		&claim.Status,
		&claim.RepairPath,
		&claim.FailureDescription,
		&claim.CreatedBy,
		&claim.TechnicianID,
		&claim.Diagnoses,
		&claim.Parts,
		&claim.Attachments,
		&claim.Costs,
		&claim.Eligibility,
		&claim.RejectionCount,
		&claim.ResubmitCount,
		&claim.CanResubmit,
		&claim.RejectionReason,
		&claim.RejectionNotes,
		&claim.ApprovalNotes,
		&claim.ProblemReports,
		&claim.Inspection,
		&claim.CancelRequested,
		&claim.PaymentStatus,
		&claim.CreatedAt,
		&claim.UpdatedAt,
		&claim.ApprovedAt,
		&claim.RejectedAt,
		&claim.ReadyForHandoverAt,
		&claim.ClosedAt,
		&claim.Version,
	); err != nil {
		return nil, err
	}
	return &claim, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// isInvalidKey reports a malformed UUID key; no row can match it.
func isInvalidKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// mapWriteError translates unique violations into ErrDuplicate.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
