package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/warranty-service/internal/domain"
)

type warrantyRuleRepository struct {
	pool *pgxpool.Pool
}

// NewWarrantyRuleRepository builds the Postgres rule repository.
func NewWarrantyRuleRepository(pool *pgxpool.Pool) WarrantyRuleRepository {
	return &warrantyRuleRepository{pool: pool}
}

func (r *warrantyRuleRepository) Save(ctx context.Context, rule *domain.WarrantyRule) error {
	const query = `
        INSERT INTO warranty_rules (id, vehicle_model, component_category, coverage_years, coverage_km,
            effective_from, effective_to, priority)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (id) DO UPDATE SET
            vehicle_model=EXCLUDED.vehicle_model, component_category=EXCLUDED.component_category,
            coverage_years=EXCLUDED.coverage_years, coverage_km=EXCLUDED.coverage_km,
            effective_from=EXCLUDED.effective_from, effective_to=EXCLUDED.effective_to, priority=EXCLUDED.priority`
	_, err := r.pool.Exec(ctx, query,
		rule.ID, rule.VehicleModel, rule.ComponentCategory, rule.CoverageYears, rule.CoverageKm,
		rule.EffectiveFrom, rule.EffectiveTo, rule.Priority,
	)
	return err
}

func (r *warrantyRuleRepository) ListByModel(ctx context.Context, model string) ([]domain.WarrantyRule, error) {
	const query = `
        SELECT id, vehicle_model, component_category, coverage_years, coverage_km, effective_from, effective_to, priority
        FROM warranty_rules WHERE LOWER(vehicle_model)=LOWER($1) ORDER BY priority DESC, id ASC`
	rows, err := r.pool.Query(ctx, query, model)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WarrantyRule
	for rows.Next() {
		var rule domain.WarrantyRule
		if err := rows.Scan(
			&rule.ID,
			&rule.VehicleModel,
			&rule.ComponentCategory,
			&rule.CoverageYears,
			&rule.CoverageKm,
			&rule.EffectiveFrom,
			&rule.EffectiveTo,
			&rule.Priority,
		); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}
