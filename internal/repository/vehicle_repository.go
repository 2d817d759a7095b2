package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/warranty-service/internal/domain"
)

type vehicleRepository struct {
	pool *pgxpool.Pool
}

// NewVehicleRepository builds the Postgres vehicle registry view.
func NewVehicleRepository(pool *pgxpool.Pool) VehicleRepository {
	return &vehicleRepository{pool: pool}
}

func (r *vehicleRepository) Save(ctx context.Context, v *domain.Vehicle) error {
	const query = `
        INSERT INTO vehicles (id, vin, model, customer_id, registration_date, mileage_km, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())
        ON CONFLICT (id) DO UPDATE SET
            vin=EXCLUDED.vin, model=EXCLUDED.model, customer_id=EXCLUDED.customer_id,
            registration_date=EXCLUDED.registration_date, mileage_km=EXCLUDED.mileage_km, updated_at=NOW()
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query, v.ID, v.VIN, v.Model, v.CustomerID, v.RegistrationDate, v.MileageKm).
		Scan(&v.CreatedAt, &v.UpdatedAt)
}

func (r *vehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	const query = `
        SELECT id, vin, model, customer_id, registration_date, mileage_km, created_at, updated_at
        FROM vehicles WHERE id=$1`
	var v domain.Vehicle
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&v.ID, &v.VIN, &v.Model, &v.CustomerID, &v.RegistrationDate, &v.MileageKm, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}
