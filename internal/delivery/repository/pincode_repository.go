package repository

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/errors"
)

// MySQLPincodeRepository resolves postal codes from the Pincodes reference table.
type MySQLPincodeRepository struct {
	db *sql.DB
}

func NewMySQLPincodeRepository(db *sql.DB) *MySQLPincodeRepository {
	return &MySQLPincodeRepository{db: db}
}

func (r *MySQLPincodeRepository) Locate(ctx context.Context, pincode string) (*domain.Location, error) {
	query := `SELECT pincode, city, state, latitude, longitude FROM Pincodes WHERE pincode = ?`

	var (
		loc      domain.Location
		lat, lng sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, query, pincode).Scan(&loc.Pincode, &loc.City, &loc.State, &lat, &lng)

	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("pincode %s not found", pincode))
	}
	if err != nil {
		return nil, fmt.Errorf("querying pincode: %w", err)
	}

	if lat.Valid && lng.Valid {
		loc.Latitude = &lat.Float64
		loc.Longitude = &lng.Float64
	}
	return &loc, nil
}

func (r *MySQLPincodeRepository) Upsert(ctx context.Context, loc domain.Location) error {
	query := `
		INSERT INTO Pincodes (pincode, city, state, latitude, longitude)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE city = VALUES(city), state = VALUES(state),
			latitude = VALUES(latitude), longitude = VALUES(longitude)
	`

	var lat, lng sql.NullFloat64
	if loc.HasCoordinates() {
		lat = sql.NullFloat64{Float64: *loc.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: *loc.Longitude, Valid: true}
	}

	if _, err := r.db.ExecContext(ctx, query, loc.Pincode, loc.City, loc.State, lat, lng); err != nil {
		return fmt.Errorf("upserting pincode: %w", err)
	}
	return nil
}
