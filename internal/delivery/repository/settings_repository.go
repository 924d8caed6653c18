package repository

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/errors"
)

// settingsRowID is the primary key of the single DeliverySettings row.
const settingsRowID = 1

type MySQLSettingsRepository struct {
	db *sql.DB
}

func NewMySQLSettingsRepository(db *sql.DB) *MySQLSettingsRepository {
	return &MySQLSettingsRepository{db: db}
}

func (r *MySQLSettingsRepository) Get(ctx context.Context) (*domain.DeliverySettings, error) {
	query := `
		SELECT id, businessPincode, businessCity, businessState, businessLatitude, businessLongitude,
		       localDeliveryCharge, cityDeliveryCharge, stateDeliveryCharge, nationalDeliveryCharge,
		       freeShippingEnabled, freeShippingThreshold, updatedAt
		FROM DeliverySettings
		WHERE id = ?
	`

	var s domain.DeliverySettings
	err := r.db.QueryRowContext(ctx, query, settingsRowID).Scan(
		&s.ID, &s.BusinessPincode, &s.BusinessCity, &s.BusinessState, &s.BusinessLatitude, &s.BusinessLongitude,
		&s.LocalDeliveryCharge, &s.CityDeliveryCharge, &s.StateDeliveryCharge, &s.NationalDeliveryCharge,
		&s.FreeShippingEnabled, &s.FreeShippingThreshold, &s.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("delivery settings not configured")
	}
	if err != nil {
		return nil, fmt.Errorf("querying delivery settings: %w", err)
	}

	return &s, nil
}

func (r *MySQLSettingsRepository) Save(ctx context.Context, s *domain.DeliverySettings) error {
	query := `
		INSERT INTO DeliverySettings (
			id, businessPincode, businessCity, businessState, businessLatitude, businessLongitude,
			localDeliveryCharge, cityDeliveryCharge, stateDeliveryCharge, nationalDeliveryCharge,
			freeShippingEnabled, freeShippingThreshold, updatedAt
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			businessPincode = VALUES(businessPincode),
			businessCity = VALUES(businessCity),
			businessState = VALUES(businessState),
			businessLatitude = VALUES(businessLatitude),
			businessLongitude = VALUES(businessLongitude),
			localDeliveryCharge = VALUES(localDeliveryCharge),
			cityDeliveryCharge = VALUES(cityDeliveryCharge),
			stateDeliveryCharge = VALUES(stateDeliveryCharge),
			nationalDeliveryCharge = VALUES(nationalDeliveryCharge),
			freeShippingEnabled = VALUES(freeShippingEnabled),
			freeShippingThreshold = VALUES(freeShippingThreshold),
			updatedAt = VALUES(updatedAt)
	`

	_, err := r.db.ExecContext(ctx, query,
		settingsRowID, s.BusinessPincode, s.BusinessCity, s.BusinessState, s.BusinessLatitude, s.BusinessLongitude,
		s.LocalDeliveryCharge, s.CityDeliveryCharge, s.StateDeliveryCharge, s.NationalDeliveryCharge,
		s.FreeShippingEnabled, s.FreeShippingThreshold, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving delivery settings: %w", err)
	}
	s.ID = settingsRowID
	return nil
}
