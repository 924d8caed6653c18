package repository

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/errors"
	"storefront/internal/infrastructure/mysql"

	"github.com/shopspring/decimal"
)

type MySQLCouponRepository struct {
	db *sql.DB
}

func NewMySQLCouponRepository(db *sql.DB) *MySQLCouponRepository {
	return &MySQLCouponRepository{db: db}
}

const couponColumns = `id, code, description, discountType, discountValue, minOrderValue, maxDiscount,
	usageLimit, usageCount, perUserLimit, validFrom, validUntil, isActive, createdAt, updatedAt`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCoupon(row rowScanner) (*domain.Coupon, error) {
	var (
		c            domain.Coupon
		discountType string
		minOrder     decimal.NullDecimal
		maxDiscount  decimal.NullDecimal
		usageLimit   sql.NullInt64
		perUserLimit sql.NullInt64
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Description, &discountType, &c.DiscountValue, &minOrder, &maxDiscount,
		&usageLimit, &c.UsageCount, &perUserLimit, &c.ValidFrom, &c.ValidUntil, &c.IsActive,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.DiscountType = domain.DiscountType(discountType)
	if minOrder.Valid {
		c.MinOrderValue = &minOrder.Decimal
	}
	if maxDiscount.Valid {
		c.MaxDiscount = &maxDiscount.Decimal
	}
	if usageLimit.Valid {
		v := int(usageLimit.Int64)
		c.UsageLimit = &v
	}
	if perUserLimit.Valid {
		v := int(perUserLimit.Int64)
		c.PerUserLimit = &v
	}
	return &c, nil
}

func (r *MySQLCouponRepository) FindByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM Coupons WHERE code = ?`

	c, err := scanCoupon(r.db.QueryRowContext(ctx, query, code))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("coupon %s not found", code))
	}
	if err != nil {
		return nil, fmt.Errorf("querying coupon by code: %w", err)
	}
	return c, nil
}

func (r *MySQLCouponRepository) FindByID(ctx context.Context, id string) (*domain.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM Coupons WHERE id = ?`

	c, err := scanCoupon(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("coupon with id %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying coupon by id: %w", err)
	}
	return c, nil
}

func (r *MySQLCouponRepository) List(ctx context.Context) ([]domain.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM Coupons ORDER BY createdAt DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying coupons: %w", err)
	}
	defer rows.Close()

	coupons := []domain.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning coupon: %w", err)
		}
		coupons = append(coupons, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating coupons: %w", err)
	}
	return coupons, nil
}

func (r *MySQLCouponRepository) Insert(ctx context.Context, c *domain.Coupon) error {
	query := `
		INSERT INTO Coupons (` + couponColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Code, c.Description, string(c.DiscountType), c.DiscountValue,
		nullDecimal(c.MinOrderValue), nullDecimal(c.MaxDiscount),
		nullInt(c.UsageLimit), c.UsageCount, nullInt(c.PerUserLimit),
		c.ValidFrom, c.ValidUntil, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	if mysql.IsDuplicateEntry(err) {
		return errors.NewConflictError(fmt.Sprintf("coupon code %s already exists", c.Code))
	}
	if err != nil {
		return fmt.Errorf("inserting coupon: %w", err)
	}
	return nil
}

// Update rewrites the admin-editable fields. usageCount is owned by
// IncrementUsage and is never overwritten here.
func (r *MySQLCouponRepository) Update(ctx context.Context, c *domain.Coupon) error {
	query := `
		UPDATE Coupons
		SET code = ?, description = ?, discountType = ?, discountValue = ?, minOrderValue = ?,
		    maxDiscount = ?, usageLimit = ?, perUserLimit = ?, validFrom = ?, validUntil = ?,
		    isActive = ?, updatedAt = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		c.Code, c.Description, string(c.DiscountType), c.DiscountValue,
		nullDecimal(c.MinOrderValue), nullDecimal(c.MaxDiscount),
		nullInt(c.UsageLimit), nullInt(c.PerUserLimit),
		c.ValidFrom, c.ValidUntil, c.IsActive, c.UpdatedAt, c.ID,
	)
	if mysql.IsDuplicateEntry(err) {
		return errors.NewConflictError(fmt.Sprintf("coupon code %s already exists", c.Code))
	}
	if err != nil {
		return fmt.Errorf("updating coupon: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("coupon with id %s not found", c.ID))
	}
	return nil
}

func (r *MySQLCouponRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM Coupons WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting coupon: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("coupon with id %s not found", id))
	}
	return nil
}

// IncrementUsage bumps usageCount in a single statement so concurrent
// redemptions never lose an increment.
func (r *MySQLCouponRepository) IncrementUsage(ctx context.Context, code string) error {
	query := `UPDATE Coupons SET usageCount = usageCount + 1, updatedAt = UTC_TIMESTAMP(6) WHERE code = ?`

	result, err := r.db.ExecContext(ctx, query, code)
	if err != nil {
		return fmt.Errorf("incrementing coupon usage: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("coupon %s not found", code))
	}
	return nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
