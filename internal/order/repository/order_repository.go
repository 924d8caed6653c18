package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/errors"
	"storefront/internal/infrastructure/mysql"
)

type MySQLOrderRepository struct {
	db *sql.DB
}

func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

const orderColumns = `id, orderNumber, userId, subtotal, discount, deliveryCharge, tax, total,
	couponCode, shippingAddress, deliveryPincode, paymentMethod, paymentStatus, paymentId,
	gatewayOrderId, status, statusHistory, trackingNumber, trackingUrl, courierName,
	cancelledAt, cancellationReason, estimatedDeliveryDate, createdAt, updatedAt, version`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                  domain.Order
		couponCode         sql.NullString
		paymentID          sql.NullString
		gatewayOrderID     sql.NullString
		trackingNumber     sql.NullString
		trackingURL        sql.NullString
		courier            sql.NullString
		cancellationReason sql.NullString
		cancelledAt        sql.NullTime
		estimatedDelivery  sql.NullTime
		address            []byte
		history            []byte
		paymentMethod      string
		paymentStatus      string
		status             string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Subtotal, &o.Discount, &o.DeliveryCharge, &o.Tax, &o.Total,
		&couponCode, &address, &o.DeliveryPincode, &paymentMethod, &paymentStatus, &paymentID,
		&gatewayOrderID, &status, &history, &trackingNumber, &trackingURL, &courier,
		&cancelledAt, &cancellationReason, &estimatedDelivery, &o.CreatedAt, &o.UpdatedAt, &o.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decoding shipping address of order %s: %w", o.ID, err)
	}
	if err := json.Unmarshal(history, &o.StatusHistory); err != nil {
		return nil, fmt.Errorf("decoding status history of order %s: %w", o.ID, err)
	}

	o.CouponCode = couponCode.String
	o.PaymentMethod = domain.PaymentMethod(paymentMethod)
	o.PaymentStatus = domain.PaymentStatus(paymentStatus)
	o.PaymentID = paymentID.String
	o.GatewayOrderID = gatewayOrderID.String
	o.Status = domain.OrderStatus(status)
	o.TrackingNumber = trackingNumber.String
	o.TrackingURL = trackingURL.String
	o.CourierName = courier.String
	o.CancellationReason = cancellationReason.String
	if cancelledAt.Valid {
		t := cancelledAt.Time
		o.CancelledAt = &t
	}
	if estimatedDelivery.Valid {
		t := estimatedDelivery.Time
		o.EstimatedDeliveryDate = &t
	}
	return &o, nil
}

// NextSequence returns the next order number sequence for year. The upsert
// and LAST_INSERT_ID run as one statement, so concurrent callers never
// receive the same value.
func (r *MySQLOrderRepository) NextSequence(ctx context.Context, year int) (int64, error) {
	query := `
		INSERT INTO OrderSequences (year, value) VALUES (?, LAST_INSERT_ID(1))
		ON DUPLICATE KEY UPDATE value = LAST_INSERT_ID(value + 1)
	`

	result, err := r.db.ExecContext(ctx, query, year)
	if err != nil {
		return 0, fmt.Errorf("advancing order sequence: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}
	return seq, nil
}

func (r *MySQLOrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("encoding shipping address: %w", err)
	}
	history, err := json.Marshal(o.StatusHistory)
	if err != nil {
		return fmt.Errorf("encoding status history: %w", err)
	}

	query := `
		INSERT INTO Orders (` + orderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		o.ID, o.OrderNumber, o.UserID, o.Subtotal, o.Discount, o.DeliveryCharge, o.Tax, o.Total,
		nullString(o.CouponCode), string(address), o.DeliveryPincode, string(o.PaymentMethod),
		string(o.PaymentStatus), nullString(o.PaymentID), nullString(o.GatewayOrderID),
		string(o.Status), string(history), nullString(o.TrackingNumber), nullString(o.TrackingURL),
		nullString(o.CourierName), nullTime(o.CancelledAt), nullString(o.CancellationReason),
		nullTime(o.EstimatedDeliveryDate), o.CreatedAt, o.UpdatedAt, o.Version,
	)
	if mysql.IsDuplicateEntry(err) {
		return errors.NewConflictError(fmt.Sprintf("order number %s already exists", o.OrderNumber))
	}
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

// Delete removes an order header. Items go with it through the foreign key.
func (r *MySQLOrderRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM Orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("order with id %s not found", id))
	}
	return nil
}

func (r *MySQLOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM Orders WHERE id = ?`

	o, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order with id %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order by id: %w", err)
	}
	return o, nil
}

func (r *MySQLOrderRepository) FindByNumber(ctx context.Context, number string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM Orders WHERE orderNumber = ?`

	o, err := scanOrder(r.db.QueryRowContext(ctx, query, number))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order %s not found", number))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order by number: %w", err)
	}
	return o, nil
}

// Find returns headers matching f, newest first with id as the tie-break.
// A zero PageSize returns every match.
func (r *MySQLOrderRepository) Find(ctx context.Context, f domain.OrderFilter, p domain.Page) ([]domain.Order, error) {
	where, args := buildWhere(f)
	query := `SELECT ` + orderColumns + ` FROM Orders` + where + ` ORDER BY createdAt DESC, id DESC`
	if p.PageSize > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, p.PageSize, p.Offset())
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	return orders, nil
}

func (r *MySQLOrderRepository) Count(ctx context.Context, f domain.OrderFilter) (int, error) {
	where, args := buildWhere(f)

	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Orders`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders: %w", err)
	}
	return n, nil
}

// UpdateLifecycle writes the mutable lifecycle columns if the stored version
// still equals expectedVersion, bumping it by one. A lost race surfaces as a
// ConflictError.
func (r *MySQLOrderRepository) UpdateLifecycle(ctx context.Context, o *domain.Order, expectedVersion int) error {
	history, err := json.Marshal(o.StatusHistory)
	if err != nil {
		return fmt.Errorf("encoding status history: %w", err)
	}

	query := `
		UPDATE Orders
		SET status = ?, statusHistory = ?, paymentStatus = ?, trackingNumber = ?, trackingUrl = ?,
		    courierName = ?, cancelledAt = ?, cancellationReason = ?, updatedAt = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(o.Status), string(history), string(o.PaymentStatus), nullString(o.TrackingNumber),
		nullString(o.TrackingURL), nullString(o.CourierName), nullTime(o.CancelledAt),
		nullString(o.CancellationReason), o.UpdatedAt, o.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("updating order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errors.NewConflictError(fmt.Sprintf("order %s was modified concurrently, reload and retry", o.OrderNumber))
	}
	return nil
}

func buildWhere(f domain.OrderFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.UserID != "" {
		conds = append(conds, "userId = ?")
		args = append(args, f.UserID)
	}
	if len(f.Statuses) > 0 {
		conds = append(conds, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if len(f.PaymentStatuses) > 0 {
		conds = append(conds, "paymentStatus IN ("+placeholders(len(f.PaymentStatuses))+")")
		for _, s := range f.PaymentStatuses {
			args = append(args, string(s))
		}
	}
	if f.From != nil {
		conds = append(conds, "createdAt >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		conds = append(conds, "createdAt <= ?")
		args = append(args, *f.To)
	}
	if q := strings.TrimSpace(f.OrderNumberContains); q != "" {
		conds = append(conds, `UPPER(orderNumber) LIKE ? ESCAPE '\\'`)
		args = append(args, "%"+escapeLike(strings.ToUpper(q))+"%")
	}
	if q := strings.TrimSpace(f.ContactContains); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		conds = append(conds, `(LOWER(JSON_UNQUOTE(JSON_EXTRACT(shippingAddress, '$.name'))) LIKE ? ESCAPE '\\'`+
			` OR LOWER(JSON_UNQUOTE(JSON_EXTRACT(shippingAddress, '$.phone'))) LIKE ? ESCAPE '\\')`)
		args = append(args, pattern, pattern)
	}
	if f.After != nil {
		conds = append(conds, "(createdAt < ? OR (createdAt = ? AND id < ?))")
		args = append(args, f.After.CreatedAt, f.After.CreatedAt, f.After.ID)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
