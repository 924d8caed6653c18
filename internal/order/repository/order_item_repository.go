package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"storefront/internal/domain"
)

type MySQLOrderItemRepository struct {
	db *sql.DB
}

func NewMySQLOrderItemRepository(db *sql.DB) *MySQLOrderItemRepository {
	return &MySQLOrderItemRepository{db: db}
}

const itemColumns = `id, orderId, productId, productName, productImage, variantId, variantName,
	quantity, price, subtotal`

// InsertBatch writes all items in a single statement, so either every item
// is stored or none is.
func (r *MySQLOrderItemRepository) InsertBatch(ctx context.Context, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([]string, 0, len(items))
	args := make([]interface{}, 0, len(items)*11)
	for i, it := range items {
		rows = append(rows, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			it.ID, it.OrderID, it.ProductID, it.ProductName, nullString(it.ProductImage),
			nullString(it.VariantID), nullString(it.VariantName), it.Quantity, it.Price, it.Subtotal, i,
		)
	}

	query := `INSERT INTO OrderItems (` + itemColumns + `, lineNumber) VALUES ` + strings.Join(rows, ", ")
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting order items: %w", err)
	}
	return nil
}

// FindByOrderIDs loads the items of several orders in one query, keyed by
// order id.
func (r *MySQLOrderItemRepository) FindByOrderIDs(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	out := make(map[string][]domain.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}

	args := make([]interface{}, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}
	query := `SELECT ` + itemColumns + ` FROM OrderItems WHERE orderId IN (` + placeholders(len(orderIDs)) + `) ORDER BY orderId, lineNumber`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it          domain.OrderItem
			image       sql.NullString
			variantID   sql.NullString
			variantName sql.NullString
		)
		err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &image, &variantID, &variantName,
			&it.Quantity, &it.Price, &it.Subtotal,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		it.ProductImage = image.String
		it.VariantID = variantID.String
		it.VariantName = variantName.String
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order items: %w", err)
	}
	return out, nil
}
