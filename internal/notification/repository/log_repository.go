package repository

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/domain"
	"storefront/internal/errors"
)

type MySQLLogRepository struct {
	db *sql.DB
}

func NewMySQLLogRepository(db *sql.DB) *MySQLLogRepository {
	return &MySQLLogRepository{db: db}
}

func (r *MySQLLogRepository) Create(ctx context.Context, l *domain.NotificationLog) error {
	query := `
		INSERT INTO NotificationLogs (
			id, type, recipient, subject, body, orderId, status, retryCount,
			errorMessage, providerId, createdAt, updatedAt, sentAt
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		l.ID, string(l.Type), l.Recipient, l.Subject, l.Body, nullString(l.OrderID),
		string(l.Status), l.RetryCount, nullString(l.ErrorMessage), nullString(l.ProviderID),
		l.CreatedAt, l.UpdatedAt, l.SentAt,
	)
	if err != nil {
		return fmt.Errorf("inserting notification log: %w", err)
	}
	return nil
}

// Update records the outcome of a delivery attempt.
func (r *MySQLLogRepository) Update(ctx context.Context, l *domain.NotificationLog) error {
	query := `
		UPDATE NotificationLogs
		SET status = ?, retryCount = ?, errorMessage = ?, providerId = ?, updatedAt = ?, sentAt = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(l.Status), l.RetryCount, nullString(l.ErrorMessage), nullString(l.ProviderID),
		l.UpdatedAt, l.SentAt, l.ID,
	)
	if err != nil {
		return fmt.Errorf("updating notification log: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("notification log with id %s not found", l.ID))
	}
	return nil
}

func (r *MySQLLogRepository) FindByOrderID(ctx context.Context, orderID string) ([]domain.NotificationLog, error) {
	query := `
		SELECT id, type, recipient, subject, body, orderId, status, retryCount,
		       errorMessage, providerId, createdAt, updatedAt, sentAt
		FROM NotificationLogs
		WHERE orderId = ?
		ORDER BY createdAt ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("querying notification logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.NotificationLog{}
	for rows.Next() {
		var (
			l                              domain.NotificationLog
			typ, status                    string
			orderIDCol, errMsg, providerID sql.NullString
			sentAt                         sql.NullTime
		)
		err := rows.Scan(
			&l.ID, &typ, &l.Recipient, &l.Subject, &l.Body, &orderIDCol, &status, &l.RetryCount,
			&errMsg, &providerID, &l.CreatedAt, &l.UpdatedAt, &sentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning notification log: %w", err)
		}
		l.Type = domain.NotificationType(typ)
		l.Status = domain.NotificationStatus(status)
		l.OrderID = orderIDCol.String
		l.ErrorMessage = errMsg.String
		l.ProviderID = providerID.String
		if sentAt.Valid {
			t := sentAt.Time
			l.SentAt = &t
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notification logs: %w", err)
	}
	return logs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
