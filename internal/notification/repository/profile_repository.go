package repository

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/errors"
)

type Recipient struct {
	Email string
	Name  string
}

// MySQLProfileRepository resolves a user id to the address notifications
// are sent to.
type MySQLProfileRepository struct {
	db *sql.DB
}

func NewMySQLProfileRepository(db *sql.DB) *MySQLProfileRepository {
	return &MySQLProfileRepository{db: db}
}

func (r *MySQLProfileRepository) Lookup(ctx context.Context, userID string) (*Recipient, error) {
	query := `SELECT email, fullName FROM Profiles WHERE id = ?`

	var rcpt Recipient
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&rcpt.Email, &rcpt.Name)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("profile for user %s not found", userID))
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	return &rcpt, nil
}
