package mysql

import (
	"database/sql"
	"errors"
	"fmt"

	drv "github.com/go-sql-driver/mysql"

	"storefront/internal/config"
)

const (
	errDuplicateEntry   = 1062
	errLockWaitTimeout  = 1205
	errDeadlockDetected = 1213
)

func NewConnection(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name,
	)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// IsDeadlock reports whether err is a MySQL deadlock or lock wait timeout,
// both of which are safe to retry from the start.
func IsDeadlock(err error) bool {
	var mysqlErr *drv.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == errDeadlockDetected || mysqlErr.Number == errLockWaitTimeout
	}
	return false
}

func IsDuplicateEntry(err error) bool {
	var mysqlErr *drv.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == errDuplicateEntry
	}
	return false
}
