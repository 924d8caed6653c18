package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"

	"storefront/internal/infrastructure/mysql"
)

// SetupTestDB opens the integration database. It expects a MySQL database
// named 'storefront_test' on localhost:3306 unless STOREFRONT_TEST_DSN is set,
// and skips the test when none is reachable.
func SetupTestDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("STOREFRONT_TEST_DSN")
	if dsn == "" {
		dsn = "root:@tcp(localhost:3306)/storefront_test?parseTime=true&loc=UTC"
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.Ping()
	if err != nil {
		t.Skipf("test database not available: %v", err)
	}

	return db
}

// SetupTestTables creates the schema used by the repositories.
func SetupTestTables(t *testing.T, db *sql.DB) {
	if err := mysql.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}
}

// CleanupTestDB empties every table (children first) and closes the handle.
func CleanupTestDB(t *testing.T, db *sql.DB) {
	if db == nil {
		return
	}

	for i := len(mysql.Tables) - 1; i >= 0; i-- {
		table := mysql.Tables[i].Name
		_, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}

	db.Close()
}
