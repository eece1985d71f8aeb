package testhelpers

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite" // SQLite driver for fixture seeding
)

var sqliteFixture = []string{
	`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT)`,
	`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER NOT NULL, total REAL, placed_at TEXT)`,
	`INSERT INTO customers VALUES (1,'Ada','ada@example.com'),(2,'Grace',NULL),(3,'Edsger','edsger@example.com'),(4,'Barbara',NULL)`,
	`INSERT INTO orders (id, customer_id, total) VALUES (1,1,19.99),(2,3,5.00)`,
}

// SQLiteFixture creates a SQLite database file seeded with the same tables
// and rows as the container fixtures and returns its path. The file lives
// in t.TempDir.
func SQLiteFixture(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite fixture: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	for _, stmt := range sqliteFixture {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seed sqlite fixture: %v", err)
		}
	}
	return path
}
