package executor

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteBackend is a demo-grade Backend standing in for the out-of-scope
// Oracle driver, adapted from the teacher's adapter.SQLiteAdapter. It uses
// modernc.org/sqlite (pure Go) rather than the teacher's cgo-based
// mattn/go-sqlite3, since the teacher's own go.mod already carries
// modernc.org/sqlite as a direct dependency (pulled in for its dry-run/
// EXPLAIN QUERY PLAN path) and a cgo-free driver is the better fit for a
// demo backend meant to run anywhere without a C toolchain.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

func NewSQLiteBackend(path string) *SQLiteBackend { return &SQLiteBackend{path: path} }

func (a *SQLiteBackend) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite", a.path)
	if err != nil {
		return fmt.Errorf("sqlite: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	a.db = db
	return nil
}

func (a *SQLiteBackend) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *SQLiteBackend) ExecuteQuery(ctx context.Context, query string) (Result, error) {
	return runQuery(ctx, a.db, query)
}

func (a *SQLiteBackend) DatabaseType() string { return "SQLite" }

func (a *SQLiteBackend) DatabaseVersion(ctx context.Context) (string, error) {
	return scalarString(ctx, a.db, "SELECT sqlite_version()")
}

func (a *SQLiteBackend) DryRunSQL(ctx context.Context, query string) (string, error) {
	return explainPlanText(ctx, a.db, "EXPLAIN QUERY PLAN "+query)
}
