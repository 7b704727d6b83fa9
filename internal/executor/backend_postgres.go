package executor

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresBackend is a demo Backend, adapted from the teacher's
// adapter.PostgreSQLAdapter.
type PostgresBackend struct {
	db     *sql.DB
	cfg    PostgresConfig
}

type PostgresConfig struct {
	Host, Database, User, Password, SSLMode string
	Port                                    int
}

func NewPostgresBackend(cfg PostgresConfig) *PostgresBackend {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	return &PostgresBackend{cfg: cfg}
}

func (a *PostgresBackend) Connect(ctx context.Context) error {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		a.cfg.Host, a.cfg.Port, a.cfg.Database, a.cfg.User, a.cfg.Password, a.cfg.SSLMode)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	a.db = db
	return nil
}

func (a *PostgresBackend) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *PostgresBackend) ExecuteQuery(ctx context.Context, query string) (Result, error) {
	return runQuery(ctx, a.db, query)
}

func (a *PostgresBackend) DatabaseType() string { return "PostgreSQL" }

func (a *PostgresBackend) DatabaseVersion(ctx context.Context) (string, error) {
	return scalarString(ctx, a.db, "SELECT version()")
}

func (a *PostgresBackend) DryRunSQL(ctx context.Context, query string) (string, error) {
	return explainPlanText(ctx, a.db, "EXPLAIN "+query)
}
