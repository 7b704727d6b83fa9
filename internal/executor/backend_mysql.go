package executor

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLBackend is a demo Backend, adapted from the teacher's
// adapter.MySQLAdapter.
type MySQLBackend struct {
	db  *sql.DB
	cfg MySQLConfig
}

type MySQLConfig struct {
	Host, Database, User, Password string
	Port                            int
}

func NewMySQLBackend(cfg MySQLConfig) *MySQLBackend { return &MySQLBackend{cfg: cfg} }

func (a *MySQLBackend) Connect(ctx context.Context) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", a.cfg.User, a.cfg.Password, a.cfg.Host, a.cfg.Port, a.cfg.Database)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("mysql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql: ping: %w", err)
	}
	a.db = db
	return nil
}

func (a *MySQLBackend) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *MySQLBackend) ExecuteQuery(ctx context.Context, query string) (Result, error) {
	return runQuery(ctx, a.db, query)
}

func (a *MySQLBackend) DatabaseType() string { return "MySQL" }

func (a *MySQLBackend) DatabaseVersion(ctx context.Context) (string, error) {
	return scalarString(ctx, a.db, "SELECT version()")
}

func (a *MySQLBackend) DryRunSQL(ctx context.Context, query string) (string, error) {
	return explainPlanText(ctx, a.db, "EXPLAIN "+query)
}
