package executor

import (
	"context"
	"database/sql"
	"fmt"
)

// runQuery executes query and scans every row into Result, adapted from the
// teacher's adapter package's shared []byte->string coercion (Oracle/MIMIC
// result sets frequently surface TEXT columns as driver byte slices).
func runQuery(ctx context.Context, db *sql.DB, query string) (Result, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, err
		}
		row := make([]any, len(columns))
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			} else {
				row[i] = v
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}

	return Result{Columns: columns, Rows: out, RowCount: len(out)}, nil
}

func scalarString(ctx context.Context, db *sql.DB, query string) (string, error) {
	var v string
	if err := db.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return "", err
	}
	return v, nil
}

func explainPlanText(ctx context.Context, db *sql.DB, query string) (string, error) {
	res, err := runQuery(ctx, db, query)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", res.Rows), nil
}
