// Package executor implements the Executor + Repair Loop from spec §4.11,
// generalizing the teacher's internal/adapter DBAdapter interface (it
// already spans three backends with one Execute/DryRun contract) into the
// spec's Execute(sql, {accuracyMode, timeoutMs, tag}) contract, with a
// demo-grade backend per SQL dialect standing in for the out-of-scope
// Oracle driver.
package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/sso312/querylens/internal/apperr"
)

// Options is the Execute contract's call shape from spec §4.11.
type Options struct {
	AccuracyMode string // e.g. "exact", "sample"
	TimeoutMs    int
	Tag          string
}

// Result is the Execute contract's return shape from spec §4.11.
type Result struct {
	Columns    []string
	Rows       [][]any
	RowCount   int
	RowCap     *int
	TotalCount *int64
	ElapsedMs  int64
	QueryHash  string
}

// MinTimeoutMs is the floor named in spec §4.11: "Timeout floors at 180s."
const MinTimeoutMs = 180000

// NearLimitThreshold logs timeout_near_limit when elapsed exceeds 90% of
// the budget, per spec §4.11.
const NearLimitThreshold = 0.90

// Executor is the out-of-scope Oracle contract, consumed exactly as named
// in spec §1/§4.11/§6.
type Executor interface {
	Execute(ctx context.Context, sql string, opts Options) (Result, error)
	GetDatabaseType() string
}

// Backend is the underlying per-dialect driver contract, generalizing the
// teacher's DBAdapter (adapter/adapter.go) with the same method shapes so
// its three implementations (Postgres/MySQL/SQLite) carry over unmodified
// in spirit, adapted to return executor.Result instead of the teacher's
// QueryResult.
type Backend interface {
	Connect(ctx context.Context) error
	Close() error
	ExecuteQuery(ctx context.Context, sql string) (Result, error)
	DatabaseType() string
	DatabaseVersion(ctx context.Context) (string, error)
	DryRunSQL(ctx context.Context, sql string) (string, error)
}

// BackendExecutor wraps one Backend, applying the timeout floor and
// row-cap/query-hash bookkeeping from spec §4.11. RowCap truncates returned
// rows to ROW_CAP but reports TotalCount separately when known.
type BackendExecutor struct {
	backend Backend
	rowCap  int
	onNearLimit func(elapsedMs int64, timeoutMs int)
}

func NewBackendExecutor(backend Backend, rowCap int) *BackendExecutor {
	return &BackendExecutor{backend: backend, rowCap: rowCap}
}

func (e *BackendExecutor) OnNearLimit(fn func(elapsedMs int64, timeoutMs int)) { e.onNearLimit = fn }

func (e *BackendExecutor) GetDatabaseType() string { return e.backend.DatabaseType() }

func (e *BackendExecutor) Execute(ctx context.Context, sql string, opts Options) (Result, error) {
	timeoutMs := opts.TimeoutMs
	if timeoutMs < MinTimeoutMs {
		timeoutMs = MinTimeoutMs
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := e.backend.ExecuteQuery(ctx, sql)
	elapsed := time.Since(start)
	res.ElapsedMs = elapsed.Milliseconds()
	res.QueryHash = HashSQL(sql)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Result{}, apperr.ClientTimeout("query execution timed out", err).
				WithField("queryHash", res.QueryHash).WithField("elapsedMs", res.ElapsedMs).WithField("timeoutMs", timeoutMs)
		}
		return Result{}, apperr.DBError("query execution failed", err).
			WithField("queryHash", res.QueryHash).WithField("elapsedMs", res.ElapsedMs)
	}

	if e.onNearLimit != nil && float64(elapsed.Milliseconds()) > float64(timeoutMs)*NearLimitThreshold {
		e.onNearLimit(res.ElapsedMs, timeoutMs)
	}

	total := res.RowCount
	if e.rowCap > 0 && res.RowCount > e.rowCap {
		res.Rows = res.Rows[:e.rowCap]
		cap := e.rowCap
		res.RowCap = &cap
		totalInt64 := int64(total)
		res.TotalCount = &totalInt64
		res.RowCount = e.rowCap
	}
	return res, nil
}

// HashSQL returns the stable content hash used to key learned fixes and
// QueryHash.
func HashSQL(sql string) string {
	sum := sha256.Sum256([]byte(normalizeForHash(sql)))
	return hex.EncodeToString(sum[:])
}

func normalizeForHash(sql string) string {
	// Collapse runs of whitespace so semantically-identical SQL with
	// different formatting hashes the same.
	out := make([]byte, 0, len(sql))
	lastSpace := false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		isSpace := c == ' ' || c == '\t' || c == '\n' || c == '\r'
		if isSpace {
			if !lastSpace {
				out = append(out, ' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		out = append(out, c)
	}
	return string(out)
}
