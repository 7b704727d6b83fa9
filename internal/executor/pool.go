package executor

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// poolErrorMarkers are the connection-loss signatures from spec §5 that
// reset a user's pool entry and retry the query once on a rebuilt backend
// rather than just bubbling up as a query error: DPY-4011/DPI-1080-equivalent
// markers plus generic closed-connection strings, ported in spirit from the
// teacher's own retry classification in internal/adapter.
var poolErrorMarkers = regexp.MustCompile(`(?i)(connection.*(closed|reset|refused)|DPY-4011|DPI-1080|driver: bad connection|broken pipe)`)

// GlobalPoolKey is used for requests that carry no per-user identity.
const GlobalPoolKey = "__global__"

// PoolEntry pairs a Backend with the breaker guarding it.
type PoolEntry struct {
	Backend Backend
	Breaker *gobreaker.CircuitBreaker
	created time.Time
}

// Pool is the per-user Oracle-equivalent connection pool from spec §5: one
// Backend plus breaker per userKey ("user::<id>" or GlobalPoolKey), built
// lazily from a factory and torn down on Close.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*PoolEntry
	factory func(userKey string) (Backend, error)
}

func NewPool(factory func(userKey string) (Backend, error)) *Pool {
	return &Pool{entries: make(map[string]*PoolEntry), factory: factory}
}

// UserKey builds the pool key for a user id, or GlobalPoolKey when userID is
// empty.
func UserKey(userID string) string {
	if userID == "" {
		return GlobalPoolKey
	}
	return "user::" + userID
}

func (p *Pool) get(ctx context.Context, userKey string) (*PoolEntry, error) {
	p.mu.Lock()
	entry, ok := p.entries[userKey]
	p.mu.Unlock()
	if ok {
		return entry, nil
	}

	backend, err := p.factory(userKey)
	if err != nil {
		return nil, fmt.Errorf("pool: build backend for %s: %w", userKey, err)
	}
	if err := backend.Connect(ctx); err != nil {
		return nil, fmt.Errorf("pool: connect backend for %s: %w", userKey, err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "pool:" + userKey,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	entry = &PoolEntry{Backend: backend, Breaker: breaker, created: time.Now()}

	p.mu.Lock()
	if existing, ok := p.entries[userKey]; ok {
		p.mu.Unlock()
		_ = backend.Close()
		return existing, nil
	}
	p.entries[userKey] = entry
	p.mu.Unlock()
	return entry, nil
}

// Execute runs sql against the backend assigned to userKey, routed through
// that user's breaker. A connection-loss error evicts the entry and retries
// the query once on a freshly built backend instead of the dead one.
func (p *Pool) Execute(ctx context.Context, userKey, sql string, opts Options, rowCap int) (Result, error) {
	entry, err := p.get(ctx, userKey)
	if err != nil {
		return Result{}, err
	}

	exec := NewBackendExecutor(entry.Backend, rowCap)

	res, err := entry.Breaker.Execute(func() (interface{}, error) {
		return exec.Execute(ctx, sql, opts)
	})
	if err != nil {
		if poolErrorMarkers.MatchString(err.Error()) {
			p.evict(userKey)
			if fresh, gerr := p.get(ctx, userKey); gerr == nil {
				exec = NewBackendExecutor(fresh.Backend, rowCap)
				res, err = fresh.Breaker.Execute(func() (interface{}, error) {
					return exec.Execute(ctx, sql, opts)
				})
				if err == nil {
					return res.(Result), nil
				}
			}
		}
		if res == nil {
			return Result{}, err
		}
		return Result{}, err
	}
	return res.(Result), nil
}

func (p *Pool) evict(userKey string) {
	p.mu.Lock()
	entry, ok := p.entries[userKey]
	delete(p.entries, userKey)
	p.mu.Unlock()
	if ok {
		_ = entry.Backend.Close()
	}
}

// Status reports the state of every live entry, for the
// /admin/oracle/pool/status endpoint from spec §6.
type Status struct {
	UserKey string
	State   string
	Age     time.Duration
}

func (p *Pool) Statuses() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Status, 0, len(p.entries))
	for key, entry := range p.entries {
		out = append(out, Status{UserKey: key, State: entry.Breaker.State().String(), Age: time.Since(entry.created)})
	}
	return out
}

func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for key, entry := range p.entries {
		if err := entry.Backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.entries, key)
	}
	return firstErr
}
