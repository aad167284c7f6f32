// Package gateway owns the single shared database handle: exactly-once,
// race-free initialization with chunked→direct fallback, and the uniform
// query-execution surface every higher-level read operation goes through.
//
// Initialization is single-flight: concurrent callers arriving while an
// attempt is in flight all await the same outcome and observe the same
// backend (or the same error). A failed attempt is never sticky — the next
// call retries from scratch.
package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/singleflight"
)

// State is the externally observable initialization state.
type State int32

const (
	StateNotInitialized State = iota
	StateInitializing
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateNotInitialized:
		return "not_initialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// BackendKind tags which loader produced the handle. Resolved once at
// construction — callers never probe the handle's shape at query time.
type BackendKind int

const (
	BackendChunked BackendKind = iota + 1
	BackendDirect
)

func (k BackendKind) String() string {
	switch k {
	case BackendChunked:
		return "chunked"
	case BackendDirect:
		return "direct"
	default:
		return "unknown"
	}
}

// Backend is the ready engine: a tagged *sql.DB plus an optional cleanup
// hook released on Close (temp files, VFS readers).
type Backend struct {
	Kind    BackendKind
	DB      *sql.DB
	cleanup func() error
}

// NewBackend wraps an open database handle. cleanup may be nil.
func NewBackend(kind BackendKind, db *sql.DB, cleanup func() error) *Backend {
	return &Backend{Kind: kind, DB: db, cleanup: cleanup}
}

// Close releases the handle and any loader-owned resources behind it.
func (b *Backend) Close() error {
	err := b.DB.Close()
	if b.cleanup != nil {
		if cerr := b.cleanup(); err == nil {
			err = cerr
		}
	}
	return err
}

// Opener constructs a backend. The gateway tries the chunked opener first
// and falls back to the direct opener on any chunked failure.
type Opener func(ctx context.Context) (*Backend, error)

// ErrNoBackend is returned when the gateway has no opener configured that
// could produce a handle.
var ErrNoBackend = errors.New("gateway: no backend opener configured")

// RequiredTables are probed by the post-open smoke check. A missing table is
// logged but does not fail the handle on its own.
var RequiredTables = []string{"architecture", "architect", "tag", "architecture_tag"}

// QueryError wraps an engine rejection (malformed SQL, missing schema
// objects). It is surfaced to the immediate caller, never swallowed here.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q failed: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Gateway memoizes one backend per instance. Tests construct independent
// gateways with fake openers instead of sharing process-wide state.
type Gateway struct {
	// OpenChunked is the primary path: range-request-backed engine.
	// Nil skips straight to the direct path.
	OpenChunked Opener
	// OpenDirect is the fallback: full download into a local engine.
	OpenDirect Opener

	mu      sync.Mutex
	state   State
	backend *Backend
	lastErr error

	flight singleflight.Group
}

// New builds a gateway over the given openers.
func New(chunked, direct Opener) *Gateway {
	return &Gateway{OpenChunked: chunked, OpenDirect: direct}
}

// Status reports the current initialization state. Pure read, no side effects.
func (g *Gateway) Status() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// LastError returns the error from the most recent failed attempt, or nil.
func (g *Gateway) LastError() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}

// Initialize returns the ready backend, constructing it at most once.
// Idempotent once Ready; concurrent callers share one in-flight attempt.
// After a failed attempt the gateway is immediately retryable.
func (g *Gateway) Initialize(ctx context.Context) (*Backend, error) {
	g.mu.Lock()
	if g.state == StateReady {
		b := g.backend
		g.mu.Unlock()
		return b, nil
	}
	g.mu.Unlock()

	v, err, _ := g.flight.Do("initialize", func() (any, error) {
		// A previous flight may have completed between the fast-path check
		// and joining this one.
		g.mu.Lock()
		if g.state == StateReady {
			b := g.backend
			g.mu.Unlock()
			return b, nil
		}
		g.state = StateInitializing
		g.mu.Unlock()

		backend, err := g.open(ctx)

		g.mu.Lock()
		defer g.mu.Unlock()
		if err != nil {
			g.state = StateError
			g.lastErr = err
			return nil, err
		}
		g.state = StateReady
		g.backend = backend
		g.lastErr = nil
		return backend, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Backend), nil
}

// open runs the fallback protocol: chunked first, direct on any chunked
// failure. A chunked handle that fails its smoke query is closed and
// abandoned — strictly slower full download beats a broken range path.
func (g *Gateway) open(ctx context.Context) (*Backend, error) {
	if g.OpenChunked != nil {
		backend, err := g.OpenChunked(ctx)
		switch {
		case err != nil:
			log.Printf("gateway: chunked backend unavailable, falling back: %v", err)
		default:
			serr := g.smoke(ctx, backend)
			if serr == nil {
				return backend, nil
			}
			log.Printf("gateway: chunked backend failed smoke check, falling back: %v", serr)
			_ = backend.Close() // best-effort
		}
	}

	if g.OpenDirect == nil {
		return nil, ErrNoBackend
	}
	backend, err := g.OpenDirect(ctx)
	if err != nil {
		return nil, fmt.Errorf("direct fallback: %w", err)
	}
	if serr := g.smoke(ctx, backend); serr != nil {
		_ = backend.Close() // best-effort
		return nil, fmt.Errorf("direct fallback: %w", serr)
	}
	return backend, nil
}

// smoke verifies the engine answers at all, then probes each required table.
// The version query is fatal; individual table probes are logged only — a
// deployment may legitimately ship a subset of the schema.
func (g *Gateway) smoke(ctx context.Context, b *Backend) error {
	var version string
	if err := b.DB.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return fmt.Errorf("smoke query (%s backend): %w", b.Kind, err)
	}
	for _, table := range RequiredTables {
		var n int
		// Identifier comes from the fixed RequiredTables list, never caller input.
		q := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		if err := b.DB.QueryRowContext(ctx, q).Scan(&n); err != nil {
			log.Printf("gateway: probe of table %s failed (%s backend): %v", table, b.Kind, err)
		}
	}
	return nil
}

// Execute runs one statement against whichever backend is active, suspending
// the caller until initialization completes if necessary. Engine rejections
// surface as *QueryError.
func (g *Gateway) Execute(ctx context.Context, query string, args ...any) (*Result, error) {
	backend, err := g.Initialize(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := backend.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	result, err := collect(rows)
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}
	return result, nil
}

// Rows executes the statement and maps every row by column name.
func (g *Gateway) Rows(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	result, err := g.Execute(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return result.Records(), nil
}

// Row executes the statement and returns the first mapped row, or nil when
// the result set is empty. An empty result is not an error.
func (g *Gateway) Row(ctx context.Context, query string, args ...any) (map[string]any, error) {
	records, err := g.Rows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Reset closes any active backend and returns the gateway to its initial
// state. Intended for tests and controlled teardown.
func (g *Gateway) Reset() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var err error
	if g.backend != nil {
		err = g.backend.Close()
	}
	g.backend = nil
	g.state = StateNotInitialized
	g.lastErr = nil
	return err
}
