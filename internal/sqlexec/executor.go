// Package sqlexec opens the SQL engines that back an execution environment.
// Engines register themselves by name; the runtime opens one through Open and
// talks to it only through the Executor interface.
//
// Key features include:
//   - sqlite (embedded, default), postgres (pgx pool) and sqlserver engines
//   - pool sizing driven by the environment's parallelism
//   - JSON result formatting with proper handling of UUIDs and byte arrays
package sqlexec

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"sqlaunch/cli/internal/errors"
)

// Result represents a normalized SQL result for JSON marshaling.
type Result struct {
	Columns      []string `json:"columns"`
	Rows         [][]any  `json:"rows"`
	RowsAffected int64    `json:"rows_affected,omitempty"`
}

// MarshalJSON renders driver-specific values (UUID bytes, raw byte slices)
// as strings so results can be shown in the console and checkpoints.
func (r Result) MarshalJSON() ([]byte, error) {
	type Alias Result
	a := Alias(r)
	if a.Columns == nil {
		a.Columns = []string{}
	}
	rows := make([][]any, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = make([]any, len(row))
		for j, val := range row {
			rows[i][j] = jsonValue(val)
		}
	}
	a.Rows = rows
	return json.Marshal(a)
}

func jsonValue(val any) any {
	switch v := val.(type) {
	case []byte:
		if len(v) == 16 {
			return formatUUID(v)
		}
		return fmt.Sprintf("\\x%x", v)
	case [16]byte:
		return formatUUID(v[:])
	}
	return val
}

// formatUUID renders 16 bytes as xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx.
func formatUUID(v []byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", v[0:4], v[4:6], v[6:8], v[8:10], v[10:16])
}

// Executor runs statements against one engine.
type Executor interface {
	// Name returns the registry name of the engine.
	Name() string
	// Exec runs a statement that produces no result set.
	Exec(ctx context.Context, sql string) (Result, error)
	// Query runs a statement that produces a result set and collects it.
	Query(ctx context.Context, sql string) (Result, error)
	// Prepare parses and validates a statement without running it.
	Prepare(ctx context.Context, sql string) error
	Ping(ctx context.Context) error
	Close() error
}

// Options tune how an engine is opened.
type Options struct {
	// MaxConns bounds the connection pool; 0 keeps the driver default.
	MaxConns int
}

// Opener opens an engine for a DSN. An empty DSN selects the engine's default
// location when it has one.
type Opener func(ctx context.Context, dsn string, opts Options) (Executor, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Opener{}
)

// Register makes an engine available under name. Registering a name twice panics.
func Register(name string, open Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("sqlexec: engine registered twice: " + name)
	}
	registry[name] = open
}

// Engines lists registered engine names in sorted order.
func Engines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens and pings the named engine.
func Open(ctx context.Context, name, dsn string, opts Options) (Executor, error) {
	registryMu.RLock()
	open, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.New(errors.EngineOpenFailed, fmt.Sprintf("unknown engine %q (available: %v)", name, Engines()))
	}
	ex, err := open(ctx, dsn, opts)
	if err != nil {
		return nil, errors.Wrap(errors.EngineOpenFailed, "open "+name, err)
	}
	if err := ex.Ping(ctx); err != nil {
		_ = ex.Close()
		return nil, errors.Wrap(errors.EngineOpenFailed, "ping "+name, err)
	}
	return ex, nil
}
