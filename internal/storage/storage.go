// Package storage exports a processed table into a SQL staging table.
//
// Backends register a Factory and a DDLBuilder for their kind at init time;
// import fmpmunge/internal/storage/all to enable every built-in backend.
// Callers stay backend-agnostic: they open a Repository with New, create the
// destination with EnsureTable and load it with Export.
package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUnknownKind is returned when no backend is registered for a kind.
var ErrUnknownKind = errors.New("unknown storage kind")

// Config selects and configures a backend.
type Config struct {
	Kind  string
	DSN   string
	Table string

	// Columns is the ordered list of destination columns.
	Columns []string

	// KeyColumn, when set, makes CopyFrom replace existing rows with the same
	// key instead of inserting duplicates.
	KeyColumn string
}

// Repository is the write side of a backend.
type Repository interface {
	// CopyFrom writes rows aligned to columns and reports how many were
	// written.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)

	// Exec runs a single statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	Close()
}

// Factory opens a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the Factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository through the Factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownKind, cfg.Kind, Kinds())
	}
	repo, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s repository: %w", cfg.Kind, err)
	}
	return repo, nil
}

// Kinds lists the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
