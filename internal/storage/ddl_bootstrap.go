package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// TableDef describes the export table. Every column holds text; Key names the
// primary-key column and must be one of Columns.
type TableDef struct {
	Table   string
	Columns []string
	Key     string
}

// Validate reports structural problems with the definition.
func (td TableDef) Validate() error {
	var errs []error
	if strings.TrimSpace(td.Table) == "" {
		errs = append(errs, errors.New("table name must not be empty"))
	}
	if len(td.Columns) == 0 {
		errs = append(errs, errors.New("at least one column is required"))
	}
	seen := make(map[string]struct{}, len(td.Columns))
	for _, c := range td.Columns {
		if strings.TrimSpace(c) == "" {
			errs = append(errs, errors.New("column with empty name"))
			continue
		}
		if _, dup := seen[c]; dup {
			errs = append(errs, fmt.Errorf("duplicate column %q", c))
		}
		seen[c] = struct{}{}
	}
	if td.Key != "" && !slices.Contains(td.Columns, td.Key) {
		errs = append(errs, fmt.Errorf("key column %q is not a table column", td.Key))
	}
	return errors.Join(errs...)
}

// DDLBuilder renders the CREATE TABLE statement for one backend.
type DDLBuilder func(td TableDef) (string, error)

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBuilder{}
)

// RegisterDDL registers (or replaces) the DDLBuilder for kind. It is
// typically called from backend packages' init functions.
func RegisterDDL(kind string, fn DDLBuilder) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// BuildDDL renders the CREATE TABLE statement for kind.
func BuildDDL(kind string, td TableDef) (string, error) {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no DDL builder registered for storage kind %q", kind)
	}
	if err := td.Validate(); err != nil {
		return "", fmt.Errorf("table %q: %w", td.Table, err)
	}
	return fn(td)
}

// EnsureTable creates the export table through repo if it does not exist.
func EnsureTable(ctx context.Context, kind string, repo Repository, td TableDef) error {
	stmt, err := BuildDDL(kind, td)
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", td.Table, err)
	}
	return nil
}
