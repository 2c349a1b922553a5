package mssql

import (
	"context"
	"fmt"
	"strings"

	"fmpmunge/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:       cfg.DSN,
			Table:     cfg.Table,
			Columns:   cfg.Columns,
			KeyColumn: cfg.KeyColumn,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("mssql", BuildCreateTableSQL)
}

// wrappedRepo adapts *Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() { w.closeFn() }

// BuildCreateTableSQL renders an IF OBJECT_ID guarded CREATE TABLE. The key
// column is NVARCHAR(64) so it can carry the primary key; the rest are
// NVARCHAR(MAX) NULL.
func BuildCreateTableSQL(td storage.TableDef) (string, error) {
	if strings.TrimSpace(td.Table) == "" {
		return "", fmt.Errorf("mssql ddl: table name must not be empty")
	}
	if len(td.Columns) == 0 {
		return "", fmt.Errorf("mssql ddl: at least one column is required")
	}

	defs := make([]string, 0, len(td.Columns)+1)
	for _, c := range td.Columns {
		if c == td.Key {
			defs = append(defs, msIdent(c)+" NVARCHAR(64) NOT NULL")
			continue
		}
		defs = append(defs, msIdent(c)+" NVARCHAR(MAX) NULL")
	}
	if td.Key != "" {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", msIdent(td.Key)))
	}
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s (\n  %s\n);",
		strings.ReplaceAll(td.Table, "'", "''"), msFQN(td.Table), strings.Join(defs, ",\n  ")), nil
}
