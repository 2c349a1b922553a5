package sqlite

import (
	"context"
	"fmt"
	"strings"

	"fmpmunge/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// wrappedRepo adapts *Repository to storage.Repository, calling the cleanup
// function returned by NewRepository on Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
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
	storage.RegisterDDL("sqlite", BuildCreateTableSQL)
}

// BuildCreateTableSQL renders
//
//	CREATE TABLE IF NOT EXISTS "t" (
//	  "row_key" TEXT NOT NULL,
//	  "col" TEXT,
//	  PRIMARY KEY ("row_key")
//	);
func BuildCreateTableSQL(td storage.TableDef) (string, error) {
	if strings.TrimSpace(td.Table) == "" {
		return "", fmt.Errorf("sqlite ddl: table name must not be empty")
	}
	if len(td.Columns) == 0 {
		return "", fmt.Errorf("sqlite ddl: at least one column is required")
	}

	defs := make([]string, 0, len(td.Columns)+1)
	for _, c := range td.Columns {
		if c == td.Key {
			defs = append(defs, quoteIdent(c)+" TEXT NOT NULL")
			continue
		}
		defs = append(defs, quoteIdent(c)+" TEXT")
	}
	if td.Key != "" {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", quoteIdent(td.Key)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		quoteFQN(td.Table), strings.Join(defs, ",\n  ")), nil
}
