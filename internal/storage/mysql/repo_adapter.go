package mysql

import (
	"context"
	"fmt"
	"strings"

	"fmpmunge/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

// init registers the "mysql" backend with the factory.
func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
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
	storage.RegisterDDL("mysql", BuildCreateTableSQL)
}

// wrappedRepo adapts *Repository to storage.Repository and provides Close.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Close closes the underlying connection pool.
func (w *wrappedRepo) Close() { w.closeFn() }

// BuildCreateTableSQL renders CREATE TABLE IF NOT EXISTS with a VARCHAR(64)
// key (TEXT cannot be a primary key without a prefix length) and TEXT for
// every other column.
func BuildCreateTableSQL(td storage.TableDef) (string, error) {
	if strings.TrimSpace(td.Table) == "" {
		return "", fmt.Errorf("mysql ddl: table name must not be empty")
	}
	if len(td.Columns) == 0 {
		return "", fmt.Errorf("mysql ddl: at least one column is required")
	}

	defs := make([]string, 0, len(td.Columns)+1)
	for _, c := range td.Columns {
		if c == td.Key {
			defs = append(defs, myIdent(c)+" VARCHAR(64) NOT NULL")
			continue
		}
		defs = append(defs, myIdent(c)+" TEXT NULL")
	}
	if td.Key != "" {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", myIdent(td.Key)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n) DEFAULT CHARSET=utf8mb4;",
		myFQN(td.Table), strings.Join(defs, ",\n  ")), nil
}
