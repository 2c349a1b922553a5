// Package postgres implements a PostgreSQL storage.Repository on pgx/v5.
// Plain loads use COPY straight into the target table. With a key column,
// each batch is COPYed into a transaction-scoped temp table and merged with
// INSERT ... ON CONFLICT DO UPDATE.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	DSN       string   // connection string for pgxpool
	Table     string   // target table, optionally schema-qualified ("staging.items")
	Columns   []string // ordered columns for COPY and INSERT
	KeyColumn string   // conflict target
}

type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, pool.Close, nil
}

// CopyFrom loads rows into the configured table.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if r.cfg.KeyColumn == "" {
		n, err := r.pool.CopyFrom(ctx, splitFQN(r.cfg.Table), columns, pgx.CopyFromRows(rows))
		if err != nil {
			return n, describe("copy", err)
		}
		return n, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tmp := stageName(r.cfg.Table)
	if _, err := tx.Exec(ctx, stageSQL(tmp, r.cfg.Table)); err != nil {
		return 0, describe("create stage", err)
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{tmp}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, describe("copy into stage", err)
	}
	if _, err := tx.Exec(ctx, upsertSQL(r.cfg.Table, tmp, columns, r.cfg.KeyColumn)); err != nil {
		return 0, describe("merge", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func (r *Repository) Exec(ctx context.Context, sql string) error {
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return describe("exec", err)
	}
	return nil
}

// describe surfaces server-side detail and SQLSTATE when pgx reports them.
func describe(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%s: %s (%s): %w", op, pgErr.Detail, pgErr.SQLState(), err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func stageName(table string) string {
	return "tmp_" + strings.ReplaceAll(table, ".", "_")
}

func stageSQL(tmp, table string) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgIdent(tmp), pgFQN(table))
}

func upsertSQL(table, tmp string, columns []string, key string) string {
	cols := strings.Join(mapIdent(columns), ", ")
	var sets []string
	for _, c := range columns {
		if c != key {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", pgIdent(c), pgIdent(c)))
		}
	}
	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		pgFQN(table), cols, cols, pgIdent(tmp), pgIdent(key), action)
}

func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}

func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
