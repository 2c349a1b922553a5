// Package mssql implements a Microsoft SQL Server repository using the
// go-mssqldb bulk copy API. With a key column, each batch is bulk-copied into
// a session temp table (#stage) and merged into the target with a
// delete+insert inside one transaction.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN       string
	Table     string
	Columns   []string
	KeyColumn string
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, func() { _ = db.Close() }, nil
}

// CopyFrom bulk-copies rows into the target, merging by key when configured.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	dest := r.cfg.Table
	if r.cfg.KeyColumn != "" {
		dest = stageTable
		if _, err := tx.ExecContext(ctx, stageSQL(r.cfg.Table, columns)); err != nil {
			rollback()
			return 0, fmt.Errorf("create stage: %w", err)
		}
	}

	n, err := bulkCopy(ctx, tx, dest, columns, rows)
	if err != nil {
		rollback()
		return 0, err
	}

	if r.cfg.KeyColumn != "" {
		for _, stmt := range mergeSQL(r.cfg.Table, columns, r.cfg.KeyColumn) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				rollback()
				return 0, fmt.Errorf("merge: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func bulkCopy(ctx context.Context, tx *sql.Tx, dest string, columns []string, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(dest, mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

const stageTable = "#stage"

// stageSQL creates an empty #stage with the target's column shape.
func stageSQL(table string, columns []string) string {
	return fmt.Sprintf("SELECT TOP 0 %s INTO %s FROM %s",
		strings.Join(mapIdent(columns), ", "), stageTable, msFQN(table))
}

// mergeSQL deletes target rows whose key is staged, inserts the staged rows
// and drops the stage.
func mergeSQL(table string, columns []string, key string) []string {
	cols := strings.Join(mapIdent(columns), ", ")
	return []string{
		fmt.Sprintf("DELETE T FROM %s AS T INNER JOIN %s AS S ON T.%s = S.%s",
			msFQN(table), stageTable, msIdent(key), msIdent(key)),
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
			msFQN(table), cols, cols, stageTable),
		"DROP TABLE " + stageTable,
	}
}

// msIdent quotes a SQL Server identifier using [brackets], escaping ].
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// msFQN quotes a possibly schema-qualified name like "dbo.items" to
// "[dbo].[items]".
func msFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = msIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = msIdent(c)
	}
	return out
}
