// Package mysql implements a MySQL-backed storage.Repository. MySQL has no
// COPY equivalent reachable from database/sql, so each batch becomes one
// multi-row INSERT; with a key column it upserts through
// ON DUPLICATE KEY UPDATE.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// maxPlaceholders stays under the server's 65535 prepared-parameter limit.
const maxPlaceholders = 60000

// Config holds MySQL repository configuration.
type Config struct {
	DSN       string // e.g. "user:pass@tcp(localhost:3306)/catalog"
	Table     string
	Columns   []string
	KeyColumn string
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository validates the DSN, opens a pool and pings it.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := mysql.ParseDSN(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, func() { _ = db.Close() }, nil
}

// CopyFrom writes rows in one transaction, splitting them into multi-row
// INSERTs that fit the placeholder limit.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: columns must not be empty")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	per := max(1, maxPlaceholders/len(columns))
	var written int64
	for start := 0; start < len(rows); start += per {
		chunk := rows[start:min(start+per, len(rows))]
		args := make([]any, 0, len(chunk)*len(columns))
		for i, row := range chunk {
			if len(row) != len(columns) {
				rollback()
				return 0, fmt.Errorf("mysql: row %d has %d values, want %d", start+i, len(row), len(columns))
			}
			args = append(args, row...)
		}
		if _, err := tx.ExecContext(ctx, insertSQL(r.cfg.Table, columns, len(chunk), r.cfg.KeyColumn), args...); err != nil {
			rollback()
			return 0, fmt.Errorf("insert rows %d-%d: %w", start, start+len(chunk)-1, err)
		}
		written += int64(len(chunk))
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

// Exec executes a single statement.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	_, err := r.db.ExecContext(ctx, sqlText)
	return err
}

// insertSQL renders a multi-row INSERT for n rows. Affected-row counts of
// ON DUPLICATE KEY UPDATE count replaced rows twice, so callers count rows
// themselves.
func insertSQL(table string, columns []string, n int, key string) string {
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	values := strings.TrimSuffix(strings.Repeat(tuple+", ", n), ", ")

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES %s", myFQN(table), strings.Join(mapIdent(columns), ", "), values)
	if key == "" {
		return b.String()
	}

	var sets []string
	for _, c := range columns {
		if c != key {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", myIdent(c), myIdent(c)))
		}
	}
	if len(sets) == 0 {
		sets = []string{fmt.Sprintf("%s = %s", myIdent(key), myIdent(key))}
	}
	b.WriteString(" ON DUPLICATE KEY UPDATE ")
	b.WriteString(strings.Join(sets, ", "))
	return b.String()
}

// myIdent quotes a MySQL identifier with backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func myFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = myIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = myIdent(c)
	}
	return out
}
