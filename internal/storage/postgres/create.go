package postgres

import (
	"fmt"
	"strings"

	"fmpmunge/internal/storage"
)

// BuildCreateTableSQL builds a deterministic CREATE TABLE IF NOT EXISTS
// statement. Every column is text; the key column is NOT NULL and rendered as
// a separate PRIMARY KEY constraint.
func BuildCreateTableSQL(td storage.TableDef) (string, error) {
	fqn := strings.TrimSpace(td.Table)
	if fqn == "" {
		return "", fmt.Errorf("postgres ddl: table name must not be empty")
	}
	if len(td.Columns) == 0 {
		return "", fmt.Errorf("postgres ddl: at least one column is required")
	}

	defs := make([]string, 0, len(td.Columns)+1)
	for _, c := range td.Columns {
		def := pgIdent(c) + " text"
		if c == td.Key {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if td.Key != "" {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", pgIdent(td.Key)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		pgFQN(fqn), strings.Join(defs, ",\n  ")), nil
}
