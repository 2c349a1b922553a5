// Package table holds the in-memory tabular model the munge passes operate
// on: an ordered column schema plus rows keyed by column name.
//
// Tables are read once from CSV, extended in place by appending derived
// columns (existing columns are never removed), and written back out once.
// Cell values are plain strings; the empty string means "absent".
package table

import (
	"fmt"
	"maps"
	"slices"
)

// Row maps a column name to its cell value.
type Row map[string]string

// Get returns the cell for col and whether the column exists in the row.
func (r Row) Get(col string) (string, bool) {
	v, ok := r[col]
	return v, ok
}

// Clone returns a shallow copy of r so callers can derive a new row without
// touching other references to the original.
func (r Row) Clone() Row {
	return maps.Clone(r)
}

// Table is an ordered sequence of rows sharing one column schema.
type Table struct {
	// Columns is the output column order: the input header followed by every
	// derived column in the order it was first added.
	Columns []string

	// Rows are the data records, in input order.
	Rows []Row

	header int // number of leading Columns that came from the input header
}

// New builds a table whose input header is columns.
func New(columns []string, rows []Row) *Table {
	return &Table{
		Columns: slices.Clone(columns),
		Rows:    rows,
		header:  len(columns),
	}
}

// Header returns the columns that were present in the input file.
func (t *Table) Header() []string {
	return t.Columns[:t.header]
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// HasColumn reports whether name is part of the schema.
func (t *Table) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// AddColumn appends name to the schema if it is not already present. Adding
// an existing column keeps its original position, so re-running a pass over
// an already processed table leaves the column order unchanged.
func (t *Table) AddColumn(name string) {
	if t.HasColumn(name) {
		return
	}
	t.Columns = append(t.Columns, name)
}

// Set assigns value to col in row i, adding col to the schema if needed.
func (t *Table) Set(i int, col, value string) {
	t.AddColumn(col)
	t.Rows[i][col] = value
}

// Column returns every row's value for col, in row order.
func (t *Table) Column(col string) []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[col]
	}
	return out
}

// Missing returns the subset of cols absent from the schema.
func (t *Table) Missing(cols ...string) []string {
	var out []string
	for _, c := range cols {
		if !t.HasColumn(c) {
			out = append(out, c)
		}
	}
	return out
}

// Record returns row i as a slice aligned to Columns. Columns absent from the
// row are emitted as "".
func (t *Table) Record(i int) []string {
	rec := make([]string, len(t.Columns))
	for j, c := range t.Columns {
		rec[j] = t.Rows[i][c]
	}
	return rec
}

// LineOf returns the 1-based file line of data row i (the header is line 1).
func LineOf(i int) int { return i + 2 }

// RowRef is a short human-readable reference to data row i for diagnostics.
func RowRef(i int) string { return fmt.Sprintf("row %d (line %d)", i+1, LineOf(i)) }
