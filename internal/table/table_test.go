package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddColumnKeepsPosition(t *testing.T) {
	tbl := New([]string{"A", "B"}, []Row{{"A": "1", "B": "2"}})
	tbl.AddColumn("C")
	tbl.AddColumn("A")
	tbl.AddColumn("C")

	assert.Equal(t, []string{"A", "B", "C"}, tbl.Columns)
	assert.Equal(t, []string{"A", "B"}, tbl.Header())
}

func TestSetAndRecord(t *testing.T) {
	tbl := New([]string{"A"}, []Row{{"A": "1"}, {"A": "2"}})
	tbl.Set(1, "B", "x")

	assert.Equal(t, []string{"1", ""}, tbl.Record(0))
	assert.Equal(t, []string{"2", "x"}, tbl.Record(1))
	assert.Equal(t, []string{"", "x"}, tbl.Column("B"))
}

func TestMissing(t *testing.T) {
	tbl := New([]string{"A", "B"}, nil)
	assert.Nil(t, tbl.Missing("A", "B"))
	assert.Equal(t, []string{"C"}, tbl.Missing("A", "C"))
}

func TestNewCopiesColumns(t *testing.T) {
	cols := []string{"A"}
	tbl := New(cols, nil)
	cols[0] = "Z"
	assert.Equal(t, []string{"A"}, tbl.Columns)
}

func TestRowClone(t *testing.T) {
	r := Row{"A": "1"}
	c := r.Clone()
	c["A"] = "2"
	v, ok := r.Get("A")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestRowRef(t *testing.T) {
	assert.Equal(t, 2, LineOf(0))
	assert.Equal(t, "row 3 (line 4)", RowRef(2))
}
