// Package compose builds derived field values from a row.
//
// A Template is an ordered list of chunks. Each chunk is a literal string, a
// column reference, or a call to a named function whose parameters are bound
// to columns. Composing a template at position i substitutes the i-th piped
// slice of every referenced column, so values from sibling multi-valued
// columns stay aligned.
//
// A Rule pairs a template with its target column and an optional Mask that
// restricts which positions take part.
package compose

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"fmpmunge/internal/piped"
	"fmpmunge/internal/table"
)

var (
	// ErrMalformedTemplate reports a template that cannot be composed.
	ErrMalformedTemplate = errors.New("malformed template")

	// ErrUnknownColumn reports a referenced column that the row does not have.
	ErrUnknownColumn = errors.New("unknown column")
)

// CellError attributes a composition failure to a column.
type CellError struct {
	Column string
	Err    error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("column %q: %v", e.Column, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

// Chunk is one element of a Template: Literal, Column or Call.
type Chunk interface {
	isChunk()
}

// Literal is appended verbatim.
type Literal string

// Column appends the aligned slice of the named column.
type Column string

// Call invokes Func with each parameter bound to the aligned slice of the
// column Args maps it to. Parameters left out of Args receive "".
type Call struct {
	Func *Func
	Args ArgMap
}

func (Literal) isChunk() {}
func (Column) isChunk()  {}
func (Call) isChunk()    {}

// ArgMap binds function parameter names to column names.
type ArgMap map[string]string

// Template is a validated chunk sequence. The zero value is not usable; build
// one with NewTemplate.
type Template struct {
	chunks []Chunk
}

// NewTemplate validates chunks and returns a Template.
func NewTemplate(chunks ...Chunk) (Template, error) {
	if len(chunks) == 0 {
		return Template{}, fmt.Errorf("%w: no chunks", ErrMalformedTemplate)
	}
	for i, c := range chunks {
		if err := checkChunk(c); err != nil {
			return Template{}, fmt.Errorf("%w: chunk %d: %s", ErrMalformedTemplate, i, err)
		}
	}
	return Template{chunks: slices.Clone(chunks)}, nil
}

// MustTemplate is NewTemplate for templates fixed at compile time. It panics
// on error.
func MustTemplate(chunks ...Chunk) Template {
	t, err := NewTemplate(chunks...)
	if err != nil {
		panic(err)
	}
	return t
}

func checkChunk(c Chunk) error {
	switch c := c.(type) {
	case Literal:
		return nil
	case Column:
		if c == "" {
			return errors.New("empty column name")
		}
		return nil
	case Call:
		if c.Func == nil || c.Func.Fn == nil {
			return errors.New("call without a function")
		}
		if len(c.Args) == 0 {
			return fmt.Errorf("call to %s without arguments", c.Func.Name)
		}
		for param, col := range c.Args {
			if !slices.Contains(c.Func.Params, param) {
				return fmt.Errorf("%s has no parameter %q", c.Func.Name, param)
			}
			if col == "" {
				return fmt.Errorf("%s parameter %q bound to empty column", c.Func.Name, param)
			}
		}
		return nil
	case nil:
		return errors.New("nil chunk")
	default:
		return fmt.Errorf("unsupported chunk %T", c)
	}
}

// IsZero reports whether t was never built.
func (t Template) IsZero() bool { return len(t.chunks) == 0 }

// Columns returns every column t reads, in first-use order.
func (t Template) Columns() []string {
	var out []string
	add := func(col string) {
		if !slices.Contains(out, col) {
			out = append(out, col)
		}
	}
	for _, c := range t.chunks {
		switch c := c.(type) {
		case Column:
			add(string(c))
		case Call:
			for _, p := range c.Func.Params {
				if col, ok := c.Args[p]; ok {
					add(col)
				}
			}
		}
	}
	return out
}

// Compose renders t for position pos of row. It does not modify row.
func (t Template) Compose(row table.Row, pos int) (string, error) {
	if t.IsZero() {
		return "", fmt.Errorf("%w: no chunks", ErrMalformedTemplate)
	}
	var b strings.Builder
	for _, c := range t.chunks {
		switch c := c.(type) {
		case Literal:
			b.WriteString(string(c))
		case Column:
			v, err := cell(row, string(c), pos)
			if err != nil {
				return "", err
			}
			b.WriteString(v)
		case Call:
			v, err := c.invoke(row, pos)
			if err != nil {
				return "", err
			}
			b.WriteString(v)
		}
	}
	return b.String(), nil
}

func (c Call) invoke(row table.Row, pos int) (string, error) {
	args := make(Args, len(c.Func.Params))
	for _, p := range c.Func.Params {
		col, ok := c.Args[p]
		if !ok {
			args[p] = ""
			continue
		}
		v, err := cell(row, col, pos)
		if err != nil {
			return "", err
		}
		args[p] = v
	}
	v, err := c.Func.Fn(args)
	if err != nil {
		return "", &CellError{Column: c.blame(), Err: fmt.Errorf("%s: %w", c.Func.Name, err)}
	}
	return v, nil
}

// blame picks the column reported when the function itself fails: the one
// bound to the first declared parameter.
func (c Call) blame() string {
	for _, p := range c.Func.Params {
		if col, ok := c.Args[p]; ok {
			return col
		}
	}
	return ""
}

func cell(row table.Row, col string, pos int) (string, error) {
	v, ok := row.Get(col)
	if !ok {
		return "", &CellError{Column: col, Err: ErrUnknownColumn}
	}
	s, err := piped.At(v, pos)
	if err != nil {
		return "", &CellError{Column: col, Err: err}
	}
	return s, nil
}
