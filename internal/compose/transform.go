package compose

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"fmpmunge/internal/piped"
	"fmpmunge/internal/table"
)

// ErrMaskArgument reports a mask with a column but no value, or a value but
// no column.
var ErrMaskArgument = errors.New("mask needs both column and value")

// Mask selects the positions whose value in Column equals Value, ignoring
// case. The zero Mask selects every position.
type Mask struct {
	Column string
	Value  string
}

// Validate checks that Column and Value are both set or both empty.
func (m Mask) Validate() error {
	if (m.Column == "") != (m.Value == "") {
		return fmt.Errorf("%w (column %q, value %q)", ErrMaskArgument, m.Column, m.Value)
	}
	return nil
}

// Enabled reports whether m filters anything.
func (m Mask) Enabled() bool { return m.Column != "" && m.Value != "" }

// Flags returns one inclusion flag per position of the mask column.
func (m Mask) Flags(row table.Row) ([]bool, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	v, ok := row.Get(m.Column)
	if !ok {
		return nil, &CellError{Column: m.Column, Err: ErrUnknownColumn}
	}
	parts := piped.Split(v)
	flags := make([]bool, len(parts))
	for i, p := range parts {
		flags[i] = strings.EqualFold(p, m.Value)
	}
	return flags, nil
}

// Rule derives Target from Template.
//
// The number of positions composed is taken from the mask column when Mask
// is enabled, otherwise from AlignOn when set, otherwise it is 1.
type Rule struct {
	Target   string
	Template Template
	Mask     Mask
	AlignOn  string
}

// Validate reports configuration errors before any row is touched.
func (r Rule) Validate() error {
	if r.Target == "" {
		return fmt.Errorf("%w: empty target column", ErrMalformedTemplate)
	}
	if r.Template.IsZero() {
		return fmt.Errorf("%w: rule %q has no chunks", ErrMalformedTemplate, r.Target)
	}
	if err := r.Mask.Validate(); err != nil {
		return fmt.Errorf("rule %q: %w", r.Target, err)
	}
	return nil
}

// Columns returns the input columns r reads.
func (r Rule) Columns() []string {
	cols := r.Template.Columns()
	for _, c := range []string{r.Mask.Column, r.AlignOn} {
		if c != "" && !slices.Contains(cols, c) {
			cols = append(cols, c)
		}
	}
	return cols
}

// Value computes the piped value of Target for row without modifying it.
// Positions excluded by the mask are skipped, not left empty. When a mask or
// AlignOn is set, every populated column the rule reads must have exactly
// that many positions.
func (r Rule) Value(row table.Row) (string, error) {
	if err := r.Mask.Validate(); err != nil {
		return "", err
	}

	var flags []bool
	switch {
	case r.Mask.Enabled():
		f, err := r.Mask.Flags(row)
		if err != nil {
			return "", err
		}
		flags = f
	case r.AlignOn != "":
		v, ok := row.Get(r.AlignOn)
		if !ok {
			return "", &CellError{Column: r.AlignOn, Err: ErrUnknownColumn}
		}
		flags = allTrue(piped.Len(v))
	default:
		flags = allTrue(1)
	}
	if r.Mask.Enabled() || r.AlignOn != "" {
		if err := r.checkAligned(row, len(flags)); err != nil {
			return "", err
		}
	}

	out := make([]string, 0, len(flags))
	for i, keep := range flags {
		if !keep {
			continue
		}
		s, err := r.Template.Compose(row, i)
		if err != nil {
			return "", fmt.Errorf("position %d: %w", i, err)
		}
		out = append(out, s)
	}
	return piped.Join(out), nil
}

// checkAligned returns a ShapeError for the first populated column in
// r.Columns() whose position count differs from n.
func (r Rule) checkAligned(row table.Row, n int) error {
	for _, c := range r.Columns() {
		v := row[c]
		if piped.IsEmpty(v) {
			continue
		}
		if got := piped.Len(v); got != n {
			return &CellError{Column: c, Err: &piped.ShapeError{Want: n, Got: got}}
		}
	}
	return nil
}

// Apply returns a copy of row with Target set.
func (r Rule) Apply(row table.Row) (table.Row, error) {
	v, err := r.Value(row)
	if err != nil {
		return nil, err
	}
	out := row.Clone()
	out[r.Target] = v
	return out, nil
}

// Transform composes tpl over row's positions, filtered by mask, and returns
// a copy of row with target set to the joined result. Without a mask a single
// position is composed.
func Transform(row table.Row, target string, tpl Template, mask Mask) (table.Row, error) {
	return Rule{Target: target, Template: tpl, Mask: mask}.Apply(row)
}

func allTrue(n int) []bool {
	f := make([]bool, n)
	for i := range f {
		f[i] = true
	}
	return f
}
