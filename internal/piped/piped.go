// Package piped provides helpers for pipe-delimited multi-valued cells.
//
// A FileMaker export encodes repeated groups (names, roles, authority IDs)
// as a single cell joined with '|'. Sibling columns belonging to the same
// group are positionally aligned: the Nth name goes with the Nth role. The
// functions here split, select and re-join those cells while keeping that
// alignment intact.
//
// An empty cell always splits into a single empty position, never zero
// positions, so every cell has at least one position.
package piped

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sep is the multi-value separator used in exported cells.
const Sep = "|"

// ErrShapeMismatch reports piped values that were expected to be aligned but
// have a different number of positions.
var ErrShapeMismatch = errors.New("shape mismatch")

// ShapeError carries the details of a shape mismatch. It unwraps to
// ErrShapeMismatch.
type ShapeError struct {
	Want int // positions expected by the caller
	Got  int // positions present in the value
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: want %d positions, got %d", ErrShapeMismatch, e.Want, e.Got)
}

func (e *ShapeError) Unwrap() error { return ErrShapeMismatch }

// Split splits value on Sep. An empty value yields []string{""}.
func Split(value string) []string {
	return strings.Split(value, Sep)
}

// Join joins values with Sep.
func Join(values []string) string {
	return strings.Join(values, Sep)
}

// Len returns the number of positions in value (at least 1).
func Len(value string) int {
	return strings.Count(value, Sep) + 1
}

// IsEmpty reports whether value carries no values for any position.
func IsEmpty(value string) bool { return value == "" }

// At returns the pos-th aligned slice of value. An empty cell yields "" for
// every position; a populated cell with fewer than pos+1 positions is a
// shape mismatch.
func At(value string, pos int) (string, error) {
	if pos < 0 {
		return "", fmt.Errorf("piped: negative position %d", pos)
	}
	if IsEmpty(value) {
		return "", nil
	}
	parts := Split(value)
	if pos >= len(parts) {
		return "", &ShapeError{Want: pos + 1, Got: len(parts)}
	}
	return parts[pos], nil
}

// JoinSelected returns the Sep-joined subsequence of value's positions whose
// flag is true. flags must have exactly one entry per position.
//
//	JoinSelected("a|b|c", []bool{true, false, true}) == "a|c"
func JoinSelected(value string, flags []bool) (string, error) {
	parts := Split(value)
	if len(parts) != len(flags) {
		return "", &ShapeError{Want: len(flags), Got: len(parts)}
	}
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if flags[i] {
			out = append(out, p)
		}
	}
	return Join(out), nil
}

// First returns the first position of value ("" for an empty cell).
func First(value string) string {
	if i := strings.Index(value, Sep); i >= 0 {
		return value[:i]
	}
	return value
}

// Unique returns the distinct non-empty positions found across all cells,
// sorted so callers iterate in a stable order.
func Unique(cells ...string) []string {
	seen := make(map[string]struct{})
	for _, c := range cells {
		if c == "" {
			continue
		}
		for _, p := range Split(c) {
			if p == "" {
				continue
			}
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
