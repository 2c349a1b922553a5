package piped

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSplit_EmptyKeepsOnePosition verifies that an empty cell still has one
// (empty) position so alignment math never sees a zero-length value.
func TestSplit_EmptyKeepsOnePosition(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{""}, Split(""))
	assert.Equal(t, 1, Len(""))
	assert.Equal(t, []string{"a", "", "c"}, Split("a||c"))
	assert.Equal(t, 3, Len("a||c"))
}

// TestSplitJoin_RoundTrip verifies split(join(S)) == S for values without '|'.
func TestSplitJoin_RoundTrip(t *testing.T) {
	t.Parallel()

	cases := [][]string{
		{"Smith, John"},
		{"Smith, John", "Doe, Jane"},
		{"", "x", ""},
		{"Cats", "Dogs", "Birds", "Fish"},
	}
	for _, in := range cases {
		assert.Equal(t, in, Split(Join(in)))
	}
}

func TestAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		pos     int
		want    string
		wantErr error
	}{
		{name: "first", value: "a|b|c", pos: 0, want: "a"},
		{name: "last", value: "a|b|c", pos: 2, want: "c"},
		{name: "empty slot", value: "100|", pos: 1, want: ""},
		{name: "empty cell any position", value: "", pos: 7, want: ""},
		{name: "out of range", value: "a|b", pos: 2, wantErr: ErrShapeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := At(tt.value, tt.pos)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestJoinSelected covers the reduce semantics including the all-true and
// all-false corner cases.
func TestJoinSelected(t *testing.T) {
	t.Parallel()

	got, err := JoinSelected("a|b|c", []bool{true, false, true})
	require.NoError(t, err)
	assert.Equal(t, "a|c", got)

	got, err = JoinSelected("a|b|c", []bool{true, true, true})
	require.NoError(t, err)
	assert.Equal(t, "a|b|c", got)

	got, err = JoinSelected("a|b|c", []bool{false, false, false})
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

// TestJoinSelected_LengthMismatch verifies that mismatched flags fail loudly
// instead of truncating.
func TestJoinSelected_LengthMismatch(t *testing.T) {
	t.Parallel()

	_, err := JoinSelected("a|b|c", []bool{true, false})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	var se *ShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Want)
	assert.Equal(t, 3, se.Got)
}

func TestFirst(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", First(""))
	assert.Equal(t, "The Presbyterian Journal", First("The Presbyterian Journal|Other"))
	assert.Equal(t, "", First("|Other"))
}

// TestUnique verifies deduplication across cells, dropping empty positions.
func TestUnique(t *testing.T) {
	t.Parallel()

	got := Unique("Cats|Dogs", "", "Dogs||Birds", "Cats")
	assert.Equal(t, []string{"Birds", "Cats", "Dogs"}, got)
	assert.Empty(t, Unique("", "|"))
}
