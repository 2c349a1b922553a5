package compose

import (
	"sort"
	"strings"

	"fmpmunge/internal/authority"
)

// Args holds the values bound to a function's parameters for one position.
type Args map[string]string

// Func is a named pure function usable in a Call chunk. Fn may return "" to
// contribute nothing.
type Func struct {
	Name   string
	Params []string
	Fn     func(Args) (string, error)
}

var (
	// BuildURI renders an authority URI from an authority code and local id.
	// Local or missing authorities contribute nothing; unregistered codes
	// fail with authority.ErrUnknownAuthority.
	BuildURI = &Func{
		Name:   "build_uri",
		Params: []string{"authority", "id"},
		Fn: func(a Args) (string, error) {
			uri, _, err := authority.BuildURI(a["authority"], a["id"])
			return uri, err
		},
	}

	// AuthorityName renders "name, date, role uri", skipping empty parts.
	AuthorityName = &Func{
		Name:   "authority_name",
		Params: []string{"name", "date", "role", "uri"},
		Fn: func(a Args) (string, error) {
			roleURI := joinNonEmpty(" ", a["role"], a["uri"])
			return joinNonEmpty(", ", a["name"], a["date"], roleURI), nil
		},
	}

	// DateRange renders "start - end", or whichever of the two is present.
	DateRange = &Func{
		Name:   "date_range",
		Params: []string{"start_date", "end_date"},
		Fn: func(a Args) (string, error) {
			return joinNonEmpty(" - ", a["start_date"], a["end_date"]), nil
		},
	}
)

var registry = map[string]*Func{
	BuildURI.Name:      BuildURI,
	AuthorityName.Name: AuthorityName,
	DateRange.Name:     DateRange,
}

// Lookup returns the registered function called name.
func Lookup(name string) (*Func, bool) {
	f, ok := registry[name]
	return f, ok
}

// FuncNames returns the registered function names, sorted.
func FuncNames() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
