// Package authority maps names and subject terms onto external authority
// records.
//
// Two pieces live here. BuildURI turns an (authority code, local id) pair
// from the export into a canonical URI using a closed registry of known
// authorities. BuildCache resolves free-text terms against a remote service
// once per distinct term, so row-level passes can look results up without
// touching the network.
package authority

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// LocalCode marks a value intentionally kept out of any external registry.
const LocalCode = "local"

// registry maps lower-case authority codes to URI prefixes.
var registry = map[string]string{
	"lc":   "http://id.loc.gov/authorities/names/",
	"viaf": "http://viaf.org/viaf/",
}

// ErrUnknownAuthority reports an authority code that is neither registered
// nor the local marker.
var ErrUnknownAuthority = errors.New("unknown authority")

// UnknownAuthorityError names the offending code. It unwraps to
// ErrUnknownAuthority.
type UnknownAuthorityError struct {
	Code string
}

func (e *UnknownAuthorityError) Error() string {
	return fmt.Sprintf("%s %q (known: %s, or %q)", ErrUnknownAuthority, e.Code, strings.Join(Codes(), ", "), LocalCode)
}

func (e *UnknownAuthorityError) Unwrap() error { return ErrUnknownAuthority }

// BuildURI returns the canonical URI for id under the given authority code.
//
// ok is false when no URI applies: the code is empty (no authority claimed)
// or the code is "local" (any case). Any other unregistered code is an
// error. Codes are matched case-insensitively.
//
//	BuildURI("lc", "n79021383") -> "http://id.loc.gov/authorities/names/n79021383", true, nil
//	BuildURI("local", "x")      -> "", false, nil
//	BuildURI("bogus", "x")      -> "", false, ErrUnknownAuthority
func BuildURI(code, id string) (uri string, ok bool, err error) {
	c := strings.ToLower(strings.TrimSpace(code))
	if c == "" || c == LocalCode {
		return "", false, nil
	}
	prefix, known := registry[c]
	if !known {
		return "", false, &UnknownAuthorityError{Code: code}
	}
	return prefix + id, true, nil
}

// Codes returns the registered authority codes in sorted order.
func Codes() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
