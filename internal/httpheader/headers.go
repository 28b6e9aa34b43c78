// Package httpheader implements the case-insensitive header map shared by
// requests and responses.
package httpheader

import "strings"

// Map is a case-insensitive HTTP header map. All lookups and insertions
// normalize the name to lowercase internally; Iterate yields names in
// that lowercased form.
type Map struct {
	m map[string]string
}

// New returns an empty header map.
func New() *Map {
	return &Map{m: make(map[string]string)}
}

// Set stores value under name, overwriting any prior value for the same
// name (compared case-insensitively). This is last-value-wins folding,
// the same rule the incremental parser applies to repeated header lines.
func (h *Map) Set(name, value string) {
	h.m[strings.ToLower(name)] = value
}

// Get returns the value stored for name and whether it was present.
func (h *Map) Get(name string) (string, bool) {
	v, ok := h.m[strings.ToLower(name)]
	return v, ok
}

// Len reports the number of distinct header names stored.
func (h *Map) Len() int { return len(h.m) }

// Iterate calls fn once per header, in unspecified order.
func (h *Map) Iterate(fn func(name, value string)) {
	for k, v := range h.m {
		fn(k, v)
	}
}

// Equal reports whether h and other carry the same name/value pairs,
// independent of insertion order.
func (h *Map) Equal(other *Map) bool {
	if h.Len() != other.Len() {
		return false
	}
	for k, v := range h.m {
		ov, ok := other.m[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// FromParsed builds a Map from the already-lowercased name/value pairs
// produced by internal/httpparse.
func FromParsed(raw map[string]string) *Map {
	h := New()
	for k, v := range raw {
		h.m[k] = v
	}
	return h
}
