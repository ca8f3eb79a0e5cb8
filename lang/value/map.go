package value

import (
	"iter"
	"slices"
	"strings"
)

// Map is a string-keyed map that remembers insertion order. Keys are unique;
// setting an existing key keeps its original position.
//
// The zero value is an empty map ready to use. A nil *Map behaves as an empty,
// read-only map.
type Map struct {
	keys []string
	vals map[string]any
}

// NewMap returns an empty map with room for size entries.
func NewMap(size int) *Map {
	return &Map{
		keys: make([]string, 0, size),
		vals: make(map[string]any, size),
	}
}

// MapOf builds a map from alternating key/value arguments. Keys that are not
// strings are converted with [ToString]. A trailing key without a value is
// bound to [Undef].
func MapOf(kv ...any) *Map {
	m := NewMap(len(kv) / 2) //nolint:mnd

	for i := 0; i < len(kv); i += 2 {
		m.Set(ToString(kv[i]), Arg(kv, i+1))
	}

	return m
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}

	return len(m.keys)
}

// Get returns the value bound to key.
func (m *Map) Get(key string) (any, bool) {
	if m == nil || m.vals == nil {
		return nil, false
	}

	v, ok := m.vals[key]

	return v, ok
}

// Lookup returns the value bound to key, or [Undef] if there is none.
func (m *Map) Lookup(key string) any {
	if v, ok := m.Get(key); ok {
		return v
	}

	return Undef
}

// Has reports whether key is bound.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)

	return ok
}

// Set binds key to v.
func (m *Map) Set(key string, v any) {
	if m.vals == nil {
		m.vals = make(map[string]any)
	}

	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}

	m.vals[key] = v
}

// Delete removes key if present.
func (m *Map) Delete(key string) {
	if m == nil || m.vals == nil {
		return
	}

	if _, ok := m.vals[key]; !ok {
		return
	}

	delete(m.vals, key)

	if i := slices.Index(m.keys, key); i >= 0 {
		m.keys = slices.Delete(m.keys, i, i+1)
	}
}

// Keys returns a copy of the keys in order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}

	return slices.Clone(m.keys)
}

// Values returns the values in key order.
func (m *Map) Values() []any {
	if m == nil {
		return nil
	}

	out := make([]any, len(m.keys))
	for i, k := range m.keys {
		out[i] = m.vals[k]
	}

	return out
}

// All returns an iterator over entries in key order.
func (m *Map) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if m == nil {
			return
		}

		for _, k := range m.keys {
			if !yield(k, m.vals[k]) {
				return
			}
		}
	}
}

// Clone returns a shallow copy: a new map sharing value references.
func (m *Map) Clone() *Map {
	if m == nil {
		return NewMap(0)
	}

	c := NewMap(len(m.keys))
	for _, k := range m.keys {
		c.Set(k, m.vals[k])
	}

	return c
}

// Merge binds every entry of src into m, in src order, and returns m.
func (m *Map) Merge(src *Map) *Map {
	for k, v := range src.All() {
		m.Set(k, v)
	}

	return m
}

// String renders the map as its values joined by commas.
func (m *Map) String() string {
	var b strings.Builder

	for i, v := range m.Values() {
		if i > 0 {
			b.WriteByte(',')
		}

		b.WriteString(ToString(v))
	}

	return b.String()
}
