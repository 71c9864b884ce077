package schema

import (
	"bytes"
	"encoding/json"
	"math"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Object is an insertion-ordered JSON object. Every object inside a Mapping,
// at any depth, is an *Object so key order survives text round trips.
type Object = orderedmap.OrderedMap[string, any]

// NewObject returns an empty ordered object.
func NewObject() *Object { return orderedmap.New[string, any]() }

// Mapping is the normalized schema mapping: schema name -> definition, in
// the order the names were first written.
type Mapping struct {
	defs *Object
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping { return &Mapping{defs: NewObject()} }

// Len reports the number of schemas. A nil mapping is empty.
func (m *Mapping) Len() int {
	if m == nil || m.defs == nil {
		return 0
	}
	return m.defs.Len()
}

// Names lists schema names in mapping order.
func (m *Mapping) Names() []string {
	if m.Len() == 0 {
		return nil
	}
	out := make([]string, 0, m.defs.Len())
	for pair := m.defs.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Get returns the definition stored under name.
func (m *Mapping) Get(name string) (any, bool) {
	if m.Len() == 0 {
		return nil, false
	}
	return m.defs.Get(name)
}

// Set stores def under name. Re-setting an existing name keeps its position.
func (m *Mapping) Set(name string, def any) {
	if m.defs == nil {
		m.defs = NewObject()
	}
	m.defs.Set(name, def)
}

// Object exposes the underlying ordered object.
func (m *Mapping) Object() *Object {
	if m == nil {
		return nil
	}
	return m.defs
}

// Clone returns a deep copy.
func (m *Mapping) Clone() *Mapping {
	if m == nil {
		return nil
	}
	out := NewMapping()
	for _, name := range m.Names() {
		def, _ := m.Get(name)
		out.Set(name, cloneValue(def))
	}
	return out
}

// MarshalJSON writes the mapping as an ordered JSON object.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	if m.Len() == 0 {
		return []byte("{}"), nil
	}
	return m.defs.MarshalJSON()
}

// UnmarshalJSON reads an ordered JSON object through the normalizer, so the
// schemas wrapper is unwrapped and non-object payloads are rejected.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = Mapping{defs: NewObject()}
		return nil
	}
	parsed, err := Normalize(string(data))
	if err != nil {
		return err
	}
	*m = *parsed
	return nil
}

// Equal reports structural equality. Numbers compare by value so that 1 and
// 1.0 are the same regardless of the format they were read from.
func Equal(a, b *Mapping) bool {
	if a.Len() != b.Len() {
		return false
	}
	if a.Len() == 0 {
		return true
	}
	return valuesEqual(a.defs, b.defs)
}

func valuesEqual(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case *Object:
		bv, ok := b.(*Object)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		pa, pb := av.Oldest(), bv.Oldest()
		for pa != nil && pb != nil {
			if pa.Key != pb.Key || !valuesEqual(pa.Value, pb.Value) {
				return false
			}
			pa, pb = pa.Next(), pb.Next()
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// canonicalScalar folds the scalar types produced by the JSON and YAML
// decoders onto int64, float64, bool, string, and nil.
func canonicalScalar(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n)
		}
		return float64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		f, _ := n.Float64()
		return f
	}
	return v
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *Object:
		out := NewObject()
		for pair := t.Oldest(); pair != nil; pair = pair.Next() {
			out.Set(pair.Key, cloneValue(pair.Value))
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
