// Package value defines the tagged value model used for untyped request and
// response bodies: strings, numbers, booleans, null, ordered sequences and
// ordered mappings.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindSeq
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindSeq:
		return "sequence"
	case KindMap:
		return "mapping"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is one of String, Number, Bool, Null, Seq or *Map.
type Value interface {
	Kind() Kind
}

type (
	String string
	Number float64
	Bool   bool
	Null   struct{}
	Seq    []Value
)

func (String) Kind() Kind { return KindString }
func (Number) Kind() Kind { return KindNumber }
func (Bool) Kind() Kind   { return KindBool }
func (Null) Kind() Kind   { return KindNull }
func (Seq) Kind() Kind    { return KindSeq }

func (s String) String() string { return string(s) }

func (n Number) String() string {
	f := float64(n)
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

func (Null) String() string { return "null" }

// MarshalJSON keeps integral numbers free of exponent notation.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("value: unsupported number %v", f)
	}
	return []byte(n.String()), nil
}

func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// Text renders a scalar the way it appears in XML text content.
// Sequences and maps have no text form and return false.
func Text(v Value) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case String:
		return string(t), true
	case Number:
		return t.String(), true
	case Bool:
		return t.String(), true
	case Null:
		return "", true
	}
	return "", false
}

// Map is a string-keyed mapping that remembers insertion order.
type Map struct {
	keys []string
	vals map[string]Value
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{vals: make(map[string]Value)}
}

func (*Map) Kind() Kind { return KindMap }

// Set stores v under key. An existing key keeps its original position.
func (m *Map) Set(key string, v Value) *Map {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
	return m
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Delete removes key if present.
func (m *Map) Delete(key string) {
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// MarshalJSON writes the entries in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshal(m.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *Map) String() string {
	data, err := m.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid map: %v>", err)
	}
	return string(data)
}

func marshal(v Value) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// Native converts v into plain Go values (map[string]any, []any, string,
// float64, bool, nil). Map ordering is lost.
func Native(v Value) any {
	switch t := v.(type) {
	case String:
		return string(t)
	case Number:
		return float64(t)
	case Bool:
		return bool(t)
	case Seq:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Native(item)
		}
		return out
	case *Map:
		out := make(map[string]any, t.Len())
		for _, k := range t.keys {
			out[k] = Native(t.vals[k])
		}
		return out
	}
	return nil
}

// From converts plain Go values into a Value. Keys of Go maps are sorted
// since their iteration order is unspecified.
func From(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Number(t), nil
	case int32:
		return Number(t), nil
	case int64:
		return Number(t), nil
	case uint:
		return Number(t), nil
	case uint64:
		return Number(t), nil
	case float32:
		return Number(t), nil
	case float64:
		return Number(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		return Number(f), nil
	case []any:
		out := make(Seq, 0, len(t))
		for _, item := range t {
			v, err := From(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case []string:
		out := make(Seq, len(t))
		for i, s := range t {
			out[i] = String(s)
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			v, err := From(t[k])
			if err != nil {
				return nil, err
			}
			m.Set(k, v)
		}
		return m, nil
	case map[string]string:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			m.Set(k, String(t[k]))
		}
		return m, nil
	}
	return nil, fmt.Errorf("value: unsupported type %T", x)
}

// Equal reports whether a and b hold the same variant and content,
// including map key order.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch at := a.(type) {
	case Seq:
		bt := b.(Seq)
		if len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !Equal(at[i], bt[i]) {
				return false
			}
		}
		return true
	case *Map:
		bt := b.(*Map)
		if at.Len() != bt.Len() {
			return false
		}
		for i, k := range at.keys {
			if bt.keys[i] != k || !Equal(at.vals[k], bt.vals[k]) {
				return false
			}
		}
		return true
	}
	return a == b
}
