// Package document implements the schema-free structured value that makes
// up a document body, its persistence envelope, and the $set/$unset/$push/
// $pull partial-update operator language (spec.md §4.2).
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Int
	Double
	String
	List
	Map
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Double:
		return "double"
	case String:
		return "string"
	case List:
		return "list"
	case Map:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a tagged union: Null, Bool, Int, Double, String, List([]Value),
// or Map(map[string]Value). The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	d    float64
	s    string
	list []Value
	m    map[string]Value
}

func NullValue() Value            { return Value{kind: Null} }
func BoolValue(v bool) Value      { return Value{kind: Bool, b: v} }
func IntValue(v int64) Value      { return Value{kind: Int, i: v} }
func StringValue(v string) Value  { return Value{kind: String, s: v} }
func ListValue(v []Value) Value   { return Value{kind: List, list: v} }
func MapValue(v map[string]Value) Value {
	return Value{kind: Map, m: v}
}

// DoubleValue constructs a Double Value, rejecting NaN per spec.md §9.
func DoubleValue(v float64) (Value, error) {
	if v != v { // NaN
		return Value{}, fmt.Errorf("document: NaN is not a valid document value")
	}
	return Value{kind: Double, d: v}, nil
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == Null }

func (v Value) Bool() bool          { return v.b }
func (v Value) Int() int64          { return v.i }
func (v Value) Double() float64     { return v.d }
func (v Value) String() string      { return v.s }
func (v Value) List() []Value       { return v.list }

// Map returns the underlying field map. Mutating the returned map mutates v.
func (v Value) Map() map[string]Value { return v.m }

// IsScalar reports whether v is a Bool, Int, Double, or String — the kinds
// that can participate in a secondary index (spec.md §4.1: "Null / nested:
// not indexable").
func (v Value) IsScalar() bool {
	switch v.kind {
	case Bool, Int, Double, String:
		return true
	default:
		return false
	}
}

// Field looks up a field by name on a Map value. Returns Null, false if v is
// not a Map or the field is absent.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != Map {
		return Value{}, false
	}
	fv, ok := v.m[name]
	return fv, ok
}

// WithField returns a copy of v (which must be a Map, or Null treated as an
// empty Map) with field name set to fv.
func (v Value) WithField(name string, fv Value) Value {
	m := make(map[string]Value, len(v.m)+1)
	for k, ev := range v.m {
		m[k] = ev
	}
	m[name] = fv
	return Value{kind: Map, m: m}
}

// Equal reports deep equality between a and b.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case Bool:
		return a.b == b.b
	case Int:
		return a.i == b.i
	case Double:
		return a.d == b.d
	case String:
		return a.s == b.s
	case List:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case Map:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ToAny converts v into a tree of native Go values (nil, bool, int64,
// float64, string, []any, map[string]any) suitable for msgpack/JSON
// encoding.
func (v Value) ToAny() any {
	switch v.kind {
	case Null:
		return nil
	case Bool:
		return v.b
	case Int:
		return v.i
	case Double:
		return v.d
	case String:
		return v.s
	case List:
		out := make([]any, len(v.list))
		for i, ev := range v.list {
			out[i] = ev.ToAny()
		}
		return out
	case Map:
		out := make(map[string]any, len(v.m))
		for k, ev := range v.m {
			out[k] = ev.ToAny()
		}
		return out
	default:
		return nil
	}
}

// FromAny converts a tree of native Go values (as produced by msgpack or
// encoding/json decoding into `any`) into a Value.
func FromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(x), nil
	case string:
		return StringValue(x), nil
	case int:
		return IntValue(int64(x)), nil
	case int8:
		return IntValue(int64(x)), nil
	case int16:
		return IntValue(int64(x)), nil
	case int32:
		return IntValue(int64(x)), nil
	case int64:
		return IntValue(x), nil
	case uint:
		return IntValue(int64(x)), nil
	case uint8:
		return IntValue(int64(x)), nil
	case uint16:
		return IntValue(int64(x)), nil
	case uint32:
		return IntValue(int64(x)), nil
	case uint64:
		return IntValue(int64(x)), nil
	case float32:
		return DoubleValue(float64(x))
	case float64:
		return DoubleValue(x)
	case json.Number:
		return fromJSONNumber(x)
	case []any:
		out := make([]Value, len(x))
		for i, ev := range x {
			cv, err := FromAny(ev)
			if err != nil {
				return Value{}, err
			}
			out[i] = cv
		}
		return ListValue(out), nil
	case map[string]any:
		out := make(map[string]Value, len(x))
		for k, ev := range x {
			cv, err := FromAny(ev)
			if err != nil {
				return Value{}, err
			}
			out[k] = cv
		}
		return MapValue(out), nil
	default:
		return Value{}, fmt.Errorf("document: cannot convert %T to a document value", raw)
	}
}

func fromJSONNumber(n json.Number) (Value, error) {
	if i, err := n.Int64(); err == nil {
		return IntValue(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, fmt.Errorf("document: invalid number %q: %w", n, err)
	}
	return DoubleValue(f)
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(v.ToAny())
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	cv, err := FromAny(normalizeMsgpackMaps(raw))
	if err != nil {
		return err
	}
	*v = cv
	return nil
}

// normalizeMsgpackMaps converts the map[interface{}]interface{} shape that
// some msgpack decode paths produce into map[string]any so FromAny's type
// switch applies uniformly.
func normalizeMsgpackMaps(raw any) any {
	switch x := raw.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]any, len(x))
		for k, v := range x {
			out[fmt.Sprint(k)] = normalizeMsgpackMaps(v)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]any, len(x))
		for k, v := range x {
			out[k] = normalizeMsgpackMaps(v)
		}
		return out
	case []interface{}:
		out := make([]any, len(x))
		for i, v := range x {
			out[i] = normalizeMsgpackMaps(v)
		}
		return out
	default:
		return x
	}
}

// MarshalJSON renders v as JSON, used for export (body-only files) and for
// the WAL CDC callback's JSON-ified value.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case Map:
		// Sort keys for deterministic, diffable export output.
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := json.Marshal(v.m[k])
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return json.Marshal(v.ToAny())
	}
}

// UnmarshalJSON parses JSON into v, preserving integer-vs-float distinction
// via json.Number so that a document imported from JSON round-trips through
// an Int-typed index the same way a document created in-process would.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	cv, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = cv
	return nil
}
