package weft

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

// Value kinds.
const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindDict
	KindNode
)

var kindNames = map[Kind]string{
	KindInvalid: "invalid",
	KindNull:    "null",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindString:  "string",
	KindList:    "list",
	KindDict:    "dict",
	KindNode:    "node",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "unknown"
}

// Value is the result of evaluating a configuration string: a primitive,
// a container, or a reference to a node of the enclosing configuration
// tree. The zero Value is invalid; it is the sentinel substituted for
// failed lookups when resolution failures are not fatal.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	dict *Dict
	node Node
}

// Constructors.

// NullValue returns the null value.
func NullValue() Value { return Value{kind: KindNull} }

// BoolValue returns a boolean value.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// IntValue returns an integer value.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// FloatValue returns a float value.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// StringValue returns a string value.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// ListValue returns a list value holding items.
func ListValue(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}

	return Value{kind: KindList, list: items}
}

// DictValue returns a dict value. A nil dict yields an empty one.
func DictValue(d *Dict) Value {
	if d == nil {
		d = NewDict()
	}

	return Value{kind: KindDict, dict: d}
}

// NodeValue returns a reference to a configuration node. The reference
// borrows from the node's container, which must outlive the value.
func NodeValue(n Node) Value { return Value{kind: KindNode, node: n} }

// Accessors.

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds any variant at all.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Bool returns the boolean payload.
func (v Value) Bool() bool { return v.b }

// Int returns the integer payload.
func (v Value) Int() int64 { return v.i }

// Float returns the float payload.
func (v Value) Float() float64 { return v.f }

// Str returns the string payload.
func (v Value) Str() string { return v.s }

// List returns the list payload.
func (v Value) List() []Value { return v.list }

// Dict returns the dict payload.
func (v Value) Dict() *Dict { return v.dict }

// Node returns the node payload.
//
//nolint:ireturn // Node references are inherently interface-typed.
func (v Value) Node() Node { return v.node }

// Equal reports structural equality: value equality for primitives,
// order-sensitive equality for lists, and order-insensitive equality for
// dicts. Node references compare by path only; references into
// different containers that share a path are equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case KindInvalid, KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}

		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}

		return true
	case KindDict:
		return v.dict.Equal(o.dict)
	case KindNode:
		return v.node.Path() == o.node.Path()
	default:
		return false
	}
}

// String renders the value canonically: null, true/false, base-10
// integers, floats with a decimal point or exponent preserved, raw
// strings, and bracketed containers with quoted nested strings.
func (v Value) String() string {
	if v.kind == KindString {
		return v.s
	}

	var b strings.Builder

	v.render(&b, false)

	return b.String()
}

func (v Value) render(b *strings.Builder, nested bool) {
	switch v.kind {
	case KindInvalid:
		b.WriteString("<unresolved>")
	case KindNull:
		b.WriteString("null")
	case KindBool:
		b.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		b.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		b.WriteString(formatFloat(v.f))
	case KindString:
		if nested {
			b.WriteByte('\'')
			b.WriteString(strings.ReplaceAll(strings.ReplaceAll(v.s, `\`, `\\`), `'`, `\'`))
			b.WriteByte('\'')
		} else {
			b.WriteString(v.s)
		}
	case KindList:
		b.WriteByte('[')

		for i, item := range v.list {
			if i > 0 {
				b.WriteString(", ")
			}

			item.render(b, true)
		}

		b.WriteByte(']')
	case KindDict:
		b.WriteByte('{')

		for i, k := range v.dict.Keys() {
			if i > 0 {
				b.WriteString(", ")
			}

			k.render(b, true)
			b.WriteString(": ")

			val, _ := v.dict.Get(k)
			val.render(b, true)
		}

		b.WriteByte('}')
	case KindNode:
		v.node.Value().render(b, nested)
	}
}

// formatFloat keeps a marker of floatness in the rendering so that the
// output decodes back to a float: integral values gain a trailing ".0".
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}

	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}

	return s
}

// ToGo converts the value to plain Go data: nil, bool, int64, float64,
// string, []any and map[any]any. Node references are unwrapped to the
// raw value of the node.
func (v Value) ToGo() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		l := make([]any, len(v.list))
		for i, item := range v.list {
			l[i] = item.ToGo()
		}

		return l
	case KindDict:
		m := make(map[any]any, v.dict.Len())
		for _, k := range v.dict.Keys() {
			val, _ := v.dict.Get(k)
			m[k.ToGo()] = val.ToGo()
		}

		return m
	case KindNode:
		return v.node.Value().ToGo()
	default:
		return nil
	}
}

// FromGo converts plain Go data into a Value. Maps are keyed in sorted
// order for determinism. Unsupported types render through fmt as strings.
func FromGo(x any) Value {
	switch t := x.(type) {
	case nil:
		return NullValue()
	case Value:
		return t
	case bool:
		return BoolValue(t)
	case int:
		return IntValue(int64(t))
	case int32:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case uint64:
		return IntValue(int64(t))
	case float32:
		return FloatValue(float64(t))
	case float64:
		return FloatValue(t)
	case string:
		return StringValue(t)
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = FromGo(e)
		}

		return ListValue(items...)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		d := NewDict()
		for _, k := range keys {
			_ = d.Set(StringValue(k), FromGo(t[k]))
		}

		return DictValue(d)
	default:
		return StringValue(fmt.Sprintf("%v", t))
	}
}

// =============================================================================
// Ordered dicts
// =============================================================================

// Dict is an insertion-ordered mapping with hashable primitive keys.
type Dict struct {
	keys []Value
	vals map[string]Value
}

// NewDict returns an empty dict.
func NewDict() *Dict {
	return &Dict{vals: make(map[string]Value)}
}

// Set inserts or replaces the entry for key. Replacement keeps the
// original key position. Keys must be hashable primitives.
func (d *Dict) Set(key, val Value) error {
	ck, err := hashKey(key)
	if err != nil {
		return err
	}

	if _, exists := d.vals[ck]; !exists {
		d.keys = append(d.keys, key)
	}

	d.vals[ck] = val

	return nil
}

// Get returns the value stored under key.
func (d *Dict) Get(key Value) (Value, bool) {
	ck, err := hashKey(key)
	if err != nil {
		return Value{}, false
	}

	v, ok := d.vals[ck]

	return v, ok
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []Value { return d.keys }

// Values returns the values in key insertion order.
func (d *Dict) Values() []Value {
	out := make([]Value, 0, len(d.keys))

	for _, k := range d.keys {
		v, _ := d.Get(k)
		out = append(out, v)
	}

	return out
}

// Equal reports whether both dicts hold the same key/value pairs,
// regardless of insertion order.
func (d *Dict) Equal(o *Dict) bool {
	if d == nil || o == nil {
		return d == o
	}

	if len(d.keys) != len(o.keys) {
		return false
	}

	for _, k := range d.keys {
		dv, _ := d.Get(k)

		ov, ok := o.Get(k)
		if !ok || !dv.Equal(ov) {
			return false
		}
	}

	return true
}

// hashKey returns the canonical key string for a hashable primitive.
func hashKey(key Value) (string, error) {
	switch key.kind {
	case KindNull, KindBool, KindInt, KindFloat, KindString:
		var b strings.Builder

		if err := appendCanonical(&b, key); err != nil {
			return "", err
		}

		return b.String(), nil
	default:
		return "", &TypeError{Msg: fmt.Sprintf("unhashable dict key of type %s", key.kind)}
	}
}

// appendCanonical writes a structural, hashable representation of v:
// deep for lists and dicts, with dict entries in sorted key order so that
// {a: 1, b: 2} and {b: 2, a: 1} canonicalize identically.
func appendCanonical(b *strings.Builder, v Value) error {
	switch v.kind {
	case KindNull:
		b.WriteString("z;")
	case KindBool:
		fmt.Fprintf(b, "b:%t;", v.b)
	case KindInt:
		fmt.Fprintf(b, "i:%d;", v.i)
	case KindFloat:
		fmt.Fprintf(b, "f:%s;", strconv.FormatFloat(v.f, 'x', -1, 64))
	case KindString:
		fmt.Fprintf(b, "s:%q;", v.s)
	case KindList:
		b.WriteString("l[")

		for _, item := range v.list {
			if err := appendCanonical(b, item); err != nil {
				return err
			}
		}

		b.WriteString("];")
	case KindDict:
		entries := make([]string, 0, v.dict.Len())

		for _, k := range v.dict.Keys() {
			var eb strings.Builder

			if err := appendCanonical(&eb, k); err != nil {
				return err
			}

			eb.WriteByte('=')

			val, _ := v.dict.Get(k)
			if err := appendCanonical(&eb, val); err != nil {
				return err
			}

			entries = append(entries, eb.String())
		}

		sort.Strings(entries)

		b.WriteString("d{")

		for _, e := range entries {
			b.WriteString(e)
		}

		b.WriteString("};")
	default:
		return &TypeError{Msg: fmt.Sprintf("value of type %s cannot be used in a cache key", v.kind)}
	}

	return nil
}
