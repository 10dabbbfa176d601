package rbh

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// ValueKind identifies the concrete type carried by a Value.
type ValueKind int

const (
	ValueBinary ValueKind = iota
	ValueInt32
	ValueUInt32
	ValueInt64
	ValueUInt64
	ValueString
	ValueRegex
	ValueSequence
	ValueMap
)

func (k ValueKind) String() string {
	switch k {
	case ValueBinary:
		return "binary"
	case ValueInt32:
		return "int32"
	case ValueUInt32:
		return "uint32"
	case ValueInt64:
		return "int64"
	case ValueUInt64:
		return "uint64"
	case ValueString:
		return "string"
	case ValueRegex:
		return "regex"
	case ValueSequence:
		return "sequence"
	case ValueMap:
		return "map"
	default:
		return "unknown"
	}
}

// RegexOptions is a bitmask of regex matching options.
type RegexOptions uint32

const (
	// RegexCaseInsensitive makes the pattern match case-insensitively.
	RegexCaseInsensitive RegexOptions = 1 << iota
)

// Regex is a pattern plus its option flags. Anchoring is not implicit;
// callers anchor the pattern themselves if they want whole-string matches.
type Regex struct {
	Pattern string
	Options RegexOptions
}

// Value is the tagged union carried by comparison filters. Exactly the
// field selected by Kind is meaningful; signed and unsigned integers of
// both widths share the Int and Uint fields.
type Value struct {
	Kind  ValueKind
	Bytes []byte
	Int   int64
	Uint  uint64
	Str   string
	Regex Regex
	Seq   []Value
	Map   map[string]Value
}

// ============================================================================
// Value Constructors
// ============================================================================

// BinaryValue returns a binary Value. The slice is not copied.
func BinaryValue(data []byte) Value {
	return Value{Kind: ValueBinary, Bytes: data}
}

// Int32Value returns an int32 Value.
func Int32Value(v int32) Value {
	return Value{Kind: ValueInt32, Int: int64(v)}
}

// UInt32Value returns a uint32 Value.
func UInt32Value(v uint32) Value {
	return Value{Kind: ValueUInt32, Uint: uint64(v)}
}

// Int64Value returns an int64 Value.
func Int64Value(v int64) Value {
	return Value{Kind: ValueInt64, Int: v}
}

// UInt64Value returns a uint64 Value.
func UInt64Value(v uint64) Value {
	return Value{Kind: ValueUInt64, Uint: v}
}

// StringValue returns a string Value.
func StringValue(v string) Value {
	return Value{Kind: ValueString, Str: v}
}

// RegexValue returns a regex Value with the given option flags.
func RegexValue(pattern string, options RegexOptions) Value {
	return Value{Kind: ValueRegex, Regex: Regex{Pattern: pattern, Options: options}}
}

// SequenceValue returns a sequence Value over a copy of elems.
func SequenceValue(elems ...Value) Value {
	seq := make([]Value, len(elems))
	copy(seq, elems)
	return Value{Kind: ValueSequence, Seq: seq}
}

// MapValue returns a map Value over a copy of m.
func MapValue(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{Kind: ValueMap, Map: cp}
}

// IsInteger reports whether the value is one of the four integer kinds.
func (v Value) IsInteger() bool {
	switch v.Kind {
	case ValueInt32, ValueUInt32, ValueInt64, ValueUInt64:
		return true
	}
	return false
}

// Clone returns a deep copy of the value.
func (v Value) Clone() Value {
	out := v
	if v.Bytes != nil {
		out.Bytes = append([]byte(nil), v.Bytes...)
	}
	if v.Seq != nil {
		out.Seq = make([]Value, len(v.Seq))
		for i, e := range v.Seq {
			out.Seq[i] = e.Clone()
		}
	}
	if v.Map != nil {
		out.Map = make(map[string]Value, len(v.Map))
		for k, e := range v.Map {
			out.Map[k] = e.Clone()
		}
	}
	return out
}

// Equal reports deep equality of two values. Maps compare as full
// equality here; the submap interpretation of filter '=' on maps lives in
// the match logic, not in Value itself.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueBinary:
		return bytes.Equal(v.Bytes, o.Bytes)
	case ValueInt32, ValueInt64:
		return v.Int == o.Int
	case ValueUInt32, ValueUInt64:
		return v.Uint == o.Uint
	case ValueString:
		return v.Str == o.Str
	case ValueRegex:
		return v.Regex == o.Regex
	case ValueSequence:
		if len(v.Seq) != len(o.Seq) {
			return false
		}
		for i := range v.Seq {
			if !v.Seq[i].Equal(o.Seq[i]) {
				return false
			}
		}
		return true
	case ValueMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, e := range v.Map {
			oe, ok := o.Map[k]
			if !ok || !e.Equal(oe) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value for diagnostics.
func (v Value) String() string {
	switch v.Kind {
	case ValueBinary:
		return fmt.Sprintf("0x%x", v.Bytes)
	case ValueInt32, ValueInt64:
		return fmt.Sprintf("%d", v.Int)
	case ValueUInt32, ValueUInt64:
		return fmt.Sprintf("%d", v.Uint)
	case ValueString:
		return fmt.Sprintf("%q", v.Str)
	case ValueRegex:
		return fmt.Sprintf("/%s/%d", v.Regex.Pattern, v.Regex.Options)
	case ValueSequence:
		parts := make([]string, len(v.Seq))
		for i, e := range v.Seq {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ValueMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", k, v.Map[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "<invalid>"
	}
}
