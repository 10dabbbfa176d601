package rbh

import (
	"bytes"
	"regexp"
	"strings"
)

// Matches evaluates the filter against an entry as observed under one
// namespace edge. It is the reference semantics of the filter algebra:
// backends that cannot push predicates down to their store evaluate with
// it, and backend translations are tested against it.
//
// The nil filter matches every entry. A field the entry does not carry
// (absent statx field, missing xattr) never matches a comparison.
func (f *Filter) Matches(e *Entry, edge NamespaceEntry) bool {
	if f == nil {
		return true
	}

	switch f.Op {
	case OpAnd:
		for _, child := range f.Children {
			if !child.Matches(e, edge) {
				return false
			}
		}
		return true
	case OpOr:
		for _, child := range f.Children {
			if child.Matches(e, edge) {
				return true
			}
		}
		return false
	case OpNot:
		return !f.Children[0].Matches(e, edge)
	}

	field, ok := fieldValue(f.Field, e, edge)
	if !ok {
		return false
	}
	return compare(f.Op, field, f.Value)
}

// fieldValue extracts the addressed field of the entry, bound to the
// given namespace edge for parent_id and name.
func fieldValue(field Field, e *Entry, edge NamespaceEntry) (Value, bool) {
	switch field.ID {
	case FieldEntryID:
		return BinaryValue(e.ID), true
	case FieldParentID:
		return BinaryValue(edge.ParentID), true
	case FieldName:
		return StringValue(edge.Name), true
	case FieldSymlink:
		if e.Symlink == "" {
			return Value{}, false
		}
		return StringValue(e.Symlink), true
	case FieldNamespaceXattr:
		v, ok := e.NamespaceXattrs[field.Xattr]
		return v, ok
	case FieldInodeXattr:
		v, ok := e.InodeXattrs[field.Xattr]
		return v, ok
	}

	if e.Statx == nil {
		return Value{}, false
	}
	s := e.Statx
	switch field.ID {
	case FieldType:
		return UInt32Value(s.Type()), s.Mask.Has(StatxType)
	case FieldMode:
		return UInt32Value(s.Mode &^ ModeTypeMask), s.Mask.Has(StatxMode)
	case FieldNlink:
		return UInt32Value(s.Nlink), s.Mask.Has(StatxNlink)
	case FieldUID:
		return UInt32Value(s.UID), s.Mask.Has(StatxUID)
	case FieldGID:
		return UInt32Value(s.GID), s.Mask.Has(StatxGID)
	case FieldSize:
		return UInt64Value(s.Size), s.Mask.Has(StatxSize)
	case FieldIno:
		return UInt64Value(s.Ino), s.Mask.Has(StatxIno)
	case FieldAtime:
		return Int64Value(s.Atime.Sec), s.Mask.Has(StatxAtime)
	case FieldBtime:
		return Int64Value(s.Btime.Sec), s.Mask.Has(StatxBtime)
	case FieldCtime:
		return Int64Value(s.Ctime.Sec), s.Mask.Has(StatxCtime)
	case FieldMtime:
		return Int64Value(s.Mtime.Sec), s.Mask.Has(StatxMtime)
	}
	return Value{}, false
}

// compare applies a comparison operator to a field value and the filter's
// value.
func compare(op FilterOp, field, value Value) bool {
	switch op {
	case OpEqual:
		return equalValues(field, value)
	case OpLess:
		cmp, ok := orderValues(field, value)
		return ok && cmp < 0
	case OpLessOrEqual:
		cmp, ok := orderValues(field, value)
		return ok && cmp <= 0
	case OpGreater:
		cmp, ok := orderValues(field, value)
		return ok && cmp > 0
	case OpGreaterOrEqual:
		cmp, ok := orderValues(field, value)
		return ok && cmp >= 0
	case OpRegex:
		return regexMatches(field, value.Regex)
	case OpIn:
		for _, elem := range value.Seq {
			if equalValues(field, elem) {
				return true
			}
		}
		return false
	case OpBitsAnySet:
		a, b, ok := bitVectors(field, value)
		return ok && a&b != 0
	case OpBitsAllSet:
		a, b, ok := bitVectors(field, value)
		return ok && a&b == b
	case OpBitsAnyClear:
		a, b, ok := bitVectors(field, value)
		return ok && ^a&b != 0
	case OpBitsAllClear:
		a, b, ok := bitVectors(field, value)
		return ok && a&b == 0
	}
	return false
}

// equalValues implements filter equality: byte-for-byte on binary and
// string, numeric across integer widths, and submap semantics on maps
// (every key of value must be present in field with an equal value).
func equalValues(field, value Value) bool {
	if field.IsInteger() && value.IsInteger() {
		cmp, _ := orderValues(field, value)
		return cmp == 0
	}
	if field.Kind == ValueMap && value.Kind == ValueMap {
		for k, want := range value.Map {
			got, ok := field.Map[k]
			if !ok || !got.Equal(want) {
				return false
			}
		}
		return true
	}
	return field.Equal(value)
}

// orderValues totally orders two comparable values. Integers compare
// numerically regardless of width and signedness; binary and string
// compare lexicographically. Other combinations report not-ordered.
func orderValues(field, value Value) (int, bool) {
	if field.IsInteger() && value.IsInteger() {
		return compareNumeric(field, value), true
	}
	switch {
	case field.Kind == ValueBinary && value.Kind == ValueBinary:
		return bytes.Compare(field.Bytes, value.Bytes), true
	case field.Kind == ValueString && value.Kind == ValueString:
		return strings.Compare(field.Str, value.Str), true
	}
	return 0, false
}

func compareNumeric(a, b Value) int {
	aSigned := a.Kind == ValueInt32 || a.Kind == ValueInt64
	bSigned := b.Kind == ValueInt32 || b.Kind == ValueInt64

	switch {
	case aSigned && bSigned:
		return cmpInt64(a.Int, b.Int)
	case !aSigned && !bSigned:
		return cmpUint64(a.Uint, b.Uint)
	case aSigned:
		if a.Int < 0 {
			return -1
		}
		return cmpUint64(uint64(a.Int), b.Uint)
	default:
		if b.Int < 0 {
			return 1
		}
		return cmpUint64(a.Uint, uint64(b.Int))
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// regexMatches applies the pattern to a string or binary field without
// implicit anchoring.
func regexMatches(field Value, re Regex) bool {
	var subject string
	switch field.Kind {
	case ValueString:
		subject = field.Str
	case ValueBinary:
		subject = string(field.Bytes)
	default:
		return false
	}

	pattern := re.Pattern
	if re.Options&RegexCaseInsensitive != 0 {
		pattern = "(?i)" + pattern
	}
	matched, err := regexp.MatchString(pattern, subject)
	if err != nil {
		return false
	}
	return matched
}

// bitVectors extracts both operands of a bitwise comparison as 64-bit
// vectors. Signed negative field values keep their two's-complement bits.
func bitVectors(field, value Value) (uint64, uint64, bool) {
	a, ok := valueBits(field)
	if !ok {
		return 0, 0, false
	}
	b, ok := valueBits(value)
	if !ok {
		return 0, 0, false
	}
	return a, b, true
}

func valueBits(v Value) (uint64, bool) {
	switch v.Kind {
	case ValueInt32, ValueInt64:
		return uint64(v.Int), true
	case ValueUInt32, ValueUInt64:
		return v.Uint, true
	}
	return 0, false
}
