package rbh

import (
	"fmt"
	"strings"
)

// FilterOp enumerates comparison and logical filter operators.
type FilterOp int

const (
	// Comparison operators
	OpEqual FilterOp = iota
	OpLess
	OpLessOrEqual
	OpGreater
	OpGreaterOrEqual
	OpRegex
	OpIn
	OpBitsAnySet
	OpBitsAllSet
	OpBitsAnyClear
	OpBitsAllClear

	// Logical operators
	OpAnd
	OpOr
	OpNot
)

func (op FilterOp) String() string {
	switch op {
	case OpEqual:
		return "="
	case OpLess:
		return "<"
	case OpLessOrEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterOrEqual:
		return ">="
	case OpRegex:
		return "matches"
	case OpIn:
		return "in"
	case OpBitsAnySet:
		return "bits-any-set"
	case OpBitsAllSet:
		return "bits-all-set"
	case OpBitsAnyClear:
		return "bits-any-clear"
	case OpBitsAllClear:
		return "bits-all-clear"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpNot:
		return "not"
	default:
		return "unknown"
	}
}

// IsComparison reports whether op compares a field against a value.
func (op FilterOp) IsComparison() bool {
	return op >= OpEqual && op <= OpBitsAllClear
}

// IsLogical reports whether op combines child filters.
func (op FilterOp) IsLogical() bool {
	return op == OpAnd || op == OpOr || op == OpNot
}

// FieldID enumerates the entry fields a comparison filter can address.
type FieldID int

const (
	FieldEntryID FieldID = iota // entry identifier
	FieldParentID
	FieldName
	FieldType
	FieldMode
	FieldNlink
	FieldUID
	FieldGID
	FieldSize
	FieldAtime
	FieldBtime
	FieldCtime
	FieldMtime
	FieldIno
	FieldSymlink
	FieldNamespaceXattr
	FieldInodeXattr
)

func (f FieldID) String() string {
	switch f {
	case FieldEntryID:
		return "id"
	case FieldParentID:
		return "parent_id"
	case FieldName:
		return "name"
	case FieldType:
		return "type"
	case FieldMode:
		return "mode"
	case FieldNlink:
		return "nlink"
	case FieldUID:
		return "uid"
	case FieldGID:
		return "gid"
	case FieldSize:
		return "size"
	case FieldAtime:
		return "atime"
	case FieldBtime:
		return "btime"
	case FieldCtime:
		return "ctime"
	case FieldMtime:
		return "mtime"
	case FieldIno:
		return "ino"
	case FieldSymlink:
		return "symlink"
	case FieldNamespaceXattr:
		return "ns-xattr"
	case FieldInodeXattr:
		return "xattr"
	default:
		return "unknown"
	}
}

// Field addresses one entry attribute. Xattr carries the key for the two
// xattr map fields and is empty otherwise.
type Field struct {
	ID    FieldID
	Xattr string
}

func (f Field) String() string {
	if f.Xattr != "" {
		return fmt.Sprintf("%s[%s]", f.ID, f.Xattr)
	}
	return f.ID.String()
}

// Filter is an immutable predicate AST node evaluated against entries.
//
// A comparison node carries Field and Value; a logical node carries
// Children. The nil *Filter is the null filter, a sentinel matching every
// entry; the negation of the null filter matches nothing.
//
// Builders deep-copy their inputs so every tree has a single owner and no
// node is ever shared between two filters.
type Filter struct {
	Op       FilterOp
	Field    Field
	Value    Value
	Children []*Filter
}

// ============================================================================
// Filter Builders
// ============================================================================

// Compare builds a comparison filter testing field against value with op.
func Compare(op FilterOp, field Field, value Value) *Filter {
	return &Filter{Op: op, Field: field, Value: value.Clone()}
}

// Equal builds field = value.
func Equal(field Field, value Value) *Filter {
	return Compare(OpEqual, field, value)
}

// Less builds field < value.
func Less(field Field, value Value) *Filter {
	return Compare(OpLess, field, value)
}

// LessOrEqual builds field <= value.
func LessOrEqual(field Field, value Value) *Filter {
	return Compare(OpLessOrEqual, field, value)
}

// Greater builds field > value.
func Greater(field Field, value Value) *Filter {
	return Compare(OpGreater, field, value)
}

// GreaterOrEqual builds field >= value.
func GreaterOrEqual(field Field, value Value) *Filter {
	return Compare(OpGreaterOrEqual, field, value)
}

// Match builds a regex comparison. Anchoring is the caller's business.
func Match(field Field, pattern string, options RegexOptions) *Filter {
	return Compare(OpRegex, field, RegexValue(pattern, options))
}

// In builds a membership test of field among the sequence elements.
func In(field Field, elems ...Value) *Filter {
	return Compare(OpIn, field, SequenceValue(elems...))
}

// And builds the conjunction of children. The children are deep-copied;
// the caller keeps ownership of its arguments.
func And(children ...*Filter) *Filter {
	return logical(OpAnd, children)
}

// Or builds the disjunction of children, deep-copying them.
func Or(children ...*Filter) *Filter {
	return logical(OpOr, children)
}

// Not builds the negation of child, deep-copying it. Not(nil) negates the
// null filter and matches nothing.
func Not(child *Filter) *Filter {
	return &Filter{Op: OpNot, Children: []*Filter{child.Clone()}}
}

func logical(op FilterOp, children []*Filter) *Filter {
	cp := make([]*Filter, len(children))
	for i, c := range children {
		cp[i] = c.Clone()
	}
	return &Filter{Op: op, Children: cp}
}

// Clone returns a deep copy of the filter. The null filter clones to the
// null filter.
func (f *Filter) Clone() *Filter {
	if f == nil {
		return nil
	}
	out := &Filter{Op: f.Op, Field: f.Field, Value: f.Value.Clone()}
	if f.Children != nil {
		out.Children = make([]*Filter, len(f.Children))
		for i, c := range f.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// String renders the filter for diagnostics.
func (f *Filter) String() string {
	if f == nil {
		return "null"
	}
	if f.Op.IsComparison() {
		return fmt.Sprintf("(%s %s %s)", f.Field, f.Op, f.Value)
	}
	parts := make([]string, len(f.Children))
	for i, c := range f.Children {
		parts[i] = c.String()
	}
	return fmt.Sprintf("(%s %s)", f.Op, strings.Join(parts, " "))
}
