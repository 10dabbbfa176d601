package rbh

import "fmt"

// Validate checks the structural and typing rules of a filter tree:
//
//   - comparison operator and value kind follow the compatibility table
//     (regex matching needs a regex value, membership needs a sequence,
//     bitwise operators need an integer);
//   - `not` has exactly one child, `and`/`or` at least one;
//   - the null filter is valid at the root and as the single child of
//     `not`, nowhere else.
//
// Ordering operators on non-integer values pass validation; their
// semantics are backend-defined. The returned error names the offending
// node by its path from the root.
func Validate(f *Filter) error {
	if f == nil {
		// The null filter matches everything and is always valid.
		return nil
	}
	return validateNode(f, "filter")
}

func validateNode(f *Filter, path string) error {
	switch {
	case f.Op.IsComparison():
		return validateComparison(f, path)
	case f.Op.IsLogical():
		return validateLogical(f, path)
	default:
		return invalidFilter(path, "unknown operator %d", int(f.Op))
	}
}

func validateComparison(f *Filter, path string) error {
	if len(f.Children) != 0 {
		return invalidFilter(path, "comparison %s cannot have children", f.Op)
	}

	switch f.Op {
	case OpEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
		// Equality and ordering are syntactically valid for every value
		// kind; ordering on non-integers is backend-defined.
		return nil
	case OpRegex:
		if f.Value.Kind != ValueRegex {
			return invalidFilter(path, "%s requires a regex value, got %s", f.Op, f.Value.Kind)
		}
	case OpIn:
		if f.Value.Kind != ValueSequence {
			return invalidFilter(path, "%s requires a sequence value, got %s", f.Op, f.Value.Kind)
		}
	case OpBitsAnySet, OpBitsAllSet, OpBitsAnyClear, OpBitsAllClear:
		if !f.Value.IsInteger() {
			return invalidFilter(path, "%s requires an integer value, got %s", f.Op, f.Value.Kind)
		}
	}
	return nil
}

func validateLogical(f *Filter, path string) error {
	switch f.Op {
	case OpNot:
		if len(f.Children) != 1 {
			return invalidFilter(path, "not takes exactly one child, got %d", len(f.Children))
		}
	case OpAnd, OpOr:
		if len(f.Children) == 0 {
			return invalidFilter(path, "%s takes at least one child", f.Op)
		}
	}

	for i, child := range f.Children {
		childPath := fmt.Sprintf("%s.%s[%d]", path, f.Op, i)
		if child == nil {
			// `not nil` is the canonical match-nothing filter; anywhere
			// else a null child is a construction bug.
			if f.Op == OpNot {
				continue
			}
			return invalidFilter(childPath, "null filter only valid at the root or under not")
		}
		if err := validateNode(child, childPath); err != nil {
			return err
		}
	}
	return nil
}

func invalidFilter(path, format string, args ...any) error {
	return NewInvalidInputError("invalid filter at %s: %s", path, fmt.Sprintf(format, args...))
}
