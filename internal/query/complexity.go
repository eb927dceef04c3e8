package query

import (
	"math"
	"strconv"

	language "github.com/hanpama/chainql/internal/language"
)

// documentDepth reports the deepest field nesting in the operation,
// with fragment spreads flattened into their use sites. The validator
// has already rejected fragment cycles.
func documentDepth(doc *language.QueryDocument, op *language.OperationDefinition) int {
	return selectionDepth(doc, op.SelectionSet)
}

func selectionDepth(doc *language.QueryDocument, sel language.SelectionSet) int {
	max := 0
	for _, s := range sel {
		var d int
		switch s := s.(type) {
		case *language.Field:
			d = 1 + selectionDepth(doc, s.SelectionSet)
		case *language.InlineFragment:
			d = selectionDepth(doc, s.SelectionSet)
		case *language.FragmentSpread:
			if frag := doc.Fragments.ForName(s.Name); frag != nil {
				d = selectionDepth(doc, frag.SelectionSet)
			}
		}
		if d > max {
			max = d
		}
	}
	return max
}

// documentComplexity scores the operation by an upper bound on the
// number of entities it may touch: each field costs one, and a field's
// children are multiplied by its `first` pagination argument when one
// is given.
func documentComplexity(doc *language.QueryDocument, op *language.OperationDefinition, vars map[string]any) uint64 {
	return selectionComplexity(doc, op.SelectionSet, vars)
}

func selectionComplexity(doc *language.QueryDocument, sel language.SelectionSet, vars map[string]any) uint64 {
	var total uint64
	for _, s := range sel {
		switch s := s.(type) {
		case *language.Field:
			children := selectionComplexity(doc, s.SelectionSet, vars)
			mult := uint64(1)
			if first, ok := intArgument(s.Arguments, "first", vars); ok && first > 1 {
				mult = first
			}
			total = satAdd(total, satAdd(1, satMul(mult, children)))
		case *language.InlineFragment:
			total = satAdd(total, selectionComplexity(doc, s.SelectionSet, vars))
		case *language.FragmentSpread:
			if frag := doc.Fragments.ForName(s.Name); frag != nil {
				total = satAdd(total, selectionComplexity(doc, frag.SelectionSet, vars))
			}
		}
	}
	return total
}

// intArgument extracts a non-negative integer argument, following a
// variable reference into the request variables when needed.
func intArgument(args language.ArgumentList, name string, vars map[string]any) (uint64, bool) {
	arg := args.ForName(name)
	if arg == nil || arg.Value == nil {
		return 0, false
	}
	return intValue(arg.Value, vars)
}

func intValue(v *language.Value, vars map[string]any) (uint64, bool) {
	switch v.Kind {
	case language.IntValue:
		n, err := strconv.ParseUint(v.Raw, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case language.Variable:
		return coerceUint(vars[v.Raw])
	default:
		return 0, false
	}
}

func coerceUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case uint64:
		return n, true
	case float64:
		if n < 0 || n != math.Trunc(n) {
			return 0, false
		}
		return uint64(n), true
	case string:
		u, err := strconv.ParseUint(n, 10, 64)
		return u, err == nil
	default:
		return 0, false
	}
}

func satAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func satMul(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxUint64/b {
		return math.MaxUint64
	}
	return a * b
}
