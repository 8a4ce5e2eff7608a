// internal/expr/evaluate.go
package expr

import (
	"reflect"

	"github.com/openbenefits/medscreen/internal/types"
)

/*
 * Expression evaluation.
 *
 * Evaluate is a pure, synchronous function of (tree, snapshot): no I/O, no
 * shared state, safe for concurrent use. Missing answer keys never raise;
 * any comparison touching an absent value evaluates to false so visibility
 * and navigation rules degrade gracefully before upstream data is collected.
 *
 * Numeric mixing: snapshots may carry int, int64 or float64 depending on
 * source (JSON unmarshal vs repository rows); comparisons normalize through
 * float64 the same way on both sides.
 */

// Evaluate computes the value of a validated node tree against answers.
// Operator applications yield bool; literals and variables yield their value
// (nil for an absent variable).
func Evaluate(n *Node, answers types.AnswerSnapshot) any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindLiteral:
		return n.Value
	case KindVariable:
		v, ok := answers.Lookup(n.Key)
		if !ok {
			return nil
		}
		return v
	default:
		return evalOp(n, answers)
	}
}

// EvaluateBool evaluates the tree and applies the truthiness rules to the
// result. This is the entry point for visibility and navigation conditions.
func EvaluateBool(n *Node, answers types.AnswerSnapshot) bool {
	return Truthy(Evaluate(n, answers))
}

func evalOp(n *Node, answers types.AnswerSnapshot) bool {
	switch n.Op {
	case OpAnd:
		for _, c := range n.Children {
			if !Truthy(Evaluate(c, answers)) {
				return false
			}
		}
		return true

	case OpOr:
		for _, c := range n.Children {
			if Truthy(Evaluate(c, answers)) {
				return true
			}
		}
		return false

	case OpIn:
		left := Evaluate(n.Children[0], answers)
		if left == nil {
			return false
		}
		list, ok := Evaluate(n.Children[1], answers).([]any)
		if !ok {
			return false
		}
		for _, elem := range list {
			if equalValues(left, elem) {
				return true
			}
		}
		return false

	default:
		left := Evaluate(n.Children[0], answers)
		right := Evaluate(n.Children[1], answers)
		// Absent operand: the whole comparison is false, including !=.
		if left == nil || right == nil {
			return false
		}
		switch n.Op {
		case OpEq:
			return equalValues(left, right)
		case OpNeq:
			return !equalValues(left, right)
		case OpGt:
			return orderedCompare(left, right, func(c int) bool { return c > 0 })
		case OpLt:
			return orderedCompare(left, right, func(c int) bool { return c < 0 })
		case OpGte:
			return orderedCompare(left, right, func(c int) bool { return c >= 0 })
		case OpLte:
			return orderedCompare(left, right, func(c int) bool { return c <= 0 })
		default:
			// Unknown operators are rejected at parse/decode time.
			return false
		}
	}
}

// Truthy maps an arbitrary evaluation result to a boolean: nil/absent,
// numeric zero, empty string and empty collection are false; booleans are
// themselves; everything else is true.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	default:
		return true
	}
}

// equalValues performs equality with numeric type mixing. Values whose
// dynamic type does not support == (lists, objects) are never equal to
// anything; list membership goes through IN. Snapshots built from decoded
// JSON bodies can carry such values, so == on raw interfaces must not run
// unless both sides are comparable.
func equalValues(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	if !comparableValue(a) || !comparableValue(b) {
		return false
	}
	return a == b
}

func comparableValue(v any) bool {
	return v == nil || reflect.TypeOf(v).Comparable()
}

// orderedCompare applies cmp to the three-way numeric comparison of a and b.
// Incomparable operands (either side non-numeric) yield false rather than
// an arbitrary ordering.
func orderedCompare(a, b any, cmp func(int) bool) bool {
	na, nb, ok := asNumbers(a, b)
	if !ok {
		return false
	}
	switch {
	case na < nb:
		return cmp(-1)
	case na > nb:
		return cmp(1)
	default:
		return cmp(0)
	}
}

// asNumbers attempts to convert both values to float64 for numeric
// comparison. Returns converted values and success flag.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts value to float64 if it is a numeric type.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
