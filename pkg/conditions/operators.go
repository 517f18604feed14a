package conditions

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Supported comparison operators.
const (
	OperatorEquals      = "equals"
	OperatorNotEquals   = "not_equals"
	OperatorGreaterThan = "greater_than"
	OperatorLessThan    = "less_than"
	OperatorContains    = "contains"
	OperatorNotContains = "not_contains"
	OperatorExists      = "exists"
	OperatorNotExists   = "not_exists"
)

// Compare applies operator to a resolved profile value and the configured value.
// Unknown operators never match.
func Compare(operator string, actual, expected any) bool {
	switch operator {
	case OperatorEquals:
		return StrictEqual(actual, expected)
	case OperatorNotEquals:
		return !StrictEqual(actual, expected)
	case OperatorGreaterThan:
		l, r := toNumber(actual), toNumber(expected)

		return l > r
	case OperatorLessThan:
		l, r := toNumber(actual), toNumber(expected)

		return l < r
	case OperatorContains:
		return contains(actual, expected)
	case OperatorNotContains:
		return !contains(actual, expected)
	case OperatorExists:
		return actual != nil
	case OperatorNotExists:
		return actual == nil
	default:
		return false
	}
}

// StrictEqual compares two decoded values without type coercion. Numbers of any Go
// numeric kind compare by value; maps and slices are never equal.
func StrictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if af, ok := numeric(a); ok {
		bf, ok := numeric(b)

		return ok && af == bf
	}

	switch reflect.TypeOf(a).Kind() {
	case reflect.Map, reflect.Slice, reflect.Func:
		return false
	}

	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}

	return a == b
}

func contains(actual, expected any) bool {
	if list, ok := actual.([]any); ok {
		for _, item := range list {
			if StrictEqual(item, expected) {
				return true
			}
		}

		return false
	}

	if actual == nil {
		return false
	}

	return strings.Contains(toString(actual), toString(expected))
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// toNumber coerces a value to a number. Missing values count as 0. Unparsable
// strings and composite values become NaN, so every ordered comparison against
// them is false.
func toNumber(v any) float64 {
	if n, ok := numeric(v); ok {
		return n
	}

	switch x := v.(type) {
	case nil:
		return 0
	case bool:
		if x {
			return 1
		}

		return 0
	case string:
		trimmed := strings.TrimSpace(x)
		if trimmed == "" {
			return 0
		}

		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}

		return n
	default:
		return math.NaN()
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
