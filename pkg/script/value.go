package script

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a runtime value: nil (undef), float64, bool, string, []Value or
// Range.
type Value any

// Range is an arithmetic sequence from Start to End inclusive.
type Range struct {
	Start, Step, End float64
}

// Len returns the number of elements in the range.
func (r Range) Len() int {
	if r.Step == 0 || (r.Step > 0 && r.Start > r.End) || (r.Step < 0 && r.Start < r.End) {
		return 0
	}
	return int(math.Floor((r.End-r.Start)/r.Step+1e-9)) + 1
}

// At returns the i-th element.
func (r Range) At(i int) float64 {
	return r.Start + float64(i)*r.Step
}

func truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case []Value:
		return len(x) > 0
	case Range:
		return true
	}
	return false
}

func typeName(v Value) string {
	switch v.(type) {
	case nil:
		return "undef"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []Value:
		return "vector"
	case Range:
		return "range"
	}
	return fmt.Sprintf("%T", v)
}

func formatNumber(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "nan"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Format renders a value the way echo prints it.
func Format(v Value) string {
	switch x := v.(type) {
	case nil:
		return "undef"
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return formatNumber(x)
	case string:
		return strconv.Quote(x)
	case []Value:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = Format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Range:
		return fmt.Sprintf("[%s : %s : %s]", formatNumber(x.Start), formatNumber(x.Step), formatNumber(x.End))
	}
	return fmt.Sprint(v)
}

func equal(a, b Value) bool {
	switch x := a.(type) {
	case []Value:
		y, ok := b.([]Value)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Range:
		y, ok := b.(Range)
		return ok && x == y
	}
	return a == b
}

// elements expands an iterable value for a for loop. A scalar iterates once.
func elements(v Value) []Value {
	switch x := v.(type) {
	case nil:
		return nil
	case []Value:
		return x
	case Range:
		n := x.Len()
		out := make([]Value, n)
		for i := 0; i < n; i++ {
			out[i] = x.At(i)
		}
		return out
	}
	return []Value{v}
}
