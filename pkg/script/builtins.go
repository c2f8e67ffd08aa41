package script

import (
	"math"
	"strings"
)

// mathFn is a numeric builtin of fixed arity.
type mathFn struct {
	arity int
	fn    func(a []float64) float64
}

// Trigonometry works in degrees.
var mathBuiltins = map[string]mathFn{
	"cos":   {1, func(a []float64) float64 { return math.Cos(deg2rad(a[0])) }},
	"sin":   {1, func(a []float64) float64 { return math.Sin(deg2rad(a[0])) }},
	"tan":   {1, func(a []float64) float64 { return math.Tan(deg2rad(a[0])) }},
	"acos":  {1, func(a []float64) float64 { return rad2deg(math.Acos(a[0])) }},
	"asin":  {1, func(a []float64) float64 { return rad2deg(math.Asin(a[0])) }},
	"atan":  {1, func(a []float64) float64 { return rad2deg(math.Atan(a[0])) }},
	"atan2": {2, func(a []float64) float64 { return rad2deg(math.Atan2(a[0], a[1])) }},
	"pow":   {2, func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
	"sqrt":  {1, func(a []float64) float64 { return math.Sqrt(a[0]) }},
	"abs":   {1, func(a []float64) float64 { return math.Abs(a[0]) }},
	"floor": {1, func(a []float64) float64 { return math.Floor(a[0]) }},
	"ceil":  {1, func(a []float64) float64 { return math.Ceil(a[0]) }},
	"round": {1, func(a []float64) float64 { return math.Round(a[0]) }},
	"exp":   {1, func(a []float64) float64 { return math.Exp(a[0]) }},
	"ln":    {1, func(a []float64) float64 { return math.Log(a[0]) }},
	"sign": {1, func(a []float64) float64 {
		switch {
		case a[0] > 0:
			return 1
		case a[0] < 0:
			return -1
		}
		return 0
	}},
}

// call evaluates a builtin function.
func (in *interp) call(x *CallExpr, sc *scope) (Value, error) {
	args := make([]Value, len(x.Args))
	for i, a := range x.Args {
		if a.Name != "" {
			return nil, compileErrorf(x.At, "%s does not take named arguments", x.Name)
		}
		v, err := in.eval(a.Value, sc)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	if m, ok := mathBuiltins[x.Name]; ok {
		if len(args) != m.arity {
			return nil, compileErrorf(x.At, "%s takes %d argument(s), got %d", x.Name, m.arity, len(args))
		}
		nums := make([]float64, len(args))
		for i, a := range args {
			f, ok := a.(float64)
			if !ok {
				return nil, compileErrorf(x.At, "%s: argument %d is %s, not a number", x.Name, i+1, typeName(a))
			}
			nums[i] = f
		}
		return m.fn(nums), nil
	}

	switch x.Name {
	case "min", "max":
		return minMax(x, args)
	case "len":
		if len(args) != 1 {
			return nil, compileErrorf(x.At, "len takes 1 argument, got %d", len(args))
		}
		switch v := args[0].(type) {
		case []Value:
			return float64(len(v)), nil
		case string:
			return float64(len(v)), nil
		case Range:
			return float64(v.Len()), nil
		}
		return nil, nil
	case "norm":
		if len(args) != 1 {
			return nil, compileErrorf(x.At, "norm takes 1 argument, got %d", len(args))
		}
		v, ok := args[0].([]Value)
		if !ok {
			return nil, compileErrorf(x.At, "norm needs a vector")
		}
		sum := 0.0
		for _, e := range v {
			f, ok := e.(float64)
			if !ok {
				return nil, compileErrorf(x.At, "norm needs a numeric vector")
			}
			sum += f * f
		}
		return math.Sqrt(sum), nil
	case "str":
		var b strings.Builder
		for _, a := range args {
			if s, ok := a.(string); ok {
				b.WriteString(s)
			} else {
				b.WriteString(Format(a))
			}
		}
		return b.String(), nil
	case "concat":
		var out []Value
		for _, a := range args {
			if v, ok := a.([]Value); ok {
				out = append(out, v...)
			} else {
				out = append(out, a)
			}
		}
		if out == nil {
			out = []Value{}
		}
		return out, nil
	}
	return nil, compileErrorf(x.At, "unknown function %s", x.Name)
}

// minMax accepts either several numbers or one numeric vector.
func minMax(x *CallExpr, args []Value) (Value, error) {
	if len(args) == 1 {
		if v, ok := args[0].([]Value); ok {
			args = v
		}
	}
	if len(args) == 0 {
		return nil, nil
	}
	best := math.Inf(1)
	if x.Name == "max" {
		best = math.Inf(-1)
	}
	for i, a := range args {
		f, ok := a.(float64)
		if !ok {
			return nil, compileErrorf(x.At, "%s: argument %d is %s, not a number", x.Name, i+1, typeName(a))
		}
		if x.Name == "min" {
			best = math.Min(best, f)
		} else {
			best = math.Max(best, f)
		}
	}
	return best, nil
}
