package script

import (
	"math"
)

// scope is a lexical variable frame.
type scope struct {
	vars   map[string]Value
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]Value), parent: parent}
}

func (s *scope) lookup(name string) (Value, bool) {
	for f := s; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (s *scope) set(name string, v Value) { s.vars[name] = v }

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

// eval evaluates an expression. Unknown variables are undef, as in
// OpenSCAD; type errors are compile errors.
func (in *interp) eval(e Expr, sc *scope) (Value, error) {
	switch x := e.(type) {
	case *Lit:
		return x.Val, nil

	case *Ident:
		v, ok := sc.lookup(x.Name)
		if !ok {
			in.warn(x.At, "unknown variable "+x.Name)
		}
		return v, nil

	case *VectorExpr:
		out := make([]Value, 0, len(x.Elems))
		for _, el := range x.Elems {
			v, err := in.eval(el, sc)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case *RangeExpr:
		start, err := in.number(x.Start, sc)
		if err != nil {
			return nil, err
		}
		end, err := in.number(x.End, sc)
		if err != nil {
			return nil, err
		}
		step := 1.0
		if x.Step != nil {
			if step, err = in.number(x.Step, sc); err != nil {
				return nil, err
			}
			if step == 0 {
				return nil, compileErrorf(x.At, "range step must not be zero")
			}
		} else if start > end {
			// [a:b] with a > b counts down.
			step = -1
		}
		return Range{Start: start, Step: step, End: end}, nil

	case *Unary:
		v, err := in.eval(x.X, sc)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case "!":
			return !truthy(v), nil
		case "+":
			return v, nil
		case "-":
			return negate(x.At, v)
		}

	case *Binary:
		return in.binary(x, sc)

	case *Ternary:
		c, err := in.eval(x.Cond, sc)
		if err != nil {
			return nil, err
		}
		if truthy(c) {
			return in.eval(x.Then, sc)
		}
		return in.eval(x.Else, sc)

	case *IndexExpr:
		v, err := in.eval(x.X, sc)
		if err != nil {
			return nil, err
		}
		i, err := in.number(x.Index, sc)
		if err != nil {
			return nil, err
		}
		return index(v, int(i)), nil

	case *CallExpr:
		return in.call(x, sc)
	}
	return nil, compileErrorf(e.Position(), "unsupported expression %T", e)
}

func (in *interp) number(e Expr, sc *scope) (float64, error) {
	v, err := in.eval(e, sc)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, compileErrorf(e.Position(), "expected number, got %s", typeName(v))
	}
	return f, nil
}

func index(v Value, i int) Value {
	switch x := v.(type) {
	case []Value:
		if i >= 0 && i < len(x) {
			return x[i]
		}
	case string:
		if i >= 0 && i < len(x) {
			return string(x[i])
		}
	case Range:
		if i >= 0 && i < x.Len() {
			return x.At(i)
		}
	}
	return nil
}

func negate(p Pos, v Value) (Value, error) {
	switch x := v.(type) {
	case float64:
		return -x, nil
	case []Value:
		out := make([]Value, len(x))
		for i, e := range x {
			n, err := negate(p, e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case nil:
		return nil, nil
	}
	return nil, compileErrorf(p, "cannot negate %s", typeName(v))
}

func (in *interp) binary(x *Binary, sc *scope) (Value, error) {
	l, err := in.eval(x.L, sc)
	if err != nil {
		return nil, err
	}
	// && and || short-circuit.
	switch x.Op {
	case "&&":
		if !truthy(l) {
			return false, nil
		}
		r, err := in.eval(x.R, sc)
		return truthy(r), err
	case "||":
		if truthy(l) {
			return true, nil
		}
		r, err := in.eval(x.R, sc)
		return truthy(r), err
	}

	r, err := in.eval(x.R, sc)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case "==":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	case "<", "<=", ">", ">=":
		return compare(x, l, r)
	}
	return arith(x, l, r)
}

func compare(x *Binary, l, r Value) (Value, error) {
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			return cmpResult(x.Op, compareStrings(ls, rs)), nil
		}
	}
	lf, lok := l.(float64)
	rf, rok := r.(float64)
	if !lok || !rok {
		return nil, compileErrorf(x.At, "cannot compare %s %s %s", typeName(l), x.Op, typeName(r))
	}
	switch {
	case lf < rf:
		return cmpResult(x.Op, -1), nil
	case lf > rf:
		return cmpResult(x.Op, 1), nil
	}
	return cmpResult(x.Op, 0), nil
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpResult(op string, c int) bool {
	switch op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	}
	return c >= 0
}

// arith applies + - * / % to numbers, element-wise to equal-length vectors,
// and scales vectors by numbers.
func arith(x *Binary, l, r Value) (Value, error) {
	switch lv := l.(type) {
	case float64:
		switch rv := r.(type) {
		case float64:
			return scalarOp(x.Op, lv, rv), nil
		case []Value:
			if x.Op == "*" {
				return mapVector(x, rv, func(e Value) (Value, error) { return arith(x, lv, e) })
			}
		}
	case []Value:
		switch rv := r.(type) {
		case float64:
			if x.Op == "*" || x.Op == "/" {
				return mapVector(x, lv, func(e Value) (Value, error) { return arith(x, e, rv) })
			}
		case []Value:
			if (x.Op == "+" || x.Op == "-") && len(lv) == len(rv) {
				out := make([]Value, len(lv))
				for i := range lv {
					v, err := arith(x, lv[i], rv[i])
					if err != nil {
						return nil, err
					}
					out[i] = v
				}
				return out, nil
			}
			if x.Op == "*" && len(lv) == len(rv) {
				return dot(x, lv, rv)
			}
		}
	case string:
		if rs, ok := r.(string); ok && x.Op == "+" {
			return lv + rs, nil
		}
	case nil:
		return nil, nil
	}
	if r == nil {
		return nil, nil
	}
	return nil, compileErrorf(x.At, "cannot apply %s to %s and %s", x.Op, typeName(l), typeName(r))
}

func scalarOp(op string, a, b float64) float64 {
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		return a / b
	}
	return math.Mod(a, b)
}

func mapVector(x *Binary, v []Value, fn func(Value) (Value, error)) (Value, error) {
	out := make([]Value, len(v))
	for i, e := range v {
		r, err := fn(e)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func dot(x *Binary, a, b []Value) (Value, error) {
	sum := 0.0
	for i := range a {
		af, aok := a[i].(float64)
		bf, bok := b[i].(float64)
		if !aok || !bok {
			return nil, compileErrorf(x.At, "dot product needs numeric vectors")
		}
		sum += af * bf
	}
	return sum, nil
}
