package script

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"
)

// ParseLisp compiles source in the Lisp dialect. The program runs inside a
// fresh zygomys sandbox; shape builtins record module calls instead of
// building geometry, so the result is an ordinary Program.
//
//	(difference
//	  (cube :size [10 10 10] :center true)
//	  (sphere :r 6))
//
// Keyword arguments map to named arguments, shape arguments become
// children and every other positional argument is passed positionally.
// Shapes that are never passed to another shape become top-level
// statements in creation order. When ctx ends, the sandbox stops at its
// next function call.
func ParseLisp(ctx context.Context, source string) (*Program, error) {
	type result struct {
		prog *Program
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		prog, err := evalLisp(ctx, source)
		ch <- result{prog, err}
	}()

	select {
	case res := <-ch:
		return res.prog, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// errLispCanceled unwinds a sandbox run whose context is done.
var errLispCanceled = errors.New("lisp evaluation canceled")

func evalLisp(ctx context.Context, source string) (prog *Program, err error) {
	if strings.TrimSpace(source) == "" {
		return &Program{}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			if r == errLispCanceled {
				prog, err = nil, ctx.Err()
				return
			}
			prog, err = nil, &CompileError{Msg: fmt.Sprintf("panic during evaluation: %v", r)}
		}
	}()

	// Sandbox mode keeps scripts away from the filesystem and syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	// The sandbox has no interrupt; every function call checks ctx instead.
	env.AddPreHook(func(*zygo.Zlisp, string, []zygo.Sexp) {
		if ctx.Err() != nil {
			panic(errLispCanceled)
		}
	})

	rec := &recorder{}
	rec.register(env)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err)
	}
	if _, err := env.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, parseZygomysError(err)
	}
	return rec.program(), nil
}

// ---------------------------------------------------------------------------
// Recording shape calls
// ---------------------------------------------------------------------------

// sexpStmt carries a recorded statement through the zygomys environment.
type sexpStmt struct {
	stmt     Stmt
	consumed bool
}

func (s *sexpStmt) SexpString(ps *zygo.PrintState) string {
	if m, ok := s.stmt.(*ModuleCall); ok {
		return fmt.Sprintf("(%s ...)", m.Name)
	}
	return "(stmt)"
}
func (s *sexpStmt) Type() *zygo.RegisteredType { return nil }

// recorder collects statements in creation order. The sandbox does not
// expose source positions to builtins, so recorded calls carry none.
type recorder struct {
	stmts []*sexpStmt
}

func (r *recorder) register(env *zygo.Zlisp) {
	for _, name := range []string{
		"cube", "sphere", "cylinder", "polyhedron", "polygon", "circle",
		"union", "intersection", "difference", "translate", "rotate",
	} {
		env.AddFunction(name, r.shape)
	}
	// linear_extrude is spelled linear-extrude in Lisp; the preprocessor
	// turns it back into an underscore.
	env.AddFunction("linear_extrude", r.shape)

	env.AddFunction("echo", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		call := &ModuleCall{node: node{}, Name: "echo"}
		for _, a := range args {
			v, err := toValue(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("echo: %w", err)
			}
			call.Args = append(call.Args, Arg{Value: &Lit{node: call.node, Val: v}})
		}
		r.stmts = append(r.stmts, &sexpStmt{stmt: call})
		return zygo.SexpNull, nil
	})
}

// shape records one module call.
func (r *recorder) shape(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	pa := parseArgs(args)
	call := &ModuleCall{node: node{}, Name: name}

	for _, a := range pa.positional {
		if child, ok := a.(*sexpStmt); ok {
			child.consumed = true
			call.Children = append(call.Children, child.stmt)
			continue
		}
		v, err := toValue(a)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
		}
		call.Args = append(call.Args, Arg{Value: &Lit{node: call.node, Val: v}})
	}

	// Map iteration order is random; keep named arguments stable.
	names := make([]string, 0, len(pa.kw))
	for k := range pa.kw {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		v, err := toValue(pa.kw[k])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %s: %w", name, k, err)
		}
		call.Args = append(call.Args, Arg{Name: k, Value: &Lit{node: call.node, Val: v}})
	}

	s := &sexpStmt{stmt: call}
	r.stmts = append(r.stmts, s)
	return s, nil
}

// program returns the unconsumed statements in creation order.
func (r *recorder) program() *Program {
	prog := &Program{}
	for _, s := range r.stmts {
		if !s.consumed {
			prog.Stmts = append(prog.Stmts, s.stmt)
		}
	}
	return prog
}

// toValue converts a zygomys value into a script Value.
func toValue(s zygo.Sexp) (Value, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpStr:
		if name, ok := isKW(v); ok {
			return name, nil
		}
		return v.S, nil
	case *sexpStmt:
		return nil, fmt.Errorf("a shape cannot be used as a value")
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, fmt.Errorf("unsupported value %s", s.SexpString(nil))
	}
	out := make([]Value, len(items))
	for i, it := range items {
		if out[i], err = toValue(it); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites Lisp source before handing it to zygomys:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords need
//     no global symbols.
//  2. kebab-case identifiers become snake_case, since zygomys reads a
//     hyphen as subtraction.
//  3. ; line comments become // comments.
//
// String literals are left alone.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			// Preserve :=
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kw := strings.ReplaceAll(string(b[i+1:j]), "-", "_")
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, kw...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// A hyphen between identifier characters is part of a name, not
		// a minus.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isLetter(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Argument helpers
// ---------------------------------------------------------------------------

// kwPrefix marks keyword names rewritten by preprocessSource.
const kwPrefix = "__kw_"

func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds a mixed positional and keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates keyword arguments from positional ones.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// A trailing keyword is a flag.
				result.kw[name] = &zygo.SexpBool{Val: true}
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// sexpListToSlice converts a list or array to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// "Error on line N: ..."
	linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)
	// "line N: ..."
	linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)
)

// parseZygomysError turns a zygomys error into a CompileError, keeping the
// line number when the message carries one.
func parseZygomysError(err error) *CompileError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return &CompileError{Line: line, Msg: strings.TrimSpace(m[2])}
		}
	}
	return &CompileError{Msg: strings.TrimSpace(msg)}
}
