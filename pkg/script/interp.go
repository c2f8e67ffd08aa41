package script

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/makertron/internal/ctxlog"
	"github.com/chazu/makertron/pkg/graph"
	"github.com/chazu/makertron/pkg/kernel"
)

// DefaultMaxIterations caps the total number of loop iterations per run.
const DefaultMaxIterations = 10000

// Options tunes one Run.
type Options struct {
	// MaxIterations caps loop iterations across the whole program.
	// Zero means DefaultMaxIterations.
	MaxIterations int
	// Log receives echo output and script warnings destined for the
	// caller. It may be nil.
	Log func(args ...any)
}

type interp struct {
	ctx   context.Context
	b     *graph.Builder
	k     kernel.Kernel
	opts  Options
	iters int
}

// Run interprets prog, recording every operation into b. Leaves are built
// through k as they are reached; containers are left for the resolver.
func Run(ctx context.Context, prog *Program, b *graph.Builder, k kernel.Kernel, opts Options) error {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	in := &interp{ctx: ctx, b: b, k: k, opts: opts}
	return in.stmts(prog.Stmts, newScope(nil))
}

func (in *interp) log(args ...any) {
	if in.opts.Log != nil {
		in.opts.Log(args...)
	}
}

// warn reports a non-fatal problem to the server log and the caller.
func (in *interp) warn(p Pos, msg string) {
	ctxlog.FromContext(in.ctx).Warn("script warning", "pos", p, "msg", msg)
	in.log(fmt.Sprintf("WARNING: line %d: %s", p.Line, msg))
}

func (in *interp) stmts(list []Stmt, sc *scope) error {
	for _, s := range list {
		if err := in.stmt(s, sc); err != nil {
			return err
		}
	}
	return nil
}

func (in *interp) stmt(s Stmt, sc *scope) error {
	if s == nil {
		return nil
	}
	if err := in.ctx.Err(); err != nil {
		return err
	}

	switch x := s.(type) {
	case *Assign:
		v, err := in.eval(x.Value, sc)
		if err != nil {
			return err
		}
		sc.set(x.Name, v)
		return nil

	case *Block:
		return in.stmts(x.Stmts, newScope(sc))

	case *If:
		c, err := in.eval(x.Cond, sc)
		if err != nil {
			return err
		}
		if truthy(c) {
			return in.stmt(x.Then, newScope(sc))
		}
		return in.stmt(x.Else, newScope(sc))

	case *For:
		return in.forStmt(x, sc)

	case *ModuleCall:
		return in.module(x, sc)
	}
	return compileErrorf(s.Position(), "unsupported statement %T", s)
}

func (in *interp) forStmt(x *For, sc *scope) error {
	iter, err := in.eval(x.Iter, sc)
	if err != nil {
		return err
	}
	if r, ok := iter.(Range); ok && in.iters+r.Len() > in.opts.MaxIterations {
		return in.tooManyIterations(x.At)
	}
	for _, v := range elements(iter) {
		in.iters++
		if in.iters > in.opts.MaxIterations {
			return in.tooManyIterations(x.At)
		}
		body := newScope(sc)
		body.set(x.Var, v)
		if err := in.stmt(x.Body, body); err != nil {
			return err
		}
	}
	return nil
}

func (in *interp) tooManyIterations(p Pos) error {
	return compileErrorf(p, "loop iteration limit of %d exceeded", in.opts.MaxIterations)
}

// module dispatches a module instantiation.
func (in *interp) module(x *ModuleCall, sc *scope) error {
	if x.Name == "echo" {
		return in.echo(x, sc)
	}
	kind, ok := graph.ParseKind(x.Name)
	if !ok {
		return compileErrorf(x.At, "unknown module %s", x.Name)
	}
	args, err := in.bindArgs(x, sc)
	if err != nil {
		return err
	}

	if kind.IsLeaf() {
		if len(x.Children) > 0 {
			return compileErrorf(x.At, "%s does not take children", x.Name)
		}
		solids, err := in.buildLeaf(kind, x.At, args)
		if err != nil {
			return err
		}
		_, err = in.b.EmitLeaf(kind, solids, x.At)
		return err
	}

	nodeArgs, err := containerArgs(kind, x.At, args)
	if err != nil {
		return err
	}
	if _, err := in.b.OpenContainer(kind, nodeArgs, x.At); err != nil {
		return compileErrorf(x.At, "%v", err)
	}
	if err := in.stmts(x.Children, newScope(sc)); err != nil {
		return err
	}
	if err := in.b.CloseContainer(x.At); err != nil {
		return compileErrorf(x.At, "%v", err)
	}
	return nil
}

func (in *interp) echo(x *ModuleCall, sc *scope) error {
	parts := make([]string, 0, len(x.Args))
	for _, a := range x.Args {
		v, err := in.eval(a.Value, sc)
		if err != nil {
			return err
		}
		if a.Name != "" {
			parts = append(parts, a.Name+" = "+Format(v))
		} else {
			parts = append(parts, Format(v))
		}
	}
	msg := "ECHO: " + strings.Join(parts, ", ")
	ctxlog.FromContext(in.ctx).Debug("echo", "pos", x.At, "msg", msg)
	in.log(msg)
	return nil
}

// args holds evaluated module arguments.
type args struct {
	positional []Value
	named      map[string]Value
}

// get returns the named argument, else the positional one at index i
// (i < 0 disables the positional fallback).
func (a args) get(name string, i int) (Value, bool) {
	if v, ok := a.named[name]; ok {
		return v, true
	}
	if i >= 0 && i < len(a.positional) {
		return a.positional[i], true
	}
	return nil, false
}

func (a args) has(name string) bool {
	_, ok := a.named[name]
	return ok
}

func (in *interp) bindArgs(x *ModuleCall, sc *scope) (args, error) {
	out := args{named: make(map[string]Value)}
	for _, a := range x.Args {
		v, err := in.eval(a.Value, sc)
		if err != nil {
			return out, err
		}
		if a.Name == "" {
			out.positional = append(out.positional, v)
		} else {
			out.named[a.Name] = v
		}
	}
	return out, nil
}

// containerArgs decodes the parameters of translate, rotate and
// linear_extrude. Booleans take none.
func containerArgs(kind graph.Kind, p Pos, a args) (graph.NodeArgs, error) {
	switch kind {
	case graph.KindTranslate:
		v, ok := a.get("v", 0)
		if !ok {
			return nil, compileErrorf(p, "translate needs a vector")
		}
		vec, err := vec3(v, 0)
		if err != nil {
			return nil, compileErrorf(p, "translate: %v", err)
		}
		return graph.TransformArgs{Vector: vec}, nil

	case graph.KindRotate:
		if a.has("v") || len(a.positional) > 1 {
			return nil, compileErrorf(p, "rotate about an arbitrary axis is not supported")
		}
		v, ok := a.get("a", 0)
		if !ok {
			return nil, compileErrorf(p, "rotate needs an angle")
		}
		if f, ok := v.(float64); ok {
			if !finite(f) {
				return nil, compileErrorf(p, "rotate: angle must be finite, got %s", formatNumber(f))
			}
			return graph.TransformArgs{Vector: graph.Vec3{0, 0, f}}, nil
		}
		vec, err := vec3(v, 0)
		if err != nil {
			return nil, compileErrorf(p, "rotate: %v", err)
		}
		return graph.TransformArgs{Vector: vec}, nil

	case graph.KindLinearExtrude:
		v, ok := a.get("height", 0)
		if !ok {
			return nil, compileErrorf(p, "linear_extrude needs a height")
		}
		h, ok := v.(float64)
		if !ok || !positive(h) {
			return nil, compileErrorf(p, "linear_extrude: height must be a positive finite number, got %s", Format(v))
		}
		center, err := flag(a, "center", 1)
		if err != nil {
			return nil, compileErrorf(p, "linear_extrude: %v", err)
		}
		return graph.ExtrudeArgs{Height: h, Center: center}, nil
	}
	return nil, nil
}

// flag reads an optional boolean argument.
func flag(a args, name string, i int) (bool, error) {
	v, ok := a.get(name, i)
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean, got %s", name, typeName(v))
	}
	return b, nil
}

// vec3 converts a 2- or 3-element numeric vector, padding z with pad.
func vec3(v Value, pad float64) (graph.Vec3, error) {
	list, ok := v.([]Value)
	if !ok || len(list) < 2 || len(list) > 3 {
		return graph.Vec3{}, fmt.Errorf("expected a 2- or 3-vector, got %s", Format(v))
	}
	out := graph.Vec3{0, 0, pad}
	for i, e := range list {
		f, ok := e.(float64)
		if !ok {
			return graph.Vec3{}, fmt.Errorf("element %d is %s, not a number", i, typeName(e))
		}
		if !finite(f) {
			return graph.Vec3{}, fmt.Errorf("element %d must be finite, got %s", i, formatNumber(f))
		}
		out[i] = f
	}
	return out, nil
}

// asKernelError keeps kernel failures distinguishable from script errors.
func asKernelError(kind graph.Kind, p Pos, err error) error {
	var ce *CompileError
	var ve *ValidationError
	if errors.As(err, &ce) || errors.As(err, &ve) {
		return err
	}
	return &graph.KernelError{Kind: kind, Node: graph.NodeID(fmt.Sprintf("%s@%s", kind, p)), Op: kind.String(), Err: err}
}
