package graph

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/chazu/makertron/internal/ctxlog"
	"github.com/chazu/makertron/pkg/kernel"
)

// StuckGraphError is returned when the walk stops making progress while
// nodes are still pending, or when some node's parent reference matches no
// container so its results can never be consumed.
type StuckGraphError struct {
	Pending  []*Node
	Orphans  []*Node
	Findings []ValidationError
}

func (e *StuckGraphError) Error() string {
	names := make([]string, 0, len(e.Pending)+len(e.Orphans))
	for _, n := range append(append([]*Node(nil), e.Pending...), e.Orphans...) {
		names = append(names, n.String())
	}
	msg := fmt.Sprintf("graph: stuck with %d unresolved and %d orphaned node(s): %s",
		len(e.Pending), len(e.Orphans), strings.Join(names, ", "))
	for _, f := range e.Findings {
		if f.Severity == SeverityError {
			return msg + ": " + f.Message
		}
	}
	return msg
}

// KernelError wraps a failed kernel call made while resolving a node.
type KernelError struct {
	Node NodeID
	Kind Kind
	Op   string
	Err  error
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("graph: %s %s: kernel %s: %v", e.Kind, e.Node, e.Op, e.Err)
}

func (e *KernelError) Unwrap() error { return e.Err }

// Stats describes one Resolve call.
type Stats struct {
	Passes   int // scans of the whole graph, including the final idle one
	Resolved int // nodes resolved across all passes
}

// Resolver drives a Graph to completion through a kernel.
type Resolver struct {
	Kernel kernel.Kernel
	// Log receives warnings meant for the script author. It may be nil.
	Log func(args ...any)
}

// NewResolver returns a Resolver using k for every container action.
func NewResolver(k kernel.Kernel) *Resolver {
	return &Resolver{Kernel: k}
}

// Resolve repeatedly scans g, resolving every container whose children are
// all done. A resolution is visible to the rest of the same pass. A pass
// that resolves nothing ends the walk: it succeeds if nothing is pending or
// orphaned and returns a *StuckGraphError otherwise. Resolving an already complete graph
// takes one idle pass.
func (r *Resolver) Resolve(ctx context.Context, g *Graph) (Stats, error) {
	var stats Stats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Passes++

		progress := 0
		var failed error
		g.Walk(func(n *Node) bool {
			if n.done {
				return true
			}
			inputs, ready := g.ChildrenComplete(n)
			if !ready {
				return true
			}
			results, err := r.apply(ctx, n, inputs)
			if err != nil {
				failed = err
				return false
			}
			n.resolve(results)
			progress++
			return true
		})
		stats.Resolved += progress
		if failed != nil {
			return stats, failed
		}
		if progress == 0 {
			break
		}
	}

	pending, orphans := g.Pending(), g.Orphans()
	if len(pending) > 0 || len(orphans) > 0 {
		return stats, &StuckGraphError{Pending: pending, Orphans: orphans, Findings: Validate(g)}
	}
	return stats, nil
}

// apply runs the node's container action over its children's results.
func (r *Resolver) apply(ctx context.Context, n *Node, inputs []kernel.Solid) ([]kernel.Solid, error) {
	switch n.Kind {
	case KindTranslate:
		v := transformVector(n)
		return r.each(n, "translate", inputs, func(s kernel.Solid) (kernel.Solid, error) {
			return r.Kernel.Translate(s, v[0], v[1], v[2])
		})

	case KindRotate:
		v := transformVector(n)
		rad := Vec3{v[0] * math.Pi / 180, v[1] * math.Pi / 180, v[2] * math.Pi / 180}
		return r.each(n, "rotate", inputs, func(s kernel.Solid) (kernel.Solid, error) {
			out, err := r.Kernel.RotateX(s, rad[0])
			if err != nil {
				return nil, err
			}
			if out, err = r.Kernel.RotateY(out, rad[1]); err != nil {
				return nil, err
			}
			return r.Kernel.RotateZ(out, rad[2])
		})

	case KindLinearExtrude:
		args, _ := n.Args.(ExtrudeArgs)
		return r.each(n, "extrude", inputs, func(s kernel.Solid) (kernel.Solid, error) {
			out, err := r.Kernel.Extrude(args.Height, s)
			if err != nil || !args.Center {
				return out, err
			}
			return r.Kernel.Translate(out, 0, 0, -args.Height/2)
		})

	case KindUnion:
		return r.fold(ctx, n, "union", inputs, r.Kernel.Union)
	case KindIntersection:
		return r.fold(ctx, n, "intersection", inputs, r.Kernel.Intersection)
	case KindDifference:
		return r.fold(ctx, n, "difference", inputs, r.Kernel.Difference)
	}
	return nil, &KernelError{Node: n.ID, Kind: n.Kind, Op: "resolve", Err: fmt.Errorf("%s is not a container", n.Kind)}
}

func transformVector(n *Node) Vec3 {
	if args, ok := n.Args.(TransformArgs); ok {
		return args.Vector
	}
	return Vec3{}
}

// each maps fn over every input independently, preserving order.
func (r *Resolver) each(n *Node, op string, inputs []kernel.Solid, fn func(kernel.Solid) (kernel.Solid, error)) ([]kernel.Solid, error) {
	out := make([]kernel.Solid, 0, len(inputs))
	for _, s := range inputs {
		res, err := fn(s)
		if err != nil {
			return nil, &KernelError{Node: n.ID, Kind: n.Kind, Op: op, Err: err}
		}
		out = append(out, res)
	}
	return out, nil
}

// fold reduces the inputs left to right through a binary combinator, so
// difference(a, b, c) is (a - b) - c.
func (r *Resolver) fold(ctx context.Context, n *Node, op string, inputs []kernel.Solid, combine func(a, b kernel.Solid) (kernel.Solid, error)) ([]kernel.Solid, error) {
	if len(inputs) == 0 {
		ctxlog.FromContext(ctx).Warn("container has no children", "node", n.ID, "kind", n.Kind, "pos", n.Pos)
		if r.Log != nil {
			r.Log(fmt.Sprintf("WARNING: line %d: %s has no children", n.Pos.Line, n.Kind))
		}
		return nil, nil
	}
	acc := inputs[0]
	for _, s := range inputs[1:] {
		next, err := combine(acc, s)
		if err != nil {
			return nil, &KernelError{Node: n.ID, Kind: n.Kind, Op: op, Err: err}
		}
		acc = next
	}
	return []kernel.Solid{acc}, nil
}
