package graph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/chazu/makertron/pkg/kernel"
	"github.com/chazu/makertron/pkg/kernel/kerneltest"
)

// leaf returns a sink for a kernel constructor's results, so calls read
// leaf(t, b, KindCube)(k.Box(...)).
func leaf(t *testing.T, b *Builder, kind Kind) func(kernel.Solid, error) {
	return func(s kernel.Solid, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("kernel: %v", err)
		}
		if _, err := b.EmitLeaf(kind, []kernel.Solid{s}, Pos{}); err != nil {
			t.Fatalf("EmitLeaf: %v", err)
		}
	}
}

func open(t *testing.T, b *Builder, kind Kind, args NodeArgs) *Node {
	t.Helper()
	n, err := b.OpenContainer(kind, args, Pos{})
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}
	return n
}

func closeC(t *testing.T, b *Builder) {
	t.Helper()
	if err := b.CloseContainer(Pos{}); err != nil {
		t.Fatalf("CloseContainer: %v", err)
	}
}

func built(t *testing.T, b *Builder) *Graph {
	t.Helper()
	g, err := b.Graph()
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	return g
}

func TestResolveLeavesOnlyOnePass(t *testing.T) {
	k := kerneltest.New()
	b := NewBuilder()
	leaf(t, b, KindCube)(k.Box(0, 0, 0, 2, 2, 2))
	leaf(t, b, KindSphere)(k.Sphere(1, 0, 0, 0))
	g := built(t, b)

	stats, err := NewResolver(k).Resolve(context.Background(), g)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if stats.Passes != 1 || stats.Resolved != 0 {
		t.Errorf("stats = %+v, want 1 pass, 0 resolved", stats)
	}
	want := []string{"box(0,0,0,2,2,2)", "sphere(1,0,0,0)"}
	if got := exprs(g.RootResults()); !equalStrings(got, want) {
		t.Errorf("RootResults() = %v, want %v", got, want)
	}
}

func TestResolvePassesBoundedByDepth(t *testing.T) {
	for depth := 1; depth <= 6; depth++ {
		k := kerneltest.New()
		b := NewBuilder()
		for i := 0; i < depth; i++ {
			open(t, b, KindTranslate, TransformArgs{Vector: Vec3{1, 0, 0}})
		}
		leaf(t, b, KindCube)(k.Box(0, 0, 0, 1, 1, 1))
		for i := 0; i < depth; i++ {
			closeC(t, b)
		}
		g := built(t, b)

		stats, err := NewResolver(k).Resolve(context.Background(), g)
		if err != nil {
			t.Fatalf("depth %d: Resolve: %v", depth, err)
		}
		if stats.Passes > depth+1 {
			t.Errorf("depth %d: %d passes, want at most %d", depth, stats.Passes, depth+1)
		}
		if stats.Resolved != depth {
			t.Errorf("depth %d: resolved %d, want %d", depth, stats.Resolved, depth)
		}
		min, _ := g.RootResults()[0].BoundingBox()
		if min[0] != float64(depth) {
			t.Errorf("depth %d: translated min x = %v, want %d", depth, min[0], depth)
		}
	}
}

func TestResolveStuckOnDanglingParent(t *testing.T) {
	k := kerneltest.New()
	g := New()
	orphan := &Node{ID: "union-7", Kind: KindUnion, Parent: ParentRef{Kind: KindDifference, ID: "difference-99"}}
	g.Push(1, orphan)

	_, err := NewResolver(k).Resolve(context.Background(), g)
	var stuck *StuckGraphError
	if !errors.As(err, &stuck) {
		t.Fatalf("err = %v, want *StuckGraphError", err)
	}
	if len(stuck.Orphans) != 1 || stuck.Orphans[0] != orphan {
		t.Errorf("orphans = %v, want [%v]", stuck.Orphans, orphan)
	}
	if !strings.Contains(err.Error(), "difference/difference-99 does not exist") {
		t.Errorf("error %q should explain the dangling parent", err)
	}
}

func TestResolveStuckOnCycle(t *testing.T) {
	k := kerneltest.New()
	g := New()
	a := &Node{ID: "union-1", Kind: KindUnion, Parent: ParentRef{Kind: KindUnion, ID: "union-2"}}
	c := &Node{ID: "union-2", Kind: KindUnion, Parent: ParentRef{Kind: KindUnion, ID: "union-1"}}
	g.Push(0, a)
	g.Push(1, c)

	stats, err := NewResolver(k).Resolve(context.Background(), g)
	var stuck *StuckGraphError
	if !errors.As(err, &stuck) {
		t.Fatalf("err = %v, want *StuckGraphError", err)
	}
	if stats.Passes != 1 {
		t.Errorf("passes = %d, want 1", stats.Passes)
	}
	if len(stuck.Pending) != 2 {
		t.Errorf("pending = %d nodes, want 2", len(stuck.Pending))
	}
}

func TestResolveIdempotent(t *testing.T) {
	k := kerneltest.New()
	b := NewBuilder()
	open(t, b, KindUnion, nil)
	leaf(t, b, KindCube)(k.Box(0, 0, 0, 1, 1, 1))
	leaf(t, b, KindSphere)(k.Sphere(1, 0, 0, 0))
	closeC(t, b)
	g := built(t, b)

	r := NewResolver(k)
	if _, err := r.Resolve(context.Background(), g); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	first := exprs(g.RootResults())
	unions := k.Calls("union")

	stats, err := r.Resolve(context.Background(), g)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if stats.Passes != 1 || stats.Resolved != 0 {
		t.Errorf("second stats = %+v, want 1 idle pass", stats)
	}
	if k.Calls("union") != unions {
		t.Error("second Resolve called the kernel again")
	}
	if got := exprs(g.RootResults()); !equalStrings(got, first) {
		t.Errorf("results changed: %v -> %v", first, got)
	}
}

func TestResolveDifferenceIsLeftFold(t *testing.T) {
	k := kerneltest.New()
	b := NewBuilder()
	open(t, b, KindDifference, nil)
	leaf(t, b, KindCube)(k.Box(0, 0, 0, 1, 1, 1))
	leaf(t, b, KindCube)(k.Box(1, 1, 1, 1, 1, 1))
	leaf(t, b, KindCube)(k.Box(2, 2, 2, 1, 1, 1))
	closeC(t, b)
	g := built(t, b)

	if _, err := NewResolver(k).Resolve(context.Background(), g); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "difference(difference(box(0,0,0,1,1,1),box(1,1,1,1,1,1)),box(2,2,2,1,1,1))"
	if got := exprs(g.RootResults()); !equalStrings(got, []string{want}) {
		t.Errorf("result = %v, want %s", got, want)
	}
}

func TestResolveCubeMinusSphere(t *testing.T) {
	k := kerneltest.New()
	b := NewBuilder()
	d := open(t, b, KindDifference, nil)
	leaf(t, b, KindCube)(k.Box(-2, -2, -2, 4, 4, 4))
	leaf(t, b, KindSphere)(k.Sphere(2, 0, 0, 0))
	closeC(t, b)
	g := built(t, b)

	if kids := g.Children(d.Ref()); len(kids) != 2 || kids[0].Level != 1 {
		t.Fatalf("difference children = %v", kids)
	}
	if _, err := NewResolver(k).Resolve(context.Background(), g); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{"difference(box(-2,-2,-2,4,4,4),sphere(2,0,0,0))"}
	if got := exprs(g.RootResults()); !equalStrings(got, want) {
		t.Errorf("result = %v, want %v", got, want)
	}
}

func TestResolveTranslateMapsEachChild(t *testing.T) {
	k := kerneltest.New()
	b := NewBuilder()
	open(t, b, KindTranslate, TransformArgs{Vector: Vec3{5, 0, 0}})
	leaf(t, b, KindCube)(k.Box(0, 0, 0, 1, 1, 1))
	leaf(t, b, KindSphere)(k.Sphere(1, 0, 0, 0))
	closeC(t, b)
	g := built(t, b)

	if _, err := NewResolver(k).Resolve(context.Background(), g); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := []string{
		"translate(5,0,0,box(0,0,0,1,1,1))",
		"translate(5,0,0,sphere(1,0,0,0))",
	}
	if got := exprs(g.RootResults()); !equalStrings(got, want) {
		t.Errorf("results = %v, want %v", got, want)
	}
}

func TestResolveRotateAppliesXThenYThenZ(t *testing.T) {
	k := kerneltest.New()
	b := NewBuilder()
	open(t, b, KindRotate, TransformArgs{Vector: Vec3{0, 0, 90}})
	leaf(t, b, KindCube)(k.Box(0, 0, 0, 1, 1, 1))
	closeC(t, b)
	g := built(t, b)

	if _, err := NewResolver(k).Resolve(context.Background(), g); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "rotatez(" + kerneltest.Num(math.Pi/2) + ",rotatey(0,rotatex(0,box(0,0,0,1,1,1))))"
	if got := exprs(g.RootResults()); !equalStrings(got, []string{want}) {
		t.Errorf("result = %v, want %s", got, want)
	}
}

func TestResolveLinearExtrudeCentered(t *testing.T) {
	k := kerneltest.New()
	b := NewBuilder()
	open(t, b, KindLinearExtrude, ExtrudeArgs{Height: 4, Center: true})
	leaf(t, b, KindCircle)(k.Circle(1))
	closeC(t, b)
	g := built(t, b)

	if _, err := NewResolver(k).Resolve(context.Background(), g); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := "translate(0,0,-2,extrude(4,circle(1)))"
	if got := exprs(g.RootResults()); !equalStrings(got, []string{want}) {
		t.Errorf("result = %v, want %s", got, want)
	}
}

func TestResolveEmptyBooleanHasNoResult(t *testing.T) {
	k := kerneltest.New()
	b := NewBuilder()
	u := open(t, b, KindUnion, nil)
	closeC(t, b)
	g := built(t, b)

	var logs []string
	r := NewResolver(k)
	r.Log = func(args ...any) { logs = append(logs, fmt.Sprint(args...)) }
	if _, err := r.Resolve(context.Background(), g); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !u.Done() {
		t.Error("empty union should be done")
	}
	if len(g.RootResults()) != 0 {
		t.Errorf("RootResults() = %v, want empty", g.RootResults())
	}
	if len(logs) != 1 || !strings.Contains(logs[0], "union has no children") {
		t.Errorf("logs = %q, want one warning about the empty union", logs)
	}
}

func TestResolveSingleChildBooleanIsIdentity(t *testing.T) {
	k := kerneltest.New()
	b := NewBuilder()
	open(t, b, KindIntersection, nil)
	leaf(t, b, KindCube)(k.Box(0, 0, 0, 1, 1, 1))
	closeC(t, b)
	g := built(t, b)

	if _, err := NewResolver(k).Resolve(context.Background(), g); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := exprs(g.RootResults()); !equalStrings(got, []string{"box(0,0,0,1,1,1)"}) {
		t.Errorf("result = %v", got)
	}
	if k.Calls("intersection") != 0 {
		t.Error("single child should not call the combinator")
	}
}

func TestResolveKernelError(t *testing.T) {
	boom := errors.New("boom")
	k := kerneltest.New()
	k.FailOn("union", boom)
	b := NewBuilder()
	open(t, b, KindUnion, nil)
	leaf(t, b, KindCube)(k.Box(0, 0, 0, 1, 1, 1))
	leaf(t, b, KindCube)(k.Box(1, 0, 0, 1, 1, 1))
	closeC(t, b)
	g := built(t, b)

	_, err := NewResolver(k).Resolve(context.Background(), g)
	var kerr *KernelError
	if !errors.As(err, &kerr) {
		t.Fatalf("err = %v, want *KernelError", err)
	}
	if kerr.Op != "union" || kerr.Node != "union-1" {
		t.Errorf("KernelError = %+v", kerr)
	}
	if !errors.Is(err, boom) {
		t.Error("KernelError should unwrap to the kernel failure")
	}
}

func TestResolveHonorsCancellation(t *testing.T) {
	k := kerneltest.New()
	b := NewBuilder()
	open(t, b, KindUnion, nil)
	closeC(t, b)
	g := built(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewResolver(k).Resolve(ctx, g); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
