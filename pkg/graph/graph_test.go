package graph

import (
	"testing"

	"github.com/chazu/makertron/pkg/kernel"
	"github.com/chazu/makertron/pkg/kernel/kerneltest"
)

func exprs(solids []kernel.Solid) []string {
	out := make([]string, len(solids))
	for i, s := range solids {
		out[i] = s.(*kerneltest.Shape).Expr
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestKindParse(t *testing.T) {
	tests := []struct {
		name      string
		want      Kind
		ok        bool
		container bool
	}{
		{"union", KindUnion, true, true},
		{"linear_extrude", KindLinearExtrude, true, true},
		{"cube", KindCube, true, false},
		{"circle", KindCircle, true, false},
		{"root", 0, false, false},
		{"teapot", 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseKind(tt.name)
			if ok != tt.ok {
				t.Fatalf("ParseKind(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			}
			if !ok {
				return
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %v, want %v", tt.name, got, tt.want)
			}
			if got.IsContainer() != tt.container {
				t.Errorf("%v.IsContainer() = %v, want %v", got, got.IsContainer(), tt.container)
			}
			if got.IsLeaf() == tt.container {
				t.Errorf("%v.IsLeaf() = %v, want %v", got, got.IsLeaf(), !tt.container)
			}
			if got.String() != tt.name {
				t.Errorf("String() = %q, want %q", got.String(), tt.name)
			}
		})
	}
}

func TestPushGrowsLevels(t *testing.T) {
	g := New()
	if g.Depth() != 0 || g.NodeCount() != 0 {
		t.Fatalf("empty graph: depth %d, count %d", g.Depth(), g.NodeCount())
	}
	n := &Node{Kind: KindCube, Parent: Root}
	g.Push(2, n)
	if g.Depth() != 3 {
		t.Errorf("Depth() = %d, want 3", g.Depth())
	}
	if n.Level != 2 {
		t.Errorf("Level = %d, want 2", n.Level)
	}
	if len(g.Level(1)) != 0 || len(g.Level(2)) != 1 {
		t.Errorf("unexpected level contents")
	}
	if g.Level(7) != nil {
		t.Error("out-of-range level should be nil")
	}
}

func TestChildrenByScan(t *testing.T) {
	k := kerneltest.New()
	b := NewBuilder()

	u, _ := b.OpenContainer(KindUnion, nil, Pos{})
	a, _ := k.Box(0, 0, 0, 1, 1, 1)
	b.EmitLeaf(KindCube, []kernel.Solid{a}, Pos{})
	tr, _ := b.OpenContainer(KindTranslate, TransformArgs{Vector: Vec3{1, 0, 0}}, Pos{})
	s, _ := k.Sphere(1, 0, 0, 0)
	b.EmitLeaf(KindSphere, []kernel.Solid{s}, Pos{})
	b.CloseContainer(Pos{})
	c, _ := k.Cylinder(1, 2, 0)
	b.EmitLeaf(KindCylinder, []kernel.Solid{c}, Pos{})
	b.CloseContainer(Pos{})

	g, err := b.Graph()
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}

	kids := g.Children(u.Ref())
	if len(kids) != 3 {
		t.Fatalf("union has %d children, want 3", len(kids))
	}
	if kids[0].Kind != KindCube || kids[1].Kind != KindTranslate || kids[2].Kind != KindCylinder {
		t.Errorf("children out of scan order: %v %v %v", kids[0].Kind, kids[1].Kind, kids[2].Kind)
	}

	if _, ok := g.ChildrenComplete(u); ok {
		t.Error("union should not be ready while translate is pending")
	}
	inputs, ok := g.ChildrenComplete(tr)
	if !ok {
		t.Fatal("translate should be ready")
	}
	if got := exprs(inputs); !equalStrings(got, []string{"sphere(1,0,0,0)"}) {
		t.Errorf("translate inputs = %v", got)
	}
}

func TestChildrenCompleteEmptyContainer(t *testing.T) {
	b := NewBuilder()
	u, _ := b.OpenContainer(KindUnion, nil, Pos{})
	b.CloseContainer(Pos{})
	g, _ := b.Graph()

	inputs, ok := g.ChildrenComplete(u)
	if !ok {
		t.Fatal("a container without children is complete")
	}
	if len(inputs) != 0 {
		t.Errorf("inputs = %v, want empty", inputs)
	}
}

func TestPendingAndRoots(t *testing.T) {
	k := kerneltest.New()
	b := NewBuilder()
	a, _ := k.Box(0, 0, 0, 1, 1, 1)
	b.EmitLeaf(KindCube, []kernel.Solid{a}, Pos{})
	b.OpenContainer(KindUnion, nil, Pos{})
	b.CloseContainer(Pos{})
	g, _ := b.Graph()

	if got := len(g.Roots()); got != 2 {
		t.Errorf("Roots() = %d nodes, want 2", got)
	}
	pending := g.Pending()
	if len(pending) != 1 || pending[0].Kind != KindUnion {
		t.Errorf("Pending() = %v, want the union", pending)
	}
	if got := exprs(g.RootResults()); !equalStrings(got, []string{"box(0,0,0,1,1,1)"}) {
		t.Errorf("RootResults() = %v", got)
	}
}

func TestNodeResultsAreCopies(t *testing.T) {
	k := kerneltest.New()
	a, _ := k.Box(0, 0, 0, 1, 1, 1)
	c, _ := k.Sphere(1, 0, 0, 0)

	in := []kernel.Solid{a}
	b := NewBuilder()
	n, err := b.EmitLeaf(KindCube, in, Pos{})
	if err != nil {
		t.Fatalf("EmitLeaf: %v", err)
	}

	in[0] = c
	got := n.Results()
	got[0] = c

	if want := []string{"box(0,0,0,1,1,1)"}; !equalStrings(exprs(n.Results()), want) {
		t.Errorf("Results() = %v, want %v", exprs(n.Results()), want)
	}
}
