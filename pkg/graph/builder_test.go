package graph

import (
	"errors"
	"testing"

	"github.com/chazu/makertron/pkg/kernel"
	"github.com/chazu/makertron/pkg/kernel/kerneltest"
)

func TestBuilderLevelsAndParents(t *testing.T) {
	k := kerneltest.New()
	b := NewBuilder()

	d, err := b.OpenContainer(KindDifference, nil, Pos{Line: 1, Col: 1})
	if err != nil {
		t.Fatalf("OpenContainer: %v", err)
	}
	if d.Level != 0 || d.Parent != Root {
		t.Errorf("difference at level %d parent %v, want 0 root", d.Level, d.Parent)
	}
	if b.Depth() != 1 {
		t.Errorf("Depth() after open = %d, want 1", b.Depth())
	}

	box, _ := k.Box(-2, -2, -2, 4, 4, 4)
	leaf, err := b.EmitLeaf(KindCube, []kernel.Solid{box}, Pos{Line: 1, Col: 16})
	if err != nil {
		t.Fatalf("EmitLeaf: %v", err)
	}
	if leaf.Level != 1 || leaf.Parent != d.Ref() {
		t.Errorf("leaf at level %d parent %v, want 1 %v", leaf.Level, leaf.Parent, d.Ref())
	}
	if !leaf.Done() {
		t.Error("leaves are created done")
	}
	if !leaf.ID.IsZero() {
		t.Errorf("leaf id = %q, want empty", leaf.ID)
	}

	if err := b.CloseContainer(Pos{}); err != nil {
		t.Fatalf("CloseContainer: %v", err)
	}
	if b.Depth() != 0 {
		t.Errorf("Depth() after close = %d, want 0", b.Depth())
	}

	g, err := b.Graph()
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if g.Depth() != 2 || g.NodeCount() != 2 {
		t.Errorf("graph depth %d count %d, want 2 2", g.Depth(), g.NodeCount())
	}
}

func TestBuilderIDsArePerInstance(t *testing.T) {
	b1 := NewBuilder()
	b2 := NewBuilder()

	n1, _ := b1.OpenContainer(KindUnion, nil, Pos{})
	n2, _ := b1.OpenContainer(KindTranslate, TransformArgs{}, Pos{})
	n3, _ := b2.OpenContainer(KindUnion, nil, Pos{})

	if n1.ID != "union-1" || n2.ID != "translate-2" {
		t.Errorf("ids = %s, %s; want union-1, translate-2", n1.ID, n2.ID)
	}
	if n3.ID != "union-1" {
		t.Errorf("second builder id = %s, want union-1", n3.ID)
	}
	if n2.Parent != n1.Ref() {
		t.Errorf("nested parent = %v, want %v", n2.Parent, n1.Ref())
	}
}

func TestBuilderErrors(t *testing.T) {
	t.Run("close without open", func(t *testing.T) {
		b := NewBuilder()
		if err := b.CloseContainer(Pos{}); !errors.Is(err, ErrUnbalanced) {
			t.Errorf("err = %v, want ErrUnbalanced", err)
		}
	})
	t.Run("graph with open container", func(t *testing.T) {
		b := NewBuilder()
		b.OpenContainer(KindUnion, nil, Pos{Line: 3, Col: 1})
		if _, err := b.Graph(); !errors.Is(err, ErrUnbalanced) {
			t.Errorf("err = %v, want ErrUnbalanced", err)
		}
	})
	t.Run("leaf opened as container", func(t *testing.T) {
		b := NewBuilder()
		if _, err := b.OpenContainer(KindCube, nil, Pos{}); !errors.Is(err, ErrNotContainer) {
			t.Errorf("err = %v, want ErrNotContainer", err)
		}
	})
	t.Run("container emitted as leaf", func(t *testing.T) {
		b := NewBuilder()
		if _, err := b.EmitLeaf(KindUnion, nil, Pos{}); !errors.Is(err, ErrNotLeaf) {
			t.Errorf("err = %v, want ErrNotLeaf", err)
		}
	})
}
