package graph

import (
	"errors"
	"fmt"

	"github.com/chazu/makertron/pkg/kernel"
)

var (
	// ErrNotContainer is returned when a leaf kind is opened as a container.
	ErrNotContainer = errors.New("graph: kind does not take children")
	// ErrNotLeaf is returned when a container kind is emitted as a leaf.
	ErrNotLeaf = errors.New("graph: kind is not a leaf")
	// ErrUnbalanced is returned for a close without an open, or a graph
	// requested while containers are still open.
	ErrUnbalanced = errors.New("graph: unbalanced container")
)

// Builder records script operations into a Graph. The depth counter, the
// open-container stack and the id sequence belong to the instance.
type Builder struct {
	g     *Graph
	depth int
	open  []*Node
	seq   int
}

// NewBuilder returns a Builder over a fresh Graph.
func NewBuilder() *Builder {
	return &Builder{g: New()}
}

// Depth returns the current nesting depth.
func (b *Builder) Depth() int { return b.depth }

// current returns the innermost open container's reference.
func (b *Builder) current() ParentRef {
	if len(b.open) == 0 {
		return Root
	}
	return b.open[len(b.open)-1].Ref()
}

// OpenContainer pushes a container node at the current depth and makes it
// the parent of subsequent nodes.
func (b *Builder) OpenContainer(kind Kind, args NodeArgs, pos Pos) (*Node, error) {
	if !kind.IsContainer() {
		return nil, fmt.Errorf("%w: %s", ErrNotContainer, kind)
	}
	b.seq++
	n := &Node{
		ID:     NodeID(fmt.Sprintf("%s-%d", kind, b.seq)),
		Kind:   kind,
		Parent: b.current(),
		Args:   args,
		Pos:    pos,
	}
	b.g.Push(b.depth, n)
	b.depth++
	b.open = append(b.open, n)
	return n, nil
}

// CloseContainer ends the innermost open container.
func (b *Builder) CloseContainer(pos Pos) error {
	if len(b.open) == 0 {
		return fmt.Errorf("%w: close at %s with nothing open", ErrUnbalanced, pos)
	}
	b.open = b.open[:len(b.open)-1]
	b.depth--
	return nil
}

// EmitLeaf records an already-built leaf at the current depth.
func (b *Builder) EmitLeaf(kind Kind, results []kernel.Solid, pos Pos) (*Node, error) {
	if !kind.IsLeaf() {
		return nil, fmt.Errorf("%w: %s", ErrNotLeaf, kind)
	}
	n := &Node{
		Kind:   kind,
		Parent: b.current(),
		Pos:    pos,
	}
	n.resolve(results)
	b.g.Push(b.depth, n)
	return n, nil
}

// Graph returns the built graph. Every container must have been closed.
func (b *Builder) Graph() (*Graph, error) {
	if len(b.open) > 0 {
		top := b.open[len(b.open)-1]
		return nil, fmt.Errorf("%w: %s opened at %s is never closed", ErrUnbalanced, top.ID, top.Pos)
	}
	return b.g, nil
}
