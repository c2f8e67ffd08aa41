package graph

import (
	"github.com/samber/lo"

	"github.com/chazu/makertron/pkg/kernel"
)

// Graph is the leveled operation graph for one evaluation. It is built by a
// Builder, mutated only by a Resolver, and discarded afterwards.
type Graph struct {
	levels [][]*Node
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{}
}

// Push appends n to the given level, growing the level stack as needed.
func (g *Graph) Push(level int, n *Node) {
	for len(g.levels) <= level {
		g.levels = append(g.levels, nil)
	}
	n.Level = level
	g.levels[level] = append(g.levels[level], n)
}

// Level returns the nodes created at the given depth, in creation order.
func (g *Graph) Level(level int) []*Node {
	if level < 0 || level >= len(g.levels) {
		return nil
	}
	return g.levels[level]
}

// Depth returns the number of levels.
func (g *Graph) Depth() int {
	return len(g.levels)
}

// Walk visits every node in level order, then creation order, until fn
// returns false.
func (g *Graph) Walk(fn func(n *Node) bool) {
	for _, level := range g.levels {
		for _, n := range level {
			if !fn(n) {
				return
			}
		}
	}
}

// NodeCount returns the total number of nodes.
func (g *Graph) NodeCount() int {
	count := 0
	for _, level := range g.levels {
		count += len(level)
	}
	return count
}

// Children returns every node whose parent is ref, in scan order.
func (g *Graph) Children(ref ParentRef) []*Node {
	var children []*Node
	g.Walk(func(n *Node) bool {
		if n.Parent == ref {
			children = append(children, n)
		}
		return true
	})
	return children
}

// ChildrenComplete reports whether every child of n is done and, if so,
// returns their results concatenated in scan order. A container with no
// children is complete with an empty result list.
func (g *Graph) ChildrenComplete(n *Node) ([]kernel.Solid, bool) {
	children := g.Children(n.Ref())
	for _, c := range children {
		if !c.done {
			return nil, false
		}
	}
	return lo.Flatten(lo.Map(children, func(c *Node, _ int) []kernel.Solid {
		return c.results
	})), true
}

// Roots returns the top-level nodes in creation order.
func (g *Graph) Roots() []*Node {
	return g.Children(Root)
}

// RootResults returns the flattened results of the top-level nodes.
func (g *Graph) RootResults() []kernel.Solid {
	return lo.Flatten(lo.Map(g.Roots(), func(n *Node, _ int) []kernel.Solid {
		return n.results
	}))
}

// Pending returns every node that is not yet done.
func (g *Graph) Pending() []*Node {
	var pending []*Node
	g.Walk(func(n *Node) bool {
		if !n.done {
			pending = append(pending, n)
		}
		return true
	})
	return pending
}

// Orphans returns every node whose parent is neither the root nor an
// existing container. Their results can never reach the output.
func (g *Graph) Orphans() []*Node {
	refs := make(map[ParentRef]bool)
	g.Walk(func(n *Node) bool {
		if n.Kind.IsContainer() {
			refs[n.Ref()] = true
		}
		return true
	})
	var orphans []*Node
	g.Walk(func(n *Node) bool {
		if n.Parent != Root && !refs[n.Parent] {
			orphans = append(orphans, n)
		}
		return true
	})
	return orphans
}
