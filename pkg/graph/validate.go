package graph

import "fmt"

// ValidationSeverity indicates whether a validation finding explains a
// failure or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // the graph cannot resolve
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single structural finding.
type ValidationError struct {
	Node     *Node              // which node has the problem (nil if graph-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Node == nil {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.Node, e.Message)
}

// Validate runs the structural checks on g and returns every finding. An
// empty slice means the graph is well formed. It never mutates the graph.
func Validate(g *Graph) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateIDs(g)...)
	errs = append(errs, validateParents(g)...)
	errs = append(errs, validateCycles(g)...)
	errs = append(errs, validateLeaves(g)...)
	errs = append(errs, validateArgs(g)...)
	return errs
}

// containers indexes container nodes by reference.
func containers(g *Graph) map[ParentRef]*Node {
	idx := make(map[ParentRef]*Node)
	g.Walk(func(n *Node) bool {
		if n.Kind.IsContainer() {
			if _, dup := idx[n.Ref()]; !dup {
				idx[n.Ref()] = n
			}
		}
		return true
	})
	return idx
}

// validateIDs checks that every container has a unique, non-empty id.
func validateIDs(g *Graph) []ValidationError {
	var errs []ValidationError
	seen := make(map[NodeID]bool)
	g.Walk(func(n *Node) bool {
		if !n.Kind.IsContainer() {
			return true
		}
		switch {
		case n.ID.IsZero():
			errs = append(errs, ValidationError{
				Node:     n,
				Message:  "container has no id",
				Severity: SeverityError,
			})
		case seen[n.ID]:
			errs = append(errs, ValidationError{
				Node:     n,
				Message:  fmt.Sprintf("duplicate container id %s", n.ID),
				Severity: SeverityError,
			})
		}
		seen[n.ID] = true
		return true
	})
	return errs
}

// validateParents checks that every parent reference names the root or an
// existing container, and warns when a child is not exactly one level below
// its parent.
func validateParents(g *Graph) []ValidationError {
	var errs []ValidationError
	idx := containers(g)
	g.Walk(func(n *Node) bool {
		if n.Parent == Root {
			if n.Level != 0 {
				errs = append(errs, ValidationError{
					Node:     n,
					Message:  fmt.Sprintf("top-level node at level %d", n.Level),
					Severity: SeverityWarning,
				})
			}
			return true
		}
		parent, ok := idx[n.Parent]
		if !ok {
			errs = append(errs, ValidationError{
				Node:     n,
				Message:  fmt.Sprintf("parent %s does not exist", n.Parent),
				Severity: SeverityError,
			})
			return true
		}
		if n.Level != parent.Level+1 {
			errs = append(errs, ValidationError{
				Node:     n,
				Message:  fmt.Sprintf("at level %d but parent %s is at level %d", n.Level, parent.ID, parent.Level),
				Severity: SeverityWarning,
			})
		}
		return true
	})
	return errs
}

// validateCycles follows parent references with 3-color marking.
// White = unvisited, gray = on the current chain, black = reaches the root
// or a dangling reference.
func validateCycles(g *Graph) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	idx := containers(g)
	color := make(map[*Node]int)
	var errs []ValidationError

	var visit func(n *Node) bool // returns true if a cycle was found
	visit = func(n *Node) bool {
		switch color[n] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				Node:     n,
				Message:  fmt.Sprintf("cycle detected: %s is its own ancestor", n),
				Severity: SeverityError,
			})
			return true
		}
		color[n] = gray
		if parent, ok := idx[n.Parent]; ok && n.Parent != Root {
			if visit(parent) {
				return true
			}
		}
		color[n] = black
		return false
	}

	found := false
	g.Walk(func(n *Node) bool {
		if color[n] == white && visit(n) {
			// One cycle error is sufficient; stop early.
			found = true
		}
		return !found
	})
	return errs
}

// validateLeaves checks that leaves were built at creation time and that
// nothing names a leaf as its parent.
func validateLeaves(g *Graph) []ValidationError {
	var errs []ValidationError
	g.Walk(func(n *Node) bool {
		if n.Kind.IsLeaf() && !n.done {
			errs = append(errs, ValidationError{
				Node:     n,
				Message:  fmt.Sprintf("%s leaf was never built", n.Kind),
				Severity: SeverityError,
			})
		}
		if n.Parent.Kind.IsLeaf() {
			errs = append(errs, ValidationError{
				Node:     n,
				Message:  fmt.Sprintf("parent %s is a leaf", n.Parent),
				Severity: SeverityError,
			})
		}
		return true
	})
	return errs
}

// validateArgs checks that parameterized containers carry their arguments.
func validateArgs(g *Graph) []ValidationError {
	var errs []ValidationError
	g.Walk(func(n *Node) bool {
		var ok bool
		switch n.Kind {
		case KindTranslate, KindRotate:
			_, ok = n.Args.(TransformArgs)
		case KindLinearExtrude:
			var a ExtrudeArgs
			if a, ok = n.Args.(ExtrudeArgs); ok && a.Height <= 0 {
				errs = append(errs, ValidationError{
					Node:     n,
					Message:  fmt.Sprintf("extrusion height %g must be positive", a.Height),
					Severity: SeverityError,
				})
			}
		default:
			return true
		}
		if !ok {
			errs = append(errs, ValidationError{
				Node:     n,
				Message:  fmt.Sprintf("%s is missing its arguments", n.Kind),
				Severity: SeverityError,
			})
		}
		return true
	})
	return errs
}
