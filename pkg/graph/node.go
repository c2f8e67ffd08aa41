package graph

import (
	"fmt"
	"slices"

	"github.com/chazu/makertron/pkg/kernel"
)

// Kind enumerates the operations a node can record.
type Kind int

const (
	KindRoot Kind = iota // parent sentinel only

	// Containers: resolved from their children.
	KindUnion
	KindIntersection
	KindDifference
	KindTranslate
	KindRotate
	KindLinearExtrude

	// Leaves: built by the kernel at creation time.
	KindCube
	KindSphere
	KindCylinder
	KindPolygon
	KindPolyhedron
	KindCircle
)

var kindNames = map[Kind]string{
	KindRoot:          "root",
	KindUnion:         "union",
	KindIntersection:  "intersection",
	KindDifference:    "difference",
	KindTranslate:     "translate",
	KindRotate:        "rotate",
	KindLinearExtrude: "linear_extrude",
	KindCube:          "cube",
	KindSphere:        "sphere",
	KindCylinder:      "cylinder",
	KindPolygon:       "polygon",
	KindPolyhedron:    "polyhedron",
	KindCircle:        "circle",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a script module name to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k, s := range kindNames {
		if s == name && k != KindRoot {
			return k, true
		}
	}
	return 0, false
}

// IsContainer reports whether nodes of this kind take children.
func (k Kind) IsContainer() bool {
	return k >= KindUnion && k <= KindLinearExtrude
}

// IsLeaf reports whether nodes of this kind are built directly by the kernel.
func (k Kind) IsLeaf() bool {
	return k >= KindCube && k <= KindCircle
}

// NodeID identifies a container within one graph. Leaves have no id.
type NodeID string

// IsZero reports whether the id is unset.
func (id NodeID) IsZero() bool { return id == "" }

func (id NodeID) String() string {
	if id == "" {
		return "<leaf>"
	}
	return string(id)
}

// ParentRef names a node's parent by kind and id.
type ParentRef struct {
	Kind Kind
	ID   NodeID
}

// Root is the parent of every top-level node.
var Root = ParentRef{Kind: KindRoot, ID: "root"}

func (r ParentRef) String() string {
	return r.Kind.String() + "/" + string(r.ID)
}

// Vec3 is a 3-component vector.
type Vec3 [3]float64

// Pos is a position in script source, for diagnostics.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// NodeArgs is the interface for kind-specific container parameters.
type NodeArgs interface {
	nodeArgs() // marker method restricting implementations to this package
}

// TransformArgs parameterizes translate (offset) and rotate (degrees per axis).
type TransformArgs struct {
	Vector Vec3
}

// ExtrudeArgs parameterizes linear_extrude.
type ExtrudeArgs struct {
	Height float64
	Center bool
}

func (TransformArgs) nodeArgs() {}
func (ExtrudeArgs) nodeArgs()   {}

// Node is one recorded operation.
type Node struct {
	ID     NodeID
	Kind   Kind
	Parent ParentRef
	Args   NodeArgs
	Level  int
	Pos    Pos

	results []kernel.Solid
	done    bool
}

// Ref returns the reference children use to name this node.
func (n *Node) Ref() ParentRef {
	return ParentRef{Kind: n.Kind, ID: n.ID}
}

// Done reports whether the node has produced its results.
func (n *Node) Done() bool { return n.done }

// Results returns a copy of the node's solids. It is empty until Done.
func (n *Node) Results() []kernel.Solid { return slices.Clone(n.results) }

// resolve records the node's results. It is the only place done flips, and
// it never flips back.
func (n *Node) resolve(results []kernel.Solid) {
	if n.done {
		return
	}
	n.results = slices.Clone(results)
	n.done = true
}

func (n *Node) String() string {
	if n.ID.IsZero() {
		return fmt.Sprintf("%s@%s", n.Kind, n.Pos)
	}
	return string(n.ID)
}
