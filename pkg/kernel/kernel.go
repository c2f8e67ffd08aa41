// Package kernel defines the abstract geometry kernel interface.
// Implementations (sdfx, manifold) provide solid modeling and
// boolean operations behind this interface. The kernel abstraction
// allows swapping backends without changing the rest of the system.
package kernel

import "errors"

// ErrUnsupported is returned by backends that do not implement an operation.
var ErrUnsupported = errors.New("kernel: operation not supported by this backend")

// ErrDimensionMismatch is returned when a binary operation mixes a planar
// (2D) handle with a volumetric (3D) one.
var ErrDimensionMismatch = errors.New("kernel: cannot combine 2D and 3D shapes")

// Solid is an opaque handle to a geometry kernel shape.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box. Planar shapes
	// report a zero Z extent.
	BoundingBox() (min, max [3]float64)
	// Planar reports whether the handle is a 2D region that still needs
	// extruding before it can be tessellated.
	Planar() bool
}

// Releaser is implemented by solids that hold native resources.
type Releaser interface {
	Release()
}

// Kernel is the abstract geometry kernel interface.
// Every constructor returns a new handle or an error; handles are never
// mutated in place.
type Kernel interface {
	// Primitives
	Box(x, y, z, sx, sy, sz float64) (Solid, error)
	Sphere(r, x, y, z float64) (Solid, error)
	Cone(r1, r2, h, z float64) (Solid, error)
	Cylinder(r, h, z float64) (Solid, error)
	Polyhedron(points [][3]float64, faces [][]int) (Solid, error)

	// Planar primitives and extrusion
	Circle(r float64) (Solid, error)
	Polygon(points [][2]float64) (Solid, error)
	Extrude(h float64, s Solid) (Solid, error)

	// Boolean operations
	Union(a, b Solid) (Solid, error)
	Difference(a, b Solid) (Solid, error)
	Intersection(a, b Solid) (Solid, error)

	// Transforms. Angles are in radians.
	Translate(s Solid, x, y, z float64) (Solid, error)
	RotateX(s Solid, angle float64) (Solid, error)
	RotateY(s Solid, angle float64) (Solid, error)
	RotateZ(s Solid, angle float64) (Solid, error)

	// Mesh output. quality is the target feature size in model units;
	// smaller values produce finer meshes.
	ToMesh(s Solid, quality float64) (*Mesh, error)
}
