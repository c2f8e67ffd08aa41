//go:build manifold

// Package manifold provides a CGo-based geometry kernel binding to the
// Manifold library (https://github.com/elalish/manifold). Manifold provides
// guaranteed-manifold mesh boolean operations.
//
// This package requires the Manifold C library (manifoldc) to be installed.
// Build with: go build -tags=manifold
package manifold

/*
#cgo CFLAGS: -I/usr/local/include
#cgo LDFLAGS: -L/usr/local/lib -lmanifoldc

#include <stdlib.h>
#include <manifold/manifoldc.h>
*/
import "C"

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"unsafe"

	"github.com/chazu/makertron/pkg/kernel"
)

// Compile-time interface checks.
var _ kernel.Kernel = (*ManifoldKernel)(nil)
var _ kernel.Solid = (*manifoldSolid)(nil)
var _ kernel.Releaser = (*manifoldSolid)(nil)

// Segments is the number of facets used for spheres, cylinders and cones.
var Segments = 64

// manifoldSolid wraps a C ManifoldManifold pointer and implements kernel.Solid.
type manifoldSolid struct {
	mu  sync.Mutex
	ptr *C.ManifoldManifold
}

// BoundingBox returns the axis-aligned bounding box of the solid.
func (s *manifoldSolid) BoundingBox() (min, max [3]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ptr == nil {
		return min, max
	}
	alloc := C.manifold_alloc_box()
	bbox := C.manifold_bounding_box(alloc, s.ptr)
	defer C.manifold_delete_box(bbox)

	min[0] = float64(C.manifold_box_min_x(bbox))
	min[1] = float64(C.manifold_box_min_y(bbox))
	min[2] = float64(C.manifold_box_min_z(bbox))
	max[0] = float64(C.manifold_box_max_x(bbox))
	max[1] = float64(C.manifold_box_max_y(bbox))
	max[2] = float64(C.manifold_box_max_z(bbox))
	return min, max
}

// Planar is always false: this backend has no 2D shapes.
func (s *manifoldSolid) Planar() bool { return false }

// Release frees the native manifold. Later calls are no-ops.
func (s *manifoldSolid) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ptr != nil {
		C.manifold_delete_manifold(s.ptr)
		s.ptr = nil
	}
	runtime.SetFinalizer(s, nil)
}

// newSolid wraps a C ManifoldManifold pointer. The finalizer only matters
// for handles that never pass through a kernel.Scope.
func newSolid(ptr *C.ManifoldManifold) (*manifoldSolid, error) {
	if ptr == nil {
		return nil, fmt.Errorf("manifold: allocation failed")
	}
	if st := C.manifold_status(ptr); st != C.MANIFOLD_NO_ERROR {
		C.manifold_delete_manifold(ptr)
		return nil, fmt.Errorf("manifold: operation failed with status %d", int(st))
	}
	s := &manifoldSolid{ptr: ptr}
	runtime.SetFinalizer(s, (*manifoldSolid).Release)
	return s, nil
}

func unwrap(s kernel.Solid) (*C.ManifoldManifold, error) {
	ms, ok := s.(*manifoldSolid)
	if !ok || ms == nil {
		if s != nil && s.Planar() {
			return nil, kernel.ErrUnsupported
		}
		return nil, fmt.Errorf("manifold: foreign handle %T", s)
	}
	if ms.ptr == nil {
		return nil, fmt.Errorf("manifold: handle already released")
	}
	return ms.ptr, nil
}

// ManifoldKernel implements kernel.Kernel using the Manifold C library.
type ManifoldKernel struct{}

// New creates a new ManifoldKernel.
func New() (kernel.Kernel, error) {
	return &ManifoldKernel{}, nil
}

// Box creates a box with its minimum corner at (x, y, z).
func (k *ManifoldKernel) Box(x, y, z, sx, sy, sz float64) (kernel.Solid, error) {
	cube := C.manifold_cube(C.manifold_alloc_manifold(),
		C.double(sx), C.double(sy), C.double(sz),
		C.int(0), // center=false
	)
	if x == 0 && y == 0 && z == 0 {
		return newSolid(cube)
	}
	defer C.manifold_delete_manifold(cube)
	return newSolid(C.manifold_translate(C.manifold_alloc_manifold(), cube,
		C.double(x), C.double(y), C.double(z)))
}

// Sphere creates a sphere of radius r centered at (x, y, z).
func (k *ManifoldKernel) Sphere(r, x, y, z float64) (kernel.Solid, error) {
	sphere := C.manifold_sphere(C.manifold_alloc_manifold(), C.double(r), C.int(Segments))
	if x == 0 && y == 0 && z == 0 {
		return newSolid(sphere)
	}
	defer C.manifold_delete_manifold(sphere)
	return newSolid(C.manifold_translate(C.manifold_alloc_manifold(), sphere,
		C.double(x), C.double(y), C.double(z)))
}

// Cone creates a truncated cone along +Z with its base at height z.
func (k *ManifoldKernel) Cone(r1, r2, h, z float64) (kernel.Solid, error) {
	cyl := C.manifold_cylinder(C.manifold_alloc_manifold(),
		C.double(h),
		C.double(r1), // radius_low
		C.double(r2), // radius_high
		C.int(Segments),
		C.int(0), // center=false
	)
	if z == 0 {
		return newSolid(cyl)
	}
	defer C.manifold_delete_manifold(cyl)
	return newSolid(C.manifold_translate(C.manifold_alloc_manifold(), cyl, 0, 0, C.double(z)))
}

// Cylinder creates a cylinder along +Z with its base at height z.
func (k *ManifoldKernel) Cylinder(r, h, z float64) (kernel.Solid, error) {
	return k.Cone(r, r, h, z)
}

// Polyhedron builds a solid from an indexed face list. Faces are
// fan-triangulated and must be wound counter-clockwise seen from outside.
func (k *ManifoldKernel) Polyhedron(points [][3]float64, faces [][]int) (kernel.Solid, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("manifold: polyhedron has no points")
	}
	props := make([]float32, 0, len(points)*3)
	for _, p := range points {
		props = append(props, float32(p[0]), float32(p[1]), float32(p[2]))
	}
	var tris []uint32
	for fi, f := range faces {
		for _, n := range f {
			if n < 0 || n >= len(points) {
				return nil, fmt.Errorf("manifold: face %d references point %d", fi, n)
			}
		}
		for i := 1; i+1 < len(f); i++ {
			tris = append(tris, uint32(f[0]), uint32(f[i]), uint32(f[i+1]))
		}
	}
	if len(tris) == 0 {
		return nil, fmt.Errorf("manifold: polyhedron has no triangles")
	}

	mesh := C.manifold_meshgl(C.manifold_alloc_meshgl(),
		(*C.float)(unsafe.Pointer(&props[0])), C.size_t(len(points)), C.size_t(3),
		(*C.uint32_t)(unsafe.Pointer(&tris[0])), C.size_t(len(tris)/3),
	)
	defer C.manifold_delete_meshgl(mesh)
	return newSolid(C.manifold_of_meshgl(C.manifold_alloc_manifold(), mesh))
}

// Circle is not supported: manifoldc has no cross-section binding here.
func (k *ManifoldKernel) Circle(r float64) (kernel.Solid, error) {
	return nil, kernel.ErrUnsupported
}

// Polygon is not supported.
func (k *ManifoldKernel) Polygon(points [][2]float64) (kernel.Solid, error) {
	return nil, kernel.ErrUnsupported
}

// Extrude is not supported.
func (k *ManifoldKernel) Extrude(h float64, s kernel.Solid) (kernel.Solid, error) {
	return nil, kernel.ErrUnsupported
}

type binaryOp func(*C.ManifoldManifold, *C.ManifoldManifold) *C.ManifoldManifold

func boolean(a, b kernel.Solid, op binaryOp) (kernel.Solid, error) {
	pa, err := unwrap(a)
	if err != nil {
		return nil, err
	}
	pb, err := unwrap(b)
	if err != nil {
		return nil, err
	}
	return newSolid(op(pa, pb))
}

// Union returns the boolean union of two solids.
func (k *ManifoldKernel) Union(a, b kernel.Solid) (kernel.Solid, error) {
	return boolean(a, b, func(x, y *C.ManifoldManifold) *C.ManifoldManifold {
		return C.manifold_union(C.manifold_alloc_manifold(), x, y)
	})
}

// Difference returns the boolean difference (a minus b).
func (k *ManifoldKernel) Difference(a, b kernel.Solid) (kernel.Solid, error) {
	return boolean(a, b, func(x, y *C.ManifoldManifold) *C.ManifoldManifold {
		return C.manifold_difference(C.manifold_alloc_manifold(), x, y)
	})
}

// Intersection returns the boolean intersection of two solids.
func (k *ManifoldKernel) Intersection(a, b kernel.Solid) (kernel.Solid, error) {
	return boolean(a, b, func(x, y *C.ManifoldManifold) *C.ManifoldManifold {
		return C.manifold_intersection(C.manifold_alloc_manifold(), x, y)
	})
}

// Translate moves the solid by (x, y, z).
func (k *ManifoldKernel) Translate(s kernel.Solid, x, y, z float64) (kernel.Solid, error) {
	p, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	return newSolid(C.manifold_translate(C.manifold_alloc_manifold(), p,
		C.double(x), C.double(y), C.double(z)))
}

// rotate wraps manifold_rotate, which takes Euler angles in degrees.
func rotate(s kernel.Solid, x, y, z float64) (kernel.Solid, error) {
	p, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	const deg = 180 / math.Pi
	return newSolid(C.manifold_rotate(C.manifold_alloc_manifold(), p,
		C.double(x*deg), C.double(y*deg), C.double(z*deg)))
}

func (k *ManifoldKernel) RotateX(s kernel.Solid, angle float64) (kernel.Solid, error) {
	return rotate(s, angle, 0, 0)
}

func (k *ManifoldKernel) RotateY(s kernel.Solid, angle float64) (kernel.Solid, error) {
	return rotate(s, 0, angle, 0)
}

func (k *ManifoldKernel) RotateZ(s kernel.Solid, angle float64) (kernel.Solid, error) {
	return rotate(s, 0, 0, angle)
}

// ToMesh extracts a triangle mesh from the solid using Manifold's MeshGL
// format. Manifold meshes are exact, so quality is ignored. Vertex
// properties beyond position are dropped; face normals are derived from
// the winding by kernel.Mesh.
func (k *ManifoldKernel) ToMesh(s kernel.Solid, quality float64) (*kernel.Mesh, error) {
	p, err := unwrap(s)
	if err != nil {
		return nil, err
	}

	meshGL := C.manifold_get_meshgl(C.manifold_alloc_meshgl(), p)
	defer C.manifold_delete_meshgl(meshGL)

	numVert := int(C.manifold_meshgl_num_vert(meshGL))
	numTri := int(C.manifold_meshgl_num_tri(meshGL))
	if numVert == 0 || numTri == 0 {
		return &kernel.Mesh{}, nil
	}

	// The first 3 properties of every vertex are always x, y, z.
	numProp := int(C.manifold_meshgl_num_prop(meshGL))
	propData := make([]float32, numVert*numProp)
	C.manifold_meshgl_vert_properties(
		(*C.float)(unsafe.Pointer(&propData[0])),
		meshGL,
	)

	indices := make([]uint32, numTri*3)
	C.manifold_meshgl_tri_verts(
		(*C.uint32_t)(unsafe.Pointer(&indices[0])),
		meshGL,
	)

	vertices := make([]float32, numVert*3)
	for i := 0; i < numVert; i++ {
		copy(vertices[i*3:i*3+3], propData[i*numProp:i*numProp+3])
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Indices:  indices,
	}, nil
}
