// Package sdfx implements the kernel.Kernel interface using the
// github.com/deadsy/sdfx SDF-based CAD library.
package sdfx

import (
	"fmt"
	"math"

	"github.com/chazu/makertron/pkg/kernel"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v2 "github.com/deadsy/sdfx/vec/v2"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Compile-time interface check.
var _ kernel.Kernel = (*SdfxKernel)(nil)

// Marching cubes resolution is derived from the requested quality and
// clamped to this range along the longest axis.
const (
	minMeshCells = 16
	maxMeshCells = 400
)

// sdfxSolid wraps either an sdf.SDF3 or an sdf.SDF2 to implement kernel.Solid.
type sdfxSolid struct {
	s3 sdf.SDF3
	s2 sdf.SDF2
}

// BoundingBox returns the axis-aligned bounding box.
func (s *sdfxSolid) BoundingBox() (min, max [3]float64) {
	if s.s2 != nil {
		bb := s.s2.BoundingBox()
		return [3]float64{bb.Min.X, bb.Min.Y, 0}, [3]float64{bb.Max.X, bb.Max.Y, 0}
	}
	bb := s.s3.BoundingBox()
	min = [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z}
	max = [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z}
	return min, max
}

// Planar reports whether the solid is a 2D region.
func (s *sdfxSolid) Planar() bool { return s.s2 != nil }

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct{}

// New returns a new SdfxKernel.
func New() *SdfxKernel {
	return &SdfxKernel{}
}

func unwrap(s kernel.Solid) (*sdfxSolid, error) {
	ss, ok := s.(*sdfxSolid)
	if !ok || ss == nil {
		return nil, fmt.Errorf("sdfx: foreign handle %T", s)
	}
	return ss, nil
}

func wrap3(s sdf.SDF3) kernel.Solid { return &sdfxSolid{s3: s} }

func wrap2(s sdf.SDF2) kernel.Solid { return &sdfxSolid{s2: s} }

// Box creates a box with its minimum corner at (x, y, z).
// sdf.Box3D centers the box at the origin, so we translate by half-dimensions.
func (k *SdfxKernel) Box(x, y, z, sx, sy, sz float64) (kernel.Solid, error) {
	s, err := sdf.Box3D(v3.Vec{X: sx, Y: sy, Z: sz}, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Box3D: %w", err)
	}
	m := sdf.Translate3d(v3.Vec{X: x + sx/2, Y: y + sy/2, Z: z + sz/2})
	return wrap3(sdf.Transform3D(s, m)), nil
}

// Sphere creates a sphere of radius r centered at (x, y, z).
func (k *SdfxKernel) Sphere(r, x, y, z float64) (kernel.Solid, error) {
	s, err := sdf.Sphere3D(r)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Sphere3D: %w", err)
	}
	if x == 0 && y == 0 && z == 0 {
		return wrap3(s), nil
	}
	return wrap3(sdf.Transform3D(s, sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z}))), nil
}

// Cone creates a truncated cone along +Z with its base at height z.
func (k *SdfxKernel) Cone(r1, r2, h, z float64) (kernel.Solid, error) {
	s, err := sdf.Cone3D(h, r1, r2, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Cone3D: %w", err)
	}
	return wrap3(sdf.Transform3D(s, sdf.Translate3d(v3.Vec{Z: z + h/2}))), nil
}

// Cylinder creates a cylinder along +Z with its base at height z.
func (k *SdfxKernel) Cylinder(r, h, z float64) (kernel.Solid, error) {
	s, err := sdf.Cylinder3D(h, r, 0)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Cylinder3D: %w", err)
	}
	return wrap3(sdf.Transform3D(s, sdf.Translate3d(v3.Vec{Z: z + h/2}))), nil
}

// Polyhedron builds a closed mesh solid. Faces are fan-triangulated and
// must already be wound counter-clockwise seen from outside.
func (k *SdfxKernel) Polyhedron(points [][3]float64, faces [][]int) (kernel.Solid, error) {
	var tris []*sdf.Triangle3
	for fi, f := range faces {
		if len(f) < 3 {
			return nil, fmt.Errorf("sdfx: face %d has %d vertices", fi, len(f))
		}
		for i := 1; i+1 < len(f); i++ {
			idx := [3]int{f[0], f[i], f[i+1]}
			var t sdf.Triangle3
			for j, n := range idx {
				if n < 0 || n >= len(points) {
					return nil, fmt.Errorf("sdfx: face %d references point %d", fi, n)
				}
				p := points[n]
				t[j] = v3.Vec{X: p[0], Y: p[1], Z: p[2]}
			}
			tris = append(tris, &t)
		}
	}
	s, err := sdf.Mesh3D(tris)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Mesh3D: %w", err)
	}
	return wrap3(s), nil
}

// Circle creates a planar disc centered on the origin.
func (k *SdfxKernel) Circle(r float64) (kernel.Solid, error) {
	s, err := sdf.Circle2D(r)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Circle2D: %w", err)
	}
	return wrap2(s), nil
}

// Polygon creates a planar region from a closed outline.
func (k *SdfxKernel) Polygon(points [][2]float64) (kernel.Solid, error) {
	verts := make([]v2.Vec, len(points))
	for i, p := range points {
		verts[i] = v2.Vec{X: p[0], Y: p[1]}
	}
	s, err := sdf.Polygon2D(verts)
	if err != nil {
		return nil, fmt.Errorf("sdfx.Polygon2D: %w", err)
	}
	return wrap2(s), nil
}

// Extrude sweeps a planar region from z=0 to z=h.
// sdf.Extrude3D is centered on z=0, so we lift it by h/2.
func (k *SdfxKernel) Extrude(h float64, s kernel.Solid) (kernel.Solid, error) {
	ss, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	if !ss.Planar() {
		return nil, kernel.ErrDimensionMismatch
	}
	e := sdf.Extrude3D(ss.s2, h)
	return wrap3(sdf.Transform3D(e, sdf.Translate3d(v3.Vec{Z: h / 2}))), nil
}

func pair(a, b kernel.Solid) (*sdfxSolid, *sdfxSolid, error) {
	sa, err := unwrap(a)
	if err != nil {
		return nil, nil, err
	}
	sb, err := unwrap(b)
	if err != nil {
		return nil, nil, err
	}
	if sa.Planar() != sb.Planar() {
		return nil, nil, kernel.ErrDimensionMismatch
	}
	return sa, sb, nil
}

// Union returns the union of two solids.
func (k *SdfxKernel) Union(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := pair(a, b)
	if err != nil {
		return nil, err
	}
	if sa.Planar() {
		return wrap2(sdf.Union2D(sa.s2, sb.s2)), nil
	}
	return wrap3(sdf.Union3D(sa.s3, sb.s3)), nil
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := pair(a, b)
	if err != nil {
		return nil, err
	}
	if sa.Planar() {
		return wrap2(sdf.Difference2D(sa.s2, sb.s2)), nil
	}
	return wrap3(sdf.Difference3D(sa.s3, sb.s3)), nil
}

// Intersection returns the intersection of two solids.
func (k *SdfxKernel) Intersection(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := pair(a, b)
	if err != nil {
		return nil, err
	}
	if sa.Planar() {
		return wrap2(sdf.Intersect2D(sa.s2, sb.s2)), nil
	}
	return wrap3(sdf.Intersect3D(sa.s3, sb.s3)), nil
}

// Translate moves a solid by (x, y, z). Planar regions ignore z.
func (k *SdfxKernel) Translate(s kernel.Solid, x, y, z float64) (kernel.Solid, error) {
	ss, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	if ss.Planar() {
		return wrap2(sdf.Transform2D(ss.s2, sdf.Translate2d(v2.Vec{X: x, Y: y}))), nil
	}
	return wrap3(sdf.Transform3D(ss.s3, sdf.Translate3d(v3.Vec{X: x, Y: y, Z: z}))), nil
}

// RotateX rotates a solid about the X axis.
func (k *SdfxKernel) RotateX(s kernel.Solid, angle float64) (kernel.Solid, error) {
	return k.rotate(s, angle, sdf.RotateX)
}

// RotateY rotates a solid about the Y axis.
func (k *SdfxKernel) RotateY(s kernel.Solid, angle float64) (kernel.Solid, error) {
	return k.rotate(s, angle, sdf.RotateY)
}

// RotateZ rotates a solid about the Z axis. Planar regions rotate in place.
func (k *SdfxKernel) RotateZ(s kernel.Solid, angle float64) (kernel.Solid, error) {
	ss, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	if ss.Planar() {
		return wrap2(sdf.Transform2D(ss.s2, sdf.Rotate2d(angle))), nil
	}
	return wrap3(sdf.Transform3D(ss.s3, sdf.RotateZ(angle))), nil
}

// rotate applies an out-of-plane rotation. A planar region only accepts a
// zero angle, which leaves it unchanged.
func (k *SdfxKernel) rotate(s kernel.Solid, angle float64, m func(float64) sdf.M44) (kernel.Solid, error) {
	ss, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	if ss.Planar() {
		if angle == 0 {
			return ss, nil
		}
		return nil, fmt.Errorf("sdfx: out-of-plane rotation of a 2D shape: %w", kernel.ErrUnsupported)
	}
	return wrap3(sdf.Transform3D(ss.s3, m(angle))), nil
}

// meshCells picks the marching cubes resolution for a bounding box so that
// cells are roughly quality units wide.
func meshCells(min, max [3]float64, quality float64) int {
	extent := 0.0
	for i := 0; i < 3; i++ {
		extent = math.Max(extent, max[i]-min[i])
	}
	if quality <= 0 {
		return maxMeshCells
	}
	cells := int(math.Ceil(extent / quality))
	if cells < minMeshCells {
		return minMeshCells
	}
	if cells > maxMeshCells {
		return maxMeshCells
	}
	return cells
}

// ToMesh converts a solid to a triangle mesh using marching cubes.
func (k *SdfxKernel) ToMesh(s kernel.Solid, quality float64) (*kernel.Mesh, error) {
	ss, err := unwrap(s)
	if err != nil {
		return nil, err
	}
	if ss.Planar() {
		return nil, fmt.Errorf("sdfx: cannot tessellate a 2D shape: %w", kernel.ErrDimensionMismatch)
	}

	min, max := ss.BoundingBox()
	renderer := render.NewMarchingCubesUniform(meshCells(min, max, quality))
	triangles := render.ToTriangles(ss.s3, renderer)

	numVerts := len(triangles) * 3
	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		n := tri.Normal()
		nx, ny, nz := float32(n.X), float32(n.Y), float32(n.Z)

		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &kernel.Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}
