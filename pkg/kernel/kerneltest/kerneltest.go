// Package kerneltest provides a symbolic kernel.Kernel for tests. Every
// handle carries the expression that built it, so tests can assert on the
// exact sequence of kernel calls without doing any geometry.
package kerneltest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/chazu/makertron/pkg/kernel"
)

// Compile-time interface checks.
var _ kernel.Kernel = (*Kernel)(nil)
var _ kernel.Solid = (*Shape)(nil)
var _ kernel.Releaser = (*Shape)(nil)

// Shape is a symbolic solid.
type Shape struct {
	Expr     string
	Flat     bool
	Min, Max [3]float64

	mu       sync.Mutex
	released bool
}

// BoundingBox returns the tracked axis-aligned bounds.
func (s *Shape) BoundingBox() (min, max [3]float64) { return s.Min, s.Max }

// Planar reports whether the shape is 2D.
func (s *Shape) Planar() bool { return s.Flat }

// Release marks the shape as freed.
func (s *Shape) Release() {
	s.mu.Lock()
	s.released = true
	s.mu.Unlock()
}

// Released reports whether Release has been called.
func (s *Shape) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *Shape) String() string { return s.Expr }

// Num formats a float the way Shape expressions do.
func Num(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Kernel is a symbolic kernel. The zero value is not usable; call New.
type Kernel struct {
	mu     sync.Mutex
	fail   map[string]error
	calls  map[string]int
	meshed []string
}

// New returns an empty symbolic kernel.
func New() *Kernel {
	return &Kernel{
		fail:  make(map[string]error),
		calls: make(map[string]int),
	}
}

// FailOn makes every call to op (lower-case method name, e.g. "difference")
// return err.
func (k *Kernel) FailOn(op string, err error) {
	k.mu.Lock()
	k.fail[op] = err
	k.mu.Unlock()
}

// Calls returns how many times op was invoked.
func (k *Kernel) Calls(op string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.calls[op]
}

// Meshed returns the expressions passed to ToMesh, in call order.
func (k *Kernel) Meshed() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.meshed...)
}

func (k *Kernel) enter(op string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.calls[op]++
	return k.fail[op]
}

func call(op string, args ...any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case float64:
			parts[i] = Num(v)
		case *Shape:
			parts[i] = v.Expr
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return op + "(" + strings.Join(parts, ",") + ")"
}

func shape(s kernel.Solid) (*Shape, error) {
	sh, ok := s.(*Shape)
	if !ok || sh == nil {
		return nil, fmt.Errorf("kerneltest: foreign handle %T", s)
	}
	return sh, nil
}

func (k *Kernel) Box(x, y, z, sx, sy, sz float64) (kernel.Solid, error) {
	if err := k.enter("box"); err != nil {
		return nil, err
	}
	return &Shape{
		Expr: call("box", x, y, z, sx, sy, sz),
		Min:  [3]float64{x, y, z},
		Max:  [3]float64{x + sx, y + sy, z + sz},
	}, nil
}

func (k *Kernel) Sphere(r, x, y, z float64) (kernel.Solid, error) {
	if err := k.enter("sphere"); err != nil {
		return nil, err
	}
	return &Shape{
		Expr: call("sphere", r, x, y, z),
		Min:  [3]float64{x - r, y - r, z - r},
		Max:  [3]float64{x + r, y + r, z + r},
	}, nil
}

func (k *Kernel) Cone(r1, r2, h, z float64) (kernel.Solid, error) {
	if err := k.enter("cone"); err != nil {
		return nil, err
	}
	r := math.Max(r1, r2)
	return &Shape{
		Expr: call("cone", r1, r2, h, z),
		Min:  [3]float64{-r, -r, z},
		Max:  [3]float64{r, r, z + h},
	}, nil
}

func (k *Kernel) Cylinder(r, h, z float64) (kernel.Solid, error) {
	if err := k.enter("cylinder"); err != nil {
		return nil, err
	}
	return &Shape{
		Expr: call("cylinder", r, h, z),
		Min:  [3]float64{-r, -r, z},
		Max:  [3]float64{r, r, z + h},
	}, nil
}

func (k *Kernel) Polyhedron(points [][3]float64, faces [][]int) (kernel.Solid, error) {
	if err := k.enter("polyhedron"); err != nil {
		return nil, err
	}
	// Mirrors the sdfx and manifold input checks.
	for i, p := range points {
		for _, c := range p {
			if math.IsInf(c, 0) || math.IsNaN(c) {
				return nil, fmt.Errorf("kerneltest: point %d is not finite", i)
			}
		}
	}
	for fi, f := range faces {
		if len(f) < 3 {
			return nil, fmt.Errorf("kerneltest: face %d has %d vertices", fi, len(f))
		}
		for _, n := range f {
			if n < 0 || n >= len(points) {
				return nil, fmt.Errorf("kerneltest: face %d references point %d", fi, n)
			}
		}
	}
	s := &Shape{Expr: call("polyhedron", len(points), len(faces))}
	s.Min, s.Max = pointBounds(points)
	return s, nil
}

func (k *Kernel) Circle(r float64) (kernel.Solid, error) {
	if err := k.enter("circle"); err != nil {
		return nil, err
	}
	return &Shape{
		Expr: call("circle", r),
		Flat: true,
		Min:  [3]float64{-r, -r, 0},
		Max:  [3]float64{r, r, 0},
	}, nil
}

func (k *Kernel) Polygon(points [][2]float64) (kernel.Solid, error) {
	if err := k.enter("polygon"); err != nil {
		return nil, err
	}
	pts := make([][3]float64, len(points))
	for i, p := range points {
		pts[i] = [3]float64{p[0], p[1], 0}
	}
	s := &Shape{Expr: call("polygon", len(points)), Flat: true}
	s.Min, s.Max = pointBounds(pts)
	return s, nil
}

func (k *Kernel) Extrude(h float64, s kernel.Solid) (kernel.Solid, error) {
	if err := k.enter("extrude"); err != nil {
		return nil, err
	}
	sh, err := shape(s)
	if err != nil {
		return nil, err
	}
	if !sh.Flat {
		return nil, kernel.ErrDimensionMismatch
	}
	out := &Shape{Expr: call("extrude", h, sh), Min: sh.Min, Max: sh.Max}
	out.Max[2] = h
	return out, nil
}

func (k *Kernel) boolean(op string, a, b kernel.Solid) (*Shape, *Shape, error) {
	if err := k.enter(op); err != nil {
		return nil, nil, err
	}
	sa, err := shape(a)
	if err != nil {
		return nil, nil, err
	}
	sb, err := shape(b)
	if err != nil {
		return nil, nil, err
	}
	if sa.Flat != sb.Flat {
		return nil, nil, kernel.ErrDimensionMismatch
	}
	return sa, sb, nil
}

func (k *Kernel) Union(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := k.boolean("union", a, b)
	if err != nil {
		return nil, err
	}
	out := &Shape{Expr: call("union", sa, sb), Flat: sa.Flat}
	for i := 0; i < 3; i++ {
		out.Min[i] = math.Min(sa.Min[i], sb.Min[i])
		out.Max[i] = math.Max(sa.Max[i], sb.Max[i])
	}
	return out, nil
}

func (k *Kernel) Difference(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := k.boolean("difference", a, b)
	if err != nil {
		return nil, err
	}
	return &Shape{Expr: call("difference", sa, sb), Flat: sa.Flat, Min: sa.Min, Max: sa.Max}, nil
}

func (k *Kernel) Intersection(a, b kernel.Solid) (kernel.Solid, error) {
	sa, sb, err := k.boolean("intersection", a, b)
	if err != nil {
		return nil, err
	}
	out := &Shape{Expr: call("intersection", sa, sb), Flat: sa.Flat}
	for i := 0; i < 3; i++ {
		out.Min[i] = math.Max(sa.Min[i], sb.Min[i])
		out.Max[i] = math.Min(sa.Max[i], sb.Max[i])
	}
	return out, nil
}

func (k *Kernel) Translate(s kernel.Solid, x, y, z float64) (kernel.Solid, error) {
	if err := k.enter("translate"); err != nil {
		return nil, err
	}
	sh, err := shape(s)
	if err != nil {
		return nil, err
	}
	d := [3]float64{x, y, z}
	out := &Shape{Expr: call("translate", x, y, z, sh), Flat: sh.Flat}
	for i := 0; i < 3; i++ {
		out.Min[i] = sh.Min[i] + d[i]
		out.Max[i] = sh.Max[i] + d[i]
	}
	return out, nil
}

func (k *Kernel) rotate(op string, axis int, s kernel.Solid, angle float64) (kernel.Solid, error) {
	if err := k.enter(op); err != nil {
		return nil, err
	}
	sh, err := shape(s)
	if err != nil {
		return nil, err
	}
	out := &Shape{Expr: call(op, angle, sh), Flat: sh.Flat}
	out.Min, out.Max = rotatedBounds(sh.Min, sh.Max, axis, angle)
	return out, nil
}

func (k *Kernel) RotateX(s kernel.Solid, angle float64) (kernel.Solid, error) {
	return k.rotate("rotatex", 0, s, angle)
}

func (k *Kernel) RotateY(s kernel.Solid, angle float64) (kernel.Solid, error) {
	return k.rotate("rotatey", 1, s, angle)
}

func (k *Kernel) RotateZ(s kernel.Solid, angle float64) (kernel.Solid, error) {
	return k.rotate("rotatez", 2, s, angle)
}

// ToMesh returns a single triangle spanning the shape's bounding box.
func (k *Kernel) ToMesh(s kernel.Solid, quality float64) (*kernel.Mesh, error) {
	if err := k.enter("tomesh"); err != nil {
		return nil, err
	}
	sh, err := shape(s)
	if err != nil {
		return nil, err
	}
	k.mu.Lock()
	k.meshed = append(k.meshed, sh.Expr)
	k.mu.Unlock()

	lo, hi := sh.Min, sh.Max
	return &kernel.Mesh{
		Vertices: []float32{
			float32(lo[0]), float32(lo[1]), float32(lo[2]),
			float32(hi[0]), float32(lo[1]), float32(lo[2]),
			float32(hi[0]), float32(hi[1]), float32(hi[2]),
		},
		Normals: []float32{0, 0, 1, 0, 0, 1, 0, 0, 1},
		Indices: []uint32{0, 1, 2},
	}, nil
}

func pointBounds(points [][3]float64) (min, max [3]float64) {
	if len(points) == 0 {
		return min, max
	}
	min, max = points[0], points[0]
	for _, p := range points[1:] {
		for i := 0; i < 3; i++ {
			min[i] = math.Min(min[i], p[i])
			max[i] = math.Max(max[i], p[i])
		}
	}
	return min, max
}

// rotatedBounds rotates the eight box corners about one axis and re-fits.
func rotatedBounds(lo, hi [3]float64, axis int, angle float64) (min, max [3]float64) {
	c, s := math.Cos(angle), math.Sin(angle)
	a, b := (axis+1)%3, (axis+2)%3
	corners := make([][3]float64, 0, 8)
	for i := 0; i < 8; i++ {
		p := lo
		for j := 0; j < 3; j++ {
			if i&(1<<j) != 0 {
				p[j] = hi[j]
			}
		}
		pa, pb := p[a], p[b]
		p[a] = pa*c - pb*s
		p[b] = pa*s + pb*c
		corners = append(corners, p)
	}
	return pointBounds(corners)
}
