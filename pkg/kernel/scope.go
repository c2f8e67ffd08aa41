package kernel

import "sync"

// Compile-time interface check.
var _ Kernel = (*Scope)(nil)

// Scope wraps a Kernel for the lifetime of one evaluation. It records every
// handle the wrapped kernel hands out so they can be released in bulk once
// the evaluation is over, whether it finished or was abandoned.
type Scope struct {
	inner Kernel

	mu       sync.Mutex
	handles  []Solid
	released bool
}

// NewScope returns a Scope around k.
func NewScope(k Kernel) *Scope {
	return &Scope{inner: k}
}

// Len returns the number of handles created through the scope.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Release frees every handle created through the scope. It is safe to call
// more than once.
func (s *Scope) Release() {
	s.mu.Lock()
	handles := s.handles
	s.handles = nil
	s.released = true
	s.mu.Unlock()

	for _, h := range handles {
		if r, ok := h.(Releaser); ok {
			r.Release()
		}
	}
}

// track records a freshly created handle. Handles produced after Release are
// freed immediately and reported as an error so an abandoned evaluation
// cannot leak native memory.
func (s *Scope) track(h Solid, err error) (Solid, error) {
	if err != nil || h == nil {
		return h, err
	}
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		if r, ok := h.(Releaser); ok {
			r.Release()
		}
		return nil, errScopeReleased
	}
	s.handles = append(s.handles, h)
	s.mu.Unlock()
	return h, nil
}

var errScopeReleased = scopeError("kernel: scope already released")

type scopeError string

func (e scopeError) Error() string { return string(e) }

func (s *Scope) Box(x, y, z, sx, sy, sz float64) (Solid, error) {
	return s.track(s.inner.Box(x, y, z, sx, sy, sz))
}

func (s *Scope) Sphere(r, x, y, z float64) (Solid, error) {
	return s.track(s.inner.Sphere(r, x, y, z))
}

func (s *Scope) Cone(r1, r2, h, z float64) (Solid, error) {
	return s.track(s.inner.Cone(r1, r2, h, z))
}

func (s *Scope) Cylinder(r, h, z float64) (Solid, error) {
	return s.track(s.inner.Cylinder(r, h, z))
}

func (s *Scope) Polyhedron(points [][3]float64, faces [][]int) (Solid, error) {
	return s.track(s.inner.Polyhedron(points, faces))
}

func (s *Scope) Circle(r float64) (Solid, error) {
	return s.track(s.inner.Circle(r))
}

func (s *Scope) Polygon(points [][2]float64) (Solid, error) {
	return s.track(s.inner.Polygon(points))
}

func (s *Scope) Extrude(h float64, shape Solid) (Solid, error) {
	return s.track(s.inner.Extrude(h, shape))
}

func (s *Scope) Union(a, b Solid) (Solid, error) {
	return s.track(s.inner.Union(a, b))
}

func (s *Scope) Difference(a, b Solid) (Solid, error) {
	return s.track(s.inner.Difference(a, b))
}

func (s *Scope) Intersection(a, b Solid) (Solid, error) {
	return s.track(s.inner.Intersection(a, b))
}

func (s *Scope) Translate(shape Solid, x, y, z float64) (Solid, error) {
	return s.track(s.inner.Translate(shape, x, y, z))
}

func (s *Scope) RotateX(shape Solid, angle float64) (Solid, error) {
	return s.track(s.inner.RotateX(shape, angle))
}

func (s *Scope) RotateY(shape Solid, angle float64) (Solid, error) {
	return s.track(s.inner.RotateY(shape, angle))
}

func (s *Scope) RotateZ(shape Solid, angle float64) (Solid, error) {
	return s.track(s.inner.RotateZ(shape, angle))
}

// ToMesh does not create handles and is passed straight through.
func (s *Scope) ToMesh(shape Solid, quality float64) (*Mesh, error) {
	return s.inner.ToMesh(shape, quality)
}
