package script

import (
	"fmt"
	"math"

	"github.com/chazu/makertron/pkg/graph"
	"github.com/chazu/makertron/pkg/kernel"
)

// buildLeaf validates a leaf's arguments and constructs it through the
// kernel. The returned handles become the leaf node's results.
func (in *interp) buildLeaf(kind graph.Kind, p Pos, a args) ([]kernel.Solid, error) {
	var (
		s   kernel.Solid
		err error
	)
	switch kind {
	case graph.KindCube:
		s, err = in.cube(p, a)
	case graph.KindSphere:
		s, err = in.sphere(p, a)
	case graph.KindCylinder:
		s, err = in.cylinder(p, a)
	case graph.KindCircle:
		s, err = in.circle(p, a)
	case graph.KindPolygon:
		s, err = in.polygon(p, a)
	case graph.KindPolyhedron:
		s, err = in.polyhedron(p, a)
	default:
		return nil, compileErrorf(p, "%s is not a leaf", kind)
	}
	if err != nil {
		return nil, asKernelError(kind, p, err)
	}
	return []kernel.Solid{s}, nil
}

func (in *interp) cube(p Pos, a args) (kernel.Solid, error) {
	v, ok := a.get("size", 0)
	if !ok || v == nil {
		return nil, validationErrorf(p, "cube", "size is required")
	}
	var size graph.Vec3
	switch x := v.(type) {
	case float64:
		size = graph.Vec3{x, x, x}
	case []Value:
		if len(x) != 3 {
			return nil, validationErrorf(p, "cube", "size must be a number or a 3-vector, got %s", Format(v))
		}
		for i, e := range x {
			f, ok := e.(float64)
			if !ok {
				return nil, validationErrorf(p, "cube", "size[%d] is %s, not a number", i, typeName(e))
			}
			size[i] = f
		}
	default:
		return nil, validationErrorf(p, "cube", "size must be a number or a 3-vector, got %s", typeName(v))
	}
	for i, f := range size {
		if !positive(f) {
			return nil, validationErrorf(p, "cube", "size[%d] must be positive and finite, got %s", i, formatNumber(f))
		}
	}
	center, err := flag(a, "center", 1)
	if err != nil {
		return nil, validationErrorf(p, "cube", "%v", err)
	}
	var min graph.Vec3
	if center {
		min = graph.Vec3{-size[0] / 2, -size[1] / 2, -size[2] / 2}
	}
	return in.k.Box(min[0], min[1], min[2], size[0], size[1], size[2])
}

// radius reads a radius given either as rName or as diameter dName. When
// both are present the diameter wins and a warning is logged.
func (in *interp) radius(p Pos, module string, a args, rName, dName string, i int) (float64, bool, error) {
	rv, hasR := a.get(rName, i)
	dv, hasD := a.named[dName]
	if hasR && rv == nil {
		hasR = false
	}
	if hasD && dv == nil {
		hasD = false
	}
	switch {
	case hasD:
		if hasR {
			in.warn(p, module+": both "+rName+" and "+dName+" given, using "+dName)
		}
		d, ok := dv.(float64)
		if !ok {
			return 0, false, validationErrorf(p, module, "%s must be a number, got %s", dName, typeName(dv))
		}
		if !finite(d) {
			return 0, false, validationErrorf(p, module, "%s must be finite, got %s", dName, formatNumber(d))
		}
		return d / 2, true, nil
	case hasR:
		r, ok := rv.(float64)
		if !ok {
			return 0, false, validationErrorf(p, module, "%s must be a number, got %s", rName, typeName(rv))
		}
		if !finite(r) {
			return 0, false, validationErrorf(p, module, "%s must be finite, got %s", rName, formatNumber(r))
		}
		return r, true, nil
	}
	return 0, false, nil
}

func (in *interp) sphere(p Pos, a args) (kernel.Solid, error) {
	r, ok, err := in.radius(p, "sphere", a, "r", "d", 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, validationErrorf(p, "sphere", "r or d is required")
	}
	if !(r > 0) {
		return nil, validationErrorf(p, "sphere", "radius must be positive, got %s", formatNumber(r))
	}
	return in.k.Sphere(r, 0, 0, 0)
}

func (in *interp) circle(p Pos, a args) (kernel.Solid, error) {
	r, ok, err := in.radius(p, "circle", a, "r", "d", 0)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, validationErrorf(p, "circle", "r or d is required")
	}
	if !(r > 0) {
		return nil, validationErrorf(p, "circle", "radius must be positive, got %s", formatNumber(r))
	}
	return in.k.Circle(r)
}

func (in *interp) cylinder(p Pos, a args) (kernel.Solid, error) {
	hv, ok := a.get("h", 0)
	if !ok || hv == nil {
		return nil, validationErrorf(p, "cylinder", "h is required")
	}
	h, ok := hv.(float64)
	if !ok || !positive(h) {
		return nil, validationErrorf(p, "cylinder", "h must be a positive finite number, got %s", Format(hv))
	}

	r, hasR, err := in.radius(p, "cylinder", a, "r", "d", -1)
	if err != nil {
		return nil, err
	}
	r1, has1, err := in.radius(p, "cylinder", a, "r1", "d1", 1)
	if err != nil {
		return nil, err
	}
	r2, has2, err := in.radius(p, "cylinder", a, "r2", "d2", 2)
	if err != nil {
		return nil, err
	}
	if !has1 {
		r1, has1 = r, hasR
	}
	if !has2 {
		r2, has2 = r, hasR
	}
	if !has1 || !has2 {
		return nil, validationErrorf(p, "cylinder", "radius is required (r, d, r1/r2 or d1/d2)")
	}
	if r1 < 0 || r2 < 0 {
		return nil, validationErrorf(p, "cylinder", "radii must not be negative")
	}
	if r1 == 0 && r2 == 0 {
		return nil, validationErrorf(p, "cylinder", "radii must not both be zero")
	}

	center, err := flag(a, "center", 3)
	if err != nil {
		return nil, validationErrorf(p, "cylinder", "%v", err)
	}
	z := 0.0
	if center {
		z = -h / 2
	}
	if r1 != r2 {
		return in.k.Cone(r1, r2, h, z)
	}
	return in.k.Cylinder(r1, h, z)
}

func (in *interp) polygon(p Pos, a args) (kernel.Solid, error) {
	pv, ok := a.get("points", 0)
	if !ok || pv == nil {
		return nil, validationErrorf(p, "polygon", "points is required")
	}
	list, ok := pv.([]Value)
	if !ok || len(list) == 0 {
		return nil, validationErrorf(p, "polygon", "points must be a non-empty list, got %s", Format(pv))
	}
	points := make([][2]float64, len(list))
	for i, e := range list {
		v, ok := e.([]Value)
		if !ok || len(v) != 2 {
			return nil, validationErrorf(p, "polygon", "point %d must be a 2-vector, got %s", i, Format(e))
		}
		for j := range v {
			f, ok := v[j].(float64)
			if !ok || !finite(f) {
				return nil, validationErrorf(p, "polygon", "point %d has a non-finite coordinate", i)
			}
			points[i][j] = f
		}
	}

	var paths [][]int
	if pathsV, ok := a.get("paths", 1); ok && pathsV != nil {
		pl, ok := pathsV.([]Value)
		if !ok || len(pl) == 0 {
			return nil, validationErrorf(p, "polygon", "paths must be a non-empty list of index lists")
		}
		for i, e := range pl {
			idx, err := indices(e, len(points))
			if err != nil {
				return nil, validationErrorf(p, "polygon", "path %d: %v", i, err)
			}
			paths = append(paths, idx)
		}
	} else {
		all := make([]int, len(points))
		for i := range all {
			all[i] = i
		}
		paths = [][]int{all}
	}

	var acc kernel.Solid
	for i, path := range paths {
		if len(path) > 1 && points[path[0]] == points[path[len(path)-1]] {
			path = path[:len(path)-1]
		}
		if len(path) < 3 {
			return nil, validationErrorf(p, "polygon", "path %d needs at least 3 distinct points", i)
		}
		ring := make([][2]float64, len(path))
		for j, idx := range path {
			ring[j] = points[idx]
		}
		s, err := in.k.Polygon(ring)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = s
			continue
		}
		if acc, err = xor(in.k, acc, s); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// xor combines two shapes by symmetric difference, so nested paths cut
// holes and disjoint paths add islands.
func xor(k kernel.Kernel, a, b kernel.Solid) (kernel.Solid, error) {
	u, err := k.Union(a, b)
	if err != nil {
		return nil, err
	}
	i, err := k.Intersection(a, b)
	if err != nil {
		return nil, err
	}
	return k.Difference(u, i)
}

func (in *interp) polyhedron(p Pos, a args) (kernel.Solid, error) {
	pv, ok := a.get("points", 0)
	if !ok || pv == nil {
		return nil, validationErrorf(p, "polyhedron", "points is required")
	}
	list, ok := pv.([]Value)
	if !ok || len(list) == 0 {
		return nil, validationErrorf(p, "polyhedron", "points must be a non-empty list")
	}
	points := make([][3]float64, len(list))
	for i, e := range list {
		v, ok := e.([]Value)
		if !ok || len(v) != 3 {
			return nil, validationErrorf(p, "polyhedron", "point %d must be a 3-vector, got %s", i, Format(e))
		}
		for j := range v {
			f, ok := v[j].(float64)
			if !ok || !finite(f) {
				return nil, validationErrorf(p, "polyhedron", "point %d has a non-finite coordinate", i)
			}
			points[i][j] = f
		}
	}

	fv, ok := a.get("faces", 1)
	if !ok || fv == nil {
		if tv, ok := a.named["triangles"]; ok && tv != nil {
			in.warn(p, "polyhedron: triangles is deprecated, use faces")
			fv = tv
		}
	}
	if fv == nil {
		return nil, validationErrorf(p, "polyhedron", "faces is required")
	}
	fl, ok := fv.([]Value)
	if !ok || len(fl) == 0 {
		return nil, validationErrorf(p, "polyhedron", "faces must be a non-empty list")
	}
	faces := make([][]int, len(fl))
	for i, e := range fl {
		idx, err := indices(e, len(points))
		if err != nil {
			return nil, validationErrorf(p, "polyhedron", "face %d: %v", i, err)
		}
		if len(idx) < 3 {
			return nil, validationErrorf(p, "polyhedron", "face %d has %d indices, need at least 3", i, len(idx))
		}
		// Faces are listed clockwise seen from outside; the kernel wants
		// counter-clockwise.
		for l, r := 0, len(idx)-1; l < r; l, r = l+1, r-1 {
			idx[l], idx[r] = idx[r], idx[l]
		}
		faces[i] = idx
	}
	return in.k.Polyhedron(points, faces)
}

// indices decodes a list of point indices, each in [0, n).
func indices(v Value, n int) ([]int, error) {
	list, ok := v.([]Value)
	if !ok {
		return nil, fmt.Errorf("expected a list of indices, got %s", typeName(v))
	}
	out := make([]int, len(list))
	for i, e := range list {
		f, ok := e.(float64)
		if !ok || f != math.Trunc(f) {
			return nil, fmt.Errorf("index %d is not an integer: %s", i, Format(e))
		}
		if f < 0 || f >= float64(n) {
			return nil, fmt.Errorf("index %s out of range [0, %d)", formatNumber(f), n)
		}
		out[i] = int(f)
	}
	return out, nil
}

func finite(f float64) bool { return !math.IsInf(f, 0) && !math.IsNaN(f) }

// positive rejects zero, negatives, NaN and infinities.
func positive(f float64) bool { return f > 0 && !math.IsInf(f, 1) }
