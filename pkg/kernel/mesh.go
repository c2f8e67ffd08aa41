package kernel

import "math"

// Mesh is a triangle mesh suitable for rendering.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// Bounds returns the axis-aligned bounding box of the mesh vertices.
// An empty mesh reports zero bounds.
func (m *Mesh) Bounds() (min, max [3]float64) {
	if m.IsEmpty() {
		return min, max
	}
	for i := 0; i < 3; i++ {
		min[i] = math.Inf(1)
		max[i] = math.Inf(-1)
	}
	for v := 0; v < m.VertexCount(); v++ {
		for i := 0; i < 3; i++ {
			c := float64(m.Vertices[v*3+i])
			min[i] = math.Min(min[i], c)
			max[i] = math.Max(max[i], c)
		}
	}
	return min, max
}

// Triangle returns the three corner positions of triangle t.
func (m *Mesh) Triangle(t int) [3][3]float32 {
	var tri [3][3]float32
	for j := 0; j < 3; j++ {
		idx := m.Indices[t*3+j]
		tri[j] = [3]float32{m.Vertices[idx*3], m.Vertices[idx*3+1], m.Vertices[idx*3+2]}
	}
	return tri
}

// FaceNormal returns the normal of triangle t, taken from the first
// vertex normal when present and computed from the winding otherwise.
func (m *Mesh) FaceNormal(t int) [3]float32 {
	if len(m.Normals) == len(m.Vertices) {
		idx := m.Indices[t*3]
		return [3]float32{m.Normals[idx*3], m.Normals[idx*3+1], m.Normals[idx*3+2]}
	}
	tri := m.Triangle(t)
	e1 := [3]float64{
		float64(tri[1][0] - tri[0][0]), float64(tri[1][1] - tri[0][1]), float64(tri[1][2] - tri[0][2]),
	}
	e2 := [3]float64{
		float64(tri[2][0] - tri[0][0]), float64(tri[2][1] - tri[0][1]), float64(tri[2][2] - tri[0][2]),
	}
	n := [3]float64{
		e1[1]*e2[2] - e1[2]*e2[1],
		e1[2]*e2[0] - e1[0]*e2[2],
		e1[0]*e2[1] - e1[1]*e2[0],
	}
	l := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if l < 1e-12 {
		return [3]float32{}
	}
	return [3]float32{float32(n[0] / l), float32(n[1] / l), float32(n[2] / l)}
}
