// Package tessellate turns the resolved root solids of an evaluation into
// serialized triangle meshes. One output is produced per root solid.
package tessellate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chazu/makertron/pkg/graph"
	"github.com/chazu/makertron/pkg/kernel"
)

// DefaultQuality is the mesh feature size used when a request gives none.
const DefaultQuality = 0.1

// Format selects how a mesh is serialized.
type Format string

const (
	// FormatSTL is ASCII STL text.
	FormatSTL Format = "stl"
	// FormatTriangles is a JSON array of vertex coordinates, nine floats
	// per triangle.
	FormatTriangles Format = "triangles"
)

// ParseFormat maps a request field to a Format. Empty means STL.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatSTL:
		return FormatSTL, nil
	case FormatTriangles:
		return FormatTriangles, nil
	}
	return "", fmt.Errorf("tessellate: unknown format %q (want stl or triangles)", s)
}

// Output is one serialized root solid.
type Output struct {
	Index     int           `json:"index"`
	Format    Format        `json:"format"`
	Data      string        `json:"data"`
	Triangles int           `json:"triangles"`
	Bounds    [2][3]float64 `json:"bounds"`
}

// Serialize meshes every solid through k and encodes it in format. Order is
// preserved. Planar solids cannot be meshed and fail the whole call.
func Serialize(ctx context.Context, solids []kernel.Solid, k kernel.Kernel, quality float64, format Format) ([]Output, error) {
	if quality <= 0 {
		quality = DefaultQuality
	}
	if format == "" {
		format = FormatSTL
	}

	out := make([]Output, 0, len(solids))
	for i, s := range solids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node := graph.NodeID(fmt.Sprintf("root-%d", i))
		if s.Planar() {
			return nil, &graph.KernelError{
				Node: node,
				Kind: graph.KindRoot,
				Op:   "tomesh",
				Err:  fmt.Errorf("%w: extrude 2D shapes before output", kernel.ErrDimensionMismatch),
			}
		}
		mesh, err := k.ToMesh(s, quality)
		if err != nil {
			return nil, &graph.KernelError{Node: node, Kind: graph.KindRoot, Op: "tomesh", Err: err}
		}
		data, err := Encode(mesh, format, fmt.Sprintf("makertron_%d", i))
		if err != nil {
			return nil, fmt.Errorf("tessellate: root %d: %w", i, err)
		}
		min, max := mesh.Bounds()
		out = append(out, Output{
			Index:     i,
			Format:    format,
			Data:      data,
			Triangles: mesh.TriangleCount(),
			Bounds:    [2][3]float64{min, max},
		})
	}
	return out, nil
}

// Encode serializes one mesh. name is used as the STL solid name.
func Encode(m *kernel.Mesh, format Format, name string) (string, error) {
	switch format {
	case FormatSTL, "":
		var b strings.Builder
		if err := WriteSTL(&b, name, m); err != nil {
			return "", err
		}
		return b.String(), nil
	case FormatTriangles:
		data, err := json.Marshal(Floats(m))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return "", fmt.Errorf("unknown format %q", format)
}

// Floats flattens a mesh into triangle soup: x, y, z for each corner of
// each triangle.
func Floats(m *kernel.Mesh) []float32 {
	out := make([]float32, 0, m.TriangleCount()*9)
	for t := 0; t < m.TriangleCount(); t++ {
		for _, v := range m.Triangle(t) {
			out = append(out, v[0], v[1], v[2])
		}
	}
	return out
}
