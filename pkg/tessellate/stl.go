package tessellate

import (
	"bufio"
	"io"
	"strconv"

	"github.com/chazu/makertron/pkg/kernel"
)

// WriteSTL writes m as ASCII STL.
func WriteSTL(w io.Writer, name string, m *kernel.Mesh) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("solid " + name + "\n")
	for t := 0; t < m.TriangleCount(); t++ {
		n := m.FaceNormal(t)
		bw.WriteString("  facet normal " + vec(n) + "\n")
		bw.WriteString("    outer loop\n")
		for _, v := range m.Triangle(t) {
			bw.WriteString("      vertex " + vec(v) + "\n")
		}
		bw.WriteString("    endloop\n")
		bw.WriteString("  endfacet\n")
	}
	bw.WriteString("endsolid " + name + "\n")
	return bw.Flush()
}

func vec(v [3]float32) string {
	return num(v[0]) + " " + num(v[1]) + " " + num(v[2])
}

func num(f float32) string {
	return strconv.FormatFloat(float64(f), 'e', 6, 32)
}
