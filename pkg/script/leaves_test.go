package script

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/chazu/makertron/pkg/kernel"
	"github.com/chazu/makertron/pkg/kernel/kerneltest"
)

const tri = `points = [[0,0,0],[1,0,0],[0,1,0]]`

func TestLeafValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		module string
		want   string
	}{
		{"cube without size", `cube();`, "cube", "size is required"},
		{"cube zero", `cube(0);`, "cube", "positive"},
		{"cube 2-vector", `cube([1, 2]);`, "cube", "3-vector"},
		{"cube non-bool center", `cube(1, center = 1);`, "cube", "boolean"},
		{"cube undefined size", `cube(size = y);`, "cube", "size is required"},
		{"sphere without radius", `sphere();`, "sphere", "r or d"},
		{"sphere negative", `sphere(-1);`, "sphere", "positive"},
		{"circle without radius", `circle();`, "circle", "r or d"},
		{"cylinder without height", `cylinder(r = 1);`, "cylinder", "h is required"},
		{"cylinder without radius", `cylinder(h = 1);`, "cylinder", "radius is required"},
		{"cylinder zero radii", `cylinder(h = 1, r1 = 0, r2 = 0);`, "cylinder", "both be zero"},
		{"cylinder negative radius", `cylinder(h = 1, r = -1);`, "cylinder", "negative"},
		{"polygon too few points", `polygon([[0, 0], [1, 0]]);`, "polygon", "at least 3"},
		{"polygon 3d point", `polygon([[0, 0, 0], [1, 0], [0, 1]]);`, "polygon", "2-vector"},
		{"polygon dangling path", `polygon([[0, 0], [1, 0], [0, 1]], [[0, 1, 9]]);`, "polygon", "out of range"},
		{"polyhedron no points", `polyhedron(points = [], faces = [[0, 1, 2]]);`, "polyhedron", "points"},
		{"polyhedron no faces", tri + `; polyhedron(points, faces = []);`, "polyhedron", "faces"},
		{"polyhedron short face", tri + `; polyhedron(points, [[0, 1]]);`, "polyhedron", "need at least 3"},
		{"polyhedron dangling index", tri + `; polyhedron(points, [[0, 1, 5]]);`, "polyhedron", "out of range"},
		{"polyhedron negative index", tri + `; polyhedron(points, [[0, 1, -1]]);`, "polyhedron", "out of range"},
		{"polyhedron fractional index", tri + `; polyhedron(points, [[0, 1, 1.5]]);`, "polyhedron", "not an integer"},
		{"polyhedron 2d point", `polyhedron([[0,0],[1,0,0],[0,1,0]], [[0, 1, 2]]);`, "polyhedron", "3-vector"},
		{"cube infinite", `cube(1/0);`, "cube", "finite"},
		{"cube nan component", `cube([1, 0/0, 1]);`, "cube", "finite"},
		{"sphere infinite", `sphere(1/0);`, "sphere", "finite"},
		{"sphere infinite diameter", `sphere(d = 1/0);`, "sphere", "finite"},
		{"circle nan", `circle(0/0);`, "circle", "finite"},
		{"cylinder infinite height", `cylinder(h = 1/0, r = 1);`, "cylinder", "finite"},
		{"cylinder nan radius", `cylinder(h = 1, r = 0/0);`, "cylinder", "finite"},
		{"polygon infinite point", `polygon([[0, 0], [1/0, 0], [0, 1]]);`, "polygon", "non-finite"},
		{"polyhedron infinite point", `polyhedron([[0,0,0],[1,0,-1/0],[0,1,0]], [[0, 1, 2]]);`, "polyhedron", "non-finite"},
		{"polyhedron infinite index", tri + `; polyhedron(points, [[0, 1, 1/0]]);`, "polyhedron", "out of range"},
		{"polyhedron nan index", tri + `; polyhedron(points, [[0, 1, 0/0]]);`, "polyhedron", "not an integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := kerneltest.New()
			_, err := interpret(t, k, tt.src, Options{})
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if ve.Module != tt.module {
				t.Errorf("module = %q, want %q", ve.Module, tt.module)
			}
			if !strings.Contains(ve.Msg, tt.want) {
				t.Errorf("message %q does not contain %q", ve.Msg, tt.want)
			}
		})
	}
}

func TestSphereDiameterWins(t *testing.T) {
	s, err := interpret(t, kerneltest.New(), `sphere(r = 1, d = 6);`, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := s.g.RootResults()[0].(*kerneltest.Shape).Expr
	if got != "sphere(3,0,0,0)" {
		t.Errorf("sphere = %s, want sphere(3,0,0,0)", got)
	}
	if len(s.logs) != 1 || !strings.Contains(s.logs[0], "using d") {
		t.Errorf("logs = %q, want one warning about d", s.logs)
	}
}

// faceRecorder captures the faces handed to Polyhedron.
type faceRecorder struct {
	*kerneltest.Kernel
	faces [][]int
}

func (r *faceRecorder) Polyhedron(points [][3]float64, faces [][]int) (kernel.Solid, error) {
	r.faces = faces
	return r.Kernel.Polyhedron(points, faces)
}

func TestPolyhedronReversesWinding(t *testing.T) {
	k := &faceRecorder{Kernel: kerneltest.New()}
	_, err := interpret(t, k, `polyhedron(
		points = [[0,0,0],[1,0,0],[0,1,0],[0,0,1]],
		faces = [[0,1,2],[0,1,3],[0,2,3],[1,2,3,0]]);`, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := [][]int{{2, 1, 0}, {3, 1, 0}, {3, 2, 0}, {0, 3, 2, 1}}
	if !reflect.DeepEqual(k.faces, want) {
		t.Errorf("faces = %v, want %v", k.faces, want)
	}
}

func TestPolyhedronTrianglesAlias(t *testing.T) {
	s, err := interpret(t, kerneltest.New(), tri+`; polyhedron(points = points, triangles = [[0, 1, 2]]);`, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := len(s.g.RootResults()); n != 1 {
		t.Fatalf("got %d results, want 1", n)
	}
	if len(s.logs) != 1 || !strings.Contains(s.logs[0], "deprecated") {
		t.Errorf("logs = %q, want a deprecation warning", s.logs)
	}
}

func TestContainerArgsRejectNonFinite(t *testing.T) {
	for _, src := range []string{
		`translate([1/0, 0, 0]) cube(1);`,
		`translate([0/0, 0, 0]) cube(1);`,
		`rotate(1/0) cube(1);`,
		`rotate([0, -1/0, 0]) cube(1);`,
		`linear_extrude(1/0) circle(1);`,
	} {
		t.Run(src, func(t *testing.T) {
			_, err := interpret(t, kerneltest.New(), src, Options{})
			var ce *CompileError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *CompileError", err)
			}
			if !strings.Contains(ce.Msg, "finite") {
				t.Errorf("message %q does not mention finite", ce.Msg)
			}
		})
	}
}

func TestIndicesRange(t *testing.T) {
	tests := []struct {
		name string
		in   []Value
		ok   bool
	}{
		{"in range", []Value{0.0, 1.0, 2.0}, true},
		{"upper bound", []Value{0.0, 3.0}, false},
		{"negative", []Value{-1.0}, false},
		{"positive infinity", []Value{0.0, math.Inf(1)}, false},
		{"negative infinity", []Value{math.Inf(-1)}, false},
		{"nan", []Value{math.NaN()}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := indices(tt.in, 3)
			if tt.ok && err != nil {
				t.Fatalf("indices: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatalf("indices = %v, want error", out)
			}
		})
	}
}
