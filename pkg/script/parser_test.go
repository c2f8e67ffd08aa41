package script

import (
	"errors"
	"strings"
	"testing"
)

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return prog
}

func TestParseModuleCallWithChildren(t *testing.T) {
	prog := mustParse(t, `difference() { cube(10); translate([1, 2, 3]) sphere(r = 2); }`)
	if len(prog.Stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(prog.Stmts))
	}
	diff, ok := prog.Stmts[0].(*ModuleCall)
	if !ok || diff.Name != "difference" {
		t.Fatalf("first statement = %#v, want difference call", prog.Stmts[0])
	}
	if len(diff.Children) != 2 {
		t.Fatalf("difference has %d children, want 2", len(diff.Children))
	}
	tr := diff.Children[1].(*ModuleCall)
	if tr.Name != "translate" || len(tr.Children) != 1 {
		t.Fatalf("second child = %s with %d children", tr.Name, len(tr.Children))
	}
	sp := tr.Children[0].(*ModuleCall)
	if sp.Name != "sphere" || len(sp.Args) != 1 || sp.Args[0].Name != "r" {
		t.Errorf("sphere args = %#v", sp.Args)
	}
}

func TestParsePositions(t *testing.T) {
	prog := mustParse(t, "x = 1;\n  cube(x);")
	if p := prog.Stmts[1].Position(); p.Line != 2 || p.Col != 3 {
		t.Errorf("cube position = %v, want 2:3", p)
	}
}

func TestParsePrecedence(t *testing.T) {
	prog := mustParse(t, `x = 1 + 2 * 3 - 4;`)
	bin, ok := prog.Stmts[0].(*Assign).Value.(*Binary)
	if !ok || bin.Op != "-" {
		t.Fatalf("top operator = %#v, want -", prog.Stmts[0].(*Assign).Value)
	}
	plus, ok := bin.L.(*Binary)
	if !ok || plus.Op != "+" {
		t.Fatalf("left operand = %#v, want +", bin.L)
	}
	if mul, ok := plus.R.(*Binary); !ok || mul.Op != "*" {
		t.Errorf("1 + (2 * 3) not grouped: %#v", plus.R)
	}
}

func TestParseRanges(t *testing.T) {
	prog := mustParse(t, `a = [0 : 5]; b = [0 : 2 : 10];`)
	a := prog.Stmts[0].(*Assign).Value.(*RangeExpr)
	if a.Step != nil {
		t.Errorf("[0:5] step = %#v, want nil", a.Step)
	}
	b := prog.Stmts[1].(*Assign).Value.(*RangeExpr)
	if b.Step.(*Lit).Val != 2.0 || b.End.(*Lit).Val != 10.0 {
		t.Errorf("[0:2:10] = step %v end %v", b.Step, b.End)
	}
}

func TestParseForDesugarsMultipleBindings(t *testing.T) {
	prog := mustParse(t, `for (i = [0:1], j = [0:1]) cube(1);`)
	outer, ok := prog.Stmts[0].(*For)
	if !ok || outer.Var != "i" {
		t.Fatalf("outer = %#v", prog.Stmts[0])
	}
	inner, ok := outer.Body.(*For)
	if !ok || inner.Var != "j" {
		t.Fatalf("inner = %#v", outer.Body)
	}
	if _, ok := inner.Body.(*ModuleCall); !ok {
		t.Errorf("body = %#v, want module call", inner.Body)
	}
}

func TestParseIfElse(t *testing.T) {
	prog := mustParse(t, `if (x > 1) cube(1); else { sphere(1); }`)
	s := prog.Stmts[0].(*If)
	if s.Then == nil || s.Else == nil {
		t.Fatalf("if = %#v", s)
	}
	if _, ok := s.Else.(*Block); !ok {
		t.Errorf("else = %T, want *Block", s.Else)
	}
}

func TestParseCommentsAndEmptyStatements(t *testing.T) {
	prog := mustParse(t, "// header\n;;\n/* block */ cube(1);")
	if len(prog.Stmts) != 1 {
		t.Errorf("got %d statements, want 1", len(prog.Stmts))
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing semicolon", `x = 1`, "expected"},
		{"unclosed block", `union() { cube(1);`, "unclosed"},
		{"module definition", `module foo() { cube(1); }`, "not supported"},
		{"function definition", `function f(x) = x;`, "not supported"},
		{"modifier", `#cube(1);`, "modifier"},
		{"bare identifier", `cube;`, "'=' or '('"},
		{"bad expression", `x = );`, "expression"},
		{"unterminated string", `echo("abc);`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.src)
			}
			var ce *CompileError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %T, want *CompileError", err)
			}
			if !strings.Contains(ce.Msg, tt.want) {
				t.Errorf("message %q does not contain %q", ce.Msg, tt.want)
			}
		})
	}
}

func TestCompileErrorPosition(t *testing.T) {
	_, err := Parse("cube(1);\nsphere(1) ]")
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CompileError", err)
	}
	if ce.Line != 2 {
		t.Errorf("line = %d, want 2", ce.Line)
	}
	if !strings.HasPrefix(ce.Error(), "line 2:") {
		t.Errorf("Error() = %q", ce.Error())
	}
}
