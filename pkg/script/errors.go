package script

import "fmt"

// CompileError reports a script that cannot be turned into a valid
// operation sequence: bad syntax, an unknown module, a wrongly typed
// argument, unbalanced containers or a runaway loop.
type CompileError struct {
	Line int
	Col  int
	Msg  string
}

func (e *CompileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d:%d: %s", e.Line, e.Col, e.Msg)
	}
	return e.Msg
}

// ValidationError reports structurally invalid leaf parameters, such as a
// missing size or a face that references a nonexistent point.
type ValidationError struct {
	Line   int
	Col    int
	Module string
	Msg    string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d:%d: %s: %s", e.Line, e.Col, e.Module, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Module, e.Msg)
}

func compileErrorf(p Pos, format string, args ...any) *CompileError {
	return &CompileError{Line: p.Line, Col: p.Col, Msg: fmt.Sprintf(format, args...)}
}

func validationErrorf(p Pos, module, format string, args ...any) *ValidationError {
	return &ValidationError{Line: p.Line, Col: p.Col, Module: module, Msg: fmt.Sprintf(format, args...)}
}
