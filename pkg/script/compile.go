package script

import (
	"context"
	"fmt"
)

// Dialect selects the surface syntax of a script.
type Dialect string

const (
	DialectSCAD Dialect = "scad"
	DialectLisp Dialect = "lisp"
)

// ParseDialect maps a request field to a Dialect. Empty means SCAD.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case "", DialectSCAD:
		return DialectSCAD, nil
	case DialectLisp:
		return DialectLisp, nil
	}
	return "", fmt.Errorf("unknown dialect %q (want scad or lisp)", s)
}

// Compile parses source in the given dialect.
func Compile(ctx context.Context, d Dialect, source string) (*Program, error) {
	switch d {
	case "", DialectSCAD:
		return Parse(source)
	case DialectLisp:
		return ParseLisp(ctx, source)
	}
	return nil, &CompileError{Msg: fmt.Sprintf("unknown dialect %q", d)}
}
