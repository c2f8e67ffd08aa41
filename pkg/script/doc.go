// Package script turns modeling scripts into calls against a graph.Builder.
//
// Two dialects are accepted. The default is an OpenSCAD-flavoured language
// parsed by a hand-written recursive-descent parser. The second is a Lisp
// evaluated inside a zygomys sandbox whose shape builtins only record
// statements. Both produce the same restricted Program, which Run
// interprets; submitted text is never executed as host code.
package script
