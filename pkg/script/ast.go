package script

import "github.com/chazu/makertron/pkg/graph"

// Pos is a 1-based line and column in script source.
type Pos = graph.Pos

// Program is a compiled script: top-level statements in source order.
type Program struct {
	Stmts []Stmt
}

// Stmt is a statement node.
type Stmt interface {
	Position() Pos
	stmt()
}

// Expr is an expression node.
type Expr interface {
	Position() Pos
	expr()
}

type node struct{ At Pos }

func (n node) Position() Pos { return n.At }

// Assign binds a variable in the enclosing scope.
type Assign struct {
	node
	Name  string
	Value Expr
}

// ModuleCall instantiates a module: a leaf, a container, or echo.
type ModuleCall struct {
	node
	Name     string
	Args     []Arg
	Children []Stmt
}

// Block groups statements in a new scope.
type Block struct {
	node
	Stmts []Stmt
}

// If runs Then when Cond is truthy, Else otherwise. Else may be nil.
type If struct {
	node
	Cond Expr
	Then Stmt
	Else Stmt
}

// For runs Body once per element of Iter with Var bound to it.
type For struct {
	node
	Var  string
	Iter Expr
	Body Stmt
}

func (*Assign) stmt()     {}
func (*ModuleCall) stmt() {}
func (*Block) stmt()      {}
func (*If) stmt()         {}
func (*For) stmt()        {}

// Arg is a positional (Name == "") or named argument.
type Arg struct {
	Name  string
	Value Expr
}

// Lit is a constant value.
type Lit struct {
	node
	Val Value
}

// Ident is a variable reference.
type Ident struct {
	node
	Name string
}

// VectorExpr is a [a, b, ...] literal.
type VectorExpr struct {
	node
	Elems []Expr
}

// RangeExpr is [start : end] or [start : step : end]. Step may be nil.
type RangeExpr struct {
	node
	Start, Step, End Expr
}

// Unary is -x, +x or !x.
type Unary struct {
	node
	Op string
	X  Expr
}

// Binary is an infix operation.
type Binary struct {
	node
	Op   string
	L, R Expr
}

// Ternary is cond ? a : b.
type Ternary struct {
	node
	Cond, Then, Else Expr
}

// IndexExpr is x[i].
type IndexExpr struct {
	node
	X, Index Expr
}

// CallExpr is a builtin function call.
type CallExpr struct {
	node
	Name string
	Args []Arg
}

func (*Lit) expr()        {}
func (*Ident) expr()      {}
func (*VectorExpr) expr() {}
func (*RangeExpr) expr()  {}
func (*Unary) expr()      {}
func (*Binary) expr()     {}
func (*Ternary) expr()    {}
func (*IndexExpr) expr()  {}
func (*CallExpr) expr()   {}
