package script

import (
	"fmt"
	"strconv"
)

// Parse compiles source in the SCAD dialect.
//
//	program  = { stmt } EOF
//	stmt     = ";" | "{" { stmt } "}" | ident "=" expr ";"
//	         | "if" "(" expr ")" stmt [ "else" stmt ]
//	         | "for" "(" ident "=" expr { "," ident "=" expr } ")" stmt
//	         | ident "(" [ args ] ")" ( ";" | stmt )
//	args     = arg { "," arg }
//	arg      = [ ident "=" ] expr
//	expr     = or [ "?" expr ":" expr ]
func Parse(src string) (*Program, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	prog := &Program{}
	for !p.at(tokEOF, "") {
		s, err := p.stmt()
		if err != nil {
			return nil, err
		}
		if s != nil {
			prog.Stmts = append(prog.Stmts, s)
		}
	}
	return prog, nil
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) peekAt(n int) token {
	if p.i+n < len(p.toks) {
		return p.toks[p.i+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

// at reports whether the next token has the given kind and, if text is
// non-empty, the given text.
func (p *parser) at(kind tokenKind, text string) bool {
	t := p.peek()
	return t.kind == kind && (text == "" || t.text == text)
}

func (p *parser) atOp(op string) bool { return p.at(tokOp, op) }

func (p *parser) atKeyword(kw string) bool { return p.at(tokIdent, kw) }

func (p *parser) expectOp(op string) (token, error) {
	if !p.atOp(op) {
		return token{}, p.unexpected(strconv.Quote(op))
	}
	return p.advance(), nil
}

func (p *parser) expectIdent() (token, error) {
	if !p.at(tokIdent, "") {
		return token{}, p.unexpected("identifier")
	}
	return p.advance(), nil
}

func (p *parser) unexpected(want string) error {
	t := p.peek()
	got := strconv.Quote(t.text)
	switch t.kind {
	case tokEOF:
		got = "end of input"
	case tokString:
		got = "string"
	}
	return compileErrorf(t.pos, "expected %s, found %s", want, got)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *parser) stmt() (Stmt, error) {
	t := p.peek()
	switch {
	case p.atOp(";"):
		p.advance()
		return nil, nil
	case p.atOp("{"):
		return p.block()
	case p.atKeyword("if"):
		return p.ifStmt()
	case p.atKeyword("for"):
		return p.forStmt()
	case p.atKeyword("module"), p.atKeyword("function"):
		return nil, compileErrorf(t.pos, "%s definitions are not supported", t.text)
	case t.kind == tokIdent:
		next := p.peekAt(1)
		if next.kind == tokOp && next.text == "=" {
			return p.assign()
		}
		if next.kind == tokOp && next.text == "(" {
			return p.moduleCall()
		}
		p.advance()
		return nil, p.unexpected(fmt.Sprintf("'=' or '(' after %s", t.text))
	case p.atOp("!"), p.atOp("#"), p.atOp("%"), p.atOp("*"):
		return nil, compileErrorf(t.pos, "modifier %q is not supported", t.text)
	}
	return nil, p.unexpected("statement")
}

func (p *parser) block() (Stmt, error) {
	open := p.advance()
	b := &Block{node: node{open.pos}}
	for !p.atOp("}") {
		if p.at(tokEOF, "") {
			return nil, compileErrorf(open.pos, "unclosed '{'")
		}
		s, err := p.stmt()
		if err != nil {
			return nil, err
		}
		if s != nil {
			b.Stmts = append(b.Stmts, s)
		}
	}
	p.advance()
	return b, nil
}

func (p *parser) assign() (Stmt, error) {
	name := p.advance()
	p.advance() // =
	value, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(";"); err != nil {
		return nil, err
	}
	return &Assign{node: node{name.pos}, Name: name.text, Value: value}, nil
}

func (p *parser) ifStmt() (Stmt, error) {
	kw := p.advance()
	if _, err := p.expectOp("("); err != nil {
		return nil, err
	}
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	then, err := p.stmt()
	if err != nil {
		return nil, err
	}
	s := &If{node: node{kw.pos}, Cond: cond, Then: then}
	if p.atKeyword("else") {
		p.advance()
		if s.Else, err = p.stmt(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// forStmt desugars for (i = a, j = b) body into nested loops.
func (p *parser) forStmt() (Stmt, error) {
	kw := p.advance()
	if _, err := p.expectOp("("); err != nil {
		return nil, err
	}
	type binding struct {
		name string
		iter Expr
		pos  Pos
	}
	var binds []binding
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp("="); err != nil {
			return nil, err
		}
		iter, err := p.expr()
		if err != nil {
			return nil, err
		}
		binds = append(binds, binding{name.text, iter, name.pos})
		if !p.atOp(",") {
			break
		}
		p.advance()
	}
	if _, err := p.expectOp(")"); err != nil {
		return nil, err
	}
	body, err := p.stmt()
	if err != nil {
		return nil, err
	}
	for i := len(binds) - 1; i >= 0; i-- {
		pos := binds[i].pos
		if i == 0 {
			pos = kw.pos
		}
		body = &For{node: node{pos}, Var: binds[i].name, Iter: binds[i].iter, Body: body}
	}
	return body, nil
}

func (p *parser) moduleCall() (Stmt, error) {
	name := p.advance()
	p.advance() // (
	args, err := p.args(")")
	if err != nil {
		return nil, err
	}
	call := &ModuleCall{node: node{name.pos}, Name: name.text, Args: args}

	if p.atOp(";") {
		p.advance()
		return call, nil
	}
	child, err := p.stmt()
	if err != nil {
		return nil, err
	}
	switch c := child.(type) {
	case nil:
	case *Block:
		call.Children = c.Stmts
	default:
		call.Children = []Stmt{c}
	}
	return call, nil
}

// args parses a comma-separated argument list up to and including close.
func (p *parser) args(close string) ([]Arg, error) {
	var args []Arg
	for !p.atOp(close) {
		var a Arg
		if p.at(tokIdent, "") && p.peekAt(1).kind == tokOp && p.peekAt(1).text == "=" {
			a.Name = p.advance().text
			p.advance()
		}
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		a.Value = v
		args = append(args, a)
		if !p.atOp(",") {
			break
		}
		p.advance()
	}
	if _, err := p.expectOp(close); err != nil {
		return nil, err
	}
	return args, nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// binaryLevels lists infix operators from loosest to tightest binding.
var binaryLevels = [][]string{
	{"||"},
	{"&&"},
	{"==", "!="},
	{"<", "<=", ">", ">="},
	{"+", "-"},
	{"*", "/", "%"},
}

func (p *parser) expr() (Expr, error) {
	cond, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	if !p.atOp("?") {
		return cond, nil
	}
	q := p.advance()
	then, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectOp(":"); err != nil {
		return nil, err
	}
	els, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &Ternary{node: node{q.pos}, Cond: cond, Then: then, Else: els}, nil
}

func (p *parser) binary(level int) (Expr, error) {
	if level == len(binaryLevels) {
		return p.unary()
	}
	left, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchOp(binaryLevels[level])
		if !ok {
			return left, nil
		}
		right, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}
		left = &Binary{node: node{op.pos}, Op: op.text, L: left, R: right}
	}
}

func (p *parser) matchOp(ops []string) (token, bool) {
	for _, op := range ops {
		if p.atOp(op) {
			return p.advance(), true
		}
	}
	return token{}, false
}

func (p *parser) unary() (Expr, error) {
	if op, ok := p.matchOp([]string{"-", "+", "!"}); ok {
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Unary{node: node{op.pos}, Op: op.text, X: x}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (Expr, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.atOp("[") {
		open := p.advance()
		idx, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectOp("]"); err != nil {
			return nil, err
		}
		x = &IndexExpr{node: node{open.pos}, X: x, Index: idx}
	}
	return x, nil
}

func (p *parser) primary() (Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.advance()
		return &Lit{node: node{t.pos}, Val: t.num}, nil
	case tokString:
		p.advance()
		return &Lit{node: node{t.pos}, Val: t.text}, nil
	case tokIdent:
		p.advance()
		switch t.text {
		case "true":
			return &Lit{node: node{t.pos}, Val: true}, nil
		case "false":
			return &Lit{node: node{t.pos}, Val: false}, nil
		case "undef":
			return &Lit{node: node{t.pos}, Val: nil}, nil
		}
		if p.atOp("(") {
			p.advance()
			args, err := p.args(")")
			if err != nil {
				return nil, err
			}
			return &CallExpr{node: node{t.pos}, Name: t.text, Args: args}, nil
		}
		return &Ident{node: node{t.pos}, Name: t.text}, nil
	case tokOp:
		switch t.text {
		case "(":
			p.advance()
			x, err := p.expr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return x, nil
		case "[":
			return p.vector()
		}
	}
	return nil, p.unexpected("expression")
}

// vector parses [a, b, ...], [start : end] or [start : step : end].
func (p *parser) vector() (Expr, error) {
	open := p.advance()
	if p.atOp("]") {
		p.advance()
		return &VectorExpr{node: node{open.pos}}, nil
	}
	first, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.atOp(":") {
		p.advance()
		second, err := p.expr()
		if err != nil {
			return nil, err
		}
		r := &RangeExpr{node: node{open.pos}, Start: first, End: second}
		if p.atOp(":") {
			p.advance()
			third, err := p.expr()
			if err != nil {
				return nil, err
			}
			r.Step, r.End = second, third
		}
		if _, err := p.expectOp("]"); err != nil {
			return nil, err
		}
		return r, nil
	}

	v := &VectorExpr{node: node{open.pos}, Elems: []Expr{first}}
	for p.atOp(",") {
		p.advance()
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		v.Elems = append(v.Elems, e)
	}
	if _, err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return v, nil
}
