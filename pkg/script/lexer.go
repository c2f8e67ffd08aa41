package script

import (
	"strconv"
	"strings"
	"text/scanner"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  Pos
}

// twoCharOps are the operators that span two runes.
var twoCharOps = map[string]bool{
	"==": true, "!=": true, "<=": true, ">=": true, "&&": true, "||": true,
}

// lexer wraps text/scanner, merging two-rune operators and recording the
// first scan error.
type lexer struct {
	s   scanner.Scanner
	err *CompileError
}

func newLexer(src string) *lexer {
	l := &lexer{}
	l.s.Init(strings.NewReader(src))
	l.s.Mode = scanner.ScanIdents | scanner.ScanFloats | scanner.ScanStrings | scanner.ScanComments | scanner.SkipComments
	l.s.IsIdentRune = func(ch rune, i int) bool {
		return ch == '_' || ch == '$' || unicode.IsLetter(ch) || (unicode.IsDigit(ch) && i > 0)
	}
	l.s.Error = func(s *scanner.Scanner, msg string) {
		if l.err == nil {
			p := s.Pos()
			l.err = &CompileError{Line: p.Line, Col: p.Column, Msg: msg}
		}
	}
	return l
}

func (l *lexer) next() (token, error) {
	r := l.s.Scan()
	pos := Pos{Line: l.s.Position.Line, Col: l.s.Position.Column}
	if l.err != nil {
		return token{}, l.err
	}
	text := l.s.TokenText()

	switch r {
	case scanner.EOF:
		return token{kind: tokEOF, pos: pos}, nil
	case scanner.Ident:
		return token{kind: tokIdent, text: text, pos: pos}, nil
	case scanner.Int, scanner.Float:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, compileErrorf(pos, "bad number %q", text)
		}
		return token{kind: tokNumber, text: text, num: f, pos: pos}, nil
	case scanner.String:
		s, err := strconv.Unquote(text)
		if err != nil {
			return token{}, compileErrorf(pos, "bad string literal %s", text)
		}
		return token{kind: tokString, text: s, pos: pos}, nil
	case scanner.Char, scanner.RawString:
		return token{}, compileErrorf(pos, "unexpected %s", text)
	}

	if pair := text + string(l.s.Peek()); twoCharOps[pair] {
		l.s.Next()
		text = pair
	}
	return token{kind: tokOp, text: text, pos: pos}, nil
}

// tokenize scans the whole source.
func tokenize(src string) ([]token, error) {
	l := newLexer(src)
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks, nil
		}
	}
}
