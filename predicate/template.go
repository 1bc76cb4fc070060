package predicate

import (
	"fmt"
	"strings"
	"unicode"
)

// Template is a parsed pairing template such as
//
//	(substrate=='12C-Con' & day=='${day}') | (substrate=='${substrate}' & day=='${day}')
//
// Values written as ${name} are placeholders that Bind fills in. A placeholder
// must be the whole value; it cannot be spliced into the middle of a literal.
type Template struct {
	source       string
	root         node
	placeholders []string
}

// ParseError reports a malformed template and where it went wrong.
type ParseError struct {
	Template string
	Offset   int
	Msg      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pairing template %q: byte %d: %s", e.Template, e.Offset, e.Msg)
}

// ParseTemplate parses src. Operators are ==, !=, & (or &&), | (or ||) and
// parentheses; & binds tighter than |. Values may be single or double quoted,
// bare words or numbers, or ${placeholder}.
func ParseTemplate(src string) (*Template, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{src: src, toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %s", tok)
	}

	t := &Template{source: src, root: root}
	seen := make(map[string]struct{})
	root.walk(func(c comparison) {
		if c.placeholder == "" {
			return
		}
		if _, exists := seen[c.placeholder]; exists {
			return
		}
		seen[c.placeholder] = struct{}{}
		t.placeholders = append(t.placeholders, c.placeholder)
	})

	return t, nil
}

// String returns the template as it was written.
func (t *Template) String() string { return t.source }

// Placeholders lists the distinct placeholder names in order of first use.
func (t *Template) Placeholders() []string {
	return append([]string(nil), t.placeholders...)
}

// Variables lists the grouping variables the template compares against.
func (t *Template) Variables() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	t.root.walk(func(c comparison) {
		if _, exists := seen[c.variable]; exists {
			return
		}
		seen[c.variable] = struct{}{}
		out = append(out, c.variable)
	})
	return out
}

// Bind substitutes values into every placeholder and returns the concrete
// predicate. Every placeholder must have a value.
func (t *Template) Bind(values map[string]string) (Expr, error) {
	missing := make([]string, 0)
	for _, ph := range t.placeholders {
		if _, ok := values[ph]; !ok {
			missing = append(missing, ph)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("pairing template %q: no value bound for placeholder(s) %s", t.source, strings.Join(missing, ", "))
	}

	return t.root.bind(values), nil
}

// AST

type node interface {
	bind(map[string]string) Expr
	walk(func(comparison))
}

type comparison struct {
	variable    string
	negate      bool
	value       string
	placeholder string
}

func (c comparison) bind(values map[string]string) Expr {
	v := c.value
	if c.placeholder != "" {
		v = values[c.placeholder]
	}
	if c.negate {
		return Ne{Variable: c.variable, Value: v}
	}
	return Eq{Variable: c.variable, Value: v}
}

func (c comparison) walk(f func(comparison)) { f(c) }

type andNode []node

func (n andNode) bind(values map[string]string) Expr {
	out := make(And, 0, len(n))
	for _, term := range n {
		out = append(out, term.bind(values))
	}
	return out
}

func (n andNode) walk(f func(comparison)) {
	for _, term := range n {
		term.walk(f)
	}
}

type orNode []node

func (n orNode) bind(values map[string]string) Expr {
	out := make(Or, 0, len(n))
	for _, term := range n {
		out = append(out, term.bind(values))
	}
	return out
}

func (n orNode) walk(f func(comparison)) {
	for _, term := range n {
		term.walk(f)
	}
}

// Parser

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok token, format string, args ...interface{}) error {
	return &ParseError{Template: p.src, Offset: tok.offset, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	terms := orNode{first}
	for p.peek().kind == tokOr {
		p.next()
		term, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}

	if len(terms) == 1 {
		return first, nil
	}
	return terms, nil
}

func (p *parser) parseAnd() (node, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	terms := andNode{first}
	for p.peek().kind == tokAnd {
		p.next()
		term, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}

	if len(terms) == 1 {
		return first, nil
	}
	return terms, nil
}

func (p *parser) parseUnary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected ) but found %s", closing)
		}
		return inner, nil
	case tokWord:
		return p.parseComparison(tok)
	}

	return nil, p.errorf(tok, "expected a comparison or ( but found %s", tok)
}

func (p *parser) parseComparison(variable token) (node, error) {
	if !isIdentifier(variable.text) {
		return nil, p.errorf(variable, "%q is not a grouping variable name", variable.text)
	}

	op := p.next()
	if op.kind != tokEq && op.kind != tokNe {
		return nil, p.errorf(op, "expected == or != after %s but found %s", variable.text, op)
	}

	val := p.next()
	c := comparison{variable: variable.text, negate: op.kind == tokNe}
	switch val.kind {
	case tokString, tokWord:
		if strings.Contains(val.text, "${") {
			return nil, p.errorf(val, "a placeholder must be the entire value, found %q", val.text)
		}
		c.value = val.text
	case tokPlaceholder:
		c.placeholder = val.text
	default:
		return nil, p.errorf(val, "expected a value after %s but found %s", op, val)
	}

	return c, nil
}

func isIdentifier(s string) bool {
	for i, r := range s {
		if r == '_' || r == '.' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return s != ""
}

// Lexer

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokEq
	tokNe
	tokWord
	tokString
	tokPlaceholder
)

type token struct {
	kind   tokenKind
	text   string
	offset int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of template"
	case tokString:
		return fmt.Sprintf("%q", t.text)
	case tokPlaceholder:
		return "${" + t.text + "}"
	}
	return t.text
}

func lex(src string) ([]token, error) {
	out := make([]token, 0)
	lexErr := func(offset int, format string, args ...interface{}) error {
		return &ParseError{Template: src, Offset: offset, Msg: fmt.Sprintf(format, args...)}
	}

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			out = append(out, token{tokLParen, "(", i})
			i++
		case c == ')':
			out = append(out, token{tokRParen, ")", i})
			i++
		case c == '&':
			n := 1
			if strings.HasPrefix(src[i:], "&&") {
				n = 2
			}
			out = append(out, token{tokAnd, "&", i})
			i += n
		case c == '|':
			n := 1
			if strings.HasPrefix(src[i:], "||") {
				n = 2
			}
			out = append(out, token{tokOr, "|", i})
			i += n
		case strings.HasPrefix(src[i:], "=="):
			out = append(out, token{tokEq, "==", i})
			i += 2
		case strings.HasPrefix(src[i:], "!="):
			out = append(out, token{tokNe, "!=", i})
			i += 2
		case strings.HasPrefix(src[i:], "${"):
			name, n, err := lexPlaceholder(src[i:])
			if err != nil {
				return nil, lexErr(i, "%s", err)
			}
			out = append(out, token{tokPlaceholder, name, i})
			i += n
		case c == '\'' || c == '"':
			text, n, err := lexQuoted(src[i:])
			if err != nil {
				return nil, lexErr(i, "%s", err)
			}
			if name, m, err := lexPlaceholder(text); err == nil && m == len(text) {
				out = append(out, token{tokPlaceholder, name, i})
			} else {
				out = append(out, token{tokString, text, i})
			}
			i += n
		default:
			start := i
			for i < len(src) && !strings.ContainsRune(" \t\r\n()&|=!'\"", rune(src[i])) {
				i++
			}
			if i == start {
				return nil, lexErr(i, "unexpected character %q", src[i])
			}
			out = append(out, token{tokWord, src[start:i], start})
		}
	}

	return append(out, token{tokEOF, "", len(src)}), nil
}

// lexPlaceholder reads ${name} from the start of s and returns name and the
// number of bytes consumed.
func lexPlaceholder(s string) (string, int, error) {
	if !strings.HasPrefix(s, "${") {
		return "", 0, fmt.Errorf("expected ${")
	}
	end := strings.IndexByte(s, '}')
	if end < 0 {
		return "", 0, fmt.Errorf("unterminated placeholder")
	}
	name := s[2:end]
	if !isIdentifier(name) {
		return "", 0, fmt.Errorf("invalid placeholder name %q", name)
	}
	return name, end + 1, nil
}

// lexQuoted reads a quoted value from the start of s. Backslash escapes the
// next byte.
func lexQuoted(s string) (string, int, error) {
	q := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				return "", 0, fmt.Errorf("dangling escape")
			}
			i++
			b.WriteByte(s[i])
		case q:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(s[i])
		}
	}
	return "", 0, fmt.Errorf("unterminated quoted value")
}
