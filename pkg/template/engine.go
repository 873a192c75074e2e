package template

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Engine resolves templates containing {{path}} placeholders and @for,
// @foreach, and @if/@elseif/@else blocks against a Context. The engine holds
// no mutable state, so a single instance is safe for concurrent use and may
// be invoked once per templated field.
type Engine struct{}

// New creates a template engine.
func New() *Engine {
	return &Engine{}
}

// Render resolves a template to its fully substituted form. It returns
// ErrSyntax for malformed templates and ErrResolution when the template
// references values the context cannot satisfy.
func (e *Engine) Render(tmpl string, ctx *Context) (string, error) {
	toks, err := lex(tmpl)
	if err != nil {
		return "", err
	}
	p := &parser{toks: toks}
	nodes, err := p.parseDocument()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := evalNodes(nodes, ctx, nil, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// lexer

type tokenKind int

const (
	tokText tokenKind = iota
	tokPlaceholder
	tokFor
	tokForeach
	tokIf
	tokElseif
	tokElse
	tokEndfor
	tokEndforeach
	tokEndif
)

type token struct {
	kind tokenKind
	text string // literal text, placeholder path, or directive header
	pos  int
}

// directive keywords that carry a parenthesized header
var headerDirectives = []struct {
	word string
	kind tokenKind
}{
	{"@foreach", tokForeach},
	{"@for", tokFor},
	{"@elseif", tokElseif},
	{"@if", tokIf},
}

// bare directive keywords, longest first so @endforeach wins over @endfor
var bareDirectives = []struct {
	word string
	kind tokenKind
}{
	{"@endforeach", tokEndforeach},
	{"@endfor", tokEndfor},
	{"@endif", tokEndif},
	{"@else", tokElse},
}

func lex(input string) ([]token, error) {
	var toks []token
	var text strings.Builder
	textStart := 0

	flush := func() {
		if text.Len() > 0 {
			toks = append(toks, token{kind: tokText, text: text.String(), pos: textStart})
			text.Reset()
		}
	}

	i := 0
	for i < len(input) {
		if strings.HasPrefix(input[i:], "{{") {
			end := strings.Index(input[i+2:], "}}")
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated placeholder at offset %d", ErrSyntax, i)
			}
			flush()
			path := strings.TrimSpace(input[i+2 : i+2+end])
			if path == "" {
				return nil, fmt.Errorf("%w: empty placeholder at offset %d", ErrSyntax, i)
			}
			toks = append(toks, token{kind: tokPlaceholder, text: path, pos: i})
			i += end + 4
			textStart = i
			continue
		}

		if input[i] == '@' {
			if tok, next, ok, err := lexDirective(input, i); err != nil {
				return nil, err
			} else if ok {
				flush()
				toks = append(toks, tok)
				i = next
				textStart = i
				continue
			}
		}

		text.WriteByte(input[i])
		i++
	}
	flush()

	return toks, nil
}

// lexDirective tries to read a directive at offset i. A '@' that does not
// start a known directive is plain text.
func lexDirective(input string, i int) (token, int, bool, error) {
	for _, d := range bareDirectives {
		if strings.HasPrefix(input[i:], d.word) {
			// @else must not shadow @elseif
			if d.word == "@else" && strings.HasPrefix(input[i:], "@elseif") {
				continue
			}
			return token{kind: d.kind, pos: i}, i + len(d.word), true, nil
		}
	}
	for _, d := range headerDirectives {
		if !strings.HasPrefix(input[i:], d.word) {
			continue
		}
		// whitespace is allowed between the keyword and its header
		open := i + len(d.word)
		for open < len(input) && (input[open] == ' ' || input[open] == '\t') {
			open++
		}
		if open >= len(input) || input[open] != '(' {
			continue
		}
		header, next, err := scanHeader(input, open+1)
		if err != nil {
			return token{}, 0, false, fmt.Errorf("%w: unterminated %s(...) at offset %d", ErrSyntax, d.word, i)
		}
		return token{kind: d.kind, text: strings.TrimSpace(header), pos: i}, next, true, nil
	}
	return token{}, 0, false, nil
}

// scanHeader reads up to the parenthesis closing a directive header, counting
// nested parens and skipping quoted strings so literals may contain either.
func scanHeader(input string, start int) (string, int, error) {
	depth := 1
	for i := start; i < len(input); i++ {
		switch input[i] {
		case '\'', '"':
			quote := input[i]
			j := i + 1
			for j < len(input) && input[j] != quote {
				j++
			}
			if j >= len(input) {
				return "", 0, fmt.Errorf("unterminated string")
			}
			i = j
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return input[start:i], i + 1, nil
			}
		}
	}
	return "", 0, fmt.Errorf("unterminated header")
}

// AST

type node interface{}

type textNode string

type placeholderNode struct {
	path string
}

type forNode struct {
	varName    string
	start, end int
	body       []node
}

type foreachNode struct {
	varName string
	path    string
	body    []node
}

type branch struct {
	cond *condition // nil for @else
	body []node
}

type condNode struct {
	branches []branch
}

type condition struct {
	path    string
	op      string // "", "==", "!=", ">", "<", ">=", "<="
	literal any
}

// parser

type parser struct {
	toks []token
	pos  int
}

var (
	forHeaderRe     = regexp.MustCompile(`^(\w+)\s+in\s+range\(\s*(-?\d+)\s*,\s*(-?\d+)\s*\)$`)
	foreachHeaderRe = regexp.MustCompile(`^(\w+)\s+in\s+([\w][\w.]*)$`)
	pathRe          = regexp.MustCompile(`^[\w][\w.]*$`)
)

func (p *parser) parseDocument() ([]node, error) {
	nodes, closer, err := p.parseNodes(nil)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		return nil, fmt.Errorf("%w: unexpected %s outside any block", ErrSyntax, tokenName(closer.kind))
	}
	return nodes, nil
}

// parseNodes consumes tokens until EOF or one of the stop kinds. It returns
// the stop token so block parsers can match closers against the innermost
// open block.
func (p *parser) parseNodes(stops []tokenKind) ([]node, *token, error) {
	var nodes []node
	for p.pos < len(p.toks) {
		tok := p.toks[p.pos]

		for _, s := range stops {
			if tok.kind == s {
				p.pos++
				return nodes, &tok, nil
			}
		}

		switch tok.kind {
		case tokText:
			p.pos++
			nodes = append(nodes, textNode(tok.text))

		case tokPlaceholder:
			p.pos++
			nodes = append(nodes, placeholderNode{path: tok.text})

		case tokFor:
			p.pos++
			n, err := p.parseFor(tok)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, n)

		case tokForeach:
			p.pos++
			n, err := p.parseForeach(tok)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, n)

		case tokIf:
			p.pos++
			n, err := p.parseIf(tok)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, n)

		case tokElseif, tokElse, tokEndfor, tokEndforeach, tokEndif:
			// A closer reaching here does not match the innermost open block.
			return nil, nil, fmt.Errorf("%w: unexpected %s at offset %d", ErrSyntax, tokenName(tok.kind), tok.pos)

		default:
			return nil, nil, fmt.Errorf("%w: unexpected token at offset %d", ErrSyntax, tok.pos)
		}
	}
	if len(stops) > 0 {
		return nil, nil, fmt.Errorf("%w: unterminated block, expected %s", ErrSyntax, tokenName(stops[0]))
	}
	return nodes, nil, nil
}

func (p *parser) parseFor(tok token) (node, error) {
	m := forHeaderRe.FindStringSubmatch(tok.text)
	if m == nil {
		return nil, fmt.Errorf("%w: invalid @for header %q, expected @for(v in range(start, end))", ErrSyntax, tok.text)
	}
	start, _ := strconv.Atoi(m[2])
	end, _ := strconv.Atoi(m[3])
	body, _, err := p.parseNodes([]tokenKind{tokEndfor})
	if err != nil {
		return nil, err
	}
	return forNode{varName: m[1], start: start, end: end, body: body}, nil
}

func (p *parser) parseForeach(tok token) (node, error) {
	m := foreachHeaderRe.FindStringSubmatch(tok.text)
	if m == nil {
		return nil, fmt.Errorf("%w: invalid @foreach header %q, expected @foreach(v in path)", ErrSyntax, tok.text)
	}
	body, _, err := p.parseNodes([]tokenKind{tokEndforeach})
	if err != nil {
		return nil, err
	}
	return foreachNode{varName: m[1], path: m[2], body: body}, nil
}

func (p *parser) parseIf(tok token) (node, error) {
	cond, err := parseCondition(tok.text)
	if err != nil {
		return nil, err
	}

	var branches []branch
	cur := branch{cond: cond}

	for {
		body, closer, err := p.parseNodes([]tokenKind{tokElseif, tokElse, tokEndif})
		if err != nil {
			return nil, err
		}
		cur.body = body
		branches = append(branches, cur)

		switch closer.kind {
		case tokEndif:
			return condNode{branches: branches}, nil
		case tokElseif:
			c, err := parseCondition(closer.text)
			if err != nil {
				return nil, err
			}
			cur = branch{cond: c}
		case tokElse:
			body, _, err := p.parseNodes([]tokenKind{tokEndif})
			if err != nil {
				return nil, err
			}
			branches = append(branches, branch{cond: nil, body: body})
			return condNode{branches: branches}, nil
		}
	}
}

var condOps = []string{"==", "!=", ">=", "<=", ">", "<"}

// parseCondition parses "path" or "path op literal". Operators inside quoted
// literals are not split on.
func parseCondition(header string) (*condition, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, fmt.Errorf("%w: empty condition", ErrSyntax)
	}

	opIdx, op := -1, ""
	inQuote := byte(0)
	for i := 0; i < len(header); i++ {
		c := header[i]
		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			inQuote = c
			continue
		}
		for _, cand := range condOps {
			if strings.HasPrefix(header[i:], cand) {
				opIdx, op = i, cand
				break
			}
		}
		if opIdx >= 0 {
			break
		}
	}

	if opIdx < 0 {
		if !pathRe.MatchString(header) {
			return nil, fmt.Errorf("%w: invalid condition path %q", ErrSyntax, header)
		}
		return &condition{path: header}, nil
	}

	path := strings.TrimSpace(header[:opIdx])
	if !pathRe.MatchString(path) {
		return nil, fmt.Errorf("%w: invalid condition path %q", ErrSyntax, path)
	}
	lit, err := parseLiteral(strings.TrimSpace(header[opIdx+len(op):]))
	if err != nil {
		return nil, err
	}
	return &condition{path: path, op: op, literal: lit}, nil
}

func parseLiteral(s string) (any, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: missing comparison literal", ErrSyntax)
	}
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], nil
	}
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("%w: invalid comparison literal %q", ErrSyntax, s)
}

// evaluator

func evalNodes(nodes []node, ctx *Context, sc *scope, sb *strings.Builder) error {
	for _, n := range nodes {
		switch t := n.(type) {
		case textNode:
			sb.WriteString(string(t))

		case placeholderNode:
			v, err := resolvePath(t.path, ctx, sc)
			if err != nil {
				return err
			}
			sb.WriteString(Stringify(v))

		case forNode:
			for i := t.start; i < t.end; i++ {
				inner := &scope{parent: sc, name: t.varName, value: i}
				if err := evalNodes(t.body, ctx, inner, sb); err != nil {
					return err
				}
			}

		case foreachNode:
			items, err := foreachItems(t.path, ctx, sc)
			if err != nil {
				return err
			}
			for _, item := range items {
				inner := &scope{parent: sc, name: t.varName, value: item}
				if err := evalNodes(t.body, ctx, inner, sb); err != nil {
					return err
				}
			}

		case condNode:
			for _, br := range t.branches {
				matched := true
				if br.cond != nil {
					var err error
					matched, err = evalCondition(br.cond, ctx, sc)
					if err != nil {
						return err
					}
				}
				if matched {
					if err := evalNodes(br.body, ctx, sc, sb); err != nil {
						return err
					}
					break
				}
			}
		}
	}
	return nil
}

// foreachItems resolves the collection for a @foreach block. Sequences
// iterate in order; mappings iterate their values in key order so output is
// deterministic. A scalar or missing path is a fault.
func foreachItems(path string, ctx *Context, sc *scope) ([]any, error) {
	v, err := resolvePath(path, ctx, sc)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case []any:
		return t, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]any, 0, len(t))
		for _, k := range keys {
			items = append(items, t[k])
		}
		return items, nil
	default:
		return nil, fmt.Errorf("%w: @foreach path %q must resolve to an array or object", ErrResolution, path)
	}
}

// evalCondition evaluates one branch predicate. A path the context cannot
// resolve makes the branch false rather than failing the render; an ordered
// comparison over non-numeric operands is a fault.
func evalCondition(c *condition, ctx *Context, sc *scope) (bool, error) {
	v, err := resolvePath(c.path, ctx, sc)
	if err != nil {
		return false, nil
	}

	switch c.op {
	case "":
		return Truthy(v), nil
	case "==":
		return equalValues(v, c.literal), nil
	case "!=":
		return !equalValues(v, c.literal), nil
	}

	lhs, ok1 := asNumber(v)
	rhs, ok2 := asNumber(c.literal)
	if !ok1 || !ok2 {
		return false, fmt.Errorf("%w: comparison %q %s requires numeric operands", ErrResolution, c.path, c.op)
	}
	switch c.op {
	case ">":
		return lhs > rhs, nil
	case "<":
		return lhs < rhs, nil
	case ">=":
		return lhs >= rhs, nil
	case "<=":
		return lhs <= rhs, nil
	}
	return false, fmt.Errorf("%w: unknown operator %q", ErrSyntax, c.op)
}

func tokenName(k tokenKind) string {
	switch k {
	case tokFor:
		return "@for"
	case tokForeach:
		return "@foreach"
	case tokIf:
		return "@if"
	case tokElseif:
		return "@elseif"
	case tokElse:
		return "@else"
	case tokEndfor:
		return "@endfor"
	case tokEndforeach:
		return "@endforeach"
	case tokEndif:
		return "@endif"
	default:
		return "token"
	}
}
