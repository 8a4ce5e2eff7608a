// internal/expr/parse.go
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/openbenefits/medscreen/internal/types"
)

/*
 * Parser for the textual condition surface.
 *
 * Grammar (shared byte-for-byte with the client-side mirror):
 *
 *   expr       := conjunction (OR conjunction)*
 *   conjunction := comparison (AND comparison)*
 *   comparison := IDENT op operand | IDENT IN list
 *   op         := == | != | > | < | >= | <=
 *   operand    := IDENT | literal
 *   literal    := number | quoted string | true | false
 *   list       := '[' literal (',' literal)* ']'
 *
 * AND binds tighter than OR. Unknown operators are a parse error
 * (types.ErrUnknownOperator wrapped under ErrMalformedExpression semantics),
 * never a silent false. Golden vectors in testdata/grammar_vectors.json pin
 * the behavior both runtimes must agree on.
 */

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokOp     // == != > < >= <=
	tokAnd
	tokOr
	tokIn
	tokTrue
	tokFalse
	tokLBracket
	tokRBracket
	tokComma
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type parser struct {
	toks []token
	idx  int
}

// Parse compiles condition text into a node tree.
func Parse(text string) (*Node, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, errAt(p.peek().pos, "unexpected trailing input")
	}
	// Long AND/OR chains left-lean into deep trees; the textual surface
	// honors the same depth limit as the stored JSON form.
	if treeDepth(node) > types.MaxExpressionDepth {
		return nil, types.ErrExpressionTooDeep
	}
	return node, nil
}

func treeDepth(n *Node) int {
	if n == nil {
		return 0
	}
	deepest := 0
	for _, c := range n.Children {
		if d := treeDepth(c); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}

func errAt(pos int, format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", types.ErrMalformedExpression, pos, fmt.Sprintf(format, args...))
}

func lex(text string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '[':
			toks = append(toks, token{tokLBracket, "[", i})
			i++
		case c == ']':
			toks = append(toks, token{tokRBracket, "]", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++

		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < len(text) && text[j] != quote {
				j++
			}
			if j >= len(text) {
				return nil, errAt(i, "unterminated string")
			}
			toks = append(toks, token{tokString, text[i+1 : j], i})
			i = j + 1

		case c == '=' || c == '!' || c == '<' || c == '>':
			j := i + 1
			if j < len(text) && text[j] == '=' {
				j++
			}
			op := text[i:j]
			switch op {
			case "==", "!=", ">", "<", ">=", "<=":
				toks = append(toks, token{tokOp, op, i})
			default:
				return nil, fmt.Errorf("%w: %q at offset %d", types.ErrUnknownOperator, op, i)
			}
			i = j

		case c == '-' || unicode.IsDigit(rune(c)):
			j := i
			if c == '-' {
				j++
			}
			seenDot := false
			for j < len(text) && (unicode.IsDigit(rune(text[j])) || (text[j] == '.' && !seenDot)) {
				if text[j] == '.' {
					seenDot = true
				}
				j++
			}
			num := text[i:j]
			if num == "-" {
				return nil, errAt(i, "bare minus sign")
			}
			toks = append(toks, token{tokNumber, num, i})
			i = j

		case isIdentStart(rune(c)):
			j := i + 1
			for j < len(text) && isIdentPart(rune(text[j])) {
				j++
			}
			word := text[i:j]
			switch word {
			case "AND":
				toks = append(toks, token{tokAnd, word, i})
			case "OR":
				toks = append(toks, token{tokOr, word, i})
			case "IN":
				toks = append(toks, token{tokIn, word, i})
			case "true":
				toks = append(toks, token{tokTrue, word, i})
			case "false":
				toks = append(toks, token{tokFalse, word, i})
			default:
				if len(word) > types.MaxAnswerKeyLength {
					return nil, errAt(i, "identifier too long")
				}
				toks = append(toks, token{tokIdent, word, i})
			}
			i = j

		default:
			return nil, errAt(i, "unexpected character %q", string(c))
		}
	}
	toks = append(toks, token{tokEOF, "", len(text)})
	return toks, nil
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

// Identifiers cover kebab-case step ids (household-size) and camelCase
// answer keys (householdSize).
func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.'
}

func (p *parser) peek() token { return p.toks[p.idx] }

func (p *parser) next() token {
	t := p.toks[p.idx]
	if t.kind != tokEOF {
		p.idx++
	}
	return t
}

func (p *parser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Apply(OpOr, left, right)
	}
	return left, nil
}

func (p *parser) parseAnd() (*Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = Apply(OpAnd, left, right)
	}
	return left, nil
}

func (p *parser) parseComparison() (*Node, error) {
	lhs := p.next()
	if lhs.kind != tokIdent {
		return nil, errAt(lhs.pos, "expected identifier, got %q", lhs.text)
	}
	left := Var(lhs.text)

	opTok := p.next()
	switch opTok.kind {
	case tokOp:
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return Apply(Op(opTok.text), left, right), nil

	case tokIn:
		list, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return Apply(OpIn, left, list), nil

	default:
		return nil, fmt.Errorf("%w: expected operator after %q at offset %d", types.ErrUnknownOperator, lhs.text, opTok.pos)
	}
}

func (p *parser) parseOperand() (*Node, error) {
	t := p.next()
	switch t.kind {
	case tokIdent:
		return Var(t.text), nil
	case tokString:
		return Lit(t.text), nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, errAt(t.pos, "invalid number %q", t.text)
		}
		return Lit(f), nil
	case tokTrue:
		return Lit(true), nil
	case tokFalse:
		return Lit(false), nil
	default:
		return nil, errAt(t.pos, "expected literal or identifier, got %q", t.text)
	}
}

func (p *parser) parseList() (*Node, error) {
	open := p.next()
	if open.kind != tokLBracket {
		return nil, errAt(open.pos, "expected '[' after IN")
	}

	var elems []any
	for {
		t := p.next()
		switch t.kind {
		case tokString:
			elems = append(elems, t.text)
		case tokNumber:
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return nil, errAt(t.pos, "invalid number %q", t.text)
			}
			elems = append(elems, f)
		case tokRBracket:
			if len(elems) == 0 {
				return Lit([]any{}), nil
			}
			return nil, errAt(t.pos, "trailing comma in list")
		default:
			return nil, errAt(t.pos, "expected list element, got %q", t.text)
		}

		sep := p.next()
		if sep.kind == tokRBracket {
			if len(elems) > types.MaxInListValues {
				return nil, types.ErrTooManyInValues
			}
			return Lit(elems), nil
		}
		if sep.kind != tokComma {
			return nil, errAt(sep.pos, "expected ',' or ']' in list")
		}
	}
}

// Format renders a node tree back to the textual surface. Best-effort
// inverse of Parse for trees that fit the flat grammar; used by admin
// tooling when displaying stored rules.
func Format(n *Node) string {
	switch n.Kind {
	case KindVariable:
		return n.Key
	case KindLiteral:
		return formatLiteral(n.Value)
	default:
		sep := " " + string(n.Op) + " "
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = Format(c)
		}
		return strings.Join(parts, sep)
	}
}

func formatLiteral(v any) string {
	switch lit := v.(type) {
	case string:
		return "'" + lit + "'"
	case bool:
		return strconv.FormatBool(lit)
	case float64:
		return strconv.FormatFloat(lit, 'f', -1, 64)
	case []any:
		parts := make([]string, len(lit))
		for i, e := range lit {
			parts[i] = formatLiteral(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}
