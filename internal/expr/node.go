// internal/expr/node.go

// Package expr implements the shared expression grammar used by visibility
// rules, navigation conditions, and eligibility rule logic.
//
// A node tree is a tagged variant: literal | variable reference | operator
// application. The grammar is fixed and small (==, !=, >, <, >=, <=, IN,
// AND, OR); unknown operators fail decoding/parsing with
// types.ErrMalformedExpression, never a silent false.
package expr

import (
	"encoding/json"
	"fmt"

	"github.com/openbenefits/medscreen/internal/types"
)

// Op enumerates the fixed operator set.
type Op string

const (
	OpEq  Op = "=="
	OpNeq Op = "!="
	OpGt  Op = ">"
	OpLt  Op = "<"
	OpGte Op = ">="
	OpLte Op = "<="
	OpIn  Op = "IN"
	OpAnd Op = "AND"
	OpOr  Op = "OR"
)

// Kind tags the node variant.
type Kind int

const (
	KindLiteral Kind = iota
	KindVariable
	KindOperator
)

// Node is one vertex of an expression tree. Exactly one variant is populated
// per Kind: Value for literals, Key for variable references, Op+Children for
// operator applications.
type Node struct {
	Kind     Kind
	Value    any    // literal: string, float64, bool, or []any
	Key      string // variable: answer key
	Op       Op
	Children []*Node
}

// Lit constructs a literal node.
func Lit(v any) *Node { return &Node{Kind: KindLiteral, Value: v} }

// Var constructs a variable-reference node.
func Var(key string) *Node { return &Node{Kind: KindVariable, Key: key} }

// Apply constructs an operator application.
func Apply(op Op, children ...*Node) *Node {
	return &Node{Kind: KindOperator, Op: op, Children: children}
}

// jsonNode is the stored JSON form: {"var": k} | {"lit": v} |
// {"op": o, "args": [...]}. Rule rows persist this shape in their logic
// column; the catalog's textual surface goes through Parse instead.
type jsonNode struct {
	Var  *string           `json:"var,omitempty"`
	Lit  *json.RawMessage  `json:"lit,omitempty"`
	Op   *string           `json:"op,omitempty"`
	Args []json.RawMessage `json:"args,omitempty"`
}

// DecodeNode parses the stored JSON tree form and validates it: known
// operators only, depth and IN-list limits enforced, exactly one variant
// tag per object.
func DecodeNode(raw json.RawMessage) (*Node, error) {
	n, err := decodeNode(raw, 0)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func decodeNode(raw json.RawMessage, depth int) (*Node, error) {
	if depth > types.MaxExpressionDepth {
		return nil, types.ErrExpressionTooDeep
	}

	var jn jsonNode
	if err := json.Unmarshal(raw, &jn); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedExpression, err)
	}

	set := 0
	if jn.Var != nil {
		set++
	}
	if jn.Lit != nil {
		set++
	}
	if jn.Op != nil {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: node must have exactly one of var/lit/op", types.ErrMalformedExpression)
	}

	switch {
	case jn.Var != nil:
		if *jn.Var == "" || len(*jn.Var) > types.MaxAnswerKeyLength {
			return nil, fmt.Errorf("%w: invalid variable key", types.ErrMalformedExpression)
		}
		return Var(*jn.Var), nil

	case jn.Lit != nil:
		v, err := decodeLiteral(*jn.Lit)
		if err != nil {
			return nil, err
		}
		return Lit(v), nil

	default:
		op, err := parseOp(*jn.Op)
		if err != nil {
			return nil, err
		}
		if len(jn.Args) < 2 {
			return nil, fmt.Errorf("%w: operator %s needs at least two operands", types.ErrMalformedExpression, op)
		}
		children := make([]*Node, 0, len(jn.Args))
		for _, arg := range jn.Args {
			child, err := decodeNode(arg, depth+1)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		node := Apply(op, children...)
		if err := validateOperands(node); err != nil {
			return nil, err
		}
		return node, nil
	}
}

// decodeLiteral restricts literals to string, number, bool, or a flat list
// of strings/numbers.
func decodeLiteral(raw json.RawMessage) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedExpression, err)
	}
	switch lit := v.(type) {
	case string, float64, bool:
		return lit, nil
	case []any:
		if len(lit) > types.MaxInListValues {
			return nil, types.ErrTooManyInValues
		}
		for _, elem := range lit {
			switch elem.(type) {
			case string, float64:
			default:
				return nil, fmt.Errorf("%w: list literals may only contain strings and numbers", types.ErrMalformedExpression)
			}
		}
		return lit, nil
	default:
		return nil, fmt.Errorf("%w: unsupported literal type %T", types.ErrMalformedExpression, v)
	}
}

func parseOp(s string) (Op, error) {
	switch Op(s) {
	case OpEq, OpNeq, OpGt, OpLt, OpGte, OpLte, OpIn, OpAnd, OpOr:
		return Op(s), nil
	default:
		return "", fmt.Errorf("%w: %q", types.ErrUnknownOperator, s)
	}
}

// validateOperands enforces per-operator shape: comparisons are binary with
// a variable on at least one side, IN takes a variable and a list literal,
// AND/OR take boolean-valued sub-expressions (checked structurally: any
// operator application or variable is allowed there).
func validateOperands(n *Node) error {
	switch n.Op {
	case OpAnd, OpOr:
		return nil
	case OpIn:
		if len(n.Children) != 2 {
			return fmt.Errorf("%w: IN is binary", types.ErrMalformedExpression)
		}
		lit := n.Children[1]
		if lit.Kind != KindLiteral {
			return fmt.Errorf("%w: IN right operand must be a literal list", types.ErrMalformedExpression)
		}
		if _, ok := lit.Value.([]any); !ok {
			return fmt.Errorf("%w: IN right operand must be a list", types.ErrMalformedExpression)
		}
		return nil
	default:
		if len(n.Children) != 2 {
			return fmt.Errorf("%w: %s is binary", types.ErrMalformedExpression, n.Op)
		}
		if n.Children[0].Kind == KindOperator || n.Children[1].Kind == KindOperator {
			return fmt.Errorf("%w: %s operands must be values", types.ErrMalformedExpression, n.Op)
		}
		return nil
	}
}

// MarshalNode encodes a node tree into the stored JSON form. Inverse of
// DecodeNode for valid trees.
func MarshalNode(n *Node) (json.RawMessage, error) {
	switch n.Kind {
	case KindVariable:
		return json.Marshal(map[string]any{"var": n.Key})
	case KindLiteral:
		return json.Marshal(map[string]any{"lit": n.Value})
	default:
		args := make([]json.RawMessage, len(n.Children))
		for i, c := range n.Children {
			enc, err := MarshalNode(c)
			if err != nil {
				return nil, err
			}
			args[i] = enc
		}
		return json.Marshal(map[string]any{"op": string(n.Op), "args": args})
	}
}
