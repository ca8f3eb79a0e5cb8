package expr

//go:generate go tool stringer --linecomment --type Kind,Associativity,Arity --output expr_string.go

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/ardnew/twine/lang/value"
)

// Kind identifies the variant of a [Node].
type Kind uint8

const (
	KindLiteral   Kind = iota // literal
	KindVariable              // variable
	KindOperator              // operator
	KindCall                  // call
	KindFilter                // filter
	KindAttribute             // attribute
	KindSubscript             // subscript
	KindTest                  // test
	KindArray                 // array
	KindHash                  // hash
	KindInput                 // input
)

// Node is one postfix instruction. Which fields are meaningful depends on
// Kind:
//
//	literal    Value
//	variable   Name
//	operator   Op, Argc (operands popped)
//	call       Name, Argc
//	filter     Name, Argc (arguments, after the filtered operand)
//	attribute  Name, Argc and Method when invoked with arguments
//	subscript  (operand and key)
//	test       Name, Argc, Negate
//	array      Argc elements
//	hash       Argc key/value pairs
//	input      (the value supplied to [Expression.EvaluateInput])
type Node struct {
	Value   any
	Op      *Operator
	Name    string
	Argc    int
	Pos     int
	Kind    Kind
	Method  bool
	Negate  bool
	Lenient bool // lookups yield undefined instead of failing in strict mode
}

// operands returns how many stack values n consumes.
func (n *Node) operands() int {
	switch n.Kind {
	case KindOperator, KindCall, KindArray:
		return n.Argc
	case KindFilter, KindTest:
		return 1 + n.Argc
	case KindAttribute:
		if n.Method {
			return 1 + n.Argc
		}

		return 1
	case KindSubscript:
		return 2 //nolint:mnd
	case KindHash:
		return 2 * n.Argc //nolint:mnd
	default:
		return 0
	}
}

// String renders n for traces and tests.
func (n *Node) String() string {
	switch n.Kind {
	case KindLiteral:
		if s, ok := n.Value.(string); ok {
			return strconv.Quote(s)
		}

		if n.Value == nil {
			return "null"
		}

		return value.ToString(n.Value)
	case KindVariable:
		return n.Name
	case KindOperator:
		return n.Op.Symbol + "/" + strconv.Itoa(n.Argc)
	case KindAttribute:
		return "." + n.Name
	case KindInput:
		return "<input>"
	case KindSubscript:
		return "[]"
	}

	var b strings.Builder

	b.WriteString(n.Kind.String())
	b.WriteByte(':')
	b.WriteString(n.Name)
	b.WriteByte('/')
	b.WriteString(strconv.Itoa(n.Argc))

	return b.String()
}

// Expression is a compiled expression: its source text and postfix program.
// An Expression is immutable and safe for concurrent evaluation.
type Expression struct {
	Source string
	Nodes  []Node
}

// String returns the postfix program, space-separated.
func (e *Expression) String() string {
	part := make([]string, len(e.Nodes))
	for i := range e.Nodes {
		part[i] = e.Nodes[i].String()
	}

	return strings.Join(part, " ")
}

// LogValue implements slog.LogValuer.
func (e *Expression) LogValue() slog.Value {
	return slog.StringValue(e.Source)
}
