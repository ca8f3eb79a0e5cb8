package expr

import (
	"log/slog"
	"slices"
	"strings"
)

// Associativity determines how operators of equal precedence group.
type Associativity uint8

const (
	Left  Associativity = iota // left
	Right                      // right
)

// Arity classifies how many operands an operator consumes.
type Arity uint8

const (
	Unary    Arity = iota + 1 // unary
	Binary                    // binary
	Ternary                   // ternary
	Variadic                  // variadic
)

// Operator describes one operator symbol. Higher precedence binds tighter.
// Operators are immutable; the table is built once.
type Operator struct {
	Symbol     string
	Precedence int
	Assoc      Associativity
	Arity      Arity
}

// LogValue implements slog.LogValuer.
func (o *Operator) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("symbol", o.Symbol),
		slog.Int("precedence", o.Precedence),
		slog.String("assoc", o.Assoc.String()),
	)
}

// binds reports whether o, sitting on the operator stack, must be emitted
// before the incoming operator in is pushed.
func (o *Operator) binds(in *Operator) bool {
	return o.Precedence > in.Precedence ||
		(o.Precedence == in.Precedence && in.Assoc == Left)
}

// Precedence levels, loosest first.
const (
	precComma = iota + 7
	_
	_
	precTernary
	precCoalesce
	precOr
	precAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precCompare
	precRange
	precAdditive
	precMultiplicative
	precUnarySign
	precPower
	precNot
)

// Unary sign operators share their symbols with the binary forms, so they
// live outside the symbol index.
var (
	opNegate = &Operator{"neg", precUnarySign, Right, Unary}
	opPlus   = &Operator{"pos", precUnarySign, Right, Unary}
)

// operators is the static operator table, indexed by symbol.
var operators = func() map[string]*Operator {
	table := []*Operator{
		{",", precComma, Left, Variadic},
		{"?", precTernary, Right, Ternary},
		{":", precTernary, Right, Ternary},
		{"?:", precTernary, Right, Binary},
		{"??", precCoalesce, Right, Binary},
		{"or", precOr, Left, Binary},
		{"and", precAnd, Left, Binary},
		{"b-or", precBitOr, Left, Binary},
		{"b-xor", precBitXor, Left, Binary},
		{"b-and", precBitAnd, Left, Binary},
		{"==", precEquality, Left, Binary},
		{"!=", precEquality, Left, Binary},
		{"===", precEquality, Left, Binary},
		{"!==", precEquality, Left, Binary},
		{"<", precCompare, Left, Binary},
		{"<=", precCompare, Left, Binary},
		{">", precCompare, Left, Binary},
		{">=", precCompare, Left, Binary},
		{"in", precCompare, Left, Binary},
		{"not in", precCompare, Left, Binary},
		{"matches", precCompare, Left, Binary},
		{"starts with", precCompare, Left, Binary},
		{"ends with", precCompare, Left, Binary},
		{"..", precRange, Left, Binary},
		{"~", precAdditive, Left, Binary},
		{"+", precAdditive, Left, Binary},
		{"-", precAdditive, Left, Binary},
		{"*", precMultiplicative, Left, Binary},
		{"/", precMultiplicative, Left, Binary},
		{"//", precMultiplicative, Left, Binary},
		{"%", precMultiplicative, Left, Binary},
		{"**", precPower, Right, Binary},
		{"not", precNot, Right, Unary},
	}

	m := make(map[string]*Operator, len(table))
	for _, op := range table {
		m[op.Symbol] = op
	}

	return m
}()

// symbolOperators lists the punctuation operators longest first, which is
// the order the lexer must try them in.
var symbolOperators = func() []string {
	var syms []string

	for sym := range operators {
		if !isWord(sym) {
			syms = append(syms, sym)
		}
	}

	slices.SortFunc(syms, func(a, b string) int {
		if d := len(b) - len(a); d != 0 {
			return d
		}

		return strings.Compare(a, b)
	})

	return syms
}()

// LookupOperator returns the table entry for symbol. An unknown symbol fails
// with [ErrUnknownOperator].
func LookupOperator(symbol string) (*Operator, error) {
	if op, ok := operators[symbol]; ok {
		return op, nil
	}

	return nil, ErrUnknownOperator.With(slog.String("operator", symbol))
}

// Operators returns every operator symbol in the table, sorted.
func Operators() []string {
	syms := make([]string, 0, len(operators))
	for sym := range operators {
		syms = append(syms, sym)
	}

	slices.Sort(syms)

	return syms
}

func isWord(sym string) bool {
	c := sym[0]

	return c >= 'a' && c <= 'z'
}
