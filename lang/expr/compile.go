package expr

import (
	"log/slog"
	"strings"

	"github.com/ardnew/twine/pkg"
)

// Param is one declared macro parameter with its optional default.
type Param struct {
	Default *Expression // nil when the parameter has no default
	Name    string
}

// Compile parses src into a postfix [Expression] using operator precedence
// (shunting-yard). Grouping constructs (parentheses, arrays, hashes, call
// arguments, subscripts) compile recursively into the same program.
func Compile(src string) (*Expression, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}

	if err := p.expression(nil); err != nil {
		return nil, p.fail(err)
	}

	if err := p.expectEOF(); err != nil {
		return nil, p.fail(err)
	}

	return &Expression{Source: src, Nodes: p.out}, nil
}

// CompileList parses a comma-separated list of expressions, e.g. the right
// side of a multiple assignment.
func CompileList(src string) ([]*Expression, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}

	var list []*Expression

	for {
		start := p.peek().pos

		p.out, p.spans = nil, nil
		if err := p.expression(stopAt(",")); err != nil {
			return nil, p.fail(err)
		}

		item := strings.TrimSpace(src[start:p.peek().pos])
		list = append(list, &Expression{Source: item, Nodes: p.out})

		if !p.peek().is(tokPunct, ",") {
			break
		}

		p.next()
	}

	if err := p.expectEOF(); err != nil {
		return nil, p.fail(err)
	}

	return list, nil
}

// CompileFilterChain parses a bare filter chain such as `upper|trim` into an
// expression that applies each filter, in order, to the value passed to
// [Expression.EvaluateInput].
func CompileFilterChain(src string) (*Expression, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}

	p.emit(Node{Kind: KindInput})

	for {
		if err := p.filter(); err != nil {
			return nil, p.fail(err)
		}

		if !p.peek().is(tokPunct, "|") {
			break
		}

		p.next()
	}

	if err := p.expectEOF(); err != nil {
		return nil, p.fail(err)
	}

	return &Expression{Source: src, Nodes: p.out}, nil
}

// ParseParams parses a macro parameter list: names separated by commas,
// each optionally followed by `= default-expression`.
func ParseParams(src string) ([]Param, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}

	var params []Param

	for p.peek().kind != tokEOF {
		t := p.next()
		if t.kind != tokName {
			return nil, p.fail(unexpected(t))
		}

		param := Param{Name: t.text}

		if p.peek().is(tokPunct, "=") {
			p.next()

			start := p.peek().pos

			p.out, p.spans = nil, nil
			if err := p.expression(stopAt(",")); err != nil {
				return nil, p.fail(err)
			}

			param.Default = &Expression{
				Source: strings.TrimSpace(src[start:p.peek().pos]),
				Nodes:  p.out,
			}
		}

		params = append(params, param)

		switch t := p.peek(); {
		case t.is(tokPunct, ","):
			p.next()
		case t.kind != tokEOF:
			return nil, p.fail(unexpected(t))
		}
	}

	return params, nil
}

// pending is an operator waiting on the operator stack. A ternary '?'
// becomes closed once its ':' has been seen.
type pending struct {
	op     *Operator
	pos    int
	closed bool
}

func (o pending) openTernary() bool { return o.op.Symbol == "?" && !o.closed }

type parser struct {
	src   string
	toks  []token
	out   []Node
	spans []int // start offset in out of each operand produced so far
	pos   int
}

func newParser(src string) (*parser, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}

	return &parser{src: src, toks: toks}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}

	return t
}

func (p *parser) fail(err error) error {
	return pkg.WrapError(err).With(slog.String("expression", p.src))
}

func (p *parser) expectEOF() error {
	if t := p.peek(); t.kind != tokEOF {
		return unexpected(t)
	}

	return nil
}

func (p *parser) expect(punct string) error {
	if t := p.next(); !t.is(tokPunct, punct) {
		return unexpected(t).With(slog.String("expected", punct))
	}

	return nil
}

// emit appends n to the program and folds the spans of the operands it
// consumes into one.
func (p *parser) emit(n Node) {
	k := min(n.operands(), len(p.spans))

	start := len(p.out)
	if k > 0 {
		start = p.spans[len(p.spans)-k]
		p.spans = p.spans[:len(p.spans)-k]
	}

	p.out = append(p.out, n)
	p.spans = append(p.spans, start)
}

// lenient marks the lookups of the newest operand (or the one depth
// operands below it) as tolerant of missing bindings.
func (p *parser) lenient(depth int) {
	i := len(p.spans) - 1 - depth
	if i < 0 {
		return
	}

	end := len(p.out)
	if depth > 0 {
		end = p.spans[i+1]
	}

	for j := p.spans[i]; j < end; j++ {
		switch p.out[j].Kind {
		case KindVariable, KindAttribute, KindSubscript:
			p.out[j].Lenient = true
		}
	}
}

func (p *parser) emitOperator(o pending) {
	argc := 2

	switch {
	case o.op.Arity == Unary:
		argc = 1
	case o.op.Symbol == "?" && o.closed:
		argc = 3
	case o.op.Symbol == "??":
		p.lenient(1)
	}

	p.emit(Node{Kind: KindOperator, Op: o.op, Argc: argc, Pos: o.pos})
}

// expression compiles one operand-producing expression, stopping before the
// first token at this nesting level for which stop returns true.
//
//nolint:cyclop,funlen
func (p *parser) expression(stop func(token) bool) error {
	var ops []pending

	popWhile := func(in *Operator) {
		for len(ops) > 0 {
			top := ops[len(ops)-1]
			if top.openTernary() || !top.op.binds(in) {
				return
			}

			p.emitOperator(top)
			ops = ops[:len(ops)-1]
		}
	}

	expectOperand := true

	for {
		t := p.peek()
		if t.kind == tokEOF || (stop != nil && stop(t)) {
			break
		}

		if expectOperand {
			if op := prefixOperator(t); op != nil {
				p.next()
				ops = append(ops, pending{op: op, pos: t.pos})

				continue
			}

			if err := p.primary(); err != nil {
				return err
			}

			if err := p.postfix(); err != nil {
				return err
			}

			expectOperand = false

			continue
		}

		switch {
		case t.is(tokPunct, "?"):
			p.next()

			op := operators["?"]
			popWhile(op)
			ops = append(ops, pending{op: op, pos: t.pos})

		case t.is(tokPunct, ":"):
			p.next()

			for len(ops) > 0 && !ops[len(ops)-1].openTernary() {
				p.emitOperator(ops[len(ops)-1])
				ops = ops[:len(ops)-1]
			}

			if len(ops) == 0 {
				return unexpected(t)
			}

			ops[len(ops)-1].closed = true

		case t.kind == tokOperator && !strings.HasPrefix(t.text, "is"):
			op, err := LookupOperator(t.text)
			if err != nil {
				return err
			}

			if op.Arity == Unary {
				return unexpected(t)
			}

			p.next()
			popWhile(op)
			ops = append(ops, pending{op: op, pos: t.pos})

		default:
			return unexpected(t)
		}

		expectOperand = true
	}

	if expectOperand {
		return ErrSyntax.With(
			slog.String("reason", "missing operand"),
			slog.Int("offset", p.peek().pos),
		)
	}

	for i := len(ops) - 1; i >= 0; i-- {
		p.emitOperator(ops[i])
	}

	return nil
}

func prefixOperator(t token) *Operator {
	if t.kind != tokOperator {
		return nil
	}

	switch t.text {
	case "not":
		return operators["not"]
	case "-":
		return opNegate
	case "+":
		return opPlus
	}

	return nil
}

func (p *parser) primary() error {
	t := p.next()

	switch t.kind {
	case tokNumber, tokString, tokLiteral:
		p.emit(Node{Kind: KindLiteral, Value: t.val, Pos: t.pos})

		return nil

	case tokName:
		if !p.peek().is(tokPunct, "(") {
			p.emit(Node{Kind: KindVariable, Name: t.text, Pos: t.pos})

			return nil
		}

		p.next()

		argc, err := p.arguments(")")
		if err != nil {
			return err
		}

		p.emit(Node{Kind: KindCall, Name: t.text, Argc: argc, Pos: t.pos})

		return nil

	case tokPunct:
		switch t.text {
		case "(":
			if err := p.expression(stopAt(")")); err != nil {
				return err
			}

			return p.expect(")")

		case "[":
			argc, err := p.arguments("]")
			if err != nil {
				return err
			}

			p.emit(Node{Kind: KindArray, Argc: argc, Pos: t.pos})

			return nil

		case "{":
			argc, err := p.hash()
			if err != nil {
				return err
			}

			p.emit(Node{Kind: KindHash, Argc: argc, Pos: t.pos})

			return nil
		}
	}

	return unexpected(t)
}

// postfix compiles attribute access, subscripts, filters and tests applied
// to the operand just compiled. They bind tighter than any operator.
func (p *parser) postfix() error {
	for {
		t := p.peek()

		switch {
		case t.is(tokPunct, "."):
			p.next()

			name := p.next()
			if name.kind != tokName && name.kind != tokNumber {
				return unexpected(name)
			}

			n := Node{Kind: KindAttribute, Name: name.text, Pos: name.pos}

			if p.peek().is(tokPunct, "(") {
				p.next()

				argc, err := p.arguments(")")
				if err != nil {
					return err
				}

				n.Method, n.Argc = true, argc
			}

			p.emit(n)

		case t.is(tokPunct, "["):
			p.next()

			if err := p.expression(stopAt("]")); err != nil {
				return err
			}

			if err := p.expect("]"); err != nil {
				return err
			}

			p.emit(Node{Kind: KindSubscript, Pos: t.pos})

		case t.is(tokPunct, "|"):
			p.next()

			if err := p.filter(); err != nil {
				return err
			}

		case t.is(tokOperator, "is"), t.is(tokOperator, "is not"):
			p.next()

			if err := p.test(t.text == "is not"); err != nil {
				return err
			}

		default:
			return nil
		}
	}
}

func (p *parser) filter() error {
	t := p.next()
	if t.kind != tokName {
		return unexpected(t).With(slog.String("expected", "filter name"))
	}

	if t.text == "default" {
		p.lenient(0)
	}

	n := Node{Kind: KindFilter, Name: t.text, Pos: t.pos}

	if p.peek().is(tokPunct, "(") {
		p.next()

		argc, err := p.arguments(")")
		if err != nil {
			return err
		}

		n.Argc = argc
	}

	p.emit(n)

	return nil
}

// twoWordTests are tests whose names span two words.
var twoWordTests = map[string]string{
	"divisible": "by",
	"same":      "as",
}

func (p *parser) test(negate bool) error {
	t := p.next()
	if t.kind != tokName && t.kind != tokLiteral {
		return unexpected(t).With(slog.String("expected", "test name"))
	}

	name := strings.ToLower(t.text)
	if second, ok := twoWordTests[name]; ok && p.peek().is(tokName, second) {
		p.next()

		name += " " + second
	}

	if name == "defined" {
		p.lenient(0)
	}

	n := Node{Kind: KindTest, Name: name, Negate: negate, Pos: t.pos}

	if p.peek().is(tokPunct, "(") {
		p.next()

		argc, err := p.arguments(")")
		if err != nil {
			return err
		}

		n.Argc = argc
	}

	p.emit(n)

	return nil
}

// arguments compiles a comma-separated list terminated by closer, which is
// consumed. A trailing comma is allowed.
func (p *parser) arguments(closer string) (int, error) {
	if p.peek().is(tokPunct, closer) {
		p.next()

		return 0, nil
	}

	for argc := 1; ; argc++ {
		if err := p.expression(stopAt(",", closer)); err != nil {
			return 0, err
		}

		t := p.next()

		switch {
		case t.is(tokPunct, closer):
			return argc, nil

		case t.is(tokPunct, ","):
			if p.peek().is(tokPunct, closer) {
				p.next()

				return argc, nil
			}

		default:
			return 0, unexpected(t).With(slog.String("expected", closer))
		}
	}
}

// hash compiles `key: value` pairs up to and including the closing brace.
// Keys are bare names, literals, or parenthesized expressions.
func (p *parser) hash() (int, error) {
	if p.peek().is(tokPunct, "}") {
		p.next()

		return 0, nil
	}

	for argc := 1; ; argc++ {
		switch k := p.next(); {
		case k.kind == tokName, k.kind == tokLiteral, k.kind == tokNumber:
			p.emit(Node{Kind: KindLiteral, Value: k.text, Pos: k.pos})

		case k.kind == tokString:
			p.emit(Node{Kind: KindLiteral, Value: k.val, Pos: k.pos})

		case k.is(tokPunct, "("):
			if err := p.expression(stopAt(")")); err != nil {
				return 0, err
			}

			if err := p.expect(")"); err != nil {
				return 0, err
			}

		default:
			return 0, unexpected(k).With(slog.String("expected", "hash key"))
		}

		if err := p.expect(":"); err != nil {
			return 0, err
		}

		if err := p.expression(stopAt(",", "}")); err != nil {
			return 0, err
		}

		switch t := p.next(); {
		case t.is(tokPunct, "}"):
			return argc, nil

		case t.is(tokPunct, ","):
			if p.peek().is(tokPunct, "}") {
				p.next()

				return argc, nil
			}

		default:
			return 0, unexpected(t).With(slog.String("expected", "}"))
		}
	}
}

func stopAt(punct ...string) func(token) bool {
	return func(t token) bool {
		if t.kind != tokPunct {
			return false
		}

		for _, s := range punct {
			if t.text == s {
				return true
			}
		}

		return false
	}
}

func unexpected(t token) *pkg.Error {
	if t.kind == tokEOF {
		return ErrSyntax.With(
			slog.String("reason", "unexpected end of expression"),
			slog.Int("offset", t.pos),
		)
	}

	return ErrSyntax.With(
		slog.String("unexpected", t.text),
		slog.Int("offset", t.pos),
	)
}
