package expr

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ardnew/twine/lang/value"
	"github.com/ardnew/twine/pkg"
)

// Env supplies the named filters, functions and tests an expression may
// invoke. Unknown names fail with [ErrUnknownFilter], [ErrUnknownFunction]
// and [ErrUnknownTest] respectively.
//
// An Env that also implements `StrictVariables() bool` and returns true
// turns lookups of unbound variables and attributes into errors, except
// where the lookup is the left operand of `??` or the subject of
// `is defined`.
type Env interface {
	Filter(ctx context.Context, name string, input any, args []any) (any, error)
	Function(ctx context.Context, name string, args []any) (any, error)
	Test(ctx context.Context, name string, input any, args []any) (bool, error)
}

type strictEnv interface {
	StrictVariables() bool
}

// contextVar names the variable that evaluates to the whole context.
const contextVar = "_context"

// Evaluate runs the expression against vars and returns its value.
func (e *Expression) Evaluate(ctx context.Context, env Env, vars *value.Map) (any, error) {
	return e.run(ctx, env, vars, value.Undef)
}

// EvaluateInput is [Expression.Evaluate] for expressions compiled by
// [CompileFilterChain]: input is the value the chain starts from.
func (e *Expression) EvaluateInput(
	ctx context.Context,
	env Env,
	vars *value.Map,
	input any,
) (any, error) {
	return e.run(ctx, env, vars, input)
}

type machine struct {
	env    Env
	vars   *value.Map
	stack  []any
	strict bool
}

func (m *machine) push(v any) { m.stack = append(m.stack, v) }

// pop removes the top k values and returns them bottom-first.
func (m *machine) pop(k int) ([]any, error) {
	if k > len(m.stack) {
		return nil, ErrEvaluate.With(slog.String("reason", "stack underflow"))
	}

	args := make([]any, k)
	copy(args, m.stack[len(m.stack)-k:])
	m.stack = m.stack[:len(m.stack)-k]

	return args, nil
}

//nolint:cyclop,funlen
func (e *Expression) run(ctx context.Context, env Env, vars *value.Map, input any) (any, error) {
	m := &machine{env: env, vars: vars, stack: make([]any, 0, len(e.Nodes))}
	if s, ok := env.(strictEnv); ok {
		m.strict = s.StrictVariables()
	}

	for i := range e.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n := &e.Nodes[i]

		var (
			v   any
			err error
		)

		switch n.Kind {
		case KindLiteral:
			v = n.Value

		case KindInput:
			v = input

		case KindVariable:
			v, err = m.variable(n)

		case KindOperator:
			v, err = m.operator(n)

		case KindCall:
			v, err = m.call(ctx, n)

		case KindFilter:
			var args []any
			if args, err = m.pop(1 + n.Argc); err == nil {
				v, err = env.Filter(ctx, n.Name, args[0], args[1:])
			}

		case KindTest:
			var args []any
			if args, err = m.pop(1 + n.Argc); err == nil {
				var ok bool
				ok, err = env.Test(ctx, n.Name, args[0], args[1:])
				v = ok != n.Negate
			}

		case KindAttribute:
			v, err = m.attribute(ctx, n)

		case KindSubscript:
			var args []any
			if args, err = m.pop(2); err == nil { //nolint:mnd
				v, err = m.lookup(n, args[0], args[1])
			}

		case KindArray:
			var args []any
			if args, err = m.pop(n.Argc); err == nil {
				v = args
			}

		case KindHash:
			v, err = m.hash(n)

		default:
			err = ErrEvaluate.With(slog.String("node", n.Kind.String()))
		}

		if err != nil {
			return nil, wrapEval(err, e, n)
		}

		m.push(v)
	}

	if len(m.stack) != 1 {
		return nil, ErrEvaluate.With(
			slog.String("expression", e.Source),
			slog.Int("stack", len(m.stack)),
		)
	}

	return m.stack[0], nil
}

func wrapEval(err error, e *Expression, n *Node) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return pkg.WrapError(err).With(
		slog.String("expression", e.Source),
		slog.Int("offset", n.Pos),
	)
}

func (m *machine) variable(n *Node) (any, error) {
	if n.Name == contextVar {
		return m.vars, nil
	}

	if v, ok := m.vars.Get(n.Name); ok {
		return v, nil
	}

	if m.strict && !n.Lenient {
		return nil, ErrUndefinedVariable.With(slog.String("name", n.Name))
	}

	return value.Undef, nil
}

func (m *machine) operator(n *Node) (any, error) {
	if n.Op == nil {
		return nil, ErrUnknownOperator.With(slog.String("node", n.String()))
	}

	args, err := m.pop(n.Argc)
	if err != nil {
		return nil, err
	}

	return apply(n.Op, args)
}

// call invokes a callable bound in the context under the node's name, or
// else the environment function of that name.
func (m *machine) call(ctx context.Context, n *Node) (any, error) {
	args, err := m.pop(n.Argc)
	if err != nil {
		return nil, err
	}

	if fn, ok := m.vars.Get(n.Name); ok {
		if _, ok := fn.(value.Callable); ok {
			return value.Call(ctx, fn, args)
		}
	}

	return m.env.Function(ctx, n.Name, args)
}

func (m *machine) attribute(ctx context.Context, n *Node) (any, error) {
	argc := 0
	if n.Method {
		argc = n.Argc
	}

	args, err := m.pop(1 + argc)
	if err != nil {
		return nil, err
	}

	v, err := m.lookup(n, args[0], n.Name)
	if err != nil || value.IsUndefined(v) {
		return v, err
	}

	if _, ok := v.(value.Callable); ok {
		return value.Call(ctx, v, args[1:])
	}

	if n.Method && argc > 0 {
		return nil, value.ErrNotCallable.With(slog.String("attribute", n.Name))
	}

	return v, nil
}

func (m *machine) lookup(n *Node, obj, key any) (any, error) {
	v, ok := value.Attribute(obj, key)
	if ok {
		return v, nil
	}

	if m.strict && !n.Lenient {
		return nil, ErrUndefinedAttr.With(
			slog.String("attribute", value.ToString(key)),
			slog.String("type", value.TypeName(obj)),
		)
	}

	return value.Undef, nil
}

func (m *machine) hash(n *Node) (any, error) {
	args, err := m.pop(2 * n.Argc) //nolint:mnd
	if err != nil {
		return nil, err
	}

	h := value.NewMap(n.Argc)
	for i := 0; i < len(args); i += 2 {
		h.Set(value.ToString(args[i]), args[i+1])
	}

	return h, nil
}
