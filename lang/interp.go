package lang

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ardnew/twine/lang/expr"
	"github.com/ardnew/twine/lang/filter"
	"github.com/ardnew/twine/lang/tag"
	"github.com/ardnew/twine/lang/value"
	"github.com/ardnew/twine/pkg"
)

// Interpreter is implemented by tags registered by applications. Interpret
// renders the tag given the chain flag left by the preceding tag, and
// returns its output and the chain flag for the tag that follows.
type Interpreter interface {
	Interpret(ctx context.Context, s *Scope, body []tag.Node, chain bool) (string, bool, error)
}

// state is one interpretation pass over a template instance.
type state struct {
	env  *Environment
	root *instance // the instance the pass renders
	inst *instance // the instance whose nodes are running
	top  *value.Map // context the pass started with

	// overrides holds the block definitions of descendant templates, most
	// derived first.
	overrides map[string][]*Block
	frames    []blockFrame
	nesting   []*tag.Token
}

// blockFrame is a block being rendered: a definition chain, most derived
// first, and the index of the definition in it.
type blockFrame struct {
	chain []*Block
	index int
}

// pass renders in with vars. When the template extends another, its output
// is discarded and the parent is rendered with in's blocks as overrides.
func (e *Environment) pass(
	ctx context.Context,
	in *instance,
	vars *value.Map,
	overrides map[string][]*Block,
) (string, error) {
	s := &state{env: e, root: in, inst: in, top: vars, overrides: overrides}

	out, err := s.run(ctx, in.nodes, vars)
	if err != nil {
		return "", err
	}

	if in.parent == nil {
		return out, nil
	}

	ctx, err = e.enter(ctx)
	if err != nil {
		return "", err
	}

	e.logger.TraceContext(ctx, "render parent",
		slog.String("template", in.name),
		slog.String("parent", in.parent.name),
	)

	return e.pass(ctx, in.parent.instance(), vars, overriding(overrides, in))
}

// run renders nodes with vars, threading the chain flag through sibling
// tags.
func (s *state) run(ctx context.Context, nodes []tag.Node, vars *value.Map) (string, error) {
	var b strings.Builder

	chain := true

	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		switch n := n.(type) {
		case *tag.Text:
			b.WriteString(n.Value)

		case *tag.Output:
			v, err := s.eval(ctx, n.Expr, vars)
			if err != nil {
				return "", s.fail(err, slog.Int("line", n.Line))
			}

			out, err := s.env.escape(v)
			if err != nil {
				return "", s.fail(err, slog.Int("line", n.Line))
			}

			b.WriteString(out)

		case *tag.Token:
			s.nesting = append(s.nesting, n)

			out, next, err := s.interpret(ctx, n, vars, chain)

			s.nesting = s.nesting[:len(s.nesting)-1]

			if err != nil {
				return "", s.fail(err, slog.Any("token", n))
			}

			b.WriteString(out)

			chain = next
		}
	}

	return b.String(), nil
}

// fail decorates the first render error with where it happened.
func (s *state) fail(err error, at slog.Attr) error {
	if errors.Is(err, ErrRender) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	stack := make([]string, len(s.nesting))
	for i, tok := range s.nesting {
		stack[i] = string(tok.Type())
	}

	return ErrRender.Wrap(err).With(
		slog.String("template", s.inst.name),
		at,
		slog.Any("stack", stack),
	)
}

func (s *state) scope(vars *value.Map) *Scope { return &Scope{state: s, vars: vars} }

func (s *state) eval(ctx context.Context, e *expr.Expression, vars *value.Map) (any, error) {
	return e.Evaluate(ctx, s.scope(vars), vars)
}

//nolint:cyclop,funlen,gocyclo
func (s *state) interpret(
	ctx context.Context,
	tok *tag.Token,
	vars *value.Map,
	chain bool,
) (string, bool, error) {
	switch t := tok.Tag.(type) {
	case tag.If:
		return s.branch(ctx, t.Cond, tok.Body, vars)

	case tag.ElseIf:
		if !chain {
			return "", false, nil
		}

		return s.branch(ctx, t.Cond, tok.Body, vars)

	case tag.Else:
		if !chain {
			return "", false, nil
		}

		out, err := s.run(ctx, tok.Body, vars)

		return out, false, err

	case tag.For:
		return s.loop(ctx, t, tok.Body, vars)

	case tag.Set:
		return "", chain, s.set(ctx, t, vars)

	case tag.SetCapture:
		out, err := s.run(ctx, tok.Body, vars)
		if err != nil {
			return "", chain, err
		}

		// Captures outlive the scope they are made in.
		vars.Set(t.Name, value.Markup(out))

		if s.top != nil && s.top != vars {
			s.top.Set(t.Name, value.Markup(out))
		}

		return "", chain, nil

	case tag.Filter:
		out, err := s.filter(ctx, t, tok.Body, vars)

		return out, chain, err

	case tag.Apply:
		out, err := s.filter(ctx, t.Filter, tok.Body, vars)

		return out, chain, err

	case tag.Do:
		_, err := s.eval(ctx, t.Expr, vars)

		return "", chain, err

	case tag.Block:
		out, err := s.block(ctx, t.Name, tok.Body, vars)

		return out, chain, err

	case tag.ShortBlock:
		body := []tag.Node{&tag.Output{Expr: t.Expr, Line: tok.Line}}
		out, err := s.block(ctx, t.Name, body, vars)

		return out, chain, err

	case tag.Extends:
		return "", chain, s.extends(ctx, t, vars)

	case tag.Use:
		return "", chain, s.use(ctx, t, vars)

	case tag.Include:
		out, err := s.include(ctx, t, vars)

		return out, chain, err

	case tag.Embed:
		out, err := s.embed(ctx, t, tok.Body, vars)

		return out, chain, err

	case tag.Spaceless:
		out, err := s.run(ctx, tok.Body, vars)

		return filter.Spaceless(out), chain, err

	case tag.Macro:
		s.inst.macros.Set(t.Name, &Macro{
			name:     t.Name,
			params:   t.Params,
			body:     tok.Body,
			owner:    s.inst,
			captured: vars.Clone(),
		})

		return "", chain, nil

	case tag.Import:
		ns, err := s.namespace(ctx, t.Target, vars)
		if err != nil {
			return "", chain, err
		}

		vars.Set(t.Alias, ns)

		return "", chain, nil

	case tag.From:
		return "", chain, s.from(ctx, t, vars)

	case tag.With:
		out, err := s.with(ctx, t, tok.Body, vars)

		return out, chain, err

	case tag.Deprecated:
		return "", chain, nil

	case Interpreter:
		return t.Interpret(ctx, s.scope(vars), tok.Body, chain)
	}

	return "", chain, tag.ErrUnrecognizedTag.With(slog.String("tag", string(tok.Type())))
}

// branch renders body when cond holds. The chain stays open otherwise.
func (s *state) branch(
	ctx context.Context,
	cond *expr.Expression,
	body []tag.Node,
	vars *value.Map,
) (string, bool, error) {
	v, err := s.eval(ctx, cond, vars)
	if err != nil {
		return "", false, err
	}

	if !value.Truthy(v) {
		return "", true, nil
	}

	out, err := s.run(ctx, body, vars)

	return out, false, err
}

// loop renders body once per element. Each iteration runs in a copy of vars
// holding the loop bindings; everything else it binds is merged back into
// vars before the next iteration starts.
func (s *state) loop(
	ctx context.Context,
	t tag.For,
	body []tag.Node,
	vars *value.Map,
) (string, bool, error) {
	seq, err := s.eval(ctx, t.Seq, vars)
	if err != nil {
		return "", false, err
	}

	keys, vals, ok := value.Entries(seq)
	if !ok {
		return "", true, nil
	}

	var (
		b     strings.Builder
		index int
		n     = len(vals)
	)

	for i := range vals {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}

		inner := vars.Clone()
		inner.Set(t.Value, vals[i])

		if t.Key != "" {
			inner.Set(t.Key, keys[i])
		}

		if t.Cond != nil {
			v, err := s.eval(ctx, t.Cond, inner)
			if err != nil {
				return "", false, err
			}

			if !value.Truthy(v) {
				continue
			}
		}

		loop := value.MapOf(
			"index", index+1,
			"index0", index,
			"revindex", value.Undef,
			"revindex0", value.Undef,
			"first", index == 0,
			"last", value.Undef,
			"length", value.Undef,
			"parent", vars,
		)

		// Counting from the end needs the number of iterations, which a
		// condition hides until the loop is done.
		if t.Cond == nil {
			loop.Set("revindex", n-index)
			loop.Set("revindex0", n-index-1)
			loop.Set("last", index == n-1)
			loop.Set("length", n)
		}

		inner.Set("loop", loop)

		out, err := s.run(ctx, body, inner)
		if err != nil {
			return "", false, err
		}

		b.WriteString(out)

		index++

		inner.Delete("loop")
		inner.Delete(t.Value)

		if t.Key != "" {
			inner.Delete(t.Key)
		}

		vars.Merge(inner)
	}

	return b.String(), index == 0, nil
}

// set evaluates every value before binding any name.
func (s *state) set(ctx context.Context, t tag.Set, vars *value.Map) error {
	vals := make([]any, len(t.Values))

	for i, e := range t.Values {
		v, err := s.eval(ctx, e, vars)
		if err != nil {
			return err
		}

		if m, ok := v.(*value.Map); ok && m == vars {
			v = m.Clone()
		}

		vals[i] = v
	}

	for i, name := range t.Names {
		vars.Set(name, vals[i])
	}

	return nil
}

func (s *state) filter(
	ctx context.Context,
	t tag.Filter,
	body []tag.Node,
	vars *value.Map,
) (string, error) {
	out, err := s.run(ctx, body, vars)
	if err != nil {
		return "", err
	}

	v, err := t.Chain.EvaluateInput(ctx, s.scope(vars), vars, out)
	if err != nil {
		return "", err
	}

	return value.ToString(v), nil
}

func (s *state) with(
	ctx context.Context,
	t tag.With,
	body []tag.Node,
	vars *value.Map,
) (string, error) {
	inner := value.NewMap(0)
	if !t.Only {
		inner = vars.Clone()
	}

	if t.Vars != nil {
		v, err := s.eval(ctx, t.Vars, vars)
		if err != nil {
			return "", err
		}

		m, ok := value.Normalize(v).(*value.Map)
		if !ok {
			return "", ErrInvalidContext.With(slog.String("type", value.TypeName(v)))
		}

		inner.Merge(m)
	}

	return s.run(ctx, body, inner)
}

// errorAttr renders err for a log record.
func errorAttr(err error) slog.Attr {
	return slog.Any("error", pkg.WrapError(err))
}
