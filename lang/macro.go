package lang

import (
	"context"
	"log/slog"

	"github.com/ardnew/twine/lang/expr"
	"github.com/ardnew/twine/lang/tag"
	"github.com/ardnew/twine/lang/value"
)

// Macro is a callable template fragment defined by the `macro` tag.
type Macro struct {
	name     string
	params   []expr.Param
	body     []tag.Node
	owner    *instance
	captured *value.Map // context at the point of definition
}

// Name returns the macro name.
func (m *Macro) Name() string { return m.name }

// Params returns the names of the macro parameters.
func (m *Macro) Params() []string {
	names := make([]string, len(m.params))
	for i, p := range m.params {
		names[i] = p.Name
	}

	return names
}

// LogValue implements slog.LogValuer.
func (m *Macro) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("macro", m.name),
		slog.String("template", m.owner.name),
	)
}

// Call renders the macro body with args bound to its parameters and returns
// the output as markup. A parameter without an argument takes its default,
// evaluated against the parameters bound before it, or undefined. Arguments
// beyond the parameters are bound to `varargs`.
func (m *Macro) Call(ctx context.Context, args []any) (any, error) {
	env := m.owner.env

	ctx, err := env.enter(ctx)
	if err != nil {
		return nil, err
	}

	vars := m.captured.Clone()
	vars.Set("_self", m.owner.macros)

	s := &state{env: env, root: m.owner, inst: m.owner, top: vars}

	for i, p := range m.params {
		switch {
		case i < len(args):
			vars.Set(p.Name, args[i])

		case p.Default != nil:
			v, err := s.eval(ctx, p.Default, vars)
			if err != nil {
				return nil, err
			}

			vars.Set(p.Name, v)

		default:
			vars.Set(p.Name, value.Undef)
		}
	}

	if len(args) > len(m.params) {
		vars.Set("varargs", args[len(m.params):])
	} else {
		vars.Set("varargs", []any{})
	}

	env.logger.TraceContext(ctx, "call macro", slog.Any("macro", m), slog.Int("args", len(args)))

	out, err := s.run(ctx, m.body, vars)
	if err != nil {
		return nil, err
	}

	return value.Markup(out), nil
}
