package lang

import (
	"context"
	"log/slog"

	"github.com/ardnew/twine/lang/expr"
	"github.com/ardnew/twine/lang/tag"
	"github.com/ardnew/twine/lang/value"
)

// Scope is the evaluation context of a running tag: the variables in scope
// and the render pass they belong to. It supplies expressions with the
// environment's filters, functions and tests, plus the render functions
// `parent()` and `block(name)`.
type Scope struct {
	state *state
	vars  *value.Map
}

// Vars returns the variables in scope. Changes are visible to the tags that
// follow.
func (sc *Scope) Vars() *value.Map { return sc.vars }

// Template returns the name of the template being rendered.
func (sc *Scope) Template() string { return sc.state.inst.name }

// Evaluate evaluates e in the scope.
func (sc *Scope) Evaluate(ctx context.Context, e *expr.Expression) (any, error) {
	return e.Evaluate(ctx, sc, sc.vars)
}

// Render renders nodes in the scope.
func (sc *Scope) Render(ctx context.Context, nodes []tag.Node) (string, error) {
	return sc.state.run(ctx, nodes, sc.vars)
}

// Filter implements expr.Env.
func (sc *Scope) Filter(ctx context.Context, name string, input any, args []any) (any, error) {
	return sc.state.env.funcs.Filter(ctx, name, input, args)
}

// Function implements expr.Env.
func (sc *Scope) Function(ctx context.Context, name string, args []any) (any, error) {
	switch name {
	case "parent":
		return sc.state.parentBlock(ctx, sc.vars)

	case "block":
		if len(args) != 1 {
			return nil, ErrUnknownBlock.With(slog.Int("args", len(args)))
		}

		return sc.state.namedBlock(ctx, value.ToString(args[0]), sc.vars)
	}

	return sc.state.env.funcs.Function(ctx, name, args)
}

// Test implements expr.Env.
func (sc *Scope) Test(ctx context.Context, name string, input any, args []any) (bool, error) {
	return sc.state.env.funcs.Test(ctx, name, input, args)
}

// StrictVariables reports whether undefined lookups are errors.
func (sc *Scope) StrictVariables() bool { return sc.state.env.strict }
