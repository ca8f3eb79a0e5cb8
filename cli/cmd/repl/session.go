package repl

import (
	"context"
	"strings"

	"github.com/ardnew/twine/lang"
	"github.com/ardnew/twine/lang/value"
)

// Session is what the REPL evaluates against. Vars is shared by every
// input and changed by the let, unset and edit commands.
type Session struct {
	Env  *lang.Environment
	Vars *value.Map
	// Decode parses the render context after it was edited as YAML. The
	// edit command is unavailable when Decode is nil.
	Decode func(src []byte) (*value.Map, error)
}

// isTemplate reports whether input is template source rather than a bare
// expression.
func isTemplate(input string) bool {
	return strings.Contains(input, "{{") ||
		strings.Contains(input, "{%") ||
		strings.Contains(input, "{#")
}

// Eval renders input as a template when it contains template delimiters,
// and otherwise evaluates it as an expression and formats the result.
func (s Session) Eval(ctx context.Context, input string) (string, error) {
	if isTemplate(input) {
		return s.Env.RenderString(ctx, input, s.Vars)
	}

	v, err := s.Env.Evaluate(ctx, input, s.Vars)
	if err != nil {
		return "", err
	}

	return s.display(ctx, v)
}

// Let binds name to the value of the expression src.
func (s Session) Let(ctx context.Context, name, src string) error {
	v, err := s.Env.Evaluate(ctx, src, s.Vars)
	if err != nil {
		return err
	}

	s.Vars.Set(name, v)

	return nil
}

// display formats v for the result line: containers as JSON, strings
// quoted, other scalars as printed by an output tag.
func (s Session) display(ctx context.Context, v any) (string, error) {
	switch x := value.Normalize(v).(type) {
	case value.Undefined:
		return "undefined", nil
	case nil:
		return "null", nil
	case *value.Map, []any, string, value.Markup, bool:
		out, err := s.Env.Filters().Filter(ctx, "json_encode", x, nil)
		if err != nil {
			return "", err
		}

		return value.ToString(out), nil
	default:
		return value.ToString(x), nil
	}
}

// preview shortens the JSON form of v to width bytes.
func (s Session) preview(ctx context.Context, v any, width int) string {
	out, err := s.display(ctx, v)
	if err != nil {
		return "<" + value.TypeName(v) + ">"
	}

	if len(out) > width {
		return out[:width-3] + "..."
	}

	return out
}
