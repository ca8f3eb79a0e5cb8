package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ardnew/twine/lang/value"
)

// Eval evaluates a template expression against the render context and
// prints the result.
type Eval struct {
	Format string `default:"text" enum:"text,json,yaml" help:"Output format." short:"f"`

	Expr string `arg:"" help:"Expression to evaluate, e.g. 'items|length'." name:"expr"`
}

// Run executes the eval command.
func (e *Eval) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	engine, err := engineFrom(ctx)
	if err != nil {
		return err
	}

	env := engine.Environment(engine.Loader())

	vars, err := engine.Context(ctx)
	if err != nil {
		return err
	}

	result, err := env.Evaluate(ctx, e.Expr, vars)
	if err != nil {
		return err
	}

	out, err := formatValue(ctx, env.Filters(), e.Format, result)
	if err != nil {
		return err
	}

	fmt.Println(out)

	return nil
}

type filterSet interface {
	Filter(ctx context.Context, name string, input any, args []any) (any, error)
}

// formatValue prints v as text the way an output tag would, or encodes it
// with the json_encode or yaml_encode filter.
func formatValue(ctx context.Context, f filterSet, format string, v any) (string, error) {
	switch format {
	case "", "text":
		return value.ToString(v), nil
	case "json":
		out, err := f.Filter(ctx, "json_encode", v, nil)
		if err != nil {
			return "", ErrJSONMarshal.Wrap(err)
		}

		return value.ToString(out), nil
	case "yaml":
		out, err := f.Filter(ctx, "yaml_encode", v, nil)
		if err != nil {
			return "", ErrYAMLMarshal.Wrap(err)
		}

		return value.ToString(out), nil
	default:
		return "", ErrUnknownFormat.With(slog.String("format", format))
	}
}
