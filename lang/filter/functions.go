package filter

import (
	"context"
	"log/slog"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/twine/lang/expr"
	"github.com/ardnew/twine/lang/value"
)

func functions() map[string]Function {
	return map[string]Function{
		"attribute": attribute,
		"cycle":     cycle,
		"dump":      dump,
		"max":       extremum(1),
		"min":       extremum(-1),
		"range":     rangeFunction,
	}
}

func rangeFunction(_ context.Context, args []any) (any, error) {
	if len(args) < 2 { //nolint:mnd
		return nil, ErrArgument.With(slog.String("reason", "range expects low and high"))
	}

	step := 1.0
	if s := value.Arg(args, 2); !value.IsNull(s) {
		step = value.ToNumber(s)
	}

	return expr.Range(args[0], args[1], step), nil
}

// extremum returns the greatest (sign 1) or least (sign -1) argument. A
// single sequence or map argument is searched instead.
func extremum(sign int) Function {
	return func(_ context.Context, args []any) (any, error) {
		vals := args
		if len(args) == 1 {
			if _, vs, ok := value.Entries(args[0]); ok {
				vals = vs
			}
		}

		if len(vals) == 0 {
			return value.Undef, nil
		}

		best := vals[0]

		for _, v := range vals[1:] {
			if c, ok := value.Compare(v, best); ok && c*sign > 0 {
				best = v
			}
		}

		return best, nil
	}
}

// cycle returns the element of a sequence at position, wrapping around.
func cycle(_ context.Context, args []any) (any, error) {
	seq, ok := value.AsSequence(value.Arg(args, 0))
	if !ok || len(seq) == 0 {
		return value.Undef, nil
	}

	i := int(value.ToInt(value.Arg(args, 1))) % len(seq)
	if i < 0 {
		i += len(seq)
	}

	return seq[i], nil
}

// attribute looks up a dynamic attribute, calling it with the optional
// argument sequence when it is callable.
func attribute(ctx context.Context, args []any) (any, error) {
	v, ok := value.Attribute(value.Arg(args, 0), value.Arg(args, 1))
	if !ok {
		return value.Undef, nil
	}

	if _, callable := v.(value.Callable); callable {
		params, _ := value.AsSequence(value.Arg(args, 2))

		return value.Call(ctx, v, params)
	}

	return v, nil
}

// dump renders its arguments as YAML documents for debugging.
func dump(_ context.Context, args []any) (any, error) {
	var docs []byte

	for i, a := range args {
		out, err := yaml.Marshal(yamlValue(a))
		if err != nil {
			return nil, ErrArgument.Wrap(err).With(slog.Int("argument", i))
		}

		if i > 0 {
			docs = append(docs, "---\n"...)
		}

		docs = append(docs, out...)
	}

	return string(docs), nil
}
