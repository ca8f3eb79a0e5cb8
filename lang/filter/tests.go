package filter

import (
	"context"
	"log/slog"
	"math"

	"github.com/ardnew/twine/lang/value"
)

func tests() map[string]Test {
	return map[string]Test{
		"defined":      defined,
		"divisible by": divisibleBy,
		"empty":        empty,
		"even":         parity(0),
		"iterable":     iterable,
		"none":         null,
		"null":         null,
		"odd":          parity(1),
		"same as":      sameAs,
	}
}

func defined(_ context.Context, input any, _ []any) (bool, error) {
	return !value.IsUndefined(input), nil
}

func null(_ context.Context, input any, _ []any) (bool, error) {
	return value.IsNull(input), nil
}

// empty is true for null, undefined, false, the empty string and empty
// sequences or maps. Numbers are never empty.
func empty(_ context.Context, input any, _ []any) (bool, error) {
	switch x := input.(type) {
	case nil, value.Undefined:
		return true, nil
	case bool:
		return !x, nil
	}

	if value.IsNumber(input) {
		return false, nil
	}

	if n, ok := value.Len(input); ok {
		return n == 0, nil
	}

	return false, nil
}

func parity(rem int64) Test {
	return func(_ context.Context, input any, _ []any) (bool, error) {
		n := value.ToInt(input) % 2 //nolint:mnd

		return n == rem || n == -rem, nil
	}
}

func iterable(_ context.Context, input any, _ []any) (bool, error) {
	return value.IsIterable(input), nil
}

func divisibleBy(_ context.Context, input any, args []any) (bool, error) {
	if len(args) != 1 {
		return false, ErrArgument.With(slog.String("reason", "divisible by expects one argument"))
	}

	d := value.ToNumber(args[0])
	if d == 0 || math.IsNaN(d) {
		return false, nil
	}

	return math.Mod(value.ToNumber(input), d) == 0, nil
}

func sameAs(_ context.Context, input any, args []any) (bool, error) {
	return value.StrictEqual(input, value.Arg(args, 0)), nil
}
