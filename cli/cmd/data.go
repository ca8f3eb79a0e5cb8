package cmd

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/twine/lang/value"
	"github.com/ardnew/twine/log"
)

// loadData decodes each YAML file in paths and merges the top-level
// mappings in order, later files replacing earlier keys. Mapping key order
// is preserved.
func loadData(ctx context.Context, paths []string) (*value.Map, error) {
	vars := value.NewMap(0)

	for _, path := range paths {
		src, err := readSource(path)
		if err != nil {
			return nil, ErrReadData.Wrap(err).With(slog.String("file", path))
		}

		m, err := decodeData(src)
		if err != nil {
			return nil, ErrReadData.Wrap(err).With(slog.String("file", path))
		}

		log.TraceContext(ctx, "data loaded",
			slog.String("file", path),
			slog.Int("keys", m.Len()),
		)

		vars.Merge(m)
	}

	return vars, nil
}

// decodeData decodes one YAML document holding a mapping. An empty
// document is an empty mapping.
func decodeData(src []byte) (*value.Map, error) {
	if len(bytes.TrimSpace(src)) == 0 {
		return value.NewMap(0), nil
	}

	var doc any

	if err := yaml.UnmarshalWithOptions(src, &doc, yaml.UseOrderedMap()); err != nil {
		return nil, err
	}

	switch m := fromYAML(doc).(type) {
	case *value.Map:
		return m, nil
	case nil:
		return value.NewMap(0), nil
	default:
		return nil, ErrDataFormat.With(slog.String("type", value.TypeName(m)))
	}
}

// fromYAML converts decoded YAML into the template value model.
func fromYAML(v any) any {
	switch x := v.(type) {
	case yaml.MapSlice:
		m := value.NewMap(len(x))
		for _, item := range x {
			m.Set(fmt.Sprint(item.Key), fromYAML(item.Value))
		}

		return m
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = fromYAML(e)
		}

		return out
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}

		return x
	default:
		return x
	}
}

// assign evaluates one NAME=EXPR binding with expr-lang against the
// current context and stores the result under NAME.
func assign(vars *value.Map, def string) error {
	name, src, ok := strings.Cut(def, "=")

	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return ErrVarSyntax.With(slog.String("var", def))
	}

	env := native(vars).(map[string]any) //nolint:forcetypeassert

	program, err := expr.Compile(src, expr.Env(env))
	if err != nil {
		return ErrVarEval.Wrap(err).With(slog.String("var", name))
	}

	out, err := vm.Run(program, env)
	if err != nil {
		return ErrVarEval.Wrap(err).With(slog.String("var", name))
	}

	vars.Set(name, value.Normalize(out))

	return nil
}

// native converts template values into plain Go maps and slices.
func native(v any) any {
	switch x := v.(type) {
	case *value.Map:
		out := make(map[string]any, x.Len())
		for k, e := range x.All() {
			out[k] = native(e)
		}

		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = native(e)
		}

		return out
	case value.Markup:
		return string(x)
	case value.Undefined:
		return nil
	default:
		return x
	}
}
