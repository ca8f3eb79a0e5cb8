package tag

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/ardnew/twine/lang/expr"
	"github.com/ardnew/twine/pkg"
)

var reIdent = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// selfName is the import target that refers to the importing template.
const selfName = "_self"

func pattern(re string) *regexp.Regexp { return regexp.MustCompile(`(?s)^` + re + `$`) }

func closer(t Type) Definition {
	return Definition{Type: t, Pattern: pattern(string(t))}
}

// Default returns a registry of the built-in tags.
func Default() *Registry { return builtin }

var builtin = NewRegistry(
	Definition{
		Type:    TypeIf,
		Pattern: pattern(`if\b\s*(.+)`),
		Next:    []Type{TypeElseIf, TypeElse, TypeEndIf},
		Open:    true,
		Compile: func(m []string) (Tag, error) {
			cond, err := expr.Compile(m[1])

			return If{Cond: cond}, err
		},
	},
	Definition{
		Type:    TypeElseIf,
		Pattern: pattern(`elseif\b\s*(.+)`),
		Next:    []Type{TypeElse, TypeElseIf, TypeEndIf},
		Compile: func(m []string) (Tag, error) {
			cond, err := expr.Compile(m[1])

			return ElseIf{Cond: cond}, err
		},
	},
	Definition{
		Type:    TypeElse,
		Pattern: pattern(`else`),
		Next:    []Type{TypeEndIf, TypeEndFor},
		Compile: func([]string) (Tag, error) { return Else{}, nil },
	},
	closer(TypeEndIf),
	Definition{
		Type:    TypeFor,
		Pattern: pattern(`for\s+([a-zA-Z0-9_,\s]+?)\s+in\s+(.+?)(?:\s+if\s+(.+))?`),
		Next:    []Type{TypeElse, TypeEndFor},
		Open:    true,
		Compile: compileFor,
	},
	closer(TypeEndFor),
	Definition{
		Type:    TypeSet,
		Pattern: pattern(`set\s+([a-zA-Z0-9_,\s]+?)\s*=\s*(.+)`),
		Open:    true,
		Compile: compileSet,
	},
	Definition{
		Type:    TypeSetCapture,
		Pattern: pattern(`set\s+(\w+)`),
		Next:    []Type{TypeEndSet},
		Open:    true,
		Compile: func(m []string) (Tag, error) { return SetCapture{Name: m[1]}, nil },
	},
	closer(TypeEndSet),
	Definition{
		Type:    TypeFilter,
		Pattern: pattern(`filter\s+(.+)`),
		Next:    []Type{TypeEndFilter},
		Open:    true,
		Compile: func(m []string) (Tag, error) {
			chain, err := expr.CompileFilterChain(m[1])

			return Filter{Chain: chain}, err
		},
	},
	closer(TypeEndFilter),
	Definition{
		Type:    TypeApply,
		Pattern: pattern(`apply\s+(.+)`),
		Next:    []Type{TypeEndApply},
		Open:    true,
		Compile: func(m []string) (Tag, error) {
			chain, err := expr.CompileFilterChain(m[1])

			return Apply{Filter{Chain: chain}}, err
		},
	},
	closer(TypeEndApply),
	Definition{
		Type:    TypeDo,
		Pattern: pattern(`do\s+(.+)`),
		Open:    true,
		Compile: func(m []string) (Tag, error) {
			e, err := expr.Compile(m[1])

			return Do{Expr: e}, err
		},
	},
	Definition{
		Type:    TypeBlock,
		Pattern: pattern(`block\s+(\w+)`),
		Next:    []Type{TypeEndBlock},
		Open:    true,
		Compile: func(m []string) (Tag, error) { return Block{Name: m[1]}, nil },
	},
	Definition{
		Type:    TypeShortBlock,
		Pattern: pattern(`block\s+(\w+)\s+(.+)`),
		Open:    true,
		Compile: func(m []string) (Tag, error) {
			e, err := expr.Compile(m[2])

			return ShortBlock{Name: m[1], Expr: e}, err
		},
	},
	Definition{
		Type:    TypeEndBlock,
		Pattern: pattern(`endblock(?:\s+(\w+))?`),
		Compile: func(m []string) (Tag, error) { return End{Kind: TypeEndBlock, Name: m[1]}, nil },
	},
	Definition{
		Type:    TypeExtends,
		Pattern: pattern(`extends\s+(.+)`),
		Open:    true,
		Compile: func(m []string) (Tag, error) {
			e, err := expr.Compile(m[1])

			return Extends{Target: e}, err
		},
	},
	Definition{
		Type:    TypeUse,
		Pattern: pattern(`use\s+(.+)`),
		Open:    true,
		Compile: func(m []string) (Tag, error) {
			e, err := expr.Compile(m[1])

			return Use{Target: e}, err
		},
	},
	Definition{
		Type:    TypeInclude,
		Pattern: pattern(includeSyntax("include")),
		Open:    true,
		Compile: func(m []string) (Tag, error) {
			inc, err := compileInclude(m)

			return inc, err
		},
	},
	Definition{
		Type:    TypeSpaceless,
		Pattern: pattern(`spaceless`),
		Next:    []Type{TypeEndSpaceless},
		Open:    true,
		Compile: func([]string) (Tag, error) { return Spaceless{}, nil },
	},
	closer(TypeEndSpaceless),
	Definition{
		Type:    TypeMacro,
		Pattern: pattern(`macro\s+(\w+)\s*\((.*)\)`),
		Next:    []Type{TypeEndMacro},
		Open:    true,
		Compile: compileMacro,
	},
	closer(TypeEndMacro),
	Definition{
		Type:    TypeImport,
		Pattern: pattern(`import\s+(.+)\s+as\s+(\w+)`),
		Open:    true,
		Compile: func(m []string) (Tag, error) {
			target, err := compileTarget(m[1])

			return Import{Target: target, Alias: m[2]}, err
		},
	},
	Definition{
		Type:    TypeFrom,
		Pattern: pattern(`from\s+(.+)\s+import\s+([a-zA-Z0-9_, ]+)`),
		Open:    true,
		Compile: compileFrom,
	},
	Definition{
		Type:    TypeEmbed,
		Pattern: pattern(includeSyntax("embed")),
		Next:    []Type{TypeEndEmbed},
		Open:    true,
		Compile: func(m []string) (Tag, error) {
			inc, err := compileInclude(m)

			return Embed{inc}, err
		},
	},
	closer(TypeEndEmbed),
	Definition{
		Type:    TypeWith,
		Pattern: pattern(`with(?:\s+(.+?))?(?:\s+(only))?`),
		Next:    []Type{TypeEndWith},
		Open:    true,
		Compile: compileWith,
	},
	closer(TypeEndWith),
	Definition{
		Type:    TypeDeprecated,
		Pattern: pattern(`deprecated\s+(.+)`),
		Open:    true,
		Compile: func(m []string) (Tag, error) {
			msg := m[1]
			if e, err := expr.Compile(msg); err == nil && len(e.Nodes) == 1 {
				if s, ok := e.Nodes[0].Value.(string); ok {
					msg = s
				}
			}

			return Deprecated{Message: msg}, nil
		},
	},
)

func includeSyntax(keyword string) string {
	return keyword + `\s+(.+?)(?:\s+(ignore\s+missing))?(?:\s+with\s+(.+?))?(?:\s+(only))?`
}

func compileInclude(m []string) (Include, error) {
	inc := Include{IgnoreMissing: m[2] != "", Only: m[4] != ""}

	var err error

	if inc.Target, err = expr.Compile(m[1]); err != nil {
		return inc, err
	}

	if m[3] != "" {
		inc.With, err = expr.Compile(m[3])
	}

	return inc, err
}

func compileTarget(src string) (*expr.Expression, error) {
	if strings.TrimSpace(src) == selfName {
		return nil, nil
	}

	return expr.Compile(src)
}

// names splits a comma-separated list of identifiers.
func names(list string) ([]string, error) {
	part := strings.Split(list, ",")
	for i := range part {
		part[i] = strings.TrimSpace(part[i])
		if !reIdent.MatchString(part[i]) {
			return nil, pkg.NewError("invalid name").With(slog.String("name", part[i]))
		}
	}

	return part, nil
}

func compileFor(m []string) (Tag, error) {
	vars, err := names(m[1])
	if err != nil {
		return nil, err
	}

	f := For{Value: vars[0]}

	switch len(vars) {
	case 1:
	case 2: //nolint:mnd
		f.Key, f.Value = vars[0], vars[1]
	default:
		return nil, ErrInvalidLoopBinding.With(slog.Int("count", len(vars)))
	}

	if f.Seq, err = expr.Compile(m[2]); err != nil {
		return nil, err
	}

	if m[3] != "" {
		if f.Cond, err = expr.Compile(m[3]); err != nil {
			return nil, err
		}
	}

	return f, nil
}

func compileSet(m []string) (Tag, error) {
	vars, err := names(m[1])
	if err != nil {
		return nil, err
	}

	values, err := expr.CompileList(m[2])
	if err != nil {
		return nil, err
	}

	if len(values) != len(vars) {
		return nil, pkg.NewError("names and values differ in count").With(
			slog.Int("names", len(vars)),
			slog.Int("values", len(values)),
		)
	}

	return Set{Names: vars, Values: values}, nil
}

func compileMacro(m []string) (Tag, error) {
	params, err := expr.ParseParams(m[2])
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if seen[p.Name] {
			return nil, pkg.NewError("duplicate macro parameter").With(
				slog.String("macro", m[1]),
				slog.String("param", p.Name),
			)
		}

		seen[p.Name] = true
	}

	return Macro{Name: m[1], Params: params}, nil
}

func compileFrom(m []string) (Tag, error) {
	target, err := compileTarget(m[1])
	if err != nil {
		return nil, err
	}

	f := From{Target: target}

	for item := range strings.SplitSeq(m[2], ",") {
		field := strings.Fields(item)

		switch {
		case len(field) == 1:
			f.Items = append(f.Items, Alias{Name: field[0], As: field[0]})
		case len(field) == 3 && field[1] == "as": //nolint:mnd
			f.Items = append(f.Items, Alias{Name: field[0], As: field[2]})
		default:
			return nil, pkg.NewError("invalid import item").With(slog.String("item", item))
		}
	}

	return f, nil
}

func compileWith(m []string) (Tag, error) {
	w := With{Only: m[2] != ""}

	src := m[1]
	if src == "only" {
		src, w.Only = "", true
	}

	if src != "" {
		var err error
		if w.Vars, err = expr.Compile(src); err != nil {
			return nil, err
		}
	}

	return w, nil
}
