package expr

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ardnew/twine/lang/value"
)

type stubEnv struct{ strict bool }

func (s stubEnv) StrictVariables() bool { return s.strict }

func (stubEnv) Filter(_ context.Context, name string, input any, args []any) (any, error) {
	switch name {
	case "upper":
		return strings.ToUpper(value.ToString(input)), nil
	case "default":
		if value.IsNull(input) || input == "" {
			return value.Arg(args, 0), nil
		}

		return input, nil
	case "join":
		seq, _ := value.AsSequence(input)
		part := make([]string, len(seq))

		for i, e := range seq {
			part[i] = value.ToString(e)
		}

		return strings.Join(part, value.ToString(value.Arg(args, 0))), nil
	}

	return nil, ErrUnknownFilter.With(slog.String("name", name))
}

func (stubEnv) Function(_ context.Context, name string, args []any) (any, error) {
	if name == "max" {
		best := value.ToNumber(args[0])
		for _, a := range args[1:] {
			best = max(best, value.ToNumber(a))
		}

		return best, nil
	}

	return nil, ErrUnknownFunction.With(slog.String("name", name))
}

func (stubEnv) Test(_ context.Context, name string, input any, args []any) (bool, error) {
	switch name {
	case "defined":
		return !value.IsUndefined(input), nil
	case "null", "none":
		return value.IsNull(input), nil
	case "even":
		return value.ToInt(input)%2 == 0, nil
	case "divisible by":
		return value.ToInt(input)%value.ToInt(value.Arg(args, 0)) == 0, nil
	}

	return false, ErrUnknownTest.With(slog.String("name", name))
}

func sameValue(got, want any) bool {
	gs, gok := got.([]any)
	ws, wok := want.([]any)

	if gok || wok {
		if !gok || !wok || len(gs) != len(ws) {
			return false
		}

		for i := range gs {
			if !value.StrictEqual(gs[i], ws[i]) {
				return false
			}
		}

		return true
	}

	return value.StrictEqual(got, want)
}

func evaluate(t *testing.T, env Env, src string, vars *value.Map) (any, error) {
	t.Helper()

	e, err := Compile(src)
	if err != nil {
		return nil, err
	}

	return e.Evaluate(context.Background(), env, vars)
}

func TestEvaluate(t *testing.T) {
	greet := value.Func(func(_ context.Context, args []any) (any, error) {
		return "hi " + value.ToString(value.Arg(args, 0)), nil
	})

	vars := value.MapOf(
		"user", value.MapOf("name", "ada", "shout", value.Func(
			func(_ context.Context, args []any) (any, error) {
				return strings.ToUpper(value.ToString(value.Arg(args, 0))) + "!", nil
			},
		)),
		"items", []any{"a", "b"},
		"greet", greet,
		"x", 3,
		"zero", 0,
		"nothing", nil,
	)

	tests := []struct {
		src  string
		want any
	}{
		{`1 + 2 * 3`, 7},
		{`(1 + 2) * 3`, 9},
		{`2 ** 3 ** 2`, 512},
		{`-2 ** 2`, -4},
		{`1 + -2`, -1},
		{`10 // 3`, 3},
		{`-7 // 2`, -4},
		{`7 % 3`, 1},
		{`10 / 4`, 2.5},
		{`0 ?: "fallback"`, "fallback"},
		{`"x" ?: "fallback"`, "x"},
		{`a ?? "default"`, "default"},
		{`nothing ?? "default"`, "default"},
		{`zero ?? "default"`, 0},
		{`true ? "y" : "n"`, "y"},
		{`false ? "y" : "n"`, "n"},
		{`false ? 1 : true ? 2 : 3`, 2},
		{`"a" ~ 1 ~ null`, "a1"},
		{`[1, 2, 3] + 1`, 4},
		{`[1, 2] == 2`, true},
		{`2 in [1, 2, 3]`, true},
		{`"b" in "abc"`, true},
		{`"" in ""`, true},
		{`"" in "abc"`, false},
		{`4 not in [1, 2, 3]`, true},
		{`1 in {k: 1}`, true},
		{`x in 1..5`, true},
		{`"abc" matches "/^A/i"`, true},
		{`"abc" matches "/^A/"`, false},
		{`"hello" starts with "he"`, true},
		{`"hello" ends with "lo"`, true},
		{`5 starts with "5"`, false},
		{`5 b-and 3`, 1},
		{`5 b-or 3`, 7},
		{`5 b-xor 3`, 6},
		{`1..3`, []any{1, 2, 3}},
		{`3..1`, []any{3, 2, 1}},
		{`"a".."c"`, []any{"a", "b", "c"}},
		{`not false and true`, true},
		{`1 < 2 and 2 < 3`, true},
		{`"b" > "a"`, true},
		{`"10" == 10`, true},
		{`"10" === 10`, false},
		{`null == undefinedvar`, true},
		{`user.name`, "ada"},
		{`user["name"]`, "ada"},
		{`items[1]`, "b"},
		{`"abc"[1]`, "b"},
		{`user.missing`, value.Undef},
		{`user.shout("hey")`, "HEY!"},
		{`greet("bob")`, "hi bob"},
		{`_context.x`, 3},
		{`{a: 1, "b": 2}.b`, 2},
		{`["a", "b"]|join("-")`, "a-b"},
		{`"abc"|upper`, "ABC"},
		{`name|default("anon")`, "anon"},
		{`4 is even`, true},
		{`3 is not even`, true},
		{`9 is divisible by(3)`, true},
		{`undefinedvar is defined`, false},
		{`nothing is null`, true},
		{`max(1, 5, 3)`, 5},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := evaluate(t, stubEnv{}, tt.src, vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !sameValue(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []string{
		``,
		`1 +`,
		`(1`,
		`1 2`,
		`a ? b : c : d`,
		`1 @ 2`,
		`[1, 2`,
		`{a 1}`,
		`"unterminated`,
		`x|`,
	}

	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := Compile(src)
			if !errors.Is(err, ErrSyntax) {
				t.Errorf("Compile(%q) error = %v, want %v", src, err, ErrSyntax)
			}
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		env  Env
		want error
	}{
		{"unknown filter", `x|nope`, stubEnv{}, ErrUnknownFilter},
		{"unknown function", `nope()`, stubEnv{}, ErrUnknownFunction},
		{"unknown test", `x is nope`, stubEnv{}, ErrUnknownTest},
		{"strict variable", `missing`, stubEnv{strict: true}, ErrUndefinedVariable},
		{"strict attribute", `x.missing`, stubEnv{strict: true}, ErrUndefinedAttr},
		{"bad regexp", `"a" matches "/(/"`, stubEnv{}, ErrInvalidRegexp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := evaluate(t, tt.env, tt.src, value.MapOf("x", 1))
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStrictLenient(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{`missing ?? 1`, 1},
		{`missing.x ?? 2`, 2},
		{`missing is defined`, false},
		{`missing is not defined`, true},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := evaluate(t, stubEnv{strict: true}, tt.src, value.NewMap(0))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !sameValue(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestUnknownOperator(t *testing.T) {
	if _, err := LookupOperator("<>"); !errors.Is(err, ErrUnknownOperator) {
		t.Errorf("LookupOperator error = %v, want %v", err, ErrUnknownOperator)
	}

	e := &Expression{Nodes: []Node{
		{Kind: KindLiteral, Value: 1},
		{Kind: KindLiteral, Value: 1},
		{Kind: KindOperator, Op: &Operator{Symbol: "<>", Arity: Binary}, Argc: 2},
	}}

	_, err := e.Evaluate(context.Background(), stubEnv{}, nil)
	if !errors.Is(err, ErrUnknownOperator) {
		t.Errorf("Evaluate error = %v, want %v", err, ErrUnknownOperator)
	}
}

func TestOperatorTable(t *testing.T) {
	tests := []struct {
		symbol string
		assoc  Associativity
		arity  Arity
	}{
		{"**", Right, Binary},
		{"??", Right, Binary},
		{"?", Right, Ternary},
		{"..", Left, Binary},
		{"not", Right, Unary},
		{"+", Left, Binary},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			op, err := LookupOperator(tt.symbol)
			if err != nil {
				t.Fatal(err)
			}

			if op.Assoc != tt.assoc || op.Arity != tt.arity {
				t.Errorf("%s: assoc=%v arity=%v", tt.symbol, op.Assoc, op.Arity)
			}
		})
	}

	mul, _ := LookupOperator("*")
	add, _ := LookupOperator("+")

	if mul.Precedence <= add.Precedence {
		t.Errorf("* (%d) must bind tighter than + (%d)", mul.Precedence, add.Precedence)
	}
}

func TestPostfixForm(t *testing.T) {
	e, err := Compile("1 + 2 * 3")
	if err != nil {
		t.Fatal(err)
	}

	if got, want := e.String(), "1 2 3 */2 +/2"; got != want {
		t.Errorf("postfix = %q, want %q", got, want)
	}
}

func TestCompileList(t *testing.T) {
	list, err := CompileList("1, 2 + 3")
	if err != nil {
		t.Fatal(err)
	}

	if len(list) != 2 {
		t.Fatalf("got %d expressions, want 2", len(list))
	}

	if list[1].Source != "2 + 3" {
		t.Errorf("source = %q", list[1].Source)
	}

	got, err := list[1].Evaluate(context.Background(), stubEnv{}, nil)
	if err != nil || !sameValue(got, 5) {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestCompileFilterChain(t *testing.T) {
	e, err := CompileFilterChain(`default("none")|upper`)
	if err != nil {
		t.Fatal(err)
	}

	for input, want := range map[any]string{"ab": "AB", "": "NONE"} {
		got, err := e.EvaluateInput(context.Background(), stubEnv{}, nil, input)
		if err != nil {
			t.Fatal(err)
		}

		if got != want {
			t.Errorf("input %q: got %v, want %q", input, got, want)
		}
	}
}

func TestParseParams(t *testing.T) {
	params, err := ParseParams(`a, b = 2, c = a ~ "x"`)
	if err != nil {
		t.Fatal(err)
	}

	if len(params) != 3 {
		t.Fatalf("got %d params, want 3", len(params))
	}

	if params[0].Default != nil || params[1].Default.Source != "2" {
		t.Errorf("defaults = %v, %v", params[0].Default, params[1].Default)
	}

	got, err := params[2].Default.Evaluate(context.Background(), stubEnv{}, value.MapOf("a", "q"))
	if err != nil || got != "qx" {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestRange(t *testing.T) {
	tests := []struct {
		name      string
		low, high any
		step      float64
		want      []any
	}{
		{"ascending", 1, 5, 2, []any{1, 3, 5}},
		{"descending", 5, 1, 2, []any{5, 3, 1}},
		{"fractional", 0, 1, 0.5, []any{0.0, 0.5, 1.0}},
		{"chars", "a", "e", 2, []any{"a", "c", "e"}},
		{"digit strings", "1", "3", 1, []any{1, 2, 3}},
		{"nan", "x1", 3, 1, []any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Range(tt.low, tt.high, tt.step); !sameValue(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNames(t *testing.T) {
	tests := []struct {
		got  interface{ String() string }
		want string
	}{
		{KindLiteral, "literal"},
		{KindSubscript, "subscript"},
		{KindInput, "input"},
		{Kind(42), "Kind(42)"},
		{Left, "left"},
		{Right, "right"},
		{Unary, "unary"},
		{Variadic, "variadic"},
		{Arity(0), "Arity(0)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.got.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
