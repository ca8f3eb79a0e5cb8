package filter

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/ardnew/twine/lang/expr"
	"github.com/ardnew/twine/lang/value"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		strategy string
		in       string
		want     string
	}{
		{"html", `<a href="x">Tom & 'Jerry'</a>`, "&lt;a href=&quot;x&quot;&gt;Tom &amp; &#039;Jerry&#039;&lt;/a&gt;"},
		{"js", "a,b.c_d", "a,b.c_d"},
		{"js", "a b", `a\u0020b`},
		{"js", "</script>\n", `\u003C\/script\u003E\n`},
		{"js", "\u00e9", `\u00E9`},
		{"js", "\U0001F600", `\uD83D\uDE00`},
		{"css", "a b#1", `a\20 b\23 1`},
		{"url", "a b&c='d'", "a%20b%26c%3D%27d%27"},
		{"url", "(ok)!*~-_.", "(ok)!*~-_."},
		{"html_attr", "a-b,c.d_e", "a-b,c.d_e"},
		{"html_attr", `x="1" & y`, "x&#x3D;&quot;1&quot;&#x20;&amp;&#x20;y"},
		{"html_attr", "\x01\t", "&#xFFFD;&#x09;"},
		{"html_attr", "é", "&#x00E9;"},
	}

	for _, tt := range tests {
		t.Run(tt.strategy+"/"+tt.in, func(t *testing.T) {
			got, err := Escape(tt.strategy, tt.in)
			if err != nil {
				t.Fatal(err)
			}

			if got != tt.want {
				t.Errorf("Escape(%q, %q) = %q, want %q", tt.strategy, tt.in, got, tt.want)
			}
		})
	}

	if _, err := Escape("rot13", "x"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("unknown strategy error = %v", err)
	}
}

func TestFilters(t *testing.T) {
	seq := []any{3, 1, 2}
	m := value.MapOf("b", 2, "a", 1)

	tests := []struct {
		name   string
		filter string
		input  any
		args   []any
		want   any
	}{
		{"upper", "upper", "abc", nil, "ABC"},
		{"upper passes non-strings", "upper", 5, nil, 5},
		{"lower", "lower", "ABC", nil, "abc"},
		{"capitalize", "capitalize", "hELLO world", nil, "Hello world"},
		{"title", "title", "hello wORLD", nil, "Hello World"},
		{"trim", "trim", "  x \n", nil, "x"},
		{"trim chars", "trim", "--x--", []any{"-"}, "x"},
		{"length string", "length", "héllo", nil, 5},
		{"length seq", "length", seq, nil, 3},
		{"length map", "length", m, nil, 2},
		{"length number", "length", 42, nil, 0},
		{"default undefined", "default", value.Undef, []any{"d"}, "d"},
		{"default null", "default", nil, []any{"d"}, "d"},
		{"default empty", "default", "", []any{"d"}, "d"},
		{"default set", "default", "x", []any{"d"}, "x"},
		{"default zero kept", "default", 0, []any{"d"}, 0},
		{"join", "join", seq, []any{", "}, "3, 1, 2"},
		{"join map", "join", m, nil, "21"},
		{"keys", "keys", m, nil, []any{"b", "a"}},
		{"keys seq", "keys", []any{"x", "y"}, nil, []any{0, 1}},
		{"first", "first", seq, nil, 3},
		{"first string", "first", "héllo", nil, "h"},
		{"first map", "first", m, nil, 2},
		{"last", "last", seq, nil, 2},
		{"last string", "last", "hellö", nil, "ö"},
		{"last number", "last", 1234, nil, "4"},
		{"reverse", "reverse", seq, nil, []any{2, 1, 3}},
		{"reverse string", "reverse", "abc", nil, "cba"},
		{"sort", "sort", seq, nil, []any{1, 2, 3}},
		{"sort strings", "sort", []any{"b", "c", "a"}, nil, []any{"a", "b", "c"}},
		{"merge seqs", "merge", []any{1}, []any{[]any{2, 3}}, []any{1, 2, 3}},
		{"replace", "replace", "I like %this%", []any{value.MapOf("%this%", "cake")}, "I like cake"},
		{"split", "split", "a,b,c", []any{","}, []any{"a", "b", "c"}},
		{"split limit", "split", "one,two,three,four", []any{",", 3}, []any{"one", "two", "three,four"}},
		{"split negative", "split", "one,two,three,four", []any{",", -1}, []any{"one", "two", "three"}},
		{"split chars", "split", "aabbc", []any{"", 2}, []any{"aa", "bb", "c"}},
		{"split limit one", "split", "a,b", []any{",", 1}, []any{"a,b"}},
		{"slice seq", "slice", []any{1, 2, 3, 4, 5}, []any{1, 2}, []any{2, 3}},
		{"slice negative", "slice", []any{1, 2, 3, 4, 5}, []any{-2}, []any{4, 5}},
		{"slice string", "slice", "hello", []any{1, 3}, "ell"},
		{"slice past end", "slice", "hello", []any{3, 10}, "lo"},
		{"abs int", "abs", -3, nil, 3},
		{"abs float", "abs", -2.5, nil, 2.5},
		{"round", "round", 2.5, nil, 3.0},
		{"round precision", "round", 3.14159, []any{2}, 3.14},
		{"round floor", "round", 3.99, []any{0, "floor"}, 3.0},
		{"round ceil", "round", 3.01, []any{1, "ceil"}, 3.1},
		{"number_format", "number_format", 1234567.891, nil, "1,234,568"},
		{"number_format decimals", "number_format", 1234.5, []any{2}, "1,234.50"},
		{"number_format separators", "number_format", 1234567.891, []any{2, ",", "."}, "1.234.567,89"},
		{"number_format negative", "number_format", -1234.5, []any{1}, "-1,234.5"},
		{"json_encode", "json_encode", value.MapOf("b", []any{1, "x", nil}, "a", true), nil, `{"b":[1,"x",null],"a":true}`},
		{"json_encode string", "json_encode", "<a>", nil, `"<a>"`},
		{"json_encode undefined", "json_encode", value.Undef, nil, "null"},
		{"yaml_encode", "yaml_encode", value.MapOf("b", 1, "a", []any{"x"}), nil, "b: 1\na:\n- x"},
		{"url_encode", "url_encode", "a b", nil, "a%20b"},
		{"url_encode map", "url_encode", value.MapOf("a", 1, "b", value.MapOf("c", "d e")), nil, "a=1&amp;b%5Bc%5D=d%20e"},
		{"escape", "escape", "<b>", nil, value.Markup("&lt;b&gt;")},
		{"escape strategy", "e", "a b", []any{"url"}, value.Markup("a%20b")},
		{"escape markup", "escape", value.Markup("<b>"), nil, value.Markup("<b>")},
		{"raw", "raw", "<b>", nil, value.Markup("<b>")},
		{"nl2br", "nl2br", "a<\nb\r\nc", nil, value.Markup("a&lt;<br />\nb<br />\nc")},
		{"striptags", "striptags", "<p>Hi <b>there</b><!-- x --></p>", nil, "Hi there"},
		{"striptags allowed", "striptags", "<p>Hi <b>there</b></p>", []any{"<b>"}, "Hi <b>there</b>"},
		{"spaceless", "spaceless", " <div>\n  <b>x</b>\n</div> ", nil, "<div><b>x</b></div>"},
		{"batch", "batch", []any{1, 2, 3}, []any{2}, []any{[]any{1, 2}, []any{3}}},
		{"batch fill", "batch", []any{1, 2, 3}, []any{2, "-"}, []any{[]any{1, 2}, []any{3, "-"}}},
		{"markdown", "markdown_to_html", "# Title\n\n*em*", nil, value.Markup("<h1>Title</h1>\n<p><em>em</em></p>\n")},
		{"markdown non-string", "markdown_to_html", 5, nil, value.Undef},
	}

	set := Default()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := set.Filter(t.Context(), tt.filter, tt.input, tt.args)
			if err != nil {
				t.Fatalf("%s: %v", tt.filter, err)
			}

			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("%s(%#v, %#v) = %#v, want %#v", tt.filter, tt.input, tt.args, got, tt.want)
			}
		})
	}
}

func TestMergeMaps(t *testing.T) {
	got, err := Default().Filter(t.Context(), "merge",
		[]any{"a", "b"},
		[]any{value.MapOf("4", "value"), []any{"c", "d"}},
	)
	if err != nil {
		t.Fatal(err)
	}

	m, ok := got.(*value.Map)
	if !ok {
		t.Fatalf("merge returned %T, want *value.Map", got)
	}

	want := []string{"0", "1", "4", "5", "6"}
	if !slices.Equal(m.Keys(), want) {
		t.Errorf("keys = %v, want %v", m.Keys(), want)
	}

	if v := m.Lookup("6"); v != "d" {
		t.Errorf("m[6] = %v, want d", v)
	}
}

func TestSortMap(t *testing.T) {
	got, err := Default().Filter(t.Context(), "sort", value.MapOf("x", 3, "y", 1, "z", 2), nil)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"y", "z", "x"}
	if keys := got.(*value.Map).Keys(); !slices.Equal(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
}

func TestFilterErrors(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		input  any
		args   []any
		want   error
	}{
		{"unknown", "nope", "x", nil, expr.ErrUnknownFilter},
		{"default arity", "default", nil, []any{1, 2}, ErrArgument},
		{"merge without args", "merge", []any{}, nil, ErrArgument},
		{"split non-string", "split", 5, []any{","}, ErrArgument},
		{"slice without args", "slice", "x", nil, ErrArgument},
		{"round method", "round", 1.5, []any{0, "up"}, ErrArgument},
		{"batch size", "batch", []any{1}, []any{"x"}, ErrArgument},
		{"escape strategy", "escape", "x", []any{"nope"}, ErrUnknownStrategy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Default().Filter(t.Context(), tt.filter, tt.input, tt.args)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFunctions(t *testing.T) {
	tests := []struct {
		name string
		fn   string
		args []any
		want any
	}{
		{"range", "range", []any{1, 3}, []any{1, 2, 3}},
		{"range step", "range", []any{0, 10, 5}, []any{0, 5, 10}},
		{"range down", "range", []any{3, 1}, []any{3, 2, 1}},
		{"range chars", "range", []any{"a", "c"}, []any{"a", "b", "c"}},
		{"max", "max", []any{1, 5, 3}, 5},
		{"max seq", "max", []any{[]any{1, 5, 3}}, 5},
		{"min", "min", []any{4, 2, 8}, 2},
		{"min map", "min", []any{value.MapOf("a", 4, "b", 2)}, 2},
		{"cycle", "cycle", []any{[]any{"odd", "even"}, 3}, "even"},
		{"attribute", "attribute", []any{value.MapOf("k", "v"), "k"}, "v"},
		{"attribute missing", "attribute", []any{value.MapOf("k", "v"), "x"}, value.Undef},
		{"dump", "dump", []any{value.MapOf("a", 1)}, "a: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Default().Function(t.Context(), tt.fn, tt.args)
			if err != nil {
				t.Fatal(err)
			}

			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("%s(%v) = %#v, want %#v", tt.fn, tt.args, got, tt.want)
			}
		})
	}

	if _, err := Default().Function(t.Context(), "nope", nil); !errors.Is(err, expr.ErrUnknownFunction) {
		t.Errorf("unknown function error = %v", err)
	}
}

func TestTests(t *testing.T) {
	tests := []struct {
		name  string
		test  string
		input any
		args  []any
		want  bool
	}{
		{"defined", "defined", nil, nil, true},
		{"undefined", "defined", value.Undef, nil, false},
		{"null", "null", nil, nil, true},
		{"none undefined", "none", value.Undef, nil, true},
		{"null zero", "null", 0, nil, false},
		{"empty string", "empty", "", nil, true},
		{"empty seq", "empty", []any{}, nil, true},
		{"empty map", "empty", value.NewMap(0), nil, true},
		{"empty zero", "empty", 0, nil, false},
		{"empty text", "empty", "x", nil, false},
		{"even", "even", 4, nil, true},
		{"even negative", "even", -3, nil, false},
		{"odd", "odd", -3, nil, true},
		{"iterable seq", "iterable", []any{1}, nil, true},
		{"iterable string", "iterable", "abc", nil, false},
		{"divisible", "divisible by", 9, []any{3}, true},
		{"not divisible", "divisible by", 10, []any{3}, false},
		{"same", "same as", 1, []any{1.0}, true},
		{"not same", "same as", 1, []any{"1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Default().Test(t.Context(), tt.test, tt.input, tt.args)
			if err != nil {
				t.Fatal(err)
			}

			if got != tt.want {
				t.Errorf("%s(%v) = %v, want %v", tt.test, tt.input, got, tt.want)
			}
		})
	}
}

func TestSetCopyOnWrite(t *testing.T) {
	base := Default()
	shout := base.WithFilter("shout", func(_ context.Context, in any, _ []any) (any, error) {
		return strings.ToUpper(value.ToString(in)) + "!", nil
	})

	if slices.Contains(base.FilterNames(), "shout") {
		t.Error("WithFilter modified the receiver")
	}

	got, err := shout.Filter(t.Context(), "shout", "hi", nil)
	if err != nil || got != "HI!" {
		t.Errorf("shout = %v, %v", got, err)
	}

	if !slices.IsSorted(shout.FilterNames()) {
		t.Error("FilterNames is not sorted")
	}
}
