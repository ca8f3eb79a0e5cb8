package lang

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ardnew/twine/lang/expr"
	"github.com/ardnew/twine/lang/loader"
	"github.com/ardnew/twine/lang/tag"
	"github.com/ardnew/twine/lang/value"
)

var library = loader.Memory{
	"base.twig":    `<{% block title %}Base{% endblock %}|{% block body %}body{% endblock %}>`,
	"child.twig":   `{% extends "base.twig" %}{% block title %}Child {{ parent() }}{% endblock %}`,
	"grand.twig":   `{% extends "child.twig" %}{% block body %}G{{ parent() }}{% endblock %}`,
	"layout.twig":  `{% block outer %}[{% block inner %}i{% endblock %}]{% endblock %}`,
	"nested.twig":  `{% extends "layout.twig" %}{% block inner %}I{% endblock %}`,
	"blocks.twig":  `{% block title %}Used{% endblock %}{% block extra %}E{% endblock %}`,
	"more.twig":    `{% block title %}More{% endblock %}`,
	"partial.twig": `{{ name ?? "anon" }}`,
	"card.twig":    `<{% block head %}H{% endblock %}:{% block content %}C{% endblock %}>`,
	"macros.twig": `{% macro hello(name, greeting = "Hi") %}{{ greeting }} {{ name }}{% endmacro %}` +
		`{% macro shout(name) %}{{ _self.hello(name|upper, "HEY") }}{% endmacro %}` +
		`{% macro who() %}{{ name ?? "nobody" }}{% endmacro %}`,
	"loop.twig":  `{% include "loop.twig" %}`,
	"lib.twig":   `{% set greeting = "hi" %}{% macro m() %}[{{ greeting }}]{% endmacro %}`,
	"trait.twig": `{% if false %}{% block hidden %}H{% endblock %}{% endif %}`,
}

func render(t *testing.T, src string, vars *value.Map, opts ...Option) (string, error) {
	t.Helper()

	env := New(append([]Option{WithLoader(library)}, opts...)...)

	return env.RenderString(t.Context(), src, vars)
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		src  string
		vars *value.Map
		want string
	}{
		{"text", `plain text`, nil, "plain text"},
		{"precedence", `{{ 1 + 2 * 3 }},{{ (1 + 2) * 3 }}`, nil, "7,9"},
		{"ternary", `{{ x > 1 ? "big" : "small" }}`, value.MapOf("x", 2), "big"},
		{"coalesce", `{{ missing ?? "fallback" }}`, nil, "fallback"},
		{"concat", `{{ "a" ~ 1 ~ "b" }}`, nil, "a1b"},
		{"filter chain", `{{ "a,b"|split(",")|join("-")|upper }}`, nil, "A-B"},
		{"comment", `a{# ignored #}b`, nil, "ab"},
		{"whitespace control", "a  {{- 'b' -}}  c", nil, "abc"},
		{"verbatim", `{% verbatim %}{{ x }}{% endverbatim %}`, nil, "{{ x }}"},

		{"if", `{% if x %}yes{% endif %}`, value.MapOf("x", true), "yes"},
		{"if false", `{% if x %}yes{% endif %}`, value.MapOf("x", false), ""},
		{"elseif", `{% if x > 2 %}big{% elseif x > 1 %}mid{% else %}small{% endif %}`, value.MapOf("x", 2), "mid"},
		{"else", `{% if x > 2 %}big{% elseif x > 1 %}mid{% else %}small{% endif %}`, value.MapOf("x", 1), "small"},
		{"first branch only", `{% if x > 0 %}a{% elseif x > 1 %}b{% else %}c{% endif %}`, value.MapOf("x", 5), "a"},

		{"for", `{% for i in 1..3 %}{{ i }}{% endfor %}`, nil, "123"},
		{"for key", `{% for k, v in {a: 1, b: 2} %}{{ k }}={{ v }};{% endfor %}`, nil, "a=1;b=2;"},
		{"for index key", `{% for i, v in ["x", "y"] %}{{ i }}{{ v }}{% endfor %}`, nil, "0x1y"},
		{"for else", `{% for i in [] %}{{ i }}{% else %}none{% endfor %}`, nil, "none"},
		{"for else undefined", `{% for i in missing %}{{ i }}{% else %}none{% endfor %}`, nil, "none"},
		{"for no else", `{% for i in [1] %}{{ i }}{% else %}none{% endfor %}`, nil, "1"},
		{
			"loop metadata",
			`{% for x in ["a", "b", "c"] %}{{ loop.index }}{{ loop.revindex0 }}` +
				`{% if loop.first %}F{% endif %}{% if loop.last %}L{% endif %};{% endfor %}`,
			nil, "12F;21;30L;",
		},
		{
			"loop condition",
			`{% for x in [1, 2, 3, 4] if x is even %}{{ x }}:{{ loop.index }}` +
				`{{ loop.length is defined ? "y" : "n" }};{% endfor %}`,
			nil, "2:1n;4:2n;",
		},
		{"loop parent", `{% for x in [1] %}{{ loop.parent.y }}{% endfor %}`, value.MapOf("y", "p"), "p"},
		{"nested loops", `{% for a in [1, 2] %}{% for b in [1, 2] %}{{ loop.index }}{% endfor %}{{ loop.index }};{% endfor %}`, nil, "121;122;"},
		{
			"loop mutation",
			`{% set total = 0 %}{% for x in [1, 2, 3] %}{% set total = total + x %}{{ total }},{% endfor %}{{ total }}`,
			nil, "1,3,6,6",
		},
		{
			"loop new key",
			`{% for i in [1, 2, 3] %}{% set acc = (acc ?? 0) + i %}{{ acc }},{% endfor %}{{ acc }}`,
			nil, "1,3,6,6",
		},
		{"loop variable scoped", `{% for x in [1] %}{% endfor %}{{ x ?? "gone" }}`, nil, "gone"},
		{"loop restores shadowed", `{% for x in [1, 2] %}{% endfor %}{{ x }}`, value.MapOf("x", "kept"), "kept"},

		{"set", `{% set a = 1 %}{{ a }}`, nil, "1"},
		{"set many", `{% set a, b = "x", "y" %}{{ b }}{{ a }}`, nil, "yx"},
		{"set swap", `{% set a, b = b, a %}{{ a }}{{ b }}`, value.MapOf("a", 1, "b", 2), "21"},
		{"setcapture", `{% set c %}<{{ "b" }}>{% endset %}{{ c }}`, nil, "<b>"},
		{"setcapture in with", `{% with %}{% set c %}x{% endset %}{% endwith %}[{{ c }}]`, nil, "[x]"},
		{"setcapture in with only", `{% with {b: 1} only %}{% set c %}x{{ b }}{% endset %}{% endwith %}[{{ c }}]`, nil, "[x1]"},
		{"setcapture in loop", `{% for i in [1, 2] %}{% set c %}{{ i }}{% endset %}{% endfor %}{{ c }}`, nil, "2"},
		{"do", `{% do 1 + 1 %}x`, nil, "x"},
		{"filter tag", `{% filter upper %}ab{{ "c" }}{% endfilter %}`, nil, "ABC"},
		{"apply tag", `{% apply lower|replace({"a": "b"}) %}AA{% endapply %}`, nil, "bb"},
		{"spaceless", "{% spaceless %}<p>  <b>x</b>\n </p>{% endspaceless %}", nil, "<p><b>x</b></p>"},
		{"with", `{% set a = 1 %}{% with {b: 2} %}{{ a }}{{ b }}{% endwith %}`, nil, "12"},
		{"with only", `{% set a = 1 %}{% with {b: 2} only %}{{ a ?? "-" }}{{ b }}{% endwith %}`, nil, "-2"},
		{"with isolates", `{% with %}{% set a = 2 %}{% endwith %}{{ a }}`, value.MapOf("a", 1), "1"},
		{"deprecated", `{% deprecated "old" %}ok`, nil, "ok"},

		{"extends", `{% extends "base.twig" %}`, nil, "<Base|body>"},
		{"extends discards output", `ignored{% extends "base.twig" %}{% block body %}B{% endblock %}`, nil, "<Base|B>"},
		{"parent", `{% extends "child.twig" %}`, nil, "<Child Base|body>"},
		{"multi level", `{% extends "grand.twig" %}{% block title %}T{% endblock %}`, nil, "<T|Gbody>"},
		{"grandparent", `{% include "grand.twig" %}`, nil, "<Child Base|Gbody>"},
		{"nested override", `{% extends "nested.twig" %}`, nil, "[I]"},
		{"nested parent", `{% extends "layout.twig" %}{% block outer %}({{ parent() }}){% endblock %}`, nil, "([i])"},
		{"extends candidates", `{% extends ["missing.twig", "base.twig"] %}`, nil, "<Base|body>"},
		{"extends variable", `{% extends layout %}`, value.MapOf("layout", "base.twig"), "<Base|body>"},
		{"block function", `{% block a %}A{% endblock %}{{ block("a") }}`, nil, "AA"},
		{"short block", `{% block a "short" %}`, nil, "short"},
		{"short override", `{% extends "base.twig" %}{% block title "S" %}`, nil, "<S|body>"},

		{"use", `{% extends "base.twig" %}{% use "blocks.twig" %}`, nil, "<Used|body>"},
		{"use later wins", `{% extends "base.twig" %}{% use "blocks.twig" %}{% use "more.twig" %}`, nil, "<More|body>"},
		{"use own block wins", `{% use "blocks.twig" %}{% block title %}Own{% endblock %}`, nil, "Own"},
		{"use block function", `{% use "blocks.twig" %}{{ block("extra") }}`, nil, "E"},
		{"use registers every block", `{% use "trait.twig" %}{{ block("hidden") }}`, nil, "H"},
		{"use parent", `{% use "blocks.twig" %}{% block title %}<{{ parent() }}>{% endblock %}`, nil, "<Used>"},

		{"include", `{% include "partial.twig" %}`, value.MapOf("name", "x"), "x"},
		{"include with", `{% include "partial.twig" with {name: "y"} %}`, value.MapOf("name", "x"), "y"},
		{"include only", `{% include "partial.twig" only %}`, value.MapOf("name", "x"), "anon"},
		{"include with only", `{% include "partial.twig" with {name: "z"} only %}`, value.MapOf("name", "x"), "z"},
		{"include ignore missing", `{% include "nope.twig" ignore missing %}ok`, nil, "ok"},
		{"include candidates", `{% include ["nope.twig", "partial.twig"] %}`, nil, "anon"},
		{"include isolates", `{% include "partial.twig" %}{{ name ?? "unset" }}`, nil, "anonunset"},

		{"embed", `{% embed "card.twig" %}{% block content %}X{{ parent() }}{% endblock %}{% endembed %}`, nil, "<H:XC>"},
		{"embed with", `{% embed "card.twig" with {v: 1} %}{% block head %}{{ v }}{% endblock %}{% endembed %}`, nil, "<1:C>"},

		{"import", `{% import "macros.twig" as m %}{{ m.hello("ada") }}|{{ m.hello("bob", "Yo") }}`, nil, "Hi ada|Yo bob"},
		{"macro self", `{% import "macros.twig" as m %}{{ m.shout("ada") }}`, nil, "HEY ADA"},
		{"from", `{% from "macros.twig" import hello as hi %}{{ hi("x") }}`, nil, "Hi x"},
		{"import self", `{% import _self as me %}{% macro two() %}2{% endmacro %}{{ me.two() }}`, nil, "2"},
		{"hoisted", `{% from _self import late %}{{ late() }}{% macro late() %}L{% endmacro %}`, nil, "L"},
		{"macro snapshot", `{% set a = 1 %}{% macro m() %}{{ a }}{% endmacro %}{% set a = 2 %}{% from _self import m %}{{ m() }}{{ a }}`, nil, "12"},
		{"imported macro isolated", `{% import "macros.twig" as m %}{{ m.who() }}`, value.MapOf("name", "ctx"), "nobody"},
		{"import runs library sets", `{% import "lib.twig" as l %}{{ l.m() }}`, nil, "[hi]"},
		{"from runs library sets", `{% from "lib.twig" import m %}{{ m() }}`, nil, "[hi]"},
		{"varargs", `{% macro v(a) %}{{ a }}{{ varargs|join }}{% endmacro %}{% from _self import v %}{{ v(1, 2, 3) }}`, nil, "123"},
		{"macro default", `{% macro d(a, b = a ~ "!") %}{{ b }}{% endmacro %}{% from _self import d %}{{ d("x") }}`, nil, "x!"},
		{"macro markup", `{% import "macros.twig" as m %}{{ m.hello("<b>") }}`, nil, "Hi <b>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := render(t, tt.src, tt.vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		opts []Option
		want error
	}{
		{"missing include", `{% include "nope.twig" %}`, nil, ErrTemplateLoad},
		{"missing parent", `{% extends "nope.twig" %}`, nil, ErrTemplateLoad},
		{"no candidates", `{% extends ["a.twig", "b.twig"] %}`, nil, ErrTemplateLoad},
		{"unknown filter", `{{ 1|nope }}`, nil, ErrUnknownFilter},
		{"unknown function", `{{ nope() }}`, nil, ErrUnknownFunction},
		{"unknown test", `{{ 1 is nope }}`, nil, ErrUnknownTest},
		{"parent outside block", `{{ parent() }}`, nil, ErrNoParentBlock},
		{"parent of root block", `{% block a %}{{ parent() }}{% endblock %}`, nil, ErrNoParentBlock},
		{"unknown block", `{{ block("nope") }}`, nil, ErrUnknownBlock},
		{"recursion", `{% include "loop.twig" %}`, []Option{WithMaxDepth(8)}, ErrMaxDepthExceeded},
		{"strict variable", `{{ missing }}`, []Option{WithStrictVariables(true)}, expr.ErrUndefinedVariable},
		{"strict attribute", `{{ m.x }}`, []Option{WithStrictVariables(true)}, expr.ErrUndefinedAttr},
		{"include context", `{% include "partial.twig" with 1 %}`, nil, ErrInvalidContext},
		{"with context", `{% with "x" %}{% endwith %}`, nil, ErrInvalidContext},
		{"compile", `{% if x %}`, nil, ErrTemplateCompile},
		{"unterminated", `{{ x`, nil, ErrTemplateCompile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := render(t, tt.src, value.MapOf("m", value.NewMap(0)), tt.opts...)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRenderErrorContext(t *testing.T) {
	env := New(WithLoader(loader.Memory{"bad.twig": "line one\n{{ 1|nope }}"}))

	_, err := env.Render(t.Context(), "bad.twig", nil)
	if !errors.Is(err, ErrRender) || !errors.Is(err, ErrUnknownFilter) {
		t.Fatalf("error = %v", err)
	}

	var re interface{ Attrs() []slog.Attr }
	if !errors.As(err, &re) {
		t.Fatalf("error %T carries no attributes", err)
	}

	attrs := map[string]string{}
	for _, a := range re.Attrs() {
		attrs[a.Key] = a.Value.String()
	}

	if attrs["template"] != "bad.twig" || attrs["line"] != "2" {
		t.Errorf("attrs = %v", attrs)
	}
}

func TestStrictLenient(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`{{ missing|default("d") }}`, "d"},
		{`{{ missing ?? "c" }}`, "c"},
		{`{{ missing is defined ? "y" : "n" }}`, "n"},
		{`{{ m.x|default("a") }}`, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := render(t, tt.src, value.MapOf("m", value.NewMap(0)), WithStrictVariables(true))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAutoescape(t *testing.T) {
	vars := value.MapOf("s", "<b>")

	tests := []struct {
		src  string
		want string
	}{
		{`{{ s }}`, "&lt;b&gt;"},
		{`{{ s|raw }}`, "<b>"},
		{`{{ s|escape }}`, "&lt;b&gt;"},
		{`{% set c %}<i>{% endset %}{{ c }}`, "<i>"},
		{`{% import "macros.twig" as m %}{{ m.hello(s) }}`, "Hi &lt;b&gt;"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := render(t, tt.src, vars, WithAutoescape("html"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLazyMacroDefaults(t *testing.T) {
	var calls atomic.Int32

	count := func(context.Context, []any) (any, error) {
		return int(calls.Add(1)), nil
	}

	src := `{% macro f(a = count()) %}{{ a }}{% endmacro %}{% from _self import f %}`

	tests := []struct {
		call  string
		want  string
		calls int32
	}{
		{`{{ f("x") }}`, "x", 0},
		{`{{ f() }}`, "1", 1},
	}

	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			calls.Store(0)

			got, err := render(t, src+tt.call, nil, WithFunction("count", count))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tt.want || calls.Load() != tt.calls {
				t.Errorf("got %q with %d calls, want %q with %d", got, calls.Load(), tt.want, tt.calls)
			}
		})
	}
}

type shout struct{}

func (shout) Type() tag.Type { return "shout" }

func (shout) Interpret(ctx context.Context, s *Scope, body []tag.Node, chain bool) (string, bool, error) {
	out, err := s.Render(ctx, body)

	return strings.ToUpper(out) + "!", chain, err
}

func TestCustomTag(t *testing.T) {
	reg := tag.Default().Register(
		tag.Definition{
			Type:    "shout",
			Pattern: regexp.MustCompile(`^shout$`),
			Next:    []tag.Type{"endshout"},
			Open:    true,
			Compile: func([]string) (tag.Tag, error) { return shout{}, nil },
		},
		tag.Definition{Type: "endshout", Pattern: regexp.MustCompile(`^endshout$`)},
	)

	got, err := render(t, `{% shout %}hi {{ name }}{% endshout %}`, value.MapOf("name", "ada"), WithRegistry(reg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := "HI ADA!"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderIdempotent(t *testing.T) {
	env := New(WithLoader(library))

	tmpl, err := env.Compile("page", `{% set x = x + 1 %}{% extends "child.twig" %}{% block body %}{{ x }}{% endblock %}`)
	if err != nil {
		t.Fatal(err)
	}

	vars := value.MapOf("x", 1)

	for range 3 {
		got, err := tmpl.Render(t.Context(), vars)
		if err != nil {
			t.Fatal(err)
		}

		if want := "<Child Base|2>"; got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}

	if x := vars.Lookup("x"); x != 1 {
		t.Errorf("vars modified: x = %v", x)
	}
}

func TestTemplateCache(t *testing.T) {
	env := New(WithLoader(library))

	a, err := env.Load(t.Context(), "base.twig")
	if err != nil {
		t.Fatal(err)
	}

	b, err := env.Load(t.Context(), "base.twig")
	if err != nil {
		t.Fatal(err)
	}

	if a != b {
		t.Error("unchanged source was recompiled")
	}

	c, err := env.Compile("inline", "one")
	if err != nil {
		t.Fatal(err)
	}

	d, err := env.Compile("inline", "two")
	if err != nil {
		t.Fatal(err)
	}

	if c == d {
		t.Error("changed source was not recompiled")
	}

	got, err := env.Render(t.Context(), "inline", nil)
	if err != nil || got != "two" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestRenderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := New().RenderString(ctx, `{% for i in 1..3 %}{{ i }}{% endfor %}`, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want %v", err, context.Canceled)
	}
}

func TestRenderConcurrent(t *testing.T) {
	env := New(WithLoader(library))

	tmpl, err := env.Load(t.Context(), "grand.twig")
	if err != nil {
		t.Fatal(err)
	}

	errs := make(chan error, 8)

	for range cap(errs) {
		go func() {
			out, err := tmpl.Render(t.Context(), nil)
			if err == nil && out != "<Child Base|Gbody>" {
				err = errors.New("unexpected output: " + out)
			}

			errs <- err
		}()
	}

	for range cap(errs) {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}

func TestEvaluate(t *testing.T) {
	env := New()

	tests := []struct {
		src  string
		want any
	}{
		{`1 + 2`, 3},
		{`name|upper`, "ADA"},
		{`items|length`, 2},
		{`missing ?? "x"`, "x"},
	}

	vars := value.MapOf("name", "ada", "items", []any{1, 2})

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := env.Evaluate(t.Context(), tt.src, vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !value.LooseEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}

	if _, err := env.Evaluate(t.Context(), `1 +`, nil); !errors.Is(err, ErrTemplateCompile) {
		t.Errorf("error = %v, want %v", err, ErrTemplateCompile)
	}
}
