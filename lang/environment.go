package lang

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/ardnew/twine/lang/expr"
	"github.com/ardnew/twine/lang/filter"
	"github.com/ardnew/twine/lang/lexer"
	"github.com/ardnew/twine/lang/loader"
	"github.com/ardnew/twine/lang/tag"
	"github.com/ardnew/twine/lang/value"
	"github.com/ardnew/twine/log"
)

// DefaultMaxDepth is the default limit on nested template evaluations:
// includes, embeds, imports, parent templates and macro calls.
const DefaultMaxDepth = 64

// Environment holds the configuration shared by every template it loads.
// It is safe for concurrent use.
type Environment struct {
	logger     log.Logger
	loader     loader.Loader
	registry   *tag.Registry
	funcs      *filter.Set
	escaper    filter.Escaper
	autoescape string
	strict     bool
	maxDepth   int

	cache sync.Map // template name -> *Template
}

// Option configures an [Environment].
type Option func(*Environment)

// WithLoader sets the loader that resolves template names.
func WithLoader(l loader.Loader) Option {
	return func(e *Environment) { e.loader = l }
}

// WithRegistry replaces the tag grammar.
func WithRegistry(r *tag.Registry) Option {
	return func(e *Environment) { e.registry = r }
}

// WithFilters replaces the filters, functions and tests.
func WithFilters(s *filter.Set) Option {
	return func(e *Environment) { e.funcs = s }
}

// WithFilter adds or replaces one filter.
func WithFilter(name string, f filter.Filter) Option {
	return func(e *Environment) { e.funcs = e.funcs.WithFilter(name, f) }
}

// WithFunction adds or replaces one function.
func WithFunction(name string, f filter.Function) Option {
	return func(e *Environment) { e.funcs = e.funcs.WithFunction(name, f) }
}

// WithTest adds or replaces one test.
func WithTest(name string, f filter.Test) Option {
	return func(e *Environment) { e.funcs = e.funcs.WithTest(name, f) }
}

// WithEscaper replaces the function implementing escape strategies for
// autoescaped output.
func WithEscaper(f filter.Escaper) Option {
	return func(e *Environment) { e.escaper = f }
}

// WithAutoescape escapes every printed value that is not [value.Markup]
// with strategy, e.g. "html". The empty strategy disables autoescaping.
func WithAutoescape(strategy string) Option {
	return func(e *Environment) { e.autoescape = strategy }
}

// WithStrictVariables makes lookups of undefined variables and attributes
// fail instead of yielding undefined.
func WithStrictVariables(strict bool) Option {
	return func(e *Environment) { e.strict = strict }
}

// WithMaxDepth limits nested template evaluations.
func WithMaxDepth(depth int) Option {
	return func(e *Environment) { e.maxDepth = depth }
}

// WithLogger sets the structured logger for trace-level debugging.
// If not provided, the logger is zero-valued and all logging is a no-op.
func WithLogger(logger log.Logger) Option {
	return func(e *Environment) { e.logger = logger }
}

// applyDefaults sets default option values on an Environment.
func applyDefaults(e *Environment) {
	e.registry = tag.Default()
	e.funcs = filter.Default()
	e.escaper = filter.Escape
	e.maxDepth = DefaultMaxDepth
}

// applyOptions applies functional options to an Environment.
func applyOptions(e *Environment, opts ...Option) {
	for _, opt := range opts {
		opt(e)
	}
}

// New returns an environment configured by opts.
func New(opts ...Option) *Environment {
	e := &Environment{}

	applyDefaults(e)
	applyOptions(e, opts...)

	return e
}

// Registry returns the tag grammar.
func (e *Environment) Registry() *tag.Registry { return e.registry }

// Filters returns the filters, functions and tests.
func (e *Environment) Filters() *filter.Set { return e.funcs }

// Compile compiles src as the template called name and caches it, so later
// loads of name that the loader cannot satisfy resolve to it.
func (e *Environment) Compile(name, src string) (*Template, error) {
	return e.compile(context.Background(), loader.NewSource(name, src))
}

func (e *Environment) compile(ctx context.Context, src loader.Source) (*Template, error) {
	if c, ok := e.cache.Load(src.Name); ok {
		if t := c.(*Template); t.hash == src.Hash { //nolint:forcetypeassert
			e.logger.TraceContext(ctx, "compiled template cache hit", slog.String("template", src.Name))

			return t, nil
		}
	}

	segments, err := lexer.Split(src.Text)
	if err != nil {
		return nil, ErrTemplateCompile.Wrap(err).With(slog.String("template", src.Name))
	}

	nodes, err := e.registry.Compile(segments)
	if err != nil {
		return nil, ErrTemplateCompile.Wrap(err).With(slog.String("template", src.Name))
	}

	t := &Template{env: e, name: src.Name, nodes: nodes, hash: src.Hash}

	walk(nodes, func(tok *tag.Token) bool {
		if d, ok := tok.Tag.(tag.Deprecated); ok {
			e.logger.WarnContext(ctx, "deprecated template",
				slog.String("template", src.Name),
				slog.String("message", d.Message),
				slog.Int("line", tok.Line),
			)
		}

		return true
	})

	e.cache.Store(src.Name, t)
	e.logger.TraceContext(ctx, "compiled template",
		slog.Any("source", src),
		slog.Int("nodes", len(nodes)),
	)

	return t, nil
}

// Load returns the compiled template called name. Sources are recompiled
// only when their content changes.
func (e *Environment) Load(ctx context.Context, name string) (*Template, error) {
	if e.loader != nil {
		src, err := e.loader.Load(ctx, name)
		if err == nil {
			return e.compile(ctx, src)
		}

		if !errors.Is(err, loader.ErrNotFound) {
			return nil, ErrTemplateLoad.Wrap(err).With(slog.String("template", name))
		}
	}

	if c, ok := e.cache.Load(name); ok {
		return c.(*Template), nil //nolint:forcetypeassert
	}

	return nil, ErrTemplateLoad.Wrap(loader.ErrNotFound).With(slog.String("template", name))
}

// Render loads the template called name and renders it with vars.
func (e *Environment) Render(ctx context.Context, name string, vars *value.Map) (string, error) {
	t, err := e.Load(ctx, name)
	if err != nil {
		return "", err
	}

	return t.Render(ctx, vars)
}

// RenderString compiles src as an anonymous template and renders it.
func (e *Environment) RenderString(ctx context.Context, src string, vars *value.Map) (string, error) {
	t, err := e.compile(ctx, loader.NewSource("__string_template__"+hashName(src), src))
	if err != nil {
		return "", err
	}

	return t.Render(ctx, vars)
}

// Evaluate compiles src as a single expression and evaluates it against
// vars with the environment's filters, functions and tests.
func (e *Environment) Evaluate(ctx context.Context, src string, vars *value.Map) (any, error) {
	x, err := expr.Compile(src)
	if err != nil {
		return nil, ErrTemplateCompile.Wrap(err).With(slog.String("expression", src))
	}

	if vars == nil {
		vars = value.NewMap(0)
	}

	in := newInstance(e, "__expression__", nil)
	s := &state{env: e, root: in, inst: in, top: vars}

	return s.eval(ctx, x, vars)
}

func hashName(src string) string {
	return strconv.FormatUint(xxh3.HashString(src), 36) //nolint:mnd
}

type depthKey struct{}

// enter accounts for one more nested template evaluation.
func (e *Environment) enter(ctx context.Context) (context.Context, error) {
	depth, _ := ctx.Value(depthKey{}).(int)
	if depth >= e.maxDepth {
		return ctx, ErrMaxDepthExceeded.With(slog.Int("max", e.maxDepth))
	}

	return context.WithValue(ctx, depthKey{}, depth+1), nil
}

// escape renders v for output, applying the autoescape strategy.
func (e *Environment) escape(v any) (string, error) {
	if m, ok := v.(value.Markup); ok {
		return string(m), nil
	}

	s := value.ToString(v)
	if e.autoescape == "" {
		return s, nil
	}

	return e.escaper(e.autoescape, s)
}
