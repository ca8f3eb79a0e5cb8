package lang

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ardnew/twine/lang/expr"
	"github.com/ardnew/twine/lang/tag"
	"github.com/ardnew/twine/lang/value"
)

// chain returns every definition of the named block visible to the pass,
// most derived first.
func (s *state) chain(name string) []*Block {
	var out []*Block

	out = append(out, s.overrides[name]...)

	if b, ok := s.root.blocks[name]; ok {
		out = append(out, b)
	}

	if b, ok := s.root.imported[name]; ok {
		out = append(out, b)
	}

	return out
}

// block renders the most derived definition of a block where it is
// declared. A template that extends another renders its blocks only when
// the parent template reaches them.
func (s *state) block(ctx context.Context, name string, body []tag.Node, vars *value.Map) (string, error) {
	if s.root.parent != nil {
		return "", nil
	}

	chain := s.chain(name)
	if len(chain) == 0 {
		chain = []*Block{{Name: name, owner: s.inst, body: body}}
	}

	return s.renderBlock(ctx, chain, 0, vars)
}

func (s *state) renderBlock(ctx context.Context, chain []*Block, index int, vars *value.Map) (string, error) {
	b := chain[index]

	s.env.logger.TraceContext(ctx, "render block",
		slog.String("block", b.Name),
		slog.String("template", b.owner.name),
		slog.Int("depth", len(chain)-index),
	)

	prev := s.inst
	s.inst = b.owner
	s.frames = append(s.frames, blockFrame{chain: chain, index: index})

	defer func() {
		s.inst = prev
		s.frames = s.frames[:len(s.frames)-1]
	}()

	return s.run(ctx, b.body, vars)
}

// parentBlock renders the definition overridden by the block being
// rendered.
func (s *state) parentBlock(ctx context.Context, vars *value.Map) (any, error) {
	if len(s.frames) == 0 {
		return nil, ErrNoParentBlock.With(slog.String("reason", "parent() called outside a block"))
	}

	f := s.frames[len(s.frames)-1]
	if f.index+1 >= len(f.chain) {
		return nil, ErrNoParentBlock.With(slog.String("block", f.chain[f.index].Name))
	}

	out, err := s.renderBlock(ctx, f.chain, f.index+1, vars)
	if err != nil {
		return nil, err
	}

	return value.Markup(out), nil
}

// namedBlock renders the most derived definition of the named block.
func (s *state) namedBlock(ctx context.Context, name string, vars *value.Map) (any, error) {
	chain := s.chain(name)
	if len(chain) == 0 {
		return nil, ErrUnknownBlock.With(slog.String("block", name))
	}

	out, err := s.renderBlock(ctx, chain, 0, vars)
	if err != nil {
		return nil, err
	}

	return value.Markup(out), nil
}

// resolve loads the template a target expression names. The target may
// evaluate to a template name, a compiled template, or a sequence of
// candidates of which the first that loads is taken.
func (s *state) resolve(ctx context.Context, target *expr.Expression, vars *value.Map) (*Template, error) {
	v, err := s.eval(ctx, target, vars)
	if err != nil {
		return nil, err
	}

	return s.load(ctx, v)
}

func (s *state) load(ctx context.Context, v any) (*Template, error) {
	switch x := v.(type) {
	case *Template:
		return x, nil
	case string, value.Markup:
		return s.env.Load(ctx, value.ToString(x))
	}

	candidates, ok := value.AsSequence(v)
	if !ok {
		return s.env.Load(ctx, value.ToString(v))
	}

	var err error = ErrTemplateLoad.With(slog.String("reason", "empty template list"))

	for _, c := range candidates {
		t, lerr := s.load(ctx, c)
		if lerr == nil {
			return t, nil
		}

		err = lerr

		s.env.logger.TraceContext(ctx, "template candidate skipped",
			slog.String("template", value.ToString(c)),
			errorAttr(err),
		)
	}

	return nil, err
}

func (s *state) extends(ctx context.Context, t tag.Extends, vars *value.Map) error {
	parent, err := s.resolve(ctx, t.Target, vars)
	if err != nil {
		return err
	}

	s.inst.parent = parent

	s.env.logger.TraceContext(ctx, "extends",
		slog.String("template", s.inst.name),
		slog.String("parent", parent.name),
	)

	return nil
}

// use imports the blocks of another template, including those it imports
// itself. Blocks imported later replace earlier ones of the same name.
func (s *state) use(ctx context.Context, t tag.Use, vars *value.Map) error {
	src, err := s.resolve(ctx, t.Target, vars)
	if err != nil {
		return err
	}

	ctx, err = s.env.enter(ctx)
	if err != nil {
		return err
	}

	in := src.instance()
	isolated := value.NewMap(0)
	iso := &state{env: s.env, root: in, inst: in, top: isolated}

	// Blocks are registered when the template is compiled, so only nested
	// uses need to run.
	for _, n := range in.nodes {
		if tok, ok := n.(*tag.Token); ok && tok.Type() == tag.TypeUse {
			if _, _, err := iso.interpret(ctx, tok, isolated, true); err != nil {
				return iso.fail(err, slog.Any("token", tok))
			}
		}
	}

	for name, b := range in.imported {
		s.inst.imported[name] = b
	}

	for name, b := range in.blocks {
		s.inst.imported[name] = b
	}

	s.env.logger.TraceContext(ctx, "use",
		slog.String("template", s.inst.name),
		slog.String("source", src.name),
		slog.Int("blocks", len(in.blocks)+len(in.imported)),
	)

	return nil
}

// includeContext builds the context of an included template.
func (s *state) includeContext(ctx context.Context, t tag.Include, vars *value.Map) (*value.Map, error) {
	inner := value.NewMap(0)
	if !t.Only {
		inner = vars.Clone()
	}

	if t.With == nil {
		return inner, nil
	}

	v, err := s.eval(ctx, t.With, vars)
	if err != nil {
		return nil, err
	}

	m, ok := value.Normalize(v).(*value.Map)
	if !ok {
		return nil, ErrInvalidContext.With(slog.String("type", value.TypeName(v)))
	}

	return inner.Merge(m), nil
}

// target resolves an include or embed target. With ignore missing, a target
// that cannot be loaded yields nil.
func (s *state) target(ctx context.Context, t tag.Include, vars *value.Map) (*Template, error) {
	tmpl, err := s.resolve(ctx, t.Target, vars)
	if err != nil && t.IgnoreMissing && errors.Is(err, ErrTemplateLoad) {
		s.env.logger.TraceContext(ctx, "missing template ignored", errorAttr(err))

		return nil, nil
	}

	return tmpl, err
}

func (s *state) include(ctx context.Context, t tag.Include, vars *value.Map) (string, error) {
	inner, err := s.includeContext(ctx, t, vars)
	if err != nil {
		return "", err
	}

	tmpl, err := s.target(ctx, t, vars)
	if err != nil || tmpl == nil {
		return "", err
	}

	ctx, err = s.env.enter(ctx)
	if err != nil {
		return "", err
	}

	s.env.logger.TraceContext(ctx, "include", slog.String("template", tmpl.name))

	return s.env.pass(ctx, tmpl.instance(), inner, nil)
}

// embed renders a template whose blocks are overridden by those declared in
// the embed body.
func (s *state) embed(ctx context.Context, t tag.Embed, body []tag.Node, vars *value.Map) (string, error) {
	inner, err := s.includeContext(ctx, t.Include, vars)
	if err != nil {
		return "", err
	}

	tmpl, err := s.target(ctx, t.Include, vars)
	if err != nil || tmpl == nil {
		return "", err
	}

	ctx, err = s.env.enter(ctx)
	if err != nil {
		return "", err
	}

	s.env.logger.TraceContext(ctx, "embed", slog.String("template", tmpl.name))

	in := newInstance(s.env, s.inst.name, body)
	in.parent = tmpl

	return s.env.pass(ctx, in, inner, nil)
}

// namespace returns the macro namespace of the template a target names, or
// the current template's own namespace when target is nil (_self).
func (s *state) namespace(ctx context.Context, target *expr.Expression, vars *value.Map) (*value.Map, error) {
	if target == nil {
		return s.inst.macros, nil
	}

	src, err := s.resolve(ctx, target, vars)
	if err != nil {
		return nil, err
	}

	ctx, err = s.env.enter(ctx)
	if err != nil {
		return nil, err
	}

	// The whole template runs in an empty context and its output is
	// dropped, so macros capture the sets and imports of their own template.
	in := src.instance()
	isolated := value.NewMap(0)
	iso := &state{env: s.env, root: in, inst: in, top: isolated}

	if _, err := iso.run(ctx, in.nodes, isolated); err != nil {
		return nil, err
	}

	s.env.logger.TraceContext(ctx, "import",
		slog.String("template", s.inst.name),
		slog.String("source", src.name),
		slog.Any("macros", in.macros.Keys()),
	)

	return in.macros, nil
}

func (s *state) from(ctx context.Context, t tag.From, vars *value.Map) error {
	ns, err := s.namespace(ctx, t.Target, vars)
	if err != nil {
		return err
	}

	for _, item := range t.Items {
		vars.Set(item.As, ns.Lookup(item.Name))
	}

	return nil
}
