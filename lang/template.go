package lang

import (
	"context"
	"log/slog"

	"github.com/ardnew/twine/lang/tag"
	"github.com/ardnew/twine/lang/value"
)

// Template is a compiled template. It is immutable and may be rendered
// concurrently.
type Template struct {
	env   *Environment
	name  string
	nodes []tag.Node
	hash  uint64
}

// Name returns the name the template was compiled or loaded as.
func (t *Template) Name() string { return t.name }

// Nodes returns the compiled node tree.
func (t *Template) Nodes() []tag.Node { return t.nodes }

// LogValue implements slog.LogValuer.
func (t *Template) LogValue() slog.Value { return slog.StringValue(t.name) }

// Render renders the template with vars, which is not modified. Rendering
// the same template with the same vars always yields the same output.
func (t *Template) Render(ctx context.Context, vars *value.Map) (string, error) {
	ctx, err := t.env.enter(ctx)
	if err != nil {
		return "", err
	}

	t.env.logger.TraceContext(ctx, "render", slog.String("template", t.name))

	out, err := t.env.pass(ctx, t.instance(), vars.Clone(), nil)
	if err != nil {
		t.env.logger.DebugContext(ctx, "render failed",
			slog.String("template", t.name),
			slog.Any("error", err),
		)

		return "", err
	}

	return out, nil
}

// instance is the per-render state of one template: the blocks it defines,
// the blocks it imported with `use`, its macro namespace, and the parent
// template chosen by `extends`.
type instance struct {
	env      *Environment
	name     string
	nodes    []tag.Node
	parent   *Template
	blocks   map[string]*Block
	imported map[string]*Block
	macros   *value.Map
}

func (t *Template) instance() *instance {
	return newInstance(t.env, t.name, t.nodes)
}

func newInstance(env *Environment, name string, nodes []tag.Node) *instance {
	in := &instance{
		env:      env,
		name:     name,
		nodes:    nodes,
		blocks:   map[string]*Block{},
		imported: map[string]*Block{},
		macros:   value.NewMap(0),
	}

	walk(nodes, func(tok *tag.Token) bool {
		switch t := tok.Tag.(type) {
		case tag.Block:
			in.define(&Block{Name: t.Name, owner: in, body: tok.Body})

		case tag.ShortBlock:
			out := &tag.Output{Expr: t.Expr, Line: tok.Line}
			in.define(&Block{Name: t.Name, owner: in, body: []tag.Node{out}})

		case tag.Macro:
			// Hoisted so that macros can be called before their definition.
			in.macros.Set(t.Name, &Macro{
				name:     t.Name,
				params:   t.Params,
				body:     tok.Body,
				owner:    in,
				captured: value.NewMap(0),
			})

			return false

		case tag.Embed:
			return false
		}

		return true
	})

	return in
}

func (in *instance) define(b *Block) {
	if _, ok := in.blocks[b.Name]; !ok {
		in.blocks[b.Name] = b
	}
}

// Block is one definition of a named block.
type Block struct {
	Name  string
	owner *instance
	body  []tag.Node
}

// walk visits every token in nodes depth-first. Returning false from visit
// skips the token's body.
func walk(nodes []tag.Node, visit func(*tag.Token) bool) {
	for _, n := range nodes {
		tok, ok := n.(*tag.Token)
		if !ok {
			continue
		}

		if visit(tok) {
			walk(tok.Body, visit)
		}
	}
}

// overriding returns the block overrides a parent template sees: the
// child's overrides, then the child's own blocks, then those it imported.
func overriding(overrides map[string][]*Block, child *instance) map[string][]*Block {
	out := make(map[string][]*Block, len(overrides)+len(child.blocks))

	for name, chain := range overrides {
		out[name] = append(out[name], chain...)
	}

	for name, b := range child.blocks {
		out[name] = append(out[name], b)
	}

	for name, b := range child.imported {
		out[name] = append(out[name], b)
	}

	return out
}
