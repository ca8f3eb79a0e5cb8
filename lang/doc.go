// Package lang renders templates written in a Twig dialect.
//
// An [Environment] owns everything templates share: the [loader.Loader]
// that resolves template names, the tag grammar ([tag.Registry]), the
// filters, functions and tests ([filter.Set]), the autoescape strategy and
// a cache of compiled templates. A [Template] is the compiled form of one
// source and may be rendered any number of times, concurrently.
//
// # Rendering
//
// Compilation splits the source into text, output and tag segments,
// tokenizes every tag against the registry and nests tag bodies into a
// tree. Rendering walks that tree with a chain flag that links a tag to
// the tag continuing it: `if`/`elseif`/`else` take the first branch whose
// condition holds, and `for ... else` renders the `else` body only when the
// loop ran zero times.
//
// Rendering is sequential. Each loop iteration sees the context mutations
// made by the iterations before it, and mutations other than the loop
// variables remain visible after the loop.
//
// # Inheritance
//
// A template that `extends` another renders nothing of its own; its blocks
// override the parent's blocks of the same name, and `parent()` inside a
// block renders the definition it overrides. `use` imports the blocks of
// another template, `embed` includes a template while overriding blocks
// inline, and `include` renders another template with a copy of (or, with
// `only`, none of) the current context.
//
// # Macros
//
// `macro` defines a callable fragment bound in the template's macro
// namespace. Parameters without an argument take their default, evaluated
// only when needed, or undefined. `import` binds a namespace to a name and
// `from` binds selected macros.
//
// # Example
//
//	env := lang.New(lang.WithLoader(loader.Memory{
//		"base.twig": `<title>{% block title %}Home{% endblock %}</title>`,
//		"page.twig": `{% extends "base.twig" %}{% block title %}{{ name|upper }}{% endblock %}`,
//	}))
//
//	out, err := env.Render(ctx, "page.twig", value.MapOf("name", "docs"))
//	// out == "<title>DOCS</title>"
package lang
