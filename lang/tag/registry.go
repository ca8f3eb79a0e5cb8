package tag

import (
	"log/slog"
	"regexp"
	"slices"
	"strings"
)

// Definition declares one tag kind.
type Definition struct {
	// Compile builds the tag from the submatches of Pattern (index 0 is the
	// whole body).
	Compile func(match []string) (Tag, error)
	Pattern *regexp.Regexp
	Type    Type
	// Next lists the types that may continue or close this tag's chain. An
	// empty list makes the tag self-closing.
	Next []Type
	// Open reports whether the tag may start a chain. A tag that is not
	// open is only valid as a successor of another.
	Open bool
}

// Closes reports whether a tag of type t continues or closes d's chain.
func (d *Definition) Closes(t Type) bool {
	return slices.Contains(d.Next, t)
}

// SelfClosing reports whether d needs no closing tag.
func (d *Definition) SelfClosing() bool { return len(d.Next) == 0 }

// Registry is an ordered, immutable set of tag definitions. Tokenizing tries
// definitions in registration order and the first match wins.
type Registry struct {
	index map[Type]int
	defs  []Definition
}

// NewRegistry returns a registry holding defs in order. A later definition
// replaces an earlier one of the same type in place.
func NewRegistry(defs ...Definition) *Registry {
	return (&Registry{}).Register(defs...)
}

// Register returns a new registry with defs added. r is not modified.
func (r *Registry) Register(defs ...Definition) *Registry {
	next := &Registry{
		index: make(map[Type]int, len(r.defs)+len(defs)),
		defs:  slices.Clone(r.defs),
	}

	for i, d := range next.defs {
		next.index[d.Type] = i
	}

	for _, d := range defs {
		if i, ok := next.index[d.Type]; ok {
			next.defs[i] = d

			continue
		}

		next.index[d.Type] = len(next.defs)
		next.defs = append(next.defs, d)
	}

	return next
}

// Lookup returns the definition of type t.
func (r *Registry) Lookup(t Type) (*Definition, bool) {
	i, ok := r.index[t]
	if !ok {
		return nil, false
	}

	return &r.defs[i], true
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []Type {
	types := make([]Type, len(r.defs))
	for i := range r.defs {
		types[i] = r.defs[i].Type
	}

	return types
}

// Tokenize matches the trimmed body of a tag against the registry and
// compiles it.
func (r *Registry) Tokenize(body string) (Tag, error) {
	body = strings.TrimSpace(body)

	for i := range r.defs {
		d := &r.defs[i]

		m := d.Pattern.FindStringSubmatch(body)
		if m == nil {
			continue
		}

		if d.Compile == nil {
			return End{Kind: d.Type}, nil
		}

		t, err := d.Compile(m)
		if err != nil {
			return nil, ErrTagCompile.Wrap(err).With(
				slog.String("tag", string(d.Type)),
				slog.String("body", body),
			)
		}

		return t, nil
	}

	return nil, ErrUnrecognizedTag.With(slog.String("body", body))
}
