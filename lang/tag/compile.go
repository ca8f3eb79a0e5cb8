package tag

//go:generate go tool stringer --linecomment --type SegmentKind --output segment_string.go

import (
	"log/slog"

	"github.com/ardnew/twine/lang/expr"
	"github.com/ardnew/twine/pkg"
)

// SegmentKind classifies a [Segment].
type SegmentKind uint8

const (
	SegmentText   SegmentKind = iota // text
	SegmentOutput                    // output
	SegmentTag                       // tag
)

// Segment is one piece of template source as split by a lexer: raw text, or
// the trimmed body of an output or tag delimiter.
type Segment struct {
	Value string
	Line  int
	Kind  SegmentKind
}

// Node is one element of a compiled template body: [*Text], [*Output] or
// [*Token].
type Node interface {
	node()
}

// Text is literal template text.
type Text struct {
	Value string
}

// Output prints the value of an expression.
type Output struct {
	Expr *expr.Expression
	Line int
}

// Token is a compiled tag. Body holds the nodes between the tag and the tag
// that continues or closes its chain; it is empty for self-closing tags.
type Token struct {
	Tag    Tag
	Source string
	Body   []Node
	Line   int
}

func (*Text) node()   {}
func (*Output) node() {}
func (*Token) node()  {}

// Type returns the type of the compiled tag.
func (t *Token) Type() Type { return t.Tag.Type() }

// LogValue implements slog.LogValuer.
func (t *Token) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("tag", string(t.Type())),
		slog.Int("line", t.Line),
	)
}

// Compile tokenizes every tag segment against r and nests each opening
// tag's body up to the tag that continues or closes its chain. Chain
// continuations (elseif, else) become siblings of the tag they follow;
// closing tags are consumed.
func (r *Registry) Compile(segments []Segment) ([]Node, error) {
	var (
		root  []Node
		stack []*Token
	)

	appendNode := func(n Node) {
		if len(stack) == 0 {
			root = append(root, n)

			return
		}

		top := stack[len(stack)-1]
		top.Body = append(top.Body, n)
	}

	for _, seg := range segments {
		switch seg.Kind {
		case SegmentText:
			if seg.Value != "" {
				appendNode(&Text{Value: seg.Value})
			}

			continue

		case SegmentOutput:
			e, err := expr.Compile(seg.Value)
			if err != nil {
				return nil, ErrTagCompile.Wrap(err).With(slog.Int("line", seg.Line))
			}

			appendNode(&Output{Expr: e, Line: seg.Line})

			continue
		}

		t, err := r.Tokenize(seg.Value)
		if err != nil {
			return nil, withLine(err, seg.Line)
		}

		tok := &Token{Tag: t, Source: seg.Value, Line: seg.Line}

		def, ok := r.Lookup(tok.Type())
		if !ok {
			return nil, ErrUnrecognizedTag.With(
				slog.String("tag", string(tok.Type())),
				slog.Int("line", seg.Line),
			)
		}

		if n := len(stack); n > 0 {
			top := stack[n-1]
			if open, _ := r.Lookup(top.Type()); open.Closes(tok.Type()) {
				if err := checkEnd(top, tok); err != nil {
					return nil, err
				}

				stack = stack[:n-1]
				appendNode(top)

				if !def.SelfClosing() {
					stack = append(stack, tok)
				}

				continue
			}
		}

		if !def.Open {
			return nil, ErrUnexpectedTag.With(
				slog.String("tag", string(tok.Type())),
				slog.Int("line", seg.Line),
			)
		}

		if def.SelfClosing() {
			appendNode(tok)
		} else {
			stack = append(stack, tok)
		}
	}

	if len(stack) > 0 {
		top := stack[len(stack)-1]

		return nil, ErrUnclosedTag.With(
			slog.String("tag", string(top.Type())),
			slog.Int("line", top.Line),
		)
	}

	return root, nil
}

// checkEnd verifies that `endblock name` names the block it closes.
func checkEnd(open, closing *Token) error {
	b, ok := open.Tag.(Block)
	if !ok {
		return nil
	}

	if e, ok := closing.Tag.(End); ok && e.Name != "" && e.Name != b.Name {
		return ErrTagCompile.With(
			slog.String("block", b.Name),
			slog.String("endblock", e.Name),
			slog.Int("line", closing.Line),
		)
	}

	return nil
}

func withLine(err error, line int) error {
	return pkg.WrapError(err).With(slog.Int("line", line))
}
