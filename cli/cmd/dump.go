package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/twine/lang"
	"github.com/ardnew/twine/lang/tag"
)

// Dump compiles a template and prints its node tree.
type Dump struct {
	Format string `default:"text" enum:"text,json,yaml" help:"Output format."                   short:"f"`
	Indent int    `default:"2"                          help:"Indent width for nested nodes." short:"i"`

	Template string `arg:"" default:"-" help:"Template name, or '-' for stdin." name:"template"`
}

// Run executes the dump command.
func (d *Dump) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	engine, err := engineFrom(ctx)
	if err != nil {
		return err
	}

	env := engine.Environment(engine.Loader())

	var t *lang.Template

	if d.Template == stdinSource {
		src, err := readSource(stdinSource)
		if err != nil {
			return ErrReadTemplate.Wrap(err).With(slog.String("template", d.Template))
		}

		t, err = env.Compile(d.Template, string(src))
		if err != nil {
			return err
		}
	} else {
		t, err = env.Load(ctx, d.Template)
		if err != nil {
			return err
		}
	}

	return d.write(os.Stdout, nodeViews(t.Nodes()))
}

func (d *Dump) write(w io.Writer, nodes []nodeView) error {
	switch d.Format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", strings.Repeat(" ", d.Indent))

		if err := enc.Encode(nodes); err != nil {
			return ErrJSONMarshal.Wrap(err)
		}

		return nil

	case "yaml":
		out, err := yaml.MarshalWithOptions(nodes, yaml.Indent(d.Indent))
		if err != nil {
			return ErrYAMLMarshal.Wrap(err)
		}

		_, err = w.Write(out)

		return err

	default:
		var b strings.Builder

		writeTree(&b, nodes, 0, d.Indent)

		_, err := io.WriteString(w, b.String())

		return err
	}
}

// nodeView is the printable form of a compiled node.
type nodeView struct {
	Kind   string     `json:"kind"             yaml:"kind"`
	Tag    string     `json:"tag,omitempty"    yaml:"tag,omitempty"`
	Source string     `json:"source,omitempty" yaml:"source,omitempty"`
	Line   int        `json:"line,omitempty"   yaml:"line,omitempty"`
	Body   []nodeView `json:"body,omitempty"   yaml:"body,omitempty"`
}

func nodeViews(nodes []tag.Node) []nodeView {
	out := make([]nodeView, 0, len(nodes))

	for _, n := range nodes {
		switch n := n.(type) {
		case *tag.Text:
			out = append(out, nodeView{Kind: "text", Source: n.Value})
		case *tag.Output:
			out = append(out, nodeView{Kind: "output", Source: n.Expr.Source, Line: n.Line})
		case *tag.Token:
			out = append(out, nodeView{
				Kind:   "tag",
				Tag:    string(n.Type()),
				Source: n.Source,
				Line:   n.Line,
				Body:   nodeViews(n.Body),
			})
		}
	}

	return out
}

func writeTree(b *strings.Builder, nodes []nodeView, depth, indent int) {
	pad := strings.Repeat(" ", depth*indent)

	for _, n := range nodes {
		b.WriteString(pad)

		switch n.Kind {
		case "text":
			fmt.Fprintf(b, "text %q\n", n.Source)
		case "output":
			fmt.Fprintf(b, "%d: {{ %s }}\n", n.Line, n.Source)
		default:
			fmt.Fprintf(b, "%d: {%% %s %%}\n", n.Line, n.Source)
		}

		writeTree(b, n.Body, depth+1, indent)
	}
}
