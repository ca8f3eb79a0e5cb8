package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ardnew/twine/lang"
)

// Tags lists the tag grammar and the registered filters, functions and
// tests.
type Tags struct {
	Kind string `arg:"" default:"tags" enum:"tags,filters,functions,tests" help:"What to list: ${enum}." name:"kind"`
}

// Run executes the tags command.
func (t *Tags) Run(ctx context.Context) (err error) {
	_, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	return t.write(os.Stdout, lang.New())
}

func (t *Tags) write(w io.Writer, env *lang.Environment) error {
	funcs := env.Filters()

	switch t.Kind {
	case "filters":
		return writeLines(w, funcs.FilterNames())
	case "functions":
		return writeLines(w, funcs.FunctionNames())
	case "tests":
		return writeLines(w, funcs.TestNames())
	}

	reg := env.Registry()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0) //nolint:mnd

	fmt.Fprintln(tw, "TAG\tOPENS\tNEXT")

	for _, typ := range reg.Types() {
		def, _ := reg.Lookup(typ)

		next := "-"
		if !def.SelfClosing() {
			parts := make([]string, len(def.Next))
			for i, n := range def.Next {
				parts[i] = string(n)
			}

			next = strings.Join(parts, ",")
		}

		fmt.Fprintf(tw, "%s\t%t\t%s\n", typ, def.Open, next)
	}

	return tw.Flush()
}

func writeLines(w io.Writer, lines []string) error {
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")

	return err
}
