package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ardnew/twine/lang"
	"github.com/ardnew/twine/lang/value"
	"github.com/ardnew/twine/log"
)

// Render renders templates with the render context built from the engine
// flags. Each argument is a template name resolved on the search path; "-"
// reads an anonymous template from stdin.
type Render struct {
	Output string `help:"Write output to this file instead of stdout." placeholder:"FILE" short:"o" type:"path"`
	Watch  bool   `help:"Render again whenever a loaded template changes."              short:"w"`

	Template []string `arg:"" default:"-" help:"Template name, or '-' for stdin." name:"template"`
}

// Run executes the render command.
func (r *Render) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	engine, err := engineFrom(ctx)
	if err != nil {
		return err
	}

	fs := engine.Loader()
	env := engine.Environment(fs)

	vars, err := engine.Context(ctx)
	if err != nil {
		return err
	}

	job, err := r.prepare(uniqueFiles(r.Template))
	if err != nil {
		return err
	}

	if err := r.run(ctx, env, vars, job); err != nil {
		return err
	}

	if !r.Watch {
		return nil
	}

	log.InfoContext(ctx, "watching templates", slog.Any("dirs", fs.Dirs()))

	return fs.Watch(ctx, func(path string) {
		if err := r.run(ctx, env, vars, job); err != nil {
			log.ErrorContext(ctx, "render failed",
				slog.String("changed", path),
				slog.Any("error", err),
			)
		}
	})
}

// renderJob is one template to render: a name, or the text read from stdin.
type renderJob struct {
	name  string
	text  string
	stdin bool
}

// prepare reads stdin once so the same text can be rendered again on
// change.
func (r *Render) prepare(names []string) ([]renderJob, error) {
	job := make([]renderJob, 0, len(names))

	for _, name := range names {
		if name != stdinSource {
			job = append(job, renderJob{name: name})

			continue
		}

		src, err := readSource(stdinSource)
		if err != nil {
			return nil, ErrReadTemplate.Wrap(err).With(slog.String("template", name))
		}

		job = append(job, renderJob{name: name, text: string(src), stdin: true})
	}

	return job, nil
}

func (r *Render) run(
	ctx context.Context,
	env *lang.Environment,
	vars *value.Map,
	job []renderJob,
) error {
	var out strings.Builder

	for _, j := range job {
		var (
			s   string
			err error
		)

		if j.stdin {
			s, err = env.RenderString(ctx, j.text, vars.Clone())
		} else {
			s, err = env.Render(ctx, j.name, vars.Clone())
		}

		if err != nil {
			return err
		}

		out.WriteString(s)
	}

	return r.write(out.String())
}

func (r *Render) write(s string) error {
	var w io.Writer = os.Stdout

	if r.Output != "" {
		f, err := os.Create(r.Output)
		if err != nil {
			return ErrWriteOutput.Wrap(err).With(slog.String("file", r.Output))
		}
		defer f.Close()

		w = f
	}

	if _, err := io.WriteString(w, s); err != nil {
		return ErrWriteOutput.Wrap(err).With(slog.String("file", r.Output))
	}

	return nil
}
