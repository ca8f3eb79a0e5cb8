package cmd

import (
	"context"

	"github.com/ardnew/twine/cli/cmd/repl"
	"github.com/ardnew/twine/log"
)

// Repl starts an interactive shell that evaluates expressions and renders
// template snippets against the render context.
type Repl struct{}

// Run executes the repl command.
func (r *Repl) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	engine, err := engineFrom(ctx)
	if err != nil {
		return err
	}

	vars, err := engine.Context(ctx)
	if err != nil {
		return err
	}

	var cacheDir string
	if ktx := kongContextFrom(ctx); ktx != nil {
		cacheDir = ktx.Model.Vars()[CacheIdentifier]
	}

	session := repl.Session{
		Env:    engine.Environment(engine.Loader()),
		Vars:   vars,
		Decode: decodeData,
	}

	return repl.Run(ctx, session, cacheDir, log.Default())
}
