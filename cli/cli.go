package cli

import (
	"context"

	"github.com/alecthomas/kong"

	"github.com/ardnew/twine/cli/cmd"
	"github.com/ardnew/twine/pkg"
)

// CLI is the top-level command-line interface for twine.
type CLI struct {
	Log    logConfig   `embed:"" group:"log"   prefix:"log-"`
	Pprof  pprofConfig `embed:"" group:"pprof" prefix:"pprof-"`
	Engine cmd.Engine  `embed:"" group:"engine"`

	Version kong.VersionFlag `help:"Print version and exit" short:"V"`

	Render cmd.Render `cmd:"" default:"withargs" help:"Render templates"`
	Eval   cmd.Eval   `cmd:"" help:"Evaluate an expression"`
	Dump   cmd.Dump   `cmd:"" help:"Print the compiled token tree of a template"`
	Tags   cmd.Tags   `cmd:"" help:"List registered tags, filters, functions or tests"`
	Repl   cmd.Repl   `cmd:"" help:"Start an interactive shell"`
	Init   cmd.Init   `cmd:"" help:"Initialize configuration file"`
}

func engineGroup() kong.Group {
	return kong.Group{
		Key:         "engine",
		Title:       "Template engine options",
		Description: "Search path, render context and rendering behavior.",
	}
}

// Run executes the twine CLI with the given context and arguments.
// The exit function is called with the appropriate exit code upon completion.
func Run(
	ctx context.Context,
	exit func(code int),
	args ...string,
) error {
	var cli CLI

	err := mkdirAllRequired()
	if err != nil {
		return err
	}

	configFilePath := configPath(baseConfig + ".yaml")

	vars := kong.Vars{
		cmd.ConfigIdentifier: configFilePath,
		cmd.CacheIdentifier:  cacheDir(),
		"version":            pkg.Name + " " + pkg.Version(),
	}.
		CloneWith(cli.Log.vars()).
		CloneWith(cli.Pprof.vars()).
		CloneWith(cli.Engine.Vars())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Logger flags take effect before parsing so that the parse itself and
	// the configuration resolver log at the requested level.
	cli.Log.scan(args)

	parser, err := kong.New(&cli,
		kong.Name(pkg.Name),
		kong.Description(pkg.Description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.ExplicitGroups(
			[]kong.Group{cli.Log.group(), cli.Pprof.group(), engineGroup()},
		),
		kong.BindSingletonProvider(func() context.Context {
			return ctx
		}),
		kong.ConfigureHelp(
			kong.HelpOptions{
				Compact:             true,
				Summary:             true,
				Tree:                true,
				NoExpandSubcommands: true,
			}),
		kong.Configuration(resolve(cmd.ConfigIdentifier), configFilePath),
		vars,
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	ctx = cmd.WithContext(ctx, ktx)
	ctx = cmd.WithEngine(ctx, &cli.Engine)

	defer cli.Log.start(ctx)()

	// No-op unless built with tag pprof and a mode is selected.
	defer cli.Pprof.start(ctx)()

	return ktx.Run(ctx, &cli)
}
