package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/ardnew/mung"

	"github.com/ardnew/twine/lang"
	"github.com/ardnew/twine/lang/filter"
	"github.com/ardnew/twine/lang/loader"
	"github.com/ardnew/twine/lang/value"
	"github.com/ardnew/twine/log"
	"github.com/ardnew/twine/pkg"
)

// Engine holds the flags shared by every command that compiles or renders
// templates.
type Engine struct {
	Path       []string `help:"Template search directory, searched before ${pathEnv}." placeholder:"DIR"       short:"I" type:"path"`
	Data       []string `help:"YAML data file merged into the render context, or '-' for stdin." placeholder:"FILE" short:"d"`
	Var        []string `help:"Bind NAME to the value of EXPR in the render context."   placeholder:"NAME=EXPR" short:"D"`
	Autoescape string   `default:""   enum:",${escapeEnum}" help:"Escape printed values with this strategy."`
	Strict     bool     `help:"Fail on undefined variables and attributes."`
	MaxDepth   int      `default:"${maxDepth}" help:"Limit nested includes, embeds, imports and macro calls."`
}

// PathEnv names the environment variable holding additional template
// search directories.
func PathEnv() string { return pkg.EnvPrefix() + "PATH" }

// SearchPath returns the directories templates are loaded from: each --path
// flag in order, then the entries of $TWINE_PATH, then the working
// directory. Entries that are not directories are dropped.
func (e *Engine) SearchPath() []string {
	joined := mung.Make(
		mung.WithSubjectItems(os.Getenv(PathEnv())),
		mung.WithDelim(string(os.PathListSeparator)),
		mung.WithPrefixItems(e.Path...),
		mung.WithFilter(isDir),
	).String()

	dirs := filepath.SplitList(joined)
	if len(dirs) == 0 {
		dirs = []string{"."}
	}

	return dirs
}

func isDir(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}

// Loader returns a file system loader over the search path.
func (e *Engine) Loader() *loader.FS {
	return loader.NewFS(e.SearchPath(), loader.WithLogger(log.Default()))
}

// Environment returns a template environment configured by the flags. A
// non-positive MaxDepth keeps the default limit.
func (e *Engine) Environment(l loader.Loader, opts ...lang.Option) *lang.Environment {
	base := []lang.Option{
		lang.WithLoader(l),
		lang.WithAutoescape(e.Autoescape),
		lang.WithStrictVariables(e.Strict),
		lang.WithLogger(log.Default()),
	}

	if e.MaxDepth > 0 {
		base = append(base, lang.WithMaxDepth(e.MaxDepth))
	}

	return lang.New(append(base, opts...)...)
}

// Context returns the render context: the data files merged in order, then
// each --var binding evaluated against what was bound before it.
func (e *Engine) Context(ctx context.Context) (*value.Map, error) {
	vars, err := loadData(ctx, uniqueFiles(e.Data))
	if err != nil {
		return nil, err
	}

	for _, def := range e.Var {
		if err := assign(vars, def); err != nil {
			return nil, err
		}
	}

	log.DebugContext(ctx, "render context",
		slog.Int("data", len(e.Data)),
		slog.Int("vars", len(e.Var)),
		slog.Any("keys", vars.Keys()),
	)

	return vars, nil
}

// Vars returns the kong variables referenced by the flag tags.
func (*Engine) Vars() kong.Vars {
	return kong.Vars{
		"pathEnv":    "$" + PathEnv(),
		"escapeEnum": strings.Join(filter.Strategies(), ","),
		"maxDepth":   strconv.Itoa(lang.DefaultMaxDepth),
	}
}
