package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/twine/log"
	"github.com/ardnew/twine/profile"
)

// defaultConfigIndent is the number of spaces to use for indentation
// when generating the default configuration file.
const defaultConfigIndent = 2

// Init generates a configuration file holding the current flag values.
type Init struct {
	Force bool `help:"Overwrite existing configuration file" short:"f"`
}

// Run executes the init command.
func (i *Init) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	ktx := kongContextFrom(ctx)

	confPath, ok := ktx.Model.Vars()[ConfigIdentifier]
	if !ok {
		panic("internal error: config path undefined")
	}

	_, err = os.Stat(confPath)
	if err == nil && !i.Force {
		return ErrWriteConfig.
			With(slog.String("file", confPath), slog.Bool("exists", true)).
			Wrap(ErrFileExists)
	}

	doc := yaml.MapSlice{{Key: ConfigIdentifier, Value: i.flagValues(ktx)}}

	out, err := yaml.MarshalWithOptions(doc, yaml.Indent(defaultConfigIndent))
	if err != nil {
		return ErrWriteConfig.With(slog.String("file", confPath)).Wrap(err)
	}

	if err := os.MkdirAll(filepath.Dir(confPath), 0o700); err != nil { //nolint:mnd
		return ErrWriteConfig.With(slog.String("file", confPath)).Wrap(err)
	}

	if err := os.WriteFile(confPath, out, 0o600); err != nil { //nolint:mnd
		return ErrWriteConfig.With(slog.String("file", confPath)).Wrap(err)
	}

	log.DebugContext(ctx, "initialized configuration file",
		slog.String("path", confPath),
	)

	return nil
}

// flagValues returns the set flags of the application in model order.
// Help, version and profiling flags are never written.
func (i *Init) flagValues(ktx *kong.Context) yaml.MapSlice {
	ignore := []string{"help", "version", profile.Tag}

	var items yaml.MapSlice

	for _, flag := range ktx.Model.Flags {
		if flag.Hidden || slices.ContainsFunc(ignore, func(s string) bool {
			return strings.HasPrefix(flag.Name, s)
		}) {
			continue
		}

		if v := configValue(ktx.FlagValue(flag)); v != nil {
			items = append(items, yaml.MapItem{Key: flag.Name, Value: v})
		}
	}

	return items
}

// configValue returns the YAML form of a flag value, or nil when the flag
// holds nothing worth writing.
func configValue(v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case bool, int, int64, float64:
		return v
	case string:
		if v == "" {
			return nil
		}

		return v
	case []string:
		if len(v) == 0 {
			return nil
		}

		return v
	case fmt.Stringer:
		return configValue(v.String())
	default:
		s := fmt.Sprint(v)
		if s == "" {
			return nil
		}

		return s
	}
}
