package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"
)

// resolve returns a [kong.ConfigurationLoader] reading YAML config files.
// Flag values are taken from the mapping under the top-level key name:
//
//	config:
//	  log-level: debug
//	  path: [templates, partials]
//	  strict: true
//	  max-depth: 32
//
// Keys may spell hyphens as underscores (log_level). Flags given on the
// command line override the file. A file that does not parse, or has no
// mapping under name, contributes nothing.
func resolve(name string) kong.ConfigurationLoader {
	return func(r io.Reader) (kong.Resolver, error) {
		var doc map[string]any

		if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
			return config{}, nil //nolint:nilerr
		}

		section, ok := doc[name].(map[string]any)
		if !ok {
			return config{}, nil
		}

		cfg := make(config, len(section))

		for key, val := range section {
			cfg[key] = flagValue(val)
		}

		return cfg, nil
	}
}

// config implements [kong.Resolver] over a flat map of flag values.
type config map[string]any

// Validate implements [kong.Resolver].
func (config) Validate(*kong.Application) error { return nil }

// Resolve implements [kong.Resolver].
func (c config) Resolve(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
	if v, ok := c[flag.Name]; ok {
		return v, nil
	}

	if v, ok := c[strings.ReplaceAll(flag.Name, "-", "_")]; ok {
		return v, nil
	}

	return nil, nil //nolint:nilnil
}

// flagValue converts a decoded YAML value to the form kong maps onto flags.
// Kong parses numbers from their text, so scalars other than booleans and
// strings are formatted.
func flagValue(v any) any {
	switch v := v.(type) {
	case nil, bool, string:
		return v
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = flagValue(e)
		}

		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = flagValue(e)
		}

		return out
	default:
		return fmt.Sprint(v)
	}
}
