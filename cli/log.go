package cli

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ardnew/twine/log"
)

// logLevel configures the default logger as a side effect of parsing, so
// that messages emitted while kong is still parsing use the chosen level.
type logLevel string

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *logLevel) UnmarshalText(text []byte) error {
	*l = logLevel(text)
	log.Config(log.WithLevel(log.ParseLevel(string(*l))))

	return nil
}

// logFormat configures the default logger as a side effect of parsing.
type logFormat string

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *logFormat) UnmarshalText(text []byte) error {
	*f = logFormat(text)
	log.Config(log.WithFormat(log.ParseFormat(string(*f))))

	return nil
}

type logConfig struct {
	Level      logLevel  `default:"warn"    enum:"${logLevelEnum}"  help:"Set log level."`
	Format     logFormat `default:"text"    enum:"${logFormatEnum}" help:"Set log format."`
	TimeLayout string    `default:"RFC3339"                         help:"Set timestamp format."`
	Caller     bool      `default:"false"                           help:"Include caller information."       negatable:""`
	Pretty     bool      `default:"true"                            help:"Enable colorized pretty printing." negatable:""`
}

func (*logConfig) vars() kong.Vars {
	return kong.Vars{
		"logLevelEnum":  strings.Join(slices.Collect(log.Levels()), ","),
		"logFormatEnum": strings.Join(slices.Collect(log.Formats()), ","),
	}
}

func (*logConfig) group() kong.Group {
	return kong.Group{Key: "log", Title: "Logging options"}
}

func (f *logConfig) start(ctx context.Context) func() {
	log.Config(
		log.WithLevel(log.ParseLevel(string(f.Level))),
		log.WithFormat(log.ParseFormat(string(f.Format))),
		log.WithTimeLayout(f.TimeLayout),
		log.WithCaller(f.Caller),
		log.WithPretty(f.Pretty),
	)

	log.DebugContext(ctx, "logger initialized",
		slog.String("level", string(f.Level)),
		slog.String("format", string(f.Format)),
		slog.String("time", f.TimeLayout),
		slog.Bool("caller", f.Caller),
		slog.Bool("pretty", f.Pretty),
	)

	return func() {}
}

// scan applies logger flags found anywhere in args before kong parses them.
// The level and format types configure the logger while kong parses, but
// boolean flags do not pass through a TextUnmarshaler.
func (f *logConfig) scan(args []string) {
	valued := map[string]func(string){
		"--log-level":  func(v string) { _ = f.Level.UnmarshalText([]byte(v)) },
		"--log-format": func(v string) { _ = f.Format.UnmarshalText([]byte(v)) },
	}

	toggles := map[string]func(bool){
		"caller": func(v bool) {
			f.Caller = v
			log.Config(log.WithCaller(v))
		},
		"pretty": func(v bool) {
			f.Pretty = v
			log.Config(log.WithPretty(v))
		},
	}

	for i := 0; i < len(args); i++ {
		name, value, assigned := strings.Cut(args[i], "=")

		if set, ok := valued[name]; ok {
			if !assigned && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
				value = args[i]
			}

			set(value)

			continue
		}

		negate := strings.HasPrefix(name, "--no-log-")

		var key string

		switch {
		case negate:
			key = strings.TrimPrefix(name, "--no-log-")
		case strings.HasPrefix(name, "--log-"):
			key = strings.TrimPrefix(name, "--log-")
		default:
			continue
		}

		set, ok := toggles[key]
		if !ok {
			continue
		}

		v := true

		if assigned {
			b, err := strconv.ParseBool(value)
			if err != nil {
				continue
			}

			v = b
		}

		set(v != negate)
	}
}
