package log

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"time"
)

// DefaultTimeLayout is the timestamp layout of a logger made without
// [WithTimeLayout].
const DefaultTimeLayout = time.RFC3339

// DefaultPretty reports whether loggers are made with [WithPretty] enabled.
const DefaultPretty = true

// config is the immutable configuration behind a [Logger].
type config struct {
	output io.Writer
	layout string // empty omits timestamps
	level  Level
	format Format
	caller bool
	pretty bool
}

// Option changes one setting of a logger configuration.
type Option func(*config)

func defaults(w io.Writer) config {
	if w == nil {
		w = io.Discard
	}

	return config{
		output: w,
		layout: DefaultTimeLayout,
		level:  DefaultLevel,
		format: DefaultFormat,
		pretty: DefaultPretty,
	}
}

func (c config) with(opts ...Option) config {
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}

	if c.output == nil {
		c.output = io.Discard
	}

	return c
}

// WithOutput sets the destination of records. A nil writer discards them.
func WithOutput(w io.Writer) Option {
	return func(c *config) { c.output = w }
}

// WithLevel sets the minimum level of records written.
func WithLevel(level Level) Option {
	return func(c *config) { c.level = level }
}

// WithFormat sets the record encoding.
func WithFormat(format Format) Option {
	return func(c *config) { c.format = format }
}

// WithTimeLayout sets the timestamp layout. Named layouts such as
// "RFC3339Nano", "DateTime" or "Kitchen" are matched ignoring case and
// punctuation; any other string is used as a [time.Time.Format] layout.
// An empty layout or "none" omits timestamps.
func WithTimeLayout(layout string) Option {
	return func(c *config) { c.layout = timeLayout(layout) }
}

// WithCaller adds the source position of the logging call to each record.
func WithCaller(enable bool) Option {
	return func(c *config) { c.caller = enable }
}

// WithPretty selects the colorized line handler for text and indented
// output for JSON.
func WithPretty(enable bool) Option {
	return func(c *config) { c.pretty = enable }
}

var namedLayouts = map[string]string{
	"rfc3339":     time.RFC3339,
	"rfc3339nano": time.RFC3339Nano,
	"rfc1123":     time.RFC1123,
	"rfc822":      time.RFC822,
	"unixdate":    time.UnixDate,
	"datetime":    time.DateTime,
	"timeonly":    time.TimeOnly,
	"kitchen":     time.Kitchen,
	"stamp":       time.Stamp,
	"stampmilli":  time.StampMilli,
	"stampmicro":  time.StampMicro,
	"none":        "",
}

func timeLayout(layout string) string {
	key := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + 'a' - 'A'
		}

		return -1
	}, layout)

	if key == "" {
		return ""
	}

	if named, ok := namedLayouts[key]; ok {
		return named
	}

	return layout
}

func (c config) handler() slog.Handler {
	opts := &slog.HandlerOptions{
		AddSource:   c.caller,
		Level:       slog.Level(c.level),
		ReplaceAttr: c.replaceAttr,
	}

	switch {
	case c.format == FormatJSON && c.pretty:
		return slog.NewJSONHandler(indentWriter{c.output}, opts)
	case c.format == FormatJSON:
		return slog.NewJSONHandler(c.output, opts)
	case c.pretty:
		return newPrettyHandler(c.output, opts, c.layout)
	default:
		return slog.NewTextHandler(c.output, opts)
	}
}

// replaceAttr applies the time layout and writes level names the way
// [Level.String] does, so trace records read TRACE instead of DEBUG-4.
func (c config) replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}

	switch a.Key {
	case slog.TimeKey:
		if c.layout == "" {
			return slog.Attr{}
		}

		if t, ok := a.Value.Any().(time.Time); ok {
			return slog.String(slog.TimeKey, t.Format(c.layout))
		}

	case slog.LevelKey:
		if l, ok := a.Value.Any().(slog.Level); ok {
			return slog.String(slog.LevelKey, strings.ToUpper(Level(l).String()))
		}
	}

	return a
}

// indentWriter re-indents each JSON record. slog handlers write one
// complete record per call.
type indentWriter struct{ w io.Writer }

func (iw indentWriter) Write(p []byte) (int, error) {
	var buf bytes.Buffer

	if err := json.Indent(&buf, bytes.TrimSpace(p), "", "  "); err != nil {
		return iw.w.Write(p)
	}

	buf.WriteByte('\n')

	if _, err := iw.w.Write(buf.Bytes()); err != nil {
		return 0, err
	}

	return len(p), nil
}
