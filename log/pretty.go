package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// prettyHandler writes each record as one line:
//
//	15:04:05 WARN  main.go:12 message key=value group.key=value
//
// Colors come from a lipgloss renderer bound to the output, so they are
// dropped when the output is not a terminal.
type prettyHandler struct {
	opts   slog.HandlerOptions
	layout string
	colors palette

	mu *sync.Mutex
	w  io.Writer

	prefix string // dotted group path of attributes added later
	attrs  []byte // attributes added by WithAttrs, already formatted
}

type palette struct {
	time, source, key, str, num lipgloss.Style
	trace, debug, info, warn    lipgloss.Style
	err                         lipgloss.Style
}

func newPalette(w io.Writer) palette {
	r := lipgloss.NewRenderer(w)
	fg := func(c string) lipgloss.Style {
		return r.NewStyle().Foreground(lipgloss.Color(c))
	}

	return palette{
		time:   fg("8"),
		source: fg("8").Italic(true),
		key:    fg("6"),
		str:    fg("2"),
		num:    fg("5"),
		trace:  fg("8"),
		debug:  fg("4"),
		info:   fg("2").Bold(true),
		warn:   fg("3").Bold(true),
		err:    fg("1").Bold(true),
	}
}

func (p palette) level(l slog.Level) lipgloss.Style {
	switch {
	case l < slog.Level(LevelDebug):
		return p.trace
	case l < slog.Level(LevelInfo):
		return p.debug
	case l < slog.Level(LevelWarn):
		return p.info
	case l < slog.Level(LevelError):
		return p.warn
	default:
		return p.err
	}
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, layout string) *prettyHandler {
	return &prettyHandler{
		opts:   *opts,
		layout: layout,
		colors: newPalette(w),
		mu:     &sync.Mutex{},
		w:      w,
	}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}

	return level >= minLevel
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	if h.layout != "" && !r.Time.IsZero() {
		b.WriteString(h.colors.time.Render(r.Time.Format(h.layout)))
		b.WriteByte(' ')
	}

	level := fmt.Sprintf("%-5s", strings.ToUpper(Level(r.Level).String()))
	b.WriteString(h.colors.level(r.Level).Render(level))

	if h.opts.AddSource {
		if src := r.Source(); src != nil && src.File != "" {
			b.WriteByte(' ')
			b.WriteString(h.colors.source.Render(
				filepath.Base(src.File) + ":" + strconv.Itoa(src.Line)))
		}
	}

	b.WriteByte(' ')
	b.WriteString(r.Message)
	b.Write(h.attrs)

	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, h.prefix, a)

		return true
	})

	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := io.WriteString(h.w, b.String())

	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	var b strings.Builder
	for _, a := range attrs {
		h.appendAttr(&b, h.prefix, a)
	}

	c := *h
	c.attrs = append(slices.Clip(h.attrs), b.String()...)

	return &c
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	c := *h
	c.prefix = h.prefix + name + "."

	return &c
}

func (h *prettyHandler) appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if h.opts.ReplaceAttr != nil && a.Value.Kind() != slog.KindGroup {
		a = h.opts.ReplaceAttr(groupsOf(prefix), a)
		a.Value = a.Value.Resolve()
	}

	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}

		for _, g := range a.Value.Group() {
			h.appendAttr(b, p, g)
		}

		return
	}

	b.WriteByte(' ')
	b.WriteString(h.colors.key.Render(prefix + a.Key + "="))
	b.WriteString(h.value(a.Value))
}

func (h *prettyHandler) value(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return h.colors.str.Render(quote(v.String()))
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64, slog.KindDuration, slog.KindBool:
		return h.colors.num.Render(v.String())
	case slog.KindTime:
		layout := h.layout
		if layout == "" {
			layout = time.RFC3339
		}

		return h.colors.str.Render(v.Time().Format(layout))
	default:
		if err, ok := v.Any().(error); ok {
			return h.colors.err.Render(quote(err.Error()))
		}

		return quote(v.String())
	}
}

func groupsOf(prefix string) []string {
	if prefix == "" {
		return nil
	}

	return strings.Split(strings.TrimSuffix(prefix, "."), ".")
}

func quote(s string) string {
	if s == "" || !utf8.ValidString(s) || strings.ContainsAny(s, " \t\r\n\"=\\") {
		return strconv.Quote(s)
	}

	return s
}
