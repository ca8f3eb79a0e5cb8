package log

//go:generate go tool stringer --linecomment --type Format --output level_string.go

import (
	"iter"
	"log/slog"
	"strconv"
	"strings"
)

// Level is the severity of a log record.
type Level slog.Level

// Named levels. Trace sits below slog's debug level.
const (
	LevelTrace = Level(slog.LevelDebug - 4)
	LevelDebug = Level(slog.LevelDebug)
	LevelInfo  = Level(slog.LevelInfo)
	LevelWarn  = Level(slog.LevelWarn)
	LevelError = Level(slog.LevelError)
)

// DefaultLevel is the level of a logger made without [WithLevel].
const DefaultLevel = LevelInfo

// levelNames lists the named levels in increasing severity.
var levelNames = []struct {
	level Level
	name  string
}{
	{LevelTrace, "trace"},
	{LevelDebug, "debug"},
	{LevelInfo, "info"},
	{LevelWarn, "warn"},
	{LevelError, "error"},
}

// String returns the lowercase name of l. Levels between the named ones are
// written as an offset from the nearest named level below, e.g. "info+2".
func (l Level) String() string {
	i := len(levelNames) - 1
	for i > 0 && l < levelNames[i].level {
		i--
	}

	n := levelNames[i]

	switch d := int(l - n.level); {
	case d == 0:
		return n.name
	case d > 0:
		return n.name + "+" + strconv.Itoa(d)
	default:
		return n.name + strconv.Itoa(d)
	}
}

// Levels yields the names of the named levels in increasing severity.
func Levels() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, n := range levelNames {
			if !yield(n.name) {
				return
			}
		}
	}
}

// ParseLevel parses a level name, case-insensitively, with an optional
// signed offset ("warn", "DEBUG", "info+2"). Anything else is
// [DefaultLevel].
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))

	for _, n := range levelNames {
		rest, ok := strings.CutPrefix(s, n.name)
		if !ok {
			continue
		}

		if rest == "" {
			return n.level
		}

		if d, err := strconv.Atoi(rest); err == nil {
			return n.level + Level(d)
		}
	}

	return DefaultLevel
}

// Format selects the record encoding.
type Format int

const (
	FormatText Format = iota // text
	FormatJSON               // json
)

// DefaultFormat is the format of a logger made without [WithFormat].
const DefaultFormat = FormatText

// Formats yields the names of the supported formats.
func Formats() iter.Seq[string] {
	return func(yield func(string) bool) {
		for f := FormatText; f <= FormatJSON; f++ {
			if !yield(f.String()) {
				return
			}
		}
	}
}

// ParseFormat parses a format name case-insensitively. Anything else is
// [DefaultFormat].
func ParseFormat(s string) Format {
	for f := FormatText; f <= FormatJSON; f++ {
		if strings.EqualFold(strings.TrimSpace(s), f.String()) {
			return f
		}
	}

	return DefaultFormat
}
