// Package log is the structured logger shared by the template engine and the
// command line. It wraps [log/slog] with a trace level below debug, a
// package default logger, and a colorized single-line text handler for
// terminals.
//
// A [Logger] is an immutable value. [Make] builds one from functional
// options and [Logger.Wrap] derives another with options changed:
//
//	logger := log.Make(os.Stderr,
//		log.WithLevel(log.LevelDebug),
//		log.WithFormat(log.FormatJSON),
//		log.WithTimeLayout("none"))
//
// Every level has a context-aware method taking [slog.Attr] values:
//
//	logger.TraceContext(ctx, "template compiled", slog.String("name", name))
//
// The zero Logger discards everything, so components accept one without
// requiring callers to configure logging.
//
// # Default logger
//
// The package functions ([Debug], [InfoContext], ...) write to the default
// logger, which starts on standard error at [DefaultLevel] and is
// reconfigured with [Config].
//
// # Formats
//
// [FormatText] and [FormatJSON] select slog's text or JSON handler. With
// [WithPretty], text records are written as one aligned, colorized line and
// JSON records are indented. Colors are dropped when the output is not a
// terminal.
package log
