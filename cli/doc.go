// Package cli contains the command line interface for twine.
//
// # Usage
//
// Render is the default command, so a bare invocation renders templates:
//
//	twine -I templates -d site.yaml page.twig
//	echo 'Hello {{ name }}' | twine -D 'name="world"'
//
// Templates named on the command line are looked up in the search path:
// each --path (-I) directory in order, then the entries of $TWINE_PATH, then
// the working directory. "-" reads template source from stdin.
//
// # Render Context
//
// The render context is built from YAML data files (--data, -d) merged in
// order, then --var (-D) bindings of the form NAME=EXPR. Each expression is
// evaluated by expr-lang against the context bound so far:
//
//	twine -d base.yaml -d local.yaml -D 'count=len(items)' page.twig
//
// # Commands
//
//   - render: render one or more templates, optionally re-rendering when
//     a template in the search path changes (--watch)
//   - eval: evaluate a single template expression
//   - dump: print the compiled token tree of a template
//   - tags: list the registered tags, filters, functions or tests
//   - repl: interactive shell over the same environment
//   - init: write the current flag values to the configuration file
//
// # Configuration
//
// Flag defaults are read from the "config" mapping of
// ~/.config/twine/config.yaml, which the init command generates.
//
// # Logging Options
//
//   - --log-level: Set minimum log level (trace, debug, info, warn, error)
//   - --log-format: Set log output format (json, text)
//   - --log-time-layout: Set timestamp format (RFC3339, RFC3339Nano, etc.)
//   - --log-caller: Include caller information in log output
//
// # Profiling Options
//
// Profiling is only available when built with the pprof build tag:
//
//	go build -tags pprof -o twine .
//
//   - --pprof-mode: Enable profiling (allocs, block, clock, cpu, goroutine,
//     heap, mem, mutex, thread, trace)
//   - --pprof-dir: Set profile output directory (default: ~/.cache/twine/pprof)
package cli
