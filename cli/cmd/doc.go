// Package cmd implements the twine subcommands: render, eval, dump, tags,
// init and repl. Commands read the shared engine flags from the context
// the CLI stores them in, see [WithEngine].
package cmd

var (
	// CacheIdentifier is the kong variable identifier containing the path to
	// the runtime cache directory.
	CacheIdentifier = "cache"

	// ConfigIdentifier is the kong variable identifier containing the path to
	// the configuration file. It also names the mapping inside that file
	// holding flag values.
	ConfigIdentifier = "config"
)
