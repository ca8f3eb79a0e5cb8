//nolint:gochecknoglobals
package pkg

import (
	_ "embed"
	"strings"
)

// Version is the semantic version of the twine module embedded at build time.
// It is printed by the CLI when users invoke the version flag.
//
//go:embed VERSION
var version string

// Version returns the embedded semantic version without surrounding space.
func Version() string { return strings.TrimSpace(version) }

const (
	// Name is the canonical command and module identifier used across the
	// project. It appears in help text, default config paths, and the
	// environment variable prefix.
	Name = "twine"
	// Description is a short, human-readable summary of the project used in
	// help output and documentation.
	Description = "Twig-dialect template interpreter"
)

// EnvPrefix returns the prefix of environment variables recognized by the
// command, e.g. "TWINE_".
func EnvPrefix() string { return strings.ToUpper(Name) + "_" }
