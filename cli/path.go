package cli

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ardnew/twine/pkg"
)

// baseConfig is the base name of the configuration file. It also names the
// mapping inside that file holding flag values.
const baseConfig = "config"

const dirMode os.FileMode = 0o700

// appDir returns the twine subdirectory of a per-user base directory.
// The environment variable pkg.EnvPrefix()+suffix overrides the result.
// When user returns an error, the directory is home/fallback, or the
// working directory when even the home directory is unknown.
func appDir(suffix string, user func() (string, error), fallback string) string {
	if dir, ok := os.LookupEnv(pkg.EnvPrefix() + suffix); ok && dir != "" {
		return dir
	}

	if dir, err := user(); err == nil {
		return filepath.Join(dir, pkg.Name)
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, fallback, pkg.Name)
	}

	return "."
}

var (
	configDir = sync.OnceValue(func() string {
		return appDir("CONFIG_DIR", os.UserConfigDir, ".config")
	})
	cacheDir = sync.OnceValue(func() string {
		return appDir("CACHE_DIR", os.UserCacheDir, ".cache")
	})
)

// configPath joins elem onto the configuration directory.
func configPath(elem ...string) string {
	return filepath.Join(append([]string{configDir()}, elem...)...)
}

// mkdirAllRequired creates the configuration and cache directories.
func mkdirAllRequired() error {
	for _, dir := range []string{configDir(), cacheDir()} {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return err
		}
	}

	return nil
}
