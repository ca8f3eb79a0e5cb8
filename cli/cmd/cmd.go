package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/klauspost/readahead"
)

// contextKey is used to store a [kong.Context] value in [context.Context].
type contextKey struct{}

// WithContext returns a new context.Context containing the given kong.Context.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, ok := ctx.Value(contextKey{}).(*kong.Context)
	if !ok || ktx == nil {
		return nil
	}

	return ktx
}

type engineKey struct{}

// WithEngine returns a new context.Context carrying the engine flags.
func WithEngine(ctx context.Context, e *Engine) context.Context {
	return context.WithValue(ctx, engineKey{}, e)
}

func engineFrom(ctx context.Context) (*Engine, error) {
	e, ok := ctx.Value(engineKey{}).(*Engine)
	if !ok || e == nil {
		return nil, ErrNoEngine
	}

	return e, nil
}

// stdinSource is the special source indicator for reading from stdin.
const stdinSource = "-"

// fileKey uniquely identifies a file by its device and inode numbers, which
// catches the same file named through symlinks or different relative paths.
type fileKey struct {
	dev uint64
	ino uint64
}

// makeFileKey reports false when the platform does not expose a
// *syscall.Stat_t.
func makeFileKey(info os.FileInfo) (key fileKey, ok bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return key, false
	}

	return fileKey{dev: uint64(stat.Dev), ino: stat.Ino}, true //nolint:unconvert
}

// uniqueFiles returns paths with later duplicates of the same file removed,
// keeping the first spelling of each. Every "-" collapses into a single
// stdin entry in the position of its first occurrence. Paths that cannot be
// resolved are kept so that opening them reports the error.
func uniqueFiles(paths []string) []string {
	seen := make(map[fileKey]bool)
	out := make([]string, 0, len(paths))
	stdin := false

	for _, path := range paths {
		if path == stdinSource {
			if !stdin {
				out = append(out, path)
			}

			stdin = true

			continue
		}

		if key, ok := resolveKey(path); ok {
			if seen[key] {
				continue
			}

			seen[key] = true
		}

		out = append(out, path)
	}

	return out
}

func resolveKey(path string) (fileKey, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fileKey{}, false
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return fileKey{}, false
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return fileKey{}, false
	}

	return makeFileKey(info)
}

// readSource reads the whole of path, or standard input for "-", through a
// read-ahead buffer.
func readSource(path string) ([]byte, error) {
	var r io.Reader = os.Stdin

	if path != stdinSource {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		r = f
	}

	ra := readahead.NewReader(r)
	defer ra.Close()

	return io.ReadAll(ra)
}
