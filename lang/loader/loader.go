// Package loader resolves template names to template source text.
//
// [Memory] serves templates from a map and is meant for tests and embedding.
// [FS] searches an ordered list of directories, caches what it reads, and
// can watch those directories to drop cache entries when files change.
package loader

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/zeebo/xxh3"

	"github.com/ardnew/twine/pkg"
)

// Predefined errors (sentinel values).
var (
	ErrNotFound = pkg.NewError("template not found")
	ErrRead     = pkg.NewError("failed to read template")
	ErrWatch    = pkg.NewError("failed to watch templates")
)

// Source is the text of one template.
type Source struct {
	Name string // name the template was requested by
	Path string // resolved location
	Text string
	Hash uint64 // content hash; equal hashes mean equal text
}

// LogValue implements slog.LogValuer.
func (s Source) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", s.Name),
		slog.String("path", s.Path),
		slog.Int("bytes", len(s.Text)),
	)
}

// Loader resolves a template name to its source.
type Loader interface {
	Load(ctx context.Context, name string) (Source, error)
}

// NewSource returns the source of a template that has no backing file.
func NewSource(name, text string) Source {
	return Source{Name: name, Path: name, Text: text, Hash: xxh3.HashString(text)}
}

// Memory is a [Loader] over a map of template names to text.
type Memory map[string]string

// Load returns the template named name.
func (m Memory) Load(_ context.Context, name string) (Source, error) {
	text, ok := m[name]
	if !ok {
		return Source{}, ErrNotFound.With(slog.String("name", name))
	}

	return NewSource(name, text), nil
}

// Func adapts a function to [Loader].
type Func func(ctx context.Context, name string) (Source, error)

// Load calls f.
func (f Func) Load(ctx context.Context, name string) (Source, error) { return f(ctx, name) }

// FileSystem is a [Loader] over an [fs.FS]. Template names are slash-separated
// paths within it.
type FileSystem struct{ FS fs.FS }

// Load reads the template named name from the file system.
func (f FileSystem) Load(_ context.Context, name string) (Source, error) {
	data, err := fs.ReadFile(f.FS, name)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
		return Source{}, ErrNotFound.With(slog.String("name", name))
	}

	if err != nil {
		return Source{}, ErrRead.Wrap(err).With(slog.String("name", name))
	}

	src := NewSource(name, string(data))

	return src, nil
}
