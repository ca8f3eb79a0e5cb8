package loader

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/klauspost/readahead"
	"github.com/zeebo/xxh3"

	"github.com/ardnew/twine/log"
)

// FS loads templates from an ordered search path of directories. The first
// directory containing the requested name wins. Sources are cached by
// resolved path until [FS.Watch] reports a change to the file.
type FS struct {
	logger  log.Logger
	watcher *fsnotify.Watcher
	cache   sync.Map // resolved path -> Source
	dirs    []string
	mu      sync.Mutex
}

// Option configures an [FS].
type Option func(*FS)

// WithLogger sets the logger used for cache and watch events.
func WithLogger(logger log.Logger) Option {
	return func(f *FS) { f.logger = logger }
}

// NewFS returns a loader searching dirs in order. Relative directories are
// made absolute against the working directory.
func NewFS(dirs []string, opts ...Option) *FS {
	f := &FS{}

	for _, dir := range dirs {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}

		f.dirs = append(f.dirs, filepath.Clean(dir))
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Dirs returns the search path.
func (f *FS) Dirs() []string {
	return append([]string(nil), f.dirs...)
}

// Load returns the template named name, a slash-separated path relative to
// one of the search directories, or an absolute path.
func (f *FS) Load(ctx context.Context, name string) (Source, error) {
	for _, path := range f.candidates(name) {
		if src, ok := f.cache.Load(path); ok {
			f.logger.TraceContext(ctx, "template cache hit", slog.String("path", path))

			return src.(Source), nil //nolint:forcetypeassert
		}

		src, err := f.read(name, path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			return Source{}, err
		}

		f.logger.TraceContext(ctx, "template cache miss", slog.Any("source", src))
		f.cache.Store(path, src)
		f.watch(filepath.Dir(path))

		return src, nil
	}

	return Source{}, ErrNotFound.With(
		slog.String("name", name),
		slog.Any("path", f.dirs),
	)
}

func (f *FS) candidates(name string) []string {
	native := filepath.FromSlash(name)
	if filepath.IsAbs(native) {
		return []string{filepath.Clean(native)}
	}

	paths := make([]string, 0, len(f.dirs))
	for _, dir := range f.dirs {
		paths = append(paths, filepath.Join(dir, native))
	}

	return paths
}

func (f *FS) read(name, path string) (Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return Source{}, err
	}
	defer file.Close()

	if info, err := file.Stat(); err == nil && info.IsDir() {
		return Source{}, fs.ErrNotExist
	}

	// Read-ahead overlaps disk reads with the copy into memory.
	ra := readahead.NewReader(file)
	defer ra.Close()

	data, err := io.ReadAll(ra)
	if err != nil {
		return Source{}, ErrRead.Wrap(err).With(slog.String("path", path))
	}

	return Source{Name: name, Path: path, Text: string(data), Hash: xxh3.Hash(data)}, nil
}

// Invalidate drops the cached source at path.
func (f *FS) Invalidate(path string) {
	f.cache.Delete(filepath.Clean(path))
}

func (f *FS) watch(dir string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.watcher == nil {
		return
	}

	if err := f.watcher.Add(dir); err != nil {
		f.logger.Warn("watch directory", slog.String("dir", dir), slog.String("error", err.Error()))
	}
}

// Watch monitors the search directories, and the directory of every
// template loaded since, until ctx is done. Each change to a file drops its
// cache entry and is reported to changed, which may be nil.
func (f *FS) Watch(ctx context.Context, changed func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return ErrWatch.Wrap(err)
	}

	f.mu.Lock()
	f.watcher = w
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.watcher = nil
		f.mu.Unlock()

		_ = w.Close()
	}()

	dirs := map[string]bool{}
	for _, dir := range f.dirs {
		dirs[dir] = true
	}

	f.cache.Range(func(key, _ any) bool {
		dirs[filepath.Dir(key.(string))] = true //nolint:forcetypeassert

		return true
	})

	for dir := range dirs {
		f.watch(dir)
	}

	f.logger.DebugContext(ctx, "watching templates", slog.Int("dirs", len(dirs)))

	const changes = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&changes == 0 {
				continue
			}

			f.Invalidate(ev.Name)
			f.logger.DebugContext(ctx, "template changed",
				slog.String("path", ev.Name),
				slog.String("op", ev.Op.String()),
			)

			if changed != nil {
				changed(ev.Name)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			return ErrWatch.Wrap(err)
		}
	}
}
