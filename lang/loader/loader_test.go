package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"
)

func TestMemory(t *testing.T) {
	m := Memory{"a.twig": "hello", "b.twig": "hello"}

	tests := []struct {
		name    string
		want    string
		wantErr error
	}{
		{"a.twig", "hello", nil},
		{"b.twig", "hello", nil},
		{"missing.twig", "", ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := m.Load(context.Background(), tt.name)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Load(%q) error = %v, want %v", tt.name, err, tt.wantErr)
			}

			if src.Text != tt.want {
				t.Errorf("Load(%q) = %q, want %q", tt.name, src.Text, tt.want)
			}
		})
	}

	a, _ := m.Load(context.Background(), "a.twig")
	b, _ := m.Load(context.Background(), "b.twig")

	if a.Hash != b.Hash {
		t.Errorf("equal text hashed differently: %x != %x", a.Hash, b.Hash)
	}
}

func TestFileSystem(t *testing.T) {
	f := FileSystem{FS: fstest.MapFS{
		"base.twig":          {Data: []byte("{% block body %}{% endblock %}")},
		"partials/item.twig": {Data: []byte("<li>{{ item }}</li>")},
	}}

	tests := []struct {
		name    string
		want    string
		wantErr error
	}{
		{"base.twig", "{% block body %}{% endblock %}", nil},
		{"partials/item.twig", "<li>{{ item }}</li>", nil},
		{"partials/none.twig", "", ErrNotFound},
		{"../escape.twig", "", ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := f.Load(t.Context(), tt.name)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Load(%q) error = %v, want %v", tt.name, err, tt.wantErr)
			}

			if src.Text != tt.want {
				t.Errorf("Load(%q) = %q, want %q", tt.name, src.Text, tt.want)
			}
		})
	}
}

func writeFile(t *testing.T, path, text string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFSSearchOrder(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()

	writeFile(t, filepath.Join(first, "page.twig"), "first")
	writeFile(t, filepath.Join(second, "page.twig"), "second")
	writeFile(t, filepath.Join(second, "partials", "nav.twig"), "nav")

	f := NewFS([]string{first, second})

	tests := []struct {
		name    string
		want    string
		wantErr error
	}{
		{"page.twig", "first", nil},
		{"partials/nav.twig", "nav", nil},
		{filepath.Join(second, "page.twig"), "second", nil},
		{"partials", "", ErrNotFound},
		{"nope.twig", "", ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := f.Load(context.Background(), tt.name)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Load(%q) error = %v, want %v", tt.name, err, tt.wantErr)
			}

			if src.Text != tt.want {
				t.Errorf("Load(%q) = %q, want %q", tt.name, src.Text, tt.want)
			}

			if err == nil && src.Name != tt.name {
				t.Errorf("Load(%q).Name = %q", tt.name, src.Name)
			}
		})
	}
}

func TestFSCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.twig")

	writeFile(t, path, "one")

	f := NewFS([]string{dir})

	src, err := f.Load(context.Background(), "page.twig")
	if err != nil || src.Text != "one" {
		t.Fatalf("Load = %q, %v", src.Text, err)
	}

	writeFile(t, path, "two")

	if src, _ = f.Load(context.Background(), "page.twig"); src.Text != "one" {
		t.Errorf("cached Load = %q, want %q", src.Text, "one")
	}

	f.Invalidate(path)

	if src, _ = f.Load(context.Background(), "page.twig"); src.Text != "two" {
		t.Errorf("Load after Invalidate = %q, want %q", src.Text, "two")
	}
}

func TestFSWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.twig")

	writeFile(t, path, "one")

	f := NewFS([]string{dir})
	if _, err := f.Load(context.Background(), "page.twig"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan string, 16)
	done := make(chan error, 1)
	started := make(chan struct{})

	go func() {
		close(started)
		done <- f.Watch(ctx, func(p string) {
			select {
			case changed <- p:
			default:
			}
		})
	}()

	<-started

	// The watcher registers asynchronously; rewrite until a change arrives.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

loop:
	for {
		select {
		case p := <-changed:
			if filepath.Clean(p) == path {
				break loop
			}
		case <-tick.C:
			writeFile(t, path, "two")
		case <-deadline:
			t.Fatal("no change reported")
		}
	}

	// A truncating write may be observed before the new text lands, so
	// keep loading until the final text is visible.
	for {
		src, err := f.Load(context.Background(), "page.twig")
		if err == nil && src.Text == "two" {
			break
		}

		select {
		case <-changed:
		case <-time.After(50 * time.Millisecond):
			f.Invalidate(path)
		case <-deadline:
			t.Fatalf("Load after change = %q, %v", src.Text, err)
		}
	}

	cancel()

	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}
