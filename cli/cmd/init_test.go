package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"
)

// initCLI is a small command line whose flags Init writes.
type initCLI struct {
	Level  string   `default:"warn"`
	Strict bool     `default:"true"`
	Path   []string `short:"I"`
	Empty  string
	Secret string `hidden:""`
	Pprof  string `name:"pprof-mode"`
}

func initContext(t *testing.T, confPath string, args ...string) context.Context {
	t.Helper()

	var cli initCLI

	parser, err := kong.New(&cli, kong.Vars{ConfigIdentifier: confPath})
	if err != nil {
		t.Fatal(err)
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		t.Fatal(err)
	}

	return WithContext(t.Context(), ktx)
}

func TestInitRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		force    bool
		existing bool
		wantErr  error
	}{
		{name: "create_new_config"},
		{name: "overwrite_existing_with_force", force: true, existing: true},
		{name: "fail_without_force", existing: true, wantErr: ErrFileExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			confPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

			if tt.existing {
				writeFile(t, confPath, "existing content")
			}

			ctx := initContext(t, confPath, "--secret=s", "--pprof-mode=cpu", "-I", "a", "-I", "b")

			err := (&Init{Force: tt.force}).Run(ctx)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Init.Run() error = %v, want %v", err, tt.wantErr)
			}

			if tt.wantErr != nil {
				return
			}

			content, err := os.ReadFile(confPath)
			if err != nil {
				t.Fatal(err)
			}

			var doc map[string]map[string]any
			if err := yaml.Unmarshal(content, &doc); err != nil {
				t.Fatalf("generated config is not valid YAML: %v\n%s", err, content)
			}

			section, ok := doc[ConfigIdentifier]
			if !ok {
				t.Fatalf("generated config has no %q mapping:\n%s", ConfigIdentifier, content)
			}

			if got := section["level"]; got != "warn" {
				t.Errorf("level = %v, want warn", got)
			}

			if got := section["strict"]; got != true {
				t.Errorf("strict = %v, want true", got)
			}

			path, _ := section["path"].([]any)
			if len(path) != 2 || path[0] != "a" || path[1] != "b" {
				t.Errorf("path = %v, want [a b]", section["path"])
			}

			for _, key := range []string{"empty", "secret", "pprof-mode", "help"} {
				if _, ok := section[key]; ok {
					t.Errorf("config has unexpected key %q", key)
				}
			}
		})
	}
}

func TestInitFlagOrder(t *testing.T) {
	t.Parallel()

	ctx := initContext(t, filepath.Join(t.TempDir(), "config.yaml"), "-I", "x")

	items := (&Init{}).flagValues(kongContextFrom(ctx))

	keys := make([]string, len(items))
	for i, item := range items {
		keys[i], _ = item.Key.(string)
	}

	if want := []string{"level", "strict", "path"}; !slices.Equal(keys, want) {
		t.Errorf("flagValues() keys = %v, want %v", keys, want)
	}
}

func TestConfigValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bool", false, false},
		{"int", 3, 3},
		{"float", 1.5, 1.5},
		{"string", "x", "x"},
		{"empty_string", "", nil},
		{"empty_slice", []string{}, nil},
		{"named_string", logLevelValue("debug"), "debug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := configValue(tt.in); got != tt.want {
				t.Errorf("configValue(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if got, ok := configValue([]string{"a"}).([]string); !ok || !slices.Equal(got, []string{"a"}) {
		t.Errorf("configValue([a]) = %v", got)
	}
}

type logLevelValue string
