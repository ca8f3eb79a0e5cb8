package cli

import (
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want config
	}{
		{
			name: "scalars",
			src: `
config:
  log-level: debug
  strict: true
  max-depth: 32
  ratio: 1.5
`,
			want: config{
				"log-level": "debug",
				"strict":    true,
				"max-depth": "32",
				"ratio":     "1.5",
			},
		},
		{
			name: "sequences",
			src: `
config:
  path: [a, b]
  depth: [1, 2]
`,
			want: config{
				"path":  []any{"a", "b"},
				"depth": []any{"1", "2"},
			},
		},
		{
			name: "other_section",
			src:  "other:\n  strict: true\n",
			want: config{},
		},
		{
			name: "not_a_mapping",
			src:  "config: 3\n",
			want: config{},
		},
		{
			name: "invalid",
			src:  "config: [unterminated\n",
			want: config{},
		},
		{
			name: "empty",
			src:  "",
			want: config{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, err := resolve(baseConfig)(strings.NewReader(tt.src))
			if err != nil {
				t.Fatalf("resolve() error = %v", err)
			}

			got, ok := r.(config)
			if !ok {
				t.Fatalf("resolve() = %T, want config", r)
			}

			if len(got) == 0 && len(tt.want) == 0 {
				return
			}

			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("resolve() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestConfigResolve(t *testing.T) {
	t.Parallel()

	cfg := config{
		"log-level": "debug",
		"max_depth": "16",
	}

	tests := []struct {
		flag string
		want any
	}{
		{flag: "log-level", want: "debug"},
		{flag: "max-depth", want: "16"},
		{flag: "strict", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			t.Parallel()

			flag := &kong.Flag{Value: &kong.Value{Name: tt.flag}}

			got, err := cfg.Resolve(nil, nil, flag)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}

			if got != tt.want {
				t.Errorf("Resolve(%q) = %v, want %v", tt.flag, got, tt.want)
			}
		})
	}
}

func TestRunConfigFile(t *testing.T) {
	var cli struct {
		Strict   bool     `name:"strict"`
		MaxDepth int      `name:"max-depth"`
		Path     []string `name:"path"`
	}

	dir := t.TempDir()
	path := dir + "/config.yaml"

	writeFile(t, path, "config:\n  strict: true\n  max_depth: 7\n  path: [x, y]\n")

	parser, err := kong.New(&cli, kong.Configuration(resolve(baseConfig), path))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := parser.Parse([]string{"--max-depth=9"}); err != nil {
		t.Fatal(err)
	}

	if !cli.Strict || cli.MaxDepth != 9 || !reflect.DeepEqual(cli.Path, []string{"x", "y"}) {
		t.Errorf("parsed %+v", cli)
	}
}

func writeFile(t *testing.T, path, text string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatal(err)
	}
}
