package repl

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/ardnew/twine/lang/value"
	"github.com/ardnew/twine/log"
)

const defaultEditor = "vi"

// editContextCommand implements [tea.ExecCommand]. It writes the render
// context as YAML to a temp file, opens $EDITOR on it and decodes the
// result, offering to edit again when decoding fails.
type editContextCommand struct {
	session Session
	ctxFunc func() context.Context
	logger  log.Logger
	vars    *value.Map // decoded result, nil when the edit was cancelled
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

// SetStdin sets the stdin reader for the command.
func (c *editContextCommand) SetStdin(r io.Reader) { c.stdin = r }

// SetStdout sets the stdout writer for the command.
func (c *editContextCommand) SetStdout(w io.Writer) { c.stdout = w }

// SetStderr sets the stderr writer for the command.
func (c *editContextCommand) SetStderr(w io.Writer) { c.stderr = w }

// Run executes the edit loop. An emptied file cancels the edit. Declining to
// edit again after a decode error returns [ErrEditDeclined].
func (c *editContextCommand) Run() error {
	ctx := c.ctxFunc()

	out, err := c.session.Env.Filters().Filter(ctx, "yaml_encode", c.session.Vars, nil)
	if err != nil {
		return err
	}

	content := value.ToString(out) + "\n"

	f, err := os.CreateTemp("", "twine-repl-*.yaml")
	if err != nil {
		return err
	}

	path := f.Name()
	_ = f.Close()

	defer os.Remove(path)

	for {
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			return err
		}

		data, err := runEditor(ctx, c.stdin, c.stdout, c.stderr, path)
		if err != nil {
			return err
		}

		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}

		vars, decodeErr := c.session.Decode(data)

		c.logger.TraceContext(ctx, "editor decode attempt",
			slog.Int("content_length", len(data)),
			slog.Bool("success", decodeErr == nil),
		)

		if decodeErr == nil {
			c.vars = vars

			return nil
		}

		fmt.Fprintf(c.stderr, "\nDecode error: %s\n", decodeErr)
		fmt.Fprint(c.stdout, "Re-edit? [Y/n] ")

		scanner := bufio.NewScanner(c.stdin)
		if !scanner.Scan() {
			return ErrEditDeclined
		}

		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "n", "no":
			return ErrEditDeclined
		}

		content = string(data)
	}
}

// runEditor opens $EDITOR on path and returns the edited content.
func runEditor(
	ctx context.Context,
	stdin io.Reader,
	stdout, stderr io.Writer,
	path string,
) ([]byte, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = defaultEditor
	}

	cmd := exec.CommandContext(ctx, editor, path)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		return nil, err
	}

	return os.ReadFile(path)
}
