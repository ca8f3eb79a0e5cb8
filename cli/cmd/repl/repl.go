// Package repl is an interactive shell evaluating expressions and template
// snippets against a render context.
package repl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ardnew/twine/lang/value"
	"github.com/ardnew/twine/log"
)

// editContextMsg is sent when editing the render context succeeds.
type editContextMsg struct{ vars *value.Map }

// editCancelledMsg is sent when the user emptied the editor content.
type editCancelledMsg struct{}

// editDeclinedMsg is sent when the user declined to edit again after a
// decode error.
type editDeclinedMsg struct{}

// editErrorMsg is sent when the editor could not be run.
type editErrorMsg struct{ err error }

const (
	evalPrompt = "➜ "
	ctrlPrompt = " :"
)

const helpMessage = `
: Commands (press Esc to toggle mode):

  help             Print this help
  list             List the render context
  let NAME EXPR    Bind NAME to the value of EXPR
  unset NAME       Remove NAME from the render context
  edit             Edit the render context as YAML in $EDITOR
  clear            Clear screen
  quit             Exit REPL

Usage:
  Type an expression to evaluate it, e.g. users|length
  Input containing {{ or {% is rendered as a template
  Completions appear as you type: variables, filters after |, tests after is
  Press Tab / Shift-Tab to cycle through candidates
  Press Space to accept the current candidate
  Use Up/Down for history (switches mode to match the entry)
  Use Shift+Up/Shift+Down for history of the current mode only
  Use Alt+Up/Alt+Down to browse command history from either mode
  Press Ctrl+C on empty line or Ctrl+D to exit
`

// inputMode represents the current input mode.
type inputMode int

const (
	modeEval inputMode = iota
	modeCtrl
)

// Styles.
var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true)
	ctrlPromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("5")).
			Bold(true)
	inputStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	resultStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	matchStyle      = suggestionStyle.Bold(true)
	selectedStyle   = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("4"))
	selectedMatchStyle = selectedStyle.Bold(true)
)

func echo(mode inputMode, input string) tea.Cmd {
	prompt := promptStyle.Render(evalPrompt)
	if mode == modeCtrl {
		prompt = ctrlPromptStyle.Render(ctrlPrompt)
	}

	return tea.Println(prompt + inputStyle.Render(input))
}

// altNav is the state restored when Alt+Up/Down runs off the end of the
// command history.
type altNav struct {
	mode   inputMode
	text   string
	cursor int
	active bool
}

// model is the Bubble Tea model for the REPL.
type model struct {
	ctxFunc      func() context.Context
	session      Session
	input        textinput.Model
	logger       log.Logger
	history      *History
	historyIdx   int
	matches      fuzzy.Matches // current fuzzy match results
	candidates   []string      // backing candidate list
	wordStart    int           // byte offset of current word start
	wordEnd      int           // byte offset of current word end
	suggIdx      int           // selected candidate index
	tabActive    bool          // whether user is tab-cycling
	preTabText   string        // input text before tab-cycling began
	preTabCursor int           // cursor position before tab-cycling began
	alt          altNav
	width        int // terminal width for ellipsization
	quitting     bool
	mode         inputMode
	saved        [2]struct {
		text   string
		cursor int
	} // input of the inactive mode, indexed by inputMode
}

// Run starts the REPL on session. History is kept in cacheDir.
func Run(
	ctx context.Context,
	session Session,
	cacheDir string,
	logger log.Logger,
) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	if session.Env == nil {
		return ErrNoEnv
	}

	if session.Vars == nil {
		session.Vars = value.NewMap(0)
	}

	logger.TraceContext(ctx, "repl start",
		slog.String("cache_dir", cacheDir),
		slog.Int("vars", session.Vars.Len()),
	)

	history := NewHistory(filepath.Join(cacheDir, baseHistory))
	if err := history.Load(); err != nil {
		logger.WarnContext(ctx, "could not load history", slog.Any("error", err))
	}

	logger.TraceContext(ctx, "repl history loaded",
		slog.Int("entry_count", history.Len()),
	)

	p := tea.NewProgram(newModel(ctx, session, history, logger), tea.WithContext(ctx))
	_, err = p.Run()

	return err
}

const defaultWidth = 80

func newModel(
	ctx context.Context,
	session Session,
	history *History,
	logger log.Logger,
) model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(evalPrompt)
	ti.Focus()
	ti.CharLimit = 1024
	ti.Width = defaultWidth

	return model{
		ctxFunc:    func() context.Context { return ctx },
		session:    session,
		input:      ti,
		logger:     logger,
		history:    history,
		historyIdx: history.Len(),
		width:      defaultWidth,
		mode:       modeEval,
		suggIdx:    -1,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - len(evalPrompt) - 2

		return m, nil

	case editContextMsg:
		for _, key := range m.session.Vars.Keys() {
			m.session.Vars.Delete(key)
		}

		m.session.Vars.Merge(msg.vars)
		m.logger.TraceContext(m.ctxFunc(), "repl edit complete",
			slog.Int("vars", m.session.Vars.Len()),
		)

		return m, tea.Println(resultStyle.Render("✔ context updated"))

	case editCancelledMsg:
		return m, tea.Println(hintStyle.Render("🗴 edit cancelled"))

	case editDeclinedMsg:
		m.quitting = true

		return m, tea.Quit

	case editErrorMsg:
		return m, tea.Println(errorStyle.Render("🗴 error: " + msg.err.Error()))
	}

	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.hintLine())
	b.WriteString("\n")

	return b.String()
}

// hintLine is the line under the input: history position, usage hint,
// signature of the call around the cursor, or the candidate bar.
func (m model) hintLine() string {
	input := m.input.Value()

	if m.historyIdx < m.history.Len() {
		pos := lipgloss.NewStyle().Bold(true).Render(strconv.Itoa(m.historyIdx + 1))

		return hintStyle.Render(fmt.Sprintf("%s/%d", pos, m.history.Len()))
	}

	if strings.TrimSpace(input) == "" {
		if m.mode == modeEval {
			return hintStyle.Render("Type an expression or press Esc for commands")
		}

		return hintStyle.Render("Type: " + strings.Join(ctrlCommands, ", ") + " (press Esc to return)")
	}

	if m.mode == modeEval {
		if call := detectFunctionCall(input, m.input.Position()); call.inCall {
			if sig, params := getSignature(call); sig != "" {
				return renderSignatureHint(sig, params, call.argIndex)
			}
		}
	}

	return renderCandidateBar(m.matches, m.suggIdx, m.tabActive, m.width, m.isFunction)
}

func (m model) isFunction(name string) bool {
	if m.mode != modeEval {
		return false
	}

	if _, ok := functionSignatures[name]; ok {
		return true
	}

	return slices.Contains(m.session.Env.Filters().FunctionNames(), name)
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	m.logger.TraceContext(m.ctxFunc(), "repl keypress",
		slog.String("key", msg.String()),
		slog.Int("type", int(msg.Type)),
	)

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		m.input.SetValue("")
		m.tabActive = false
		m.alt.active = false
		m.historyIdx = m.history.Len()
		refreshMatches(&m, false)

		return m, nil

	case tea.KeyCtrlD:
		if m.input.Value() == "" {
			m.quitting = true

			return m, tea.Quit
		}

		return m, nil

	case tea.KeyEnter:
		m.alt.active = false

		if !m.tabActive || len(m.matches) == 0 {
			return m.executeInput()
		}

		m.tabActive = false
		refreshMatches(&m, true)

		return m, nil

	case tea.KeyTab:
		return m.cycle(1), nil

	case tea.KeyShiftTab:
		return m.cycle(-1), nil

	case tea.KeyUp:
		if msg.Alt {
			return m.altHistory(-1), nil
		}

		return m.historyStep(-1), nil

	case tea.KeyDown:
		if msg.Alt {
			return m.altHistory(1), nil
		}

		return m.historyStep(1), nil

	case tea.KeyShiftUp:
		return m.historyInMode(-1), nil

	case tea.KeyShiftDown:
		return m.historyInMode(1), nil

	case tea.KeyEsc:
		if m.tabActive {
			m.tabActive = false
			m.input.SetValue(m.preTabText)
			m.input.SetCursor(m.preTabCursor)
			refreshMatches(&m, false)

			return m, nil
		}

		m.alt.active = false

		return m.switchToMode(1 - m.mode), nil

	case tea.KeyRunes:
		if m.tabActive && msg.String() == " " {
			m.tabActive = false
		}

		var cmd tea.Cmd

		m.historyIdx = m.history.Len()
		m.input, cmd = m.input.Update(msg)
		refreshMatches(&m, true)

		return m, cmd
	}

	// Other keys edit or move without auto-confirming a completion.
	var cmd tea.Cmd

	m.tabActive = false
	m.alt.active = false
	m.historyIdx = m.history.Len()
	m.input, cmd = m.input.Update(msg)
	refreshMatches(&m, false)

	return m, cmd
}

// cycle selects the next (step 1) or previous (step -1) candidate. A sole
// candidate is completed and confirmed immediately.
func (m model) cycle(step int) model {
	n := len(m.matches)
	if n == 0 {
		return m
	}

	if n == 1 {
		replaceCurrentWord(&m, m.matches[0].Str)
		m.tabActive = false
		m.suggIdx = -1
		m.matches = nil

		return m
	}

	if m.tabActive {
		m.suggIdx = (m.suggIdx + step + n) % n
	} else {
		m.tabActive = true
		m.preTabText = m.input.Value()
		m.preTabCursor = m.input.Position()

		m.suggIdx = 0
		if step < 0 {
			m.suggIdx = n - 1
		}
	}

	replaceCurrentWord(&m, m.matches[m.suggIdx].Str)

	return m
}

// replaceCurrentWord replaces the current word with replacement and moves
// the cursor after it.
func replaceCurrentWord(m *model, replacement string) {
	input := m.input.Value()
	cursor := m.wordStart + len(replacement)

	m.input.SetValue(input[:m.wordStart] + replacement + input[m.wordEnd:])
	m.input.SetCursor(cursor)

	m.wordEnd = cursor
}

// refreshMatches recomputes the matches for the current input. With
// autoConfirm, a sole candidate equal to the typed word is accepted. It is
// false for deletions and cursor movement so that editing never completes
// unexpectedly.
func refreshMatches(m *model, autoConfirm bool) {
	m.matches, m.candidates, m.wordStart, m.wordEnd = m.computeMatches()

	if !m.tabActive {
		m.suggIdx = -1
	}

	if !autoConfirm || len(m.matches) != 1 {
		return
	}

	if candidate := m.matches[0].Str; m.input.Value()[m.wordStart:m.wordEnd] == candidate {
		replaceCurrentWord(m, candidate)
		m.tabActive = false
		m.suggIdx = -1
		m.matches = nil
	}
}

func (m model) executeInput() (model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	if input == "" {
		return m, nil
	}

	m.saved = [2]struct {
		text   string
		cursor int
	}{}
	m.input.SetValue("")

	if err := m.history.Add(input, m.mode); err != nil {
		m.logger.DebugContext(m.ctxFunc(), "history write", slog.Any("error", err))
	}

	m.historyIdx = m.history.Len()

	if m.mode == modeCtrl {
		return m.executeCommand(input)
	}

	ctx := m.ctxFunc()

	m.logger.TraceContext(ctx, "repl eval", slog.String("input", input))

	out, err := m.session.Eval(ctx, input)
	if err != nil {
		m.logger.TraceContext(ctx, "repl eval failed", slog.Any("error", err))

		return m, tea.Sequence(
			echo(modeEval, input),
			tea.Println(errorStyle.Render("error: "+err.Error())),
		)
	}

	return m, tea.Sequence(echo(modeEval, input), tea.Println(resultStyle.Render(out)))
}

func (m model) executeCommand(input string) (model, tea.Cmd) {
	name, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	m.logger.TraceContext(m.ctxFunc(), "repl command",
		slog.String("command", name),
		slog.String("args", rest),
	)

	fail := func(err error) (model, tea.Cmd) {
		return m, tea.Sequence(
			echo(modeCtrl, input),
			tea.Println(errorStyle.Render("error: "+err.Error())),
		)
	}

	switch name {
	case "q", "quit", "exit":
		m.quitting = true

		return m, tea.Sequence(echo(modeCtrl, input), tea.Quit)

	case "h", "help":
		return m, tea.Sequence(echo(modeCtrl, input), tea.Println(helpMessage))

	case "l", "list":
		return m, tea.Sequence(echo(modeCtrl, input), tea.Println(m.listVars()))

	case "let":
		key, src, ok := strings.Cut(rest, " ")
		if !ok || strings.TrimSpace(src) == "" {
			return fail(ErrLetSyntax)
		}

		if err := m.session.Let(m.ctxFunc(), key, src); err != nil {
			return fail(err)
		}

		return m, echo(modeCtrl, input)

	case "unset":
		if rest == "" || strings.Contains(rest, " ") {
			return fail(ErrUnsetSyntax)
		}

		m.session.Vars.Delete(rest)

		return m, echo(modeCtrl, input)

	case "c", "clear":
		return m, tea.ClearScreen

	case "e", "edit":
		return m, tea.Sequence(echo(modeCtrl, input), m.edit())

	default:
		return m, tea.Println(
			errorStyle.Render("Unknown command: " + name + " (try 'help')"),
		)
	}
}

func (m model) edit() tea.Cmd {
	if m.session.Decode == nil {
		return tea.Println(hintStyle.Render("editing is not available"))
	}

	cmd := &editContextCommand{
		session: m.session,
		ctxFunc: m.ctxFunc,
		logger:  m.logger,
	}

	return tea.Exec(cmd, func(err error) tea.Msg {
		switch {
		case errors.Is(err, ErrEditDeclined):
			return editDeclinedMsg{}
		case err != nil:
			return editErrorMsg{err: err}
		case cmd.vars == nil:
			return editCancelledMsg{}
		default:
			return editContextMsg{vars: cmd.vars}
		}
	})
}

func (m model) listVars() string {
	if m.session.Vars.Len() == 0 {
		return hintStyle.Render("  (empty)")
	}

	var b strings.Builder

	for name, v := range m.session.Vars.All() {
		fmt.Fprintf(&b, "  %s %s\n", name, hintStyle.Render(m.session.preview(m.ctxFunc(), v, 60))) //nolint:mnd
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// show puts history entry i in the input.
func (m model) show(i int, entry HistoryEntry) model {
	m.historyIdx = i
	m.input.SetValue(entry.Line)
	m.input.SetCursor(len(entry.Line))
	refreshMatches(&m, false)

	return m
}

// seek returns the index of the nearest entry from historyIdx in direction
// step whose mode satisfies keep, or -1.
func (m model) seek(step int, keep func(inputMode) bool) (int, HistoryEntry) {
	for i := m.historyIdx + step; i >= 0 && i < m.history.Len(); i += step {
		if entry, err := m.history.GetEntry(i); err == nil && keep(entry.Mode) {
			return i, entry
		}
	}

	return -1, HistoryEntry{}
}

// historyStep moves through the history of both modes, switching mode to
// match the entry. Stepping past the newest entry clears the input.
func (m model) historyStep(step int) model {
	i, entry := m.seek(step, func(inputMode) bool { return true })
	if i < 0 {
		if step > 0 {
			m.historyIdx = m.history.Len()
			m.input.SetValue("")
			refreshMatches(&m, false)
		}

		return m
	}

	if entry.Mode != m.mode {
		m = m.switchToMode(entry.Mode)
	}

	return m.show(i, entry)
}

// historyInMode moves through the history of the current mode only.
func (m model) historyInMode(step int) model {
	mode := m.mode

	i, entry := m.seek(step, func(md inputMode) bool { return md == mode })
	if i >= 0 {
		return m.show(i, entry)
	}

	if step > 0 && m.historyIdx < m.history.Len() {
		m.historyIdx = m.history.Len()
		m.input.SetValue("")
		refreshMatches(&m, false)
	}

	return m
}

// altHistory browses command history from either mode. Running off either
// end restores the mode and input from before browsing began.
func (m model) altHistory(step int) model {
	if !m.alt.active {
		m.alt = altNav{
			mode:   m.mode,
			text:   m.input.Value(),
			cursor: m.input.Position(),
			active: true,
		}

		if m.mode != modeCtrl {
			m = m.switchToMode(modeCtrl)
		}
	}

	i, entry := m.seek(step, func(md inputMode) bool { return md == modeCtrl })
	if i >= 0 {
		return m.show(i, entry)
	}

	m.alt.active = false

	if m.alt.mode != m.mode {
		m = m.switchToMode(m.alt.mode)
	}

	m.input.SetValue(m.alt.text)
	m.input.SetCursor(m.alt.cursor)
	m.historyIdx = m.history.Len()
	refreshMatches(&m, false)

	return m
}

// switchToMode changes mode, keeping the input of each mode separately.
func (m model) switchToMode(mode inputMode) model {
	m.saved[m.mode].text = m.input.Value()
	m.saved[m.mode].cursor = m.input.Position()

	m.mode = mode

	if mode == modeEval {
		m.input.Prompt = promptStyle.Render(evalPrompt)
	} else {
		m.input.Prompt = ctrlPromptStyle.Render(ctrlPrompt)
	}

	m.input.SetValue(m.saved[mode].text)
	m.input.SetCursor(m.saved[mode].cursor)
	refreshMatches(&m, false)

	return m
}
