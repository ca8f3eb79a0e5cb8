package repl

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/ardnew/twine/lang/value"
)

// ctrlCommands are the available control-mode commands.
var ctrlCommands = []string{"help", "list", "let", "unset", "edit", "clear", "quit"}

// keywords are the word operators and literals of the expression syntax.
var keywords = []string{
	"and", "b-and", "b-or", "b-xor", "ends with", "false", "in", "is",
	"matches", "none", "not", "null", "or", "starts with", "true",
}

// isWordBoundary reports whether r delimits words for completion: space,
// the attribute dot, and the operator and punctuation characters of the
// expression syntax.
func isWordBoundary(r rune) bool {
	switch r {
	case '.', ' ', '\t',
		'(', ')', '[', ']', '{', '}',
		'+', '-', '*', '/', '%', '~',
		'<', '>', '=', '!', '?', ':',
		'&', '|', ',', ';', '"', '\'':
		return true
	}

	return false
}

// wordBounds returns the word at cursor and its byte offsets in input. The
// word is empty when the cursor sits on a boundary.
func wordBounds(input string, cursor int) (word string, start, end int) {
	cursor = min(cursor, len(input))

	start = cursor
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if isWordBoundary(r) {
			break
		}

		start -= size
	}

	end = cursor
	for end < len(input) {
		r, size := utf8.DecodeRuneInString(input[end:])
		if isWordBoundary(r) {
			break
		}

		end += size
	}

	return input[start:end], start, end
}

// parentPath returns the attribute chain leading up to the word starting
// at wordStart. For "x + user.address.ci" and the word "ci" it returns
// "user.address". Top-level words have no parent.
func parentPath(input string, wordStart int) string {
	prefix := input[:wordStart]
	if !strings.HasSuffix(prefix, ".") {
		return ""
	}

	prefix = strings.TrimRight(prefix, ".")

	pos := len(prefix)
	for pos > 0 {
		r, size := utf8.DecodeLastRuneInString(prefix[:pos])
		if r != '.' && isWordBoundary(r) {
			break
		}

		pos -= size
	}

	return strings.TrimSpace(prefix[pos:])
}

// completion classifies the word being completed.
type completion int

const (
	completeName   completion = iota // variable, function or keyword
	completeFilter                   // after '|'
	completeTest                     // after 'is' or 'is not'
	completeMember                   // after '.'
)

// classify decides what the word starting at wordStart completes.
func classify(input string, wordStart int) completion {
	if parentPath(input, wordStart) != "" {
		return completeMember
	}

	before := strings.TrimRight(input[:wordStart], " \t")

	if strings.HasSuffix(before, "|") && !strings.HasSuffix(before, "||") {
		return completeFilter
	}

	fields := strings.Fields(before)
	if n := len(fields); n > 0 {
		if fields[n-1] == "is" || (fields[n-1] == "not" && n > 1 && fields[n-2] == "is") {
			return completeTest
		}
	}

	return completeName
}

// candidates returns the completions for the word starting at wordStart.
func (s Session) candidates(input string, wordStart int) []string {
	if s.Env == nil {
		return nil
	}

	funcs := s.Env.Filters()

	switch classify(input, wordStart) {
	case completeFilter:
		return funcs.FilterNames()

	case completeTest:
		return funcs.TestNames()

	case completeMember:
		return memberNames(s.Vars, parentPath(input, wordStart))

	default:
		var names []string
		if s.Vars != nil {
			names = append(names, s.Vars.Keys()...)
		}

		names = append(names, funcs.FunctionNames()...)
		names = append(names, "block", "parent", "_self")

		return append(names, keywords...)
	}
}

// memberNames returns the keys of the mapping reached by following path
// from vars, or nil when path does not lead to a mapping.
func memberNames(vars *value.Map, path string) []string {
	if vars == nil {
		return nil
	}

	var cur any = vars

	for seg := range strings.SplitSeq(path, ".") {
		next, ok := value.Attribute(cur, seg)
		if !ok {
			return nil
		}

		cur = next
	}

	m, ok := value.Normalize(cur).(*value.Map)
	if !ok {
		return nil
	}

	return m.Keys()
}

// computeMatches calculates the fuzzy matches for the word at the cursor,
// ranked best first. An empty word matches nothing, except after a dot or
// a filter pipe where every candidate is offered unfiltered.
func (m model) computeMatches() (
	matches fuzzy.Matches,
	candidates []string,
	wordStart, wordEnd int,
) {
	input := m.input.Value()

	word, wordStart, wordEnd := wordBounds(input, m.input.Position())

	if m.mode == modeCtrl {
		candidates = ctrlCandidates(input, wordStart, m.session)
	} else {
		candidates = m.session.candidates(input, wordStart)
	}

	if len(candidates) == 0 {
		return nil, nil, wordStart, wordEnd
	}

	if word == "" {
		if m.mode == modeCtrl || classify(input, wordStart) == completeName {
			return nil, nil, wordStart, wordEnd
		}

		matches = make(fuzzy.Matches, len(candidates))
		for i, c := range candidates {
			matches[i] = fuzzy.Match{Str: c, Index: i}
		}

		return matches, candidates, wordStart, wordEnd
	}

	return fuzzy.Find(word, candidates), candidates, wordStart, wordEnd
}

// ctrlCandidates completes command names, and variable names as the first
// argument of let and unset.
func ctrlCandidates(input string, wordStart int, s Session) []string {
	fields := strings.Fields(input[:wordStart])

	switch {
	case len(fields) == 0:
		return ctrlCommands
	case len(fields) == 1 && slices.Contains([]string{"let", "unset"}, fields[0]):
		if s.Vars == nil {
			return nil
		}

		return s.Vars.Keys()
	default:
		return nil
	}
}

// renderCandidateBar builds the single-line completion bar, ellipsized to
// fit width. Matched characters are highlighted and the selected candidate
// uses the selected style while tab-cycling.
func renderCandidateBar(
	matches fuzzy.Matches,
	suggIdx int,
	tabActive bool,
	width int,
	isFunction func(string) bool,
) string {
	if len(matches) == 0 || width <= 0 {
		return ""
	}

	const sep = "  "

	sepWidth := lipgloss.Width(sep)
	ellipsis := hintStyle.Render("...")
	ellipsisWidth := lipgloss.Width(ellipsis)

	var b strings.Builder

	used := 0

	for i, match := range matches {
		rendered := renderCandidate(match, tabActive && i == suggIdx, isFunction)

		entryWidth := lipgloss.Width(rendered)
		if i > 0 {
			entryWidth += sepWidth
		}

		if i > 0 && used+entryWidth+ellipsisWidth > width {
			b.WriteString(sep)
			b.WriteString(ellipsis)

			break
		}

		if i > 0 {
			b.WriteString(sep)
		}

		b.WriteString(rendered)

		used += entryWidth
	}

	return b.String()
}

// renderCandidate renders one candidate with its matched characters
// highlighted. Functions get a "()" suffix that is not inserted on
// completion.
func renderCandidate(match fuzzy.Match, selected bool, isFunction func(string) bool) string {
	base, highlight := suggestionStyle, matchStyle
	if selected {
		base, highlight = selectedStyle, selectedMatchStyle
	}

	matched := make(map[int]bool, len(match.MatchedIndexes))
	for _, idx := range match.MatchedIndexes {
		matched[idx] = true
	}

	var b strings.Builder

	for i, r := range match.Str {
		if matched[i] {
			b.WriteString(highlight.Render(string(r)))
		} else {
			b.WriteString(base.Render(string(r)))
		}
	}

	if isFunction != nil && isFunction(match.Str) {
		b.WriteString(base.Render("()"))
	}

	return b.String()
}
