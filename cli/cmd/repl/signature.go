package repl

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// signature names the parameters of a built-in function or filter. Filter
// parameters exclude the piped input.
type signature []string

// functionSignatures covers the built-in functions, including block and
// parent which the renderer resolves itself.
var functionSignatures = map[string]signature{
	"attribute": {"object", "name", "arguments"},
	"block":     {"name"},
	"cycle":     {"values", "position"},
	"dump":      {"...values"},
	"max":       {"...values"},
	"min":       {"...values"},
	"parent":    {},
	"range":     {"low", "high", "step"},
}

// filterSignatures covers the built-in filters that take arguments.
var filterSignatures = map[string]signature{
	"batch":         {"size", "fill"},
	"default":       {"value"},
	"e":             {"strategy"},
	"escape":        {"strategy"},
	"join":          {"glue", "and"},
	"merge":         {"other"},
	"number_format": {"decimals", "point", "thousands"},
	"replace":       {"pairs"},
	"round":         {"precision", "method"},
	"slice":         {"start", "length"},
	"split":         {"delimiter", "limit"},
	"trim":          {"chars", "side"},
	"yaml_encode":   {"flow"},
}

// Styles of the signature hint line.
var (
	signatureStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	signatureNameStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("6")).
				Bold(true)
	currentParamStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")).
				Bold(true)
)

// functionCall describes the call whose argument list holds the cursor.
type functionCall struct {
	name     string
	argIndex int  // 0-based argument under the cursor
	filter   bool // called as name(...) after a '|'
	inCall   bool
}

func isIdent(r rune) bool {
	return r == '_' || r == '.' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// detectFunctionCall finds the innermost unclosed call around cursor.
// Parentheses and commas inside string literals are not skipped.
func detectFunctionCall(input string, cursor int) functionCall {
	cursor = min(cursor, len(input))

	open, depth := -1, 0

	for i := cursor - 1; i >= 0 && open < 0; i-- {
		switch input[i] {
		case ')':
			depth++
		case '(':
			if depth == 0 {
				open = i
			}

			depth--
		}
	}

	if open < 0 {
		return functionCall{}
	}

	start := open
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if !isIdent(r) {
			break
		}

		start -= size
	}

	name := input[start:open]
	if name == "" {
		return functionCall{}
	}

	call := functionCall{name: name, inCall: true}
	call.filter = strings.HasSuffix(strings.TrimRight(input[:start], " \t"), "|")

	depth = 0

	for i := open + 1; i < cursor; i++ {
		switch input[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				call.argIndex++
			}
		}
	}

	return call
}

// getSignature returns the display signature and parameter names of call,
// or an empty signature when the callee is unknown. Macros are reached as
// attributes of an import alias and have no known signature.
func getSignature(call functionCall) (string, []string) {
	table := functionSignatures
	if call.filter {
		table = filterSignatures
	}

	params, ok := table[call.name]
	if !ok {
		return "", nil
	}

	return call.name + "(" + strings.Join(params, ", ") + ")", params
}

// renderSignatureHint renders signature with the parameter at argIdx
// highlighted. A variadic parameter stays highlighted for every argument
// from its position on.
func renderSignatureHint(signature string, params []string, argIdx int) string {
	if signature == "" {
		return ""
	}

	name, _, ok := strings.Cut(signature, "(")
	if !ok {
		return signatureStyle.Render(signature)
	}

	var b strings.Builder

	b.WriteString(signatureNameStyle.Render(name))
	b.WriteString(signatureStyle.Render("("))

	for i, param := range params {
		if i > 0 {
			b.WriteString(signatureStyle.Render(", "))
		}

		variadic := strings.HasPrefix(param, "...")

		if argIdx == i || (variadic && argIdx > i) {
			b.WriteString(currentParamStyle.Render(param))
		} else {
			b.WriteString(signatureStyle.Render(param))
		}
	}

	b.WriteString(signatureStyle.Render(")"))

	return b.String()
}
