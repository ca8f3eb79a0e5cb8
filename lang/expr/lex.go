package expr

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/ardnew/twine/pkg"
)

type tokenKind uint8

const (
	tokEOF      tokenKind = iota // end of input
	tokNumber                    // number
	tokString                    // string
	tokName                      // name
	tokLiteral                   // keyword literal
	tokOperator                  // operator
	tokPunct                     // punctuation
)

type token struct {
	kind tokenKind
	text string // operator symbol, punctuation, name, or raw literal
	val  any    // decoded literal value
	pos  int
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

var (
	reNumber = regexp.MustCompile(`^\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`)
	reName   = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*`)
	reBitOp  = regexp.MustCompile(`^b-(?:and|xor|or)\b`)
	reSpace  = regexp.MustCompile(`^\s+`)
	// Two-word operators and their single-space canonical form.
	reWordPair = map[string]*regexp.Regexp{
		"not":    regexp.MustCompile(`^not\s+in\b`),
		"starts": regexp.MustCompile(`^starts\s+with\b`),
		"ends":   regexp.MustCompile(`^ends\s+with\b`),
		"is":     regexp.MustCompile(`^is\s+not\b`),
	}
)

const punctuation = "()[]{},.|=:?"

// keywords maps literal keywords to their values.
var keywords = map[string]any{
	"true":  true,
	"false": false,
	"null":  nil,
	"none":  nil,
}

// lex splits src into expression tokens.
func lex(src string) ([]token, error) {
	var toks []token

	for pos := 0; pos < len(src); {
		rest := src[pos:]

		if ws := reSpace.FindString(rest); ws != "" {
			pos += len(ws)

			continue
		}

		// A name following '.' is always an attribute, never a keyword.
		afterDot := len(toks) > 0 && toks[len(toks)-1].is(tokPunct, ".")

		t, n, err := scan(rest, afterDot)
		if err != nil {
			return nil, err.With(slog.Int("offset", pos), slog.String("source", src))
		}

		t.pos = pos
		toks = append(toks, t)
		pos += n
	}

	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

//nolint:cyclop,funlen
func scan(rest string, afterDot bool) (token, int, *pkg.Error) {
	c := rest[0]

	switch {
	case c >= '0' && c <= '9':
		lit := reNumber.FindString(rest)
		if !strings.ContainsAny(lit, ".eE") {
			if i, err := strconv.Atoi(lit); err == nil {
				return token{kind: tokNumber, text: lit, val: i}, len(lit), nil
			}
		}

		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return token{}, 0, ErrSyntax.Wrap(err)
		}

		return token{kind: tokNumber, text: lit, val: f}, len(lit), nil

	case c == '"' || c == '\'':
		s, n, ok := unquote(rest)
		if !ok {
			return token{}, 0, ErrSyntax.With(slog.String("reason", "unterminated string"))
		}

		return token{kind: tokString, text: rest[:n], val: s}, n, nil

	case !afterDot && reBitOp.MatchString(rest):
		sym := reBitOp.FindString(rest)

		return token{kind: tokOperator, text: sym}, len(sym), nil

	case reName.MatchString(rest):
		name := reName.FindString(rest)
		if afterDot {
			return token{kind: tokName, text: name}, len(name), nil
		}

		if re, ok := reWordPair[name]; ok {
			if m := re.FindString(rest); m != "" {
				return token{kind: tokOperator, text: strings.Join(strings.Fields(m), " ")}, len(m), nil
			}
		}

		if v, ok := keywords[strings.ToLower(name)]; ok {
			return token{kind: tokLiteral, text: name, val: v}, len(name), nil
		}

		if op, ok := operators[name]; ok && op.Arity != Variadic {
			return token{kind: tokOperator, text: name}, len(name), nil
		}

		if name == "is" {
			return token{kind: tokOperator, text: name}, len(name), nil
		}

		return token{kind: tokName, text: name}, len(name), nil
	}

	for _, sym := range symbolOperators {
		if sym == "," || sym == ":" || sym == "?" {
			continue // punctuation below
		}

		if strings.HasPrefix(rest, sym) {
			return token{kind: tokOperator, text: sym}, len(sym), nil
		}
	}

	if strings.IndexByte(punctuation, c) >= 0 {
		return token{kind: tokPunct, text: string(c)}, 1, nil
	}

	return token{}, 0, ErrSyntax.With(slog.String("unexpected", string(c)))
}

// unquote decodes a single- or double-quoted string literal at the start of
// s and returns its value and encoded length.
func unquote(s string) (string, int, bool) {
	quote := s[0]

	var b strings.Builder

	for i := 1; i < len(s); i++ {
		switch c := s[i]; c {
		case quote:
			return b.String(), i + 1, true

		case '\\':
			if i+1 >= len(s) {
				return "", 0, false
			}

			i++

			switch e := s[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '0':
				b.WriteByte(0)
			default:
				b.WriteByte(e)
			}

		default:
			b.WriteByte(c)
		}
	}

	return "", 0, false
}
