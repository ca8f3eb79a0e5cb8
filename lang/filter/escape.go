package filter

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf16"
)

// Escaper makes text safe for an output context named by strategy.
type Escaper func(strategy, s string) (string, error)

// Strategies returns the names of the escape strategies [Escape] supports.
func Strategies() []string {
	return []string{"css", "html", "html_attr", "js", "url"}
}

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// Escape escapes s for the output context named by strategy: one of "html",
// "js", "css", "url" or "html_attr".
func Escape(strategy, s string) (string, error) {
	switch strategy {
	case "html":
		return htmlReplacer.Replace(s), nil
	case "js":
		return escapeJS(s), nil
	case "css":
		return escapeCSS(s), nil
	case "url":
		return encodeURIComponent(s), nil
	case "html_attr":
		return escapeHTMLAttr(s), nil
	default:
		return "", ErrUnknownStrategy.With(slog.String("strategy", strategy))
	}
}

func isAlnum(c uint16) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// units returns the UTF-16 code units of s. Escapes are computed per unit so
// astral characters become surrogate pairs, as browsers decode them.
func units(s string) []uint16 { return utf16.Encode([]rune(s)) }

var jsShort = map[uint16]string{
	'\\': `\\`,
	'/':  `\/`,
	'\b': `\b`,
	'\f': `\f`,
	'\n': `\n`,
	'\r': `\r`,
	'\t': `\t`,
}

func escapeJS(s string) string {
	var b strings.Builder

	for _, c := range units(s) {
		switch {
		case isAlnum(c) || c == ',' || c == '.' || c == '_':
			b.WriteRune(rune(c))
		case jsShort[c] != "":
			b.WriteString(jsShort[c])
		default:
			fmt.Fprintf(&b, `\u%04X`, c)
		}
	}

	return b.String()
}

func escapeCSS(s string) string {
	var b strings.Builder

	for _, c := range units(s) {
		if isAlnum(c) {
			b.WriteRune(rune(c))
		} else {
			fmt.Fprintf(&b, `\%X `, c)
		}
	}

	return b.String()
}

func escapeHTMLAttr(s string) string {
	var b strings.Builder

	for _, c := range units(s) {
		switch {
		case isAlnum(c) || c == ',' || c == '.' || c == '-' || c == '_':
			b.WriteRune(rune(c))
		case c == '&':
			b.WriteString("&amp;")
		case c == '<':
			b.WriteString("&lt;")
		case c == '>':
			b.WriteString("&gt;")
		case c == '"':
			b.WriteString("&quot;")
		case c <= 0x1f && c != '\t' && c != '\n' && c != '\r':
			b.WriteString("&#xFFFD;")
		case c < 0x80:
			fmt.Fprintf(&b, "&#x%02X;", c)
		default:
			fmt.Fprintf(&b, "&#x%04X;", c)
		}
	}

	return b.String()
}

// encodeURIComponent percent-encodes everything except the unreserved marks
// A-Z a-z 0-9 - _ . ! ~ * ( ), then encodes the apostrophe as well.
func encodeURIComponent(s string) string {
	e := url.QueryEscape(s)
	e = strings.ReplaceAll(e, "+", "%20")

	r := strings.NewReplacer(
		"%21", "!",
		"%28", "(",
		"%29", ")",
		"%2A", "*",
	)

	return r.Replace(e)
}
