// Package lexer splits template source into raw text and the trimmed bodies
// of `{{ output }}` and `{% tag %}` delimiters. Comments `{# ... #}` are
// dropped. A '-' just inside a delimiter trims the whitespace on that side
// of the adjacent text. The bodies of `verbatim` and `raw` tags are emitted
// as text without interpretation.
package lexer

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/ardnew/twine/lang/tag"
	"github.com/ardnew/twine/pkg"
)

// ErrUnterminated is returned when a delimiter is never closed.
var ErrUnterminated = pkg.NewError("unterminated delimiter")

type delim struct {
	open, close string
	kind        tag.SegmentKind
	comment     bool
}

var delims = []delim{
	{open: "{{", close: "}}", kind: tag.SegmentOutput},
	{open: "{%", close: "%}", kind: tag.SegmentTag},
	{open: "{#", close: "#}", comment: true},
}

var (
	reVerbatim = regexp.MustCompile(`^(verbatim|raw)$`)
	reEndRaw   = map[string]*regexp.Regexp{
		"verbatim": regexp.MustCompile(`\{%(-?)\s*endverbatim\s*(-?)%\}`),
		"raw":      regexp.MustCompile(`\{%(-?)\s*endraw\s*(-?)%\}`),
	}
)

// Split splits src into segments in document order. Line numbers are
// 1-based and refer to the start of each segment.
//
//nolint:cyclop,funlen
func Split(src string) ([]tag.Segment, error) {
	var (
		segs      []tag.Segment
		trimNext  bool
		pos, line = 0, 1
	)

	emitText := func(text string, trimLeft, trimRight bool) {
		if trimLeft {
			text = strings.TrimLeftFunc(text, unicode.IsSpace)
		}

		if trimRight {
			text = strings.TrimRightFunc(text, unicode.IsSpace)
		}

		if text != "" {
			segs = append(segs, tag.Segment{Kind: tag.SegmentText, Value: text, Line: line})
		}
	}

	advance := func(n int) {
		line += strings.Count(src[pos:pos+n], "\n")
		pos += n
	}

	for pos < len(src) {
		at, d := nextDelim(src[pos:])
		if d == nil {
			emitText(src[pos:], trimNext, false)
			advance(len(src) - pos)

			break
		}

		inner := pos + at + len(d.open)
		trimPrev := strings.HasPrefix(src[inner:], "-")

		emitText(src[pos:pos+at], trimNext, trimPrev)
		advance(at)

		end := closeIndex(src[inner:], d)
		if end < 0 {
			return nil, ErrUnterminated.With(
				slog.String("delimiter", d.open),
				slog.Int("line", line),
			)
		}

		body := src[inner : inner+end]
		body = strings.TrimPrefix(body, "-")

		trimNext = strings.HasSuffix(body, "-")
		body = strings.TrimSpace(strings.TrimSuffix(body, "-"))

		start := line

		advance(len(d.open) + end + len(d.close))

		switch {
		case d.comment:
			continue

		case d.kind == tag.SegmentTag && reVerbatim.MatchString(body):
			loc := reEndRaw[body].FindStringSubmatchIndex(src[pos:])
			if loc == nil {
				return nil, ErrUnterminated.With(
					slog.String("delimiter", body),
					slog.Int("line", start),
				)
			}

			emitText(src[pos:pos+loc[0]], trimNext, loc[3] > loc[2])
			trimNext = loc[5] > loc[4]
			advance(loc[1])

			continue
		}

		segs = append(segs, tag.Segment{Kind: d.kind, Value: body, Line: start})
	}

	return segs, nil
}

// nextDelim returns the offset and kind of the earliest opening delimiter.
func nextDelim(s string) (int, *delim) {
	best, found := -1, (*delim)(nil)

	for i := range delims {
		if at := strings.Index(s, delims[i].open); at >= 0 && (best < 0 || at < best) {
			best, found = at, &delims[i]
		}
	}

	return best, found
}

// closeIndex finds the closing delimiter in s, skipping over quoted strings
// in output and tag bodies.
func closeIndex(s string, d *delim) int {
	if d.comment {
		return strings.Index(s, d.close)
	}

	var quote byte

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}

		case c == '"' || c == '\'':
			quote = c

		case strings.HasPrefix(s[i:], d.close):
			return i
		}
	}

	return -1
}
