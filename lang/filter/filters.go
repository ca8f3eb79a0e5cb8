package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/goccy/go-yaml"
	"github.com/yuin/goldmark"

	"github.com/ardnew/twine/lang/value"
)

func filters() map[string]Filter {
	return map[string]Filter{
		"abs":              abs,
		"batch":            batch,
		"capitalize":       stringFilter(capitalize),
		"default":          defaultFilter,
		"e":                escape,
		"escape":           escape,
		"first":            first,
		"join":             join,
		"json_encode":      jsonEncode,
		"keys":             keys,
		"last":             last,
		"length":           length,
		"lower":            stringFilter(strings.ToLower),
		"markdown_to_html": markdownToHTML,
		"merge":            merge,
		"nl2br":            nl2br,
		"number_format":    numberFormat,
		"raw":              raw,
		"replace":          replace,
		"reverse":          reverse,
		"round":            round,
		"slice":            slice,
		"sort":             sortFilter,
		"spaceless":        spaceless,
		"split":            split,
		"striptags":        striptags,
		"title":            stringFilter(title),
		"trim":             trim,
		"upper":            stringFilter(strings.ToUpper),
		"url_encode":       urlEncode,
		"yaml_encode":      yamlEncode,
	}
}

// text returns v as a string when it is a string or markup.
func text(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case value.Markup:
		return string(x), true
	}

	return "", false
}

// stringFilter applies fn to string input and passes anything else through.
func stringFilter(fn func(string) string) Filter {
	return func(_ context.Context, input any, _ []any) (any, error) {
		s, ok := text(input)
		if !ok {
			return input, nil
		}

		return fn(s), nil
	}
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}

	return string(unicode.ToUpper(r)) + strings.ToLower(s[n:])
}

var reTitleWord = regexp.MustCompile(`(^|\s)[a-z]`)

func title(s string) string {
	return reTitleWord.ReplaceAllStringFunc(strings.ToLower(s), strings.ToUpper)
}

const whitespace = " \n\r\t\f\v\u00a0\u2000\u2001\u2002\u2003\u2004\u2005" +
	"\u2006\u2007\u2008\u2009\u200a\u200b\u2028\u2029\u3000"

func trim(_ context.Context, input any, args []any) (any, error) {
	if value.IsNull(input) {
		return value.Undef, nil
	}

	cut := whitespace
	if c := value.Arg(args, 0); value.Truthy(c) {
		cut = value.ToString(c)
	}

	return strings.Trim(value.ToString(input), cut), nil
}

func length(_ context.Context, input any, _ []any) (any, error) {
	switch input.(type) {
	case string, value.Markup, []any, *value.Map:
		n, _ := value.Len(input)

		return n, nil
	}

	if seq, ok := value.AsSequence(input); ok {
		return len(seq), nil
	}

	return 0, nil
}

func defaultFilter(_ context.Context, input any, args []any) (any, error) {
	if len(args) > 1 {
		return nil, ErrArgument.With(slog.String("reason", "default expects one argument"))
	}

	if value.IsNull(input) || input == "" {
		if len(args) == 0 {
			return "", nil
		}

		return args[0], nil
	}

	return input, nil
}

func join(_ context.Context, input any, args []any) (any, error) {
	_, vals, ok := value.Entries(input)
	if !ok {
		if value.IsNull(input) {
			return value.Undef, nil
		}

		return value.ToString(input), nil
	}

	sep := ""
	if s := value.Arg(args, 0); value.Truthy(s) {
		sep = value.ToString(s)
	}

	part := make([]string, len(vals))
	for i, v := range vals {
		part[i] = value.ToString(v)
	}

	return strings.Join(part, sep), nil
}

func keys(_ context.Context, input any, _ []any) (any, error) {
	ks, _, ok := value.Entries(input)
	if !ok {
		return value.Undef, nil
	}

	return ks, nil
}

func first(_ context.Context, input any, _ []any) (any, error) {
	if s, ok := text(input); ok {
		r, n := utf8.DecodeRuneInString(s)
		if n == 0 {
			return "", nil
		}

		return string(r), nil
	}

	if _, vals, ok := value.Entries(input); ok && len(vals) > 0 {
		return vals[0], nil
	}

	return value.Undef, nil
}

func last(_ context.Context, input any, _ []any) (any, error) {
	if f, ok := value.AsNumber(input); ok {
		input = value.FormatNumber(f)
	}

	if s, ok := text(input); ok {
		r, n := utf8.DecodeLastRuneInString(s)
		if n == 0 {
			return value.Undef, nil
		}

		return string(r), nil
	}

	if _, vals, ok := value.Entries(input); ok && len(vals) > 0 {
		return vals[len(vals)-1], nil
	}

	return value.Undef, nil
}

func reverse(_ context.Context, input any, _ []any) (any, error) {
	if s, ok := text(input); ok {
		r := []rune(s)
		slices.Reverse(r)

		return string(r), nil
	}

	if m, ok := input.(*value.Map); ok {
		ks := m.Keys()
		out := value.NewMap(len(ks))

		for i := len(ks) - 1; i >= 0; i-- {
			out.Set(ks[i], m.Lookup(ks[i]))
		}

		return out, nil
	}

	if seq, ok := value.AsSequence(input); ok {
		out := slices.Clone(seq)
		slices.Reverse(out)

		return out, nil
	}

	return value.Undef, nil
}

func order(a, b any) int {
	if c, ok := value.Compare(a, b); ok {
		return c
	}

	return strings.Compare(value.ToString(a), value.ToString(b))
}

func sortFilter(_ context.Context, input any, _ []any) (any, error) {
	if m, ok := input.(*value.Map); ok {
		ks := m.Keys()
		slices.SortStableFunc(ks, func(a, b string) int {
			return order(m.Lookup(a), m.Lookup(b))
		})

		out := value.NewMap(len(ks))
		for _, k := range ks {
			out.Set(k, m.Lookup(k))
		}

		return out, nil
	}

	if seq, ok := value.AsSequence(input); ok {
		out := slices.Clone(seq)
		slices.SortStableFunc(out, order)

		return out, nil
	}

	return value.Undef, nil
}

// merge concatenates sequences. When the input or any argument is a map, the
// result is a map in which sequence elements take the next free integer key.
func merge(_ context.Context, input any, args []any) (any, error) {
	if len(args) == 0 {
		return nil, ErrArgument.With(slog.String("reason", "merge expects at least one argument"))
	}

	all := append([]any{input}, args...)

	isMap := func(v any) bool {
		_, ok := v.(*value.Map)

		return ok
	}

	if !slices.ContainsFunc(all, isMap) {
		var out []any

		for _, v := range all {
			seq, ok := value.AsSequence(v)
			if !ok {
				return nil, ErrArgument.With(slog.String("type", value.TypeName(v)))
			}

			out = append(out, seq...)
		}

		return out, nil
	}

	out := value.NewMap(0)
	next := 0

	for _, v := range all {
		if m, ok := v.(*value.Map); ok {
			for k, e := range m.All() {
				out.Set(k, e)

				if i, err := strconv.Atoi(k); err == nil && i >= next {
					next = i + 1
				}
			}

			continue
		}

		seq, ok := value.AsSequence(v)
		if !ok {
			return nil, ErrArgument.With(slog.String("type", value.TypeName(v)))
		}

		for _, e := range seq {
			out.Set(strconv.Itoa(next), e)
			next++
		}
	}

	return out, nil
}

func replace(_ context.Context, input any, args []any) (any, error) {
	if value.IsNull(input) {
		return value.Undef, nil
	}

	s := value.ToString(input)

	pairs, ok := value.Normalize(value.Arg(args, 0)).(*value.Map)
	if !ok {
		return nil, ErrArgument.With(slog.String("reason", "replace expects a map of replacements"))
	}

	for from, to := range pairs.All() {
		s = strings.ReplaceAll(s, from, value.ToString(to))
	}

	return s, nil
}

func split(_ context.Context, input any, args []any) (any, error) {
	if value.IsNull(input) {
		return value.Undef, nil
	}

	if len(args) == 0 || len(args) > 2 {
		return nil, ErrArgument.With(slog.String("reason", "split expects 1 or 2 arguments"))
	}

	s, ok := text(input)
	if !ok {
		return nil, ErrArgument.With(slog.String("reason", "split expects a string"))
	}

	delim := value.ToString(args[0])
	parts := strings.Split(s, delim)

	if len(args) == 1 || value.IsNull(args[1]) {
		return strings2any(parts), nil
	}

	limit := int(value.ToInt(args[1]))

	switch {
	case limit < 0:
		return strings2any(parts[:max(0, len(parts)+limit)]), nil

	case delim == "":
		// Chunks of limit characters.
		size := max(limit, 1)
		out := []any{}

		for chunk := range slices.Chunk(parts, size) {
			out = append(out, strings.Join(chunk, ""))
		}

		return out, nil

	case limit >= len(parts):
		return strings2any(parts), nil

	default:
		head := strings2any(parts[:max(limit-1, 0)])
		tail := strings.Join(parts[max(limit-1, 0):], delim)

		return append(head, tail), nil
	}
}

func strings2any(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}

	return out
}

// slice returns length elements (or characters) starting at start. A
// negative start counts from the end; a negative length stops that many
// elements before the end.
func slice(_ context.Context, input any, args []any) (any, error) {
	if value.IsNull(input) {
		return value.Undef, nil
	}

	if len(args) == 0 {
		return nil, ErrArgument.With(slog.String("reason", "slice expects at least 1 argument"))
	}

	s, isText := text(input)
	runes := []rune(s)

	seq, isSeq := value.AsSequence(input)
	if !isText && !isSeq {
		return nil, ErrArgument.With(slog.String("reason", "slice expects a sequence or string"))
	}

	n := len(seq)
	if isText {
		n = len(runes)
	}

	lo := int(value.ToInt(args[0]))
	if lo < 0 {
		lo = max(n+lo, 0)
	}

	lo = min(lo, n)
	hi := n

	if count := value.Arg(args, 1); !value.IsNull(count) {
		c := int(value.ToInt(count))
		if c < 0 {
			hi = n + c
		} else {
			hi = min(lo+c, n)
		}
	}

	hi = max(hi, lo)

	if isText {
		return string(runes[lo:hi]), nil
	}

	return slices.Clone(seq[lo:hi]), nil
}

func abs(_ context.Context, input any, _ []any) (any, error) {
	if value.IsNull(input) {
		return value.Undef, nil
	}

	switch x := input.(type) {
	case int:
		if x < 0 {
			return -x, nil
		}

		return x, nil
	case int64:
		if x < 0 {
			return -x, nil
		}

		return x, nil
	}

	return math.Abs(value.ToNumber(input)), nil
}

// round rounds to precision decimal places using method "common" (half away
// from zero), "floor" or "ceil".
func round(_ context.Context, input any, args []any) (any, error) {
	precision := 0.0
	if p := value.Arg(args, 0); !value.IsNull(p) {
		if !value.IsNumber(p) {
			return nil, ErrArgument.With(slog.String("reason", "round expects precision to be a number"))
		}

		precision = value.ToNumber(p)
	}

	method := "common"
	if m := value.Arg(args, 1); !value.IsNull(m) {
		method = value.ToString(m)
	}

	scale := math.Pow(10, precision)
	f := value.ToNumber(input) * scale

	switch method {
	case "common":
		f = math.Round(f)
	case "floor":
		f = math.Floor(f)
	case "ceil":
		f = math.Ceil(f)
	default:
		return nil, ErrArgument.With(slog.String("reason", "round expects method to be 'floor', 'ceil', or 'common'"))
	}

	return f / scale, nil
}

func numberFormat(_ context.Context, input any, args []any) (any, error) {
	n := value.ToNumber(input)
	if math.IsNaN(n) || math.IsInf(n, 0) {
		n = 0
	}

	decimals := 0
	if d := value.Arg(args, 0); value.Truthy(d) {
		decimals = int(math.Abs(float64(value.ToInt(d))))
	}

	dec, sep := ".", ","
	if d := value.Arg(args, 1); !value.IsUndefined(d) {
		dec = value.ToString(d)
	}

	if s := value.Arg(args, 2); !value.IsUndefined(s) {
		sep = value.ToString(s)
	}

	scale := math.Pow(10, float64(decimals))
	r := math.Round(n*scale) / scale
	if r == 0 {
		r = 0 // drop the sign of negative zero
	}

	digits := strconv.FormatFloat(r, 'f', decimals, 64)

	whole, frac, _ := strings.Cut(digits, ".")

	sign := ""
	if strings.HasPrefix(whole, "-") {
		sign, whole = "-", whole[1:]
	}

	var groups []string
	for len(whole) > 3 {
		groups = append([]string{whole[len(whole)-3:]}, groups...)
		whole = whole[:len(whole)-3]
	}

	groups = append([]string{whole}, groups...)

	out := sign + strings.Join(groups, sep)
	if decimals > 0 {
		out += dec + frac
	}

	return out, nil
}

func jsonEncode(_ context.Context, input any, _ []any) (any, error) {
	var b bytes.Buffer
	if err := writeJSON(&b, input); err != nil {
		return nil, err
	}

	return b.String(), nil
}

// writeJSON encodes v compactly, keeping the key order of ordered maps.
func writeJSON(b *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil, value.Undefined:
		b.WriteString("null")

		return nil

	case value.Markup:
		v = string(x)

	case *value.Map:
		b.WriteByte('{')

		i := 0
		for k, e := range x.All() {
			if i > 0 {
				b.WriteByte(',')
			}

			i++

			if err := writeJSON(b, k); err != nil {
				return err
			}

			b.WriteByte(':')

			if err := writeJSON(b, e); err != nil {
				return err
			}
		}

		b.WriteByte('}')

		return nil
	}

	if f, ok := value.AsNumber(v); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		b.WriteString("null")

		return nil
	}

	if seq, ok := value.AsSequence(v); ok {
		b.WriteByte('[')

		for i, e := range seq {
			if i > 0 {
				b.WriteByte(',')
			}

			if err := writeJSON(b, e); err != nil {
				return err
			}
		}

		b.WriteByte(']')

		return nil
	}

	if m, ok := value.Normalize(v).(*value.Map); ok {
		return writeJSON(b, m)
	}

	enc := json.NewEncoder(b)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return ErrArgument.Wrap(err).With(slog.String("type", value.TypeName(v)))
	}

	b.Truncate(b.Len() - 1) // Encode appends a newline

	return nil
}

// yamlValue converts v into values go-yaml encodes with the key order of
// ordered maps intact.
func yamlValue(v any) any {
	switch x := value.Normalize(v).(type) {
	case value.Undefined:
		return nil
	case value.Markup:
		return string(x)
	case *value.Map:
		ms := make(yaml.MapSlice, 0, x.Len())
		for k, e := range x.All() {
			ms = append(ms, yaml.MapItem{Key: k, Value: yamlValue(e)})
		}

		return ms
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = yamlValue(e)
		}

		return out
	default:
		return x
	}
}

func yamlEncode(_ context.Context, input any, args []any) (any, error) {
	opts := []yaml.EncodeOption{yaml.Indent(2)} //nolint:mnd
	if value.Truthy(value.Arg(args, 0)) {
		opts = append(opts, yaml.Flow(true))
	}

	out, err := yaml.MarshalWithOptions(yamlValue(input), opts...)
	if err != nil {
		return nil, ErrArgument.Wrap(err).With(slog.String("type", value.TypeName(input)))
	}

	return strings.TrimSuffix(string(out), "\n"), nil
}

func urlEncode(_ context.Context, input any, _ []any) (any, error) {
	if value.IsNull(input) {
		return value.Undef, nil
	}

	m, ok := value.Normalize(input).(*value.Map)
	if !ok {
		return encodeURIComponent(value.ToString(input)), nil
	}

	return strings.Join(query(m, ""), "&amp;"), nil
}

func query(m *value.Map, prefix string) []string {
	var out []string

	for k, v := range m.All() {
		if prefix != "" {
			k = prefix + "[" + k + "]"
		}

		switch x := value.Normalize(v).(type) {
		case *value.Map:
			out = append(out, query(x, k)...)
		case []any:
			nested := value.NewMap(len(x))
			for i, e := range x {
				nested.Set(strconv.Itoa(i), e)
			}

			out = append(out, query(nested, k)...)
		default:
			out = append(out, encodeURIComponent(k)+"="+encodeURIComponent(value.ToString(x)))
		}
	}

	return out
}

// escape returns input escaped for the strategy named by its argument
// (default "html"). Markup is returned unchanged.
func escape(_ context.Context, input any, args []any) (any, error) {
	if m, ok := input.(value.Markup); ok {
		return m, nil
	}

	if value.IsNull(input) || input == "" {
		return value.Markup(""), nil
	}

	strategy := "html"
	if s := value.Arg(args, 0); !value.IsNull(s) && s != true {
		strategy = value.ToString(s)
	}

	out, err := Escape(strategy, value.ToString(input))
	if err != nil {
		return nil, err
	}

	return value.Markup(out), nil
}

func raw(_ context.Context, input any, _ []any) (any, error) {
	return value.Markup(value.ToString(input)), nil
}

var reNewline = regexp.MustCompile(`\r\n|\r|\n`)

func nl2br(_ context.Context, input any, _ []any) (any, error) {
	s, ok := input.(value.Markup)
	if !ok {
		s = value.Markup(htmlReplacer.Replace(value.ToString(input)))
	}

	return value.Markup(reNewline.ReplaceAllString(string(s), "<br />\n")), nil
}

var (
	reComment = regexp.MustCompile(`(?s)<!--.*?-->`)
	reTag     = regexp.MustCompile(`(?i)</?([a-z][a-z0-9]*)\b[^>]*>`)
	reAllowed = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9]*)>`)
)

// striptags removes HTML comments and tags except those listed in the
// argument, e.g. "<b><i>".
func striptags(_ context.Context, input any, args []any) (any, error) {
	if value.IsNull(input) {
		return value.Undef, nil
	}

	allowed := map[string]bool{}
	for _, m := range reAllowed.FindAllStringSubmatch(value.ToString(value.Arg(args, 0)), -1) {
		allowed[strings.ToLower(m[1])] = true
	}

	s := reComment.ReplaceAllString(value.ToString(input), "")

	return reTag.ReplaceAllStringFunc(s, func(t string) string {
		if allowed[strings.ToLower(reTag.FindStringSubmatch(t)[1])] {
			return t
		}

		return ""
	}), nil
}

var reBetweenTags = regexp.MustCompile(`>\s+<`)

// Spaceless removes whitespace between HTML tags and trims the result.
func Spaceless(s string) string {
	return strings.TrimSpace(reBetweenTags.ReplaceAllString(s, "><"))
}

func spaceless(_ context.Context, input any, _ []any) (any, error) {
	out := Spaceless(value.ToString(input))
	if _, ok := input.(value.Markup); ok {
		return value.Markup(out), nil
	}

	return out, nil
}

func batch(_ context.Context, input any, args []any) (any, error) {
	seq, ok := value.AsSequence(input)
	if !ok {
		return nil, ErrArgument.With(slog.String("reason", "batch expects a sequence"))
	}

	if !value.IsNumber(value.Arg(args, 0)) {
		return nil, ErrArgument.With(slog.String("reason", "batch expects size to be a number"))
	}

	size := int(math.Ceil(value.ToNumber(args[0])))
	if size < 1 {
		return nil, ErrArgument.With(slog.String("reason", "batch expects a positive size"))
	}

	var out []any

	for chunk := range slices.Chunk(seq, size) {
		out = append(out, slices.Clone(chunk))
	}

	fill := value.Arg(args, 1)
	if len(out) > 0 && value.Truthy(fill) {
		tail := out[len(out)-1].([]any) //nolint:forcetypeassert
		for len(tail) < size {
			tail = append(tail, fill)
		}

		out[len(out)-1] = tail
	}

	if out == nil {
		out = []any{}
	}

	return out, nil
}

func markdownToHTML(_ context.Context, input any, _ []any) (any, error) {
	s, ok := text(input)
	if !ok {
		return value.Undef, nil
	}

	var b bytes.Buffer
	if err := goldmark.Convert([]byte(strings.TrimSpace(s)), &b); err != nil {
		return nil, ErrArgument.Wrap(err)
	}

	if b.Len() == 0 {
		return value.Undef, nil
	}

	return value.Markup(b.String()), nil
}
