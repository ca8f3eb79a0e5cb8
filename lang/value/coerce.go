package value

import (
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// numericPrefix matches the longest leading decimal literal of a string, the
// same prefix a lenient float parser would consume.
var numericPrefix = regexp.MustCompile(
	`^[+-]?(?:Infinity|\d+(?:\.\d*)?(?:[eE][+-]?\d+)?|\.\d+(?:[eE][+-]?\d+)?)`,
)

// Truthy reports the boolean interpretation of v. Null, undefined, false,
// zero, NaN, "", "0", and empty sequences and maps are false.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil, Undefined:
		return false
	case bool:
		return x
	case string:
		return x != "" && x != "0"
	case Markup:
		return x != "" && x != "0"
	case []any:
		return len(x) > 0
	case *Map:
		return x.Len() > 0
	}

	if f, ok := AsNumber(v); ok {
		return f != 0 && !math.IsNaN(f)
	}

	if n, ok := reflectLen(v); ok {
		return n > 0
	}

	return true
}

// AsNumber returns v as a float64 when v has a Go numeric type.
func AsNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}

	return 0, false
}

// IsNumber reports whether v has a Go numeric type.
func IsNumber(v any) bool {
	_, ok := AsNumber(v)

	return ok
}

// ToNumber coerces v to a float64. Numbers convert directly; strings are
// parsed by their longest numeric prefix; everything else is NaN.
func ToNumber(v any) float64 {
	if f, ok := AsNumber(v); ok {
		return f
	}

	var s string

	switch x := v.(type) {
	case string:
		s = x
	case Markup:
		s = string(x)
	default:
		return math.NaN()
	}

	p := numericPrefix.FindString(strings.TrimLeft(s, " \t\n\r\f\v"))
	if p == "" {
		return math.NaN()
	}

	switch strings.TrimLeft(p, "+") {
	case "Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}

	f, err := strconv.ParseFloat(strings.TrimSuffix(p, "."), 64)
	if err != nil {
		return math.NaN()
	}

	return f
}

// ToInt coerces v to an integer by truncating [ToNumber]. NaN and infinities
// convert to zero.
func ToInt(v any) int64 {
	f := ToNumber(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}

	return int64(f)
}

// FormatNumber renders f the way templates print numbers: integral values
// have no fraction, non-finite values are spelled out.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ToString coerces v to text. Null and undefined become "".
func ToString(v any) string {
	switch x := v.(type) {
	case nil, Undefined:
		return ""
	case string:
		return x
	case Markup:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return FormatNumber(x)
	case []any:
		part := make([]string, len(x))
		for i, e := range x {
			part[i] = ToString(e)
		}

		return strings.Join(part, ",")
	case *Map:
		return x.String()
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	}

	if f, ok := AsNumber(v); ok {
		return FormatNumber(f)
	}

	if seq, ok := AsSequence(v); ok {
		return ToString(seq)
	}

	return fmt.Sprint(v)
}

// Len returns the length of strings (in runes), sequences, and maps.
func Len(v any) (int, bool) {
	switch x := v.(type) {
	case string:
		return utf8.RuneCountInString(x), true
	case Markup:
		return utf8.RuneCountInString(string(x)), true
	case []any:
		return len(x), true
	case *Map:
		return x.Len(), true
	}

	return reflectLen(v)
}

// IsSequence reports whether v is a list-like value (not a string or map).
func IsSequence(v any) bool {
	_, ok := AsSequence(v)

	return ok
}

// AsSequence returns v as []any when it is a slice or array of any element
// type. Byte slices are not sequences.
func AsSequence(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}

	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, false
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}

		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}

		return out, true

	default:
		return nil, false
	}
}

// IsIterable reports whether [Entries] can enumerate v.
func IsIterable(v any) bool {
	_, _, ok := Entries(v)

	return ok
}

// Entries enumerates the keys and values of a sequence or map in iteration
// order. Sequence keys are indices. Go maps are visited in sorted key order.
func Entries(v any) (keys, vals []any, ok bool) {
	if m, isMap := v.(*Map); isMap {
		keys = make([]any, 0, m.Len())
		for _, k := range m.Keys() {
			keys = append(keys, k)
		}

		return keys, m.Values(), true
	}

	if seq, isSeq := AsSequence(v); isSeq {
		keys = make([]any, len(seq))
		for i := range seq {
			keys[i] = i
		}

		return keys, seq, true
	}

	if m, isMap := asStringMap(v); isMap {
		return Entries(m)
	}

	return nil, nil, false
}

// Normalize converts Go containers into the template value model: slices
// become []any and maps with string keys become *Map (sorted by key),
// recursively. Other values are returned unchanged.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil, Undefined, string, Markup, bool, *Map:
		return v
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}

		return out
	}

	if IsNumber(v) {
		return v
	}

	if m, ok := asStringMap(v); ok {
		return m
	}

	if seq, ok := AsSequence(v); ok {
		return Normalize(seq)
	}

	return v
}

// asStringMap converts a Go map with string keys into a *Map in sorted key
// order, normalizing its values.
func asStringMap(v any) (*Map, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map ||
		rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}

	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}

	slices.Sort(keys)

	m := NewMap(len(keys))
	for _, k := range keys {
		kv := reflect.ValueOf(k).Convert(rv.Type().Key())
		m.Set(k, Normalize(rv.MapIndex(kv).Interface()))
	}

	return m, true
}

func reflectLen(v any) (int, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return 0, false
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len(), true
	default:
		return 0, false
	}
}

// TypeName returns the template-level name of v's type, used in diagnostics.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case Undefined:
		return "undefined"
	case string:
		return "string"
	case Markup:
		return "markup"
	case bool:
		return "boolean"
	case *Map:
		return "map"
	case Callable:
		return "callable"
	}

	if IsNumber(v) {
		return "number"
	}

	if IsSequence(v) {
		return "sequence"
	}

	return fmt.Sprintf("%T", v)
}

func typeAttr(v any) slog.Attr { return slog.String("type", TypeName(v)) }
