package value

import (
	"math"
	"reflect"
	"strings"
)

// StrictEqual reports whether a and b have the same type class and value.
// All numeric types form one class. Sequences and maps compare by identity.
func StrictEqual(a, b any) bool {
	switch {
	case IsUndefined(a) || IsUndefined(b):
		return IsUndefined(a) && IsUndefined(b)
	case a == nil || b == nil:
		return a == nil && b == nil
	}

	if fa, ok := AsNumber(a); ok {
		fb, ok := AsNumber(b)

		return ok && fa == fb
	}

	if sa, ok := asText(a); ok {
		sb, ok := asText(b)

		return ok && sa == sb
	}

	if ba, ok := a.(bool); ok {
		bb, ok := b.(bool)

		return ok && ba == bb
	}

	return sameReference(a, b)
}

// LooseEqual reports equality after cross-type coercion: null equals
// undefined, numbers compare with numeric strings and booleans, and
// containers compare with primitives through their string form.
func LooseEqual(a, b any) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}

	if sameClass(a, b) {
		return StrictEqual(a, b)
	}

	if ba, ok := a.(bool); ok {
		return LooseEqual(boolNumber(ba), b)
	}

	if bb, ok := b.(bool); ok {
		return LooseEqual(a, boolNumber(bb))
	}

	_, aText := asText(a)
	_, bText := asText(b)

	switch {
	case IsNumber(a) && bText, aText && IsNumber(b):
		return ToNumber(a) == ToNumber(b)
	case isContainer(a) && !isContainer(b):
		return LooseEqual(ToString(a), b)
	case isContainer(b) && !isContainer(a):
		return LooseEqual(a, ToString(b))
	}

	return false
}

// Compare orders a and b. Two strings compare lexically; anything else
// compares numerically. The second result is false when the operands are
// unordered (e.g. NaN is involved).
func Compare(a, b any) (int, bool) {
	sa, aText := asText(a)
	sb, bText := asText(b)

	if aText && bText {
		return strings.Compare(sa, sb), true
	}

	fa, fb := ordinal(a), ordinal(b)
	if math.IsNaN(fa) || math.IsNaN(fb) {
		return 0, false
	}

	switch {
	case fa < fb:
		return -1, true
	case fa > fb:
		return 1, true
	default:
		return 0, true
	}
}

// Contains implements the "in" test of needle within haystack. A string
// haystack is searched for a substring, where the empty needle matches only
// the empty haystack. Sequences and maps are searched by strict value
// equality. The second result is false when haystack cannot contain anything,
// in which case the membership test yields null.
func Contains(haystack, needle any) (bool, bool) {
	if s, ok := asText(haystack); ok {
		n := ToString(needle)
		if n == "" {
			return s == "", true
		}

		return strings.Contains(s, n), true
	}

	_, vals, ok := Entries(haystack)
	if !ok {
		return false, false
	}

	for _, v := range vals {
		if StrictEqual(v, needle) {
			return true, true
		}
	}

	return false, true
}

func ordinal(v any) float64 {
	if b, ok := v.(bool); ok {
		return boolNumber(b)
	}

	if IsNull(v) {
		return 0
	}

	return ToNumber(v)
}

func boolNumber(b bool) float64 {
	if b {
		return 1
	}

	return 0
}

func asText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case Markup:
		return string(x), true
	}

	return "", false
}

func isContainer(v any) bool {
	if _, ok := v.(*Map); ok {
		return true
	}

	return IsSequence(v)
}

func sameClass(a, b any) bool {
	_, aText := asText(a)
	_, bText := asText(b)
	_, aBool := a.(bool)
	_, bBool := b.(bool)

	switch {
	case IsNumber(a) || IsNumber(b):
		return IsNumber(a) && IsNumber(b)
	case aText || bText:
		return aText && bText
	case aBool || bBool:
		return aBool && bBool
	}

	return true
}

func sameReference(a, b any) bool {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}

	switch ra.Kind() {
	case reflect.Slice:
		return ra.Len() == rb.Len() &&
			(ra.Len() == 0 || ra.Pointer() == rb.Pointer())
	case reflect.Map, reflect.Pointer, reflect.Func, reflect.Chan:
		return ra.Pointer() == rb.Pointer()
	}

	if ra.Type().Comparable() {
		return a == b
	}

	return false
}
