package value

import (
	"math"
	"reflect"
	"unicode"
	"unicode/utf8"
)

// Attribute resolves v.key or v[key]. Maps are indexed by the string form of
// key, sequences and strings by its integer form, and structs by exported
// field name (the first letter of key is upper-cased as a fallback).
// The second result is false when no such attribute exists.
func Attribute(v, key any) (any, bool) {
	switch x := v.(type) {
	case nil, Undefined:
		return Undef, false
	case *Map:
		return x.Get(ToString(key))
	case string:
		return charAt(x, key)
	case Markup:
		return charAt(string(x), key)
	}

	if seq, ok := AsSequence(v); ok {
		i, ok := index(key, len(seq))
		if !ok {
			return Undef, false
		}

		return seq[i], true
	}

	return reflectAttribute(reflect.ValueOf(v), ToString(key))
}

func charAt(s string, key any) (any, bool) {
	i, ok := index(key, utf8.RuneCountInString(s))
	if !ok {
		return Undef, false
	}

	return string([]rune(s)[i]), true
}

func index(key any, n int) (int, bool) {
	f := ToNumber(key)
	if math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}

	i := int(f)
	if i < 0 || i >= n {
		return 0, false
	}

	return i, true
}

func reflectAttribute(rv reflect.Value, name string) (any, bool) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Undef, false
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Undef, false
		}

		e := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !e.IsValid() {
			return Undef, false
		}

		return Normalize(e.Interface()), true

	case reflect.Struct:
		for _, n := range []string{name, exported(name)} {
			f := rv.FieldByName(n)
			if f.IsValid() && f.CanInterface() {
				return Normalize(f.Interface()), true
			}
		}
	}

	return Undef, false
}

func exported(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}

	return string(unicode.ToUpper(r)) + name[size:]
}
