// Package value defines the host values templates compute with: the
// undefined marker, ordered maps, pre-escaped markup, callables, and the
// coercions every operator and tag relies on.
package value

import (
	"context"

	"github.com/ardnew/twine/pkg"
)

// ErrNotCallable is returned when a call expression targets a value that does
// not implement [Callable].
var ErrNotCallable = pkg.NewError("value is not callable")

// Undefined is the result of looking up a name or attribute with no binding.
// It is distinct from nil, which is the template literal null.
type Undefined struct{}

// Undef is the canonical [Undefined] value.
var Undef = Undefined{} //nolint:gochecknoglobals

// String renders undefined as the empty string.
func (Undefined) String() string { return "" }

// IsUndefined reports whether v is [Undefined].
func IsUndefined(v any) bool {
	_, ok := v.(Undefined)

	return ok
}

// IsNull reports whether v is nil or [Undefined].
func IsNull(v any) bool { return v == nil || IsUndefined(v) }

// Markup is text that is already safe for its output context and bypasses
// automatic escaping.
type Markup string

// String returns the markup text.
func (m Markup) String() string { return string(m) }

// Callable is implemented by values that can be invoked from an expression,
// e.g. macros or host functions stored in the render context.
type Callable interface {
	Call(ctx context.Context, args []any) (any, error)
}

// Func adapts an ordinary function to [Callable].
type Func func(ctx context.Context, args []any) (any, error)

// Call invokes f.
func (f Func) Call(ctx context.Context, args []any) (any, error) {
	return f(ctx, args)
}

// Call invokes fn with args when fn implements [Callable].
func Call(ctx context.Context, fn any, args []any) (any, error) {
	c, ok := fn.(Callable)
	if !ok {
		return nil, ErrNotCallable.With(typeAttr(fn))
	}

	return c.Call(ctx, args)
}

// Arg returns args[i], or [Undef] when i is out of range.
func Arg(args []any, i int) any {
	if i < 0 || i >= len(args) {
		return Undef
	}

	return args[i]
}
