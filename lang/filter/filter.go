// Package filter provides the named filters, functions and tests templates
// invoke, and the escaping strategies applied to template output.
//
// A [Set] is immutable: the With methods return a modified copy, so a set
// can be shared by any number of concurrent renders.
package filter

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/ardnew/twine/lang/expr"
	"github.com/ardnew/twine/pkg"
)

// Predefined errors (sentinel values).
var (
	ErrUnknownStrategy = pkg.NewError("unknown escape strategy")
	ErrArgument        = pkg.NewError("invalid argument")
)

// Filter transforms input. Arguments are positional.
type Filter func(ctx context.Context, input any, args []any) (any, error)

// Function computes a value from positional arguments.
type Function func(ctx context.Context, args []any) (any, error)

// Test is a predicate over input used by `is` expressions.
type Test func(ctx context.Context, input any, args []any) (bool, error)

// Set is a collection of named filters, functions and tests.
type Set struct {
	filters   map[string]Filter
	functions map[string]Function
	tests     map[string]Test
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{
		filters:   map[string]Filter{},
		functions: map[string]Function{},
		tests:     map[string]Test{},
	}
}

// Default returns a set holding every built-in filter, function and test.
func Default() *Set { return builtin }

var builtin = func() *Set {
	s := NewSet()

	maps.Copy(s.filters, filters())
	maps.Copy(s.functions, functions())
	maps.Copy(s.tests, tests())

	return s
}()

func (s *Set) clone() *Set {
	return &Set{
		filters:   maps.Clone(s.filters),
		functions: maps.Clone(s.functions),
		tests:     maps.Clone(s.tests),
	}
}

// WithFilter returns a copy of s with name bound to f.
func (s *Set) WithFilter(name string, f Filter) *Set {
	c := s.clone()
	c.filters[name] = f

	return c
}

// WithFunction returns a copy of s with name bound to f.
func (s *Set) WithFunction(name string, f Function) *Set {
	c := s.clone()
	c.functions[name] = f

	return c
}

// WithTest returns a copy of s with name bound to f.
func (s *Set) WithTest(name string, f Test) *Set {
	c := s.clone()
	c.tests[name] = f

	return c
}

// Filter applies the filter called name.
func (s *Set) Filter(ctx context.Context, name string, input any, args []any) (any, error) {
	f, ok := s.filters[name]
	if !ok {
		return nil, expr.ErrUnknownFilter.With(slog.String("name", name))
	}

	out, err := f(ctx, input, args)
	if err != nil {
		return nil, pkg.WrapError(err).With(slog.String("filter", name))
	}

	return out, nil
}

// Function calls the function called name.
func (s *Set) Function(ctx context.Context, name string, args []any) (any, error) {
	f, ok := s.functions[name]
	if !ok {
		return nil, expr.ErrUnknownFunction.With(slog.String("name", name))
	}

	out, err := f(ctx, args)
	if err != nil {
		return nil, pkg.WrapError(err).With(slog.String("function", name))
	}

	return out, nil
}

// Test evaluates the test called name.
func (s *Set) Test(ctx context.Context, name string, input any, args []any) (bool, error) {
	f, ok := s.tests[name]
	if !ok {
		return false, expr.ErrUnknownTest.With(slog.String("name", name))
	}

	out, err := f(ctx, input, args)
	if err != nil {
		return false, pkg.WrapError(err).With(slog.String("test", name))
	}

	return out, nil
}

// FilterNames returns the sorted names of all filters.
func (s *Set) FilterNames() []string { return slices.Sorted(maps.Keys(s.filters)) }

// FunctionNames returns the sorted names of all functions.
func (s *Set) FunctionNames() []string { return slices.Sorted(maps.Keys(s.functions)) }

// TestNames returns the sorted names of all tests.
func (s *Set) TestNames() []string { return slices.Sorted(maps.Keys(s.tests)) }
