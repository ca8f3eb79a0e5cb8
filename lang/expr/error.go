package expr

import "github.com/ardnew/twine/pkg"

// Predefined errors (sentinel values).
var (
	ErrSyntax            = pkg.NewError("invalid expression")
	ErrUnknownOperator   = pkg.NewError("unknown operator")
	ErrUnknownFilter     = pkg.NewError("unknown filter")
	ErrUnknownFunction   = pkg.NewError("unknown function")
	ErrUnknownTest       = pkg.NewError("unknown test")
	ErrUndefinedVariable = pkg.NewError("undefined variable")
	ErrUndefinedAttr     = pkg.NewError("undefined attribute")
	ErrInvalidRegexp     = pkg.NewError("invalid regular expression")
	ErrEvaluate          = pkg.NewError("expression evaluation failed")
)
