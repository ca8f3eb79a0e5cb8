package tag

import "github.com/ardnew/twine/pkg"

// Predefined errors (sentinel values).
var (
	ErrUnrecognizedTag    = pkg.NewError("unrecognized tag")
	ErrTagCompile         = pkg.NewError("invalid tag")
	ErrInvalidLoopBinding = pkg.NewError("loop binds one or two variables")
	ErrUnexpectedTag      = pkg.NewError("unexpected tag")
	ErrUnclosedTag        = pkg.NewError("unclosed tag")
)
