package repl

import "github.com/ardnew/twine/pkg"

var (
	ErrOutOfBounds  = pkg.NewError("history index out of range")
	ErrEditDeclined = pkg.NewError("edit declined")
	ErrNoEnv        = pkg.NewError("session has no environment")
	ErrLetSyntax    = pkg.NewError("usage: let NAME EXPR")
	ErrUnsetSyntax  = pkg.NewError("usage: unset NAME")
)
