package lang

import (
	"github.com/ardnew/twine/lang/expr"
	"github.com/ardnew/twine/pkg"
)

// Predefined errors (sentinel values).
var (
	ErrTemplateLoad     = pkg.NewError("failed to load template")
	ErrTemplateCompile  = pkg.NewError("failed to compile template")
	ErrRender           = pkg.NewError("failed to render template")
	ErrMaxDepthExceeded = pkg.NewError("maximum template nesting depth exceeded")
	ErrNoParentBlock    = pkg.NewError("block has no parent")
	ErrUnknownBlock     = pkg.NewError("unknown block")
	ErrInvalidContext   = pkg.NewError("context must be a map")

	ErrUnknownFilter   = expr.ErrUnknownFilter
	ErrUnknownFunction = expr.ErrUnknownFunction
	ErrUnknownTest     = expr.ErrUnknownTest
)
