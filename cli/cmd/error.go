package cmd

import "github.com/ardnew/twine/pkg"

var (
	ErrReadData      = pkg.NewError("read data file")
	ErrDataFormat    = pkg.NewError("data file must hold a mapping")
	ErrVarSyntax     = pkg.NewError("variable must be NAME=EXPR")
	ErrVarEval       = pkg.NewError("evaluate variable")
	ErrReadTemplate  = pkg.NewError("read template")
	ErrWriteOutput   = pkg.NewError("write output")
	ErrJSONMarshal   = pkg.NewError("marshal JSON")
	ErrYAMLMarshal   = pkg.NewError("marshal YAML")
	ErrWriteConfig   = pkg.NewError("write configuration file")
	ErrFileExists    = pkg.NewError("file exists (use --force to overwrite)")
	ErrNoEngine      = pkg.NewError("engine flags missing from context")
	ErrUnknownFormat = pkg.NewError("unknown output format")
)
