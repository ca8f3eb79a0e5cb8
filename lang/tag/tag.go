// Package tag holds the tag grammar: the ordered registry of tag
// definitions, the tokenizer that matches a tag body against it, the
// compiled tag variants, and the compiler that nests tag bodies into a tree.
package tag

import "github.com/ardnew/twine/lang/expr"

// Type names a tag kind, e.g. "if" or "endfor".
type Type string

// Built-in tag types, in registration order.
const (
	TypeIf           Type = "if"
	TypeElseIf       Type = "elseif"
	TypeElse         Type = "else"
	TypeEndIf        Type = "endif"
	TypeFor          Type = "for"
	TypeEndFor       Type = "endfor"
	TypeSet          Type = "set"
	TypeSetCapture   Type = "setcapture"
	TypeEndSet       Type = "endset"
	TypeFilter       Type = "filter"
	TypeEndFilter    Type = "endfilter"
	TypeApply        Type = "apply"
	TypeEndApply     Type = "endapply"
	TypeDo           Type = "do"
	TypeBlock        Type = "block"
	TypeShortBlock   Type = "shortblock"
	TypeEndBlock     Type = "endblock"
	TypeExtends      Type = "extends"
	TypeUse          Type = "use"
	TypeInclude      Type = "include"
	TypeSpaceless    Type = "spaceless"
	TypeEndSpaceless Type = "endspaceless"
	TypeMacro        Type = "macro"
	TypeEndMacro     Type = "endmacro"
	TypeImport       Type = "import"
	TypeFrom         Type = "from"
	TypeEmbed        Type = "embed"
	TypeEndEmbed     Type = "endembed"
	TypeWith         Type = "with"
	TypeEndWith      Type = "endwith"
	TypeDeprecated   Type = "deprecated"
)

// Tag is the compiled form of one tag body. The concrete types below are
// the built-in variants; tags registered by applications supply their own.
type Tag interface {
	Type() Type
}

// If opens a conditional chain.
type If struct{ Cond *expr.Expression }

// ElseIf continues a conditional chain.
type ElseIf struct{ Cond *expr.Expression }

// Else ends a conditional or loop chain.
type Else struct{}

// End closes the chain opened by a matching tag. Name is set only for
// `endblock name`.
type End struct {
	Kind Type
	Name string
}

// For iterates a sequence or map. Key is empty for single-variable loops;
// Cond is nil without a trailing `if`.
type For struct {
	Key   string
	Value string
	Seq   *expr.Expression
	Cond  *expr.Expression
}

// Set assigns one or more names.
type Set struct {
	Names  []string
	Values []*expr.Expression
}

// SetCapture assigns its rendered body to Name.
type SetCapture struct{ Name string }

// Filter pipes its rendered body through Chain.
type Filter struct{ Chain *expr.Expression }

// Apply is the newer spelling of [Filter].
type Apply struct{ Filter }

// Do evaluates Expr for its side effects.
type Do struct{ Expr *expr.Expression }

// Block declares a named, overridable block.
type Block struct{ Name string }

// ShortBlock declares a block whose body is a single expression.
type ShortBlock struct {
	Name string
	Expr *expr.Expression
}

// Extends sets the parent template.
type Extends struct{ Target *expr.Expression }

// Use imports the blocks of another template.
type Use struct{ Target *expr.Expression }

// Include renders another template in place.
type Include struct {
	Target        *expr.Expression
	With          *expr.Expression
	Only          bool
	IgnoreMissing bool
}

// Embed includes a template while overriding its blocks.
type Embed struct{ Include }

// Spaceless removes whitespace between HTML tags in its body.
type Spaceless struct{}

// Macro defines a callable template fragment.
type Macro struct {
	Name   string
	Params []expr.Param
}

// Import binds the macros of a template to Alias.
type Import struct {
	Target *expr.Expression // nil for _self
	Alias  string
}

// Alias names one imported macro and the name it is bound under.
type Alias struct {
	Name string
	As   string
}

// From binds selected macros of a template.
type From struct {
	Target *expr.Expression // nil for _self
	Items  []Alias
}

// With renders its body in a scoped context.
type With struct {
	Vars *expr.Expression // nil when no bindings are given
	Only bool
}

// Deprecated carries a deprecation notice.
type Deprecated struct{ Message string }

func (If) Type() Type         { return TypeIf }
func (ElseIf) Type() Type     { return TypeElseIf }
func (Else) Type() Type       { return TypeElse }
func (e End) Type() Type      { return e.Kind }
func (For) Type() Type        { return TypeFor }
func (Set) Type() Type        { return TypeSet }
func (SetCapture) Type() Type { return TypeSetCapture }
func (Filter) Type() Type     { return TypeFilter }
func (Apply) Type() Type      { return TypeApply }
func (Do) Type() Type         { return TypeDo }
func (Block) Type() Type      { return TypeBlock }
func (ShortBlock) Type() Type { return TypeShortBlock }
func (Extends) Type() Type    { return TypeExtends }
func (Use) Type() Type        { return TypeUse }
func (Include) Type() Type    { return TypeInclude }
func (Embed) Type() Type      { return TypeEmbed }
func (Spaceless) Type() Type  { return TypeSpaceless }
func (Macro) Type() Type      { return TypeMacro }
func (Import) Type() Type     { return TypeImport }
func (From) Type() Type       { return TypeFrom }
func (With) Type() Type       { return TypeWith }
func (Deprecated) Type() Type { return TypeDeprecated }
