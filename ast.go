// Package weft implements a string interpolation engine for hierarchical
// configuration values. A configuration string may embed ${dotted.path}
// node references and ${resolver:args} calls, nested arbitrarily; the
// engine parses these with a two-mode lexer and a formal grammar, then
// evaluates the tree against a ContainerView and a ResolverRegistry.
package weft

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// NodeMeta contains position and token information common to all AST nodes.
// Participle automatically populates these fields during parsing.
type NodeMeta struct {
	Pos    lexer.Position `parser:""`
	EndPos lexer.Position `parser:""`
	Tokens []lexer.Token  `parser:""`
}

// Span is a source range within the parsed string.
type Span struct {
	Start lexer.Position
	End   lexer.Position
}

// Span returns the source span of this node.
func (n *NodeMeta) Span() Span { return Span{Start: n.Pos, End: n.EndPos} }

// Text returns the exact source text of this node. It is used to hand
// resolvers the original spelling of their arguments alongside the
// parsed values.
func (n *NodeMeta) Text() string {
	var b strings.Builder
	for _, tok := range n.Tokens {
		b.WriteString(tok.Value)
	}

	return b.String()
}

// =============================================================================
// Top-level AST nodes
// =============================================================================

// ConfigValue is the root of a parsed configuration string.
type ConfigValue struct {
	NodeMeta

	Toplevel *Toplevel `parser:"@@"`
}

// Toplevel is the body of a configuration string: literal text
// interspersed with interpolations. A toplevel consisting of exactly one
// interpolation evaluates to the referenced value itself, preserving its
// type; any surrounding text forces string concatenation.
type Toplevel struct {
	NodeMeta

	Items []*ToplevelItem `parser:"@@+"`
}

// ToplevelItem is one run of literal text or one interpolation.
type ToplevelItem struct {
	NodeMeta

	Str   *ToplevelStr   `parser:"@@"`
	Inter *Interpolation `parser:"| @@"`
}

// ToplevelStr is a run of literal text outside interpolations, including
// escape sequences.
type ToplevelStr struct {
	NodeMeta

	Fragments []*TopFragment `parser:"@@+"`
}

// TopFragment is a single lexeme of toplevel text.
type TopFragment struct {
	NodeMeta

	// Esc is a run of escaped backslashes; each \\ yields one backslash.
	Esc *string `parser:"@TopEsc"`
	// EscInter is \${, yielding a literal ${ with no interpolation.
	EscInter *string `parser:"| @EscInter"`
	// Text is plain literal text, kept verbatim.
	Text *string `parser:"| @TopStr"`
}

// =============================================================================
// Interpolations
// =============================================================================

// Interpolation is a single ${…} expression: either a node reference or a
// resolver call. The resolver form is tried first; the parser backtracks
// to the node form when no colon follows the name.
type Interpolation struct {
	NodeMeta

	Resolver *InterpolationResolver `parser:"@@"`
	Node     *InterpolationNode     `parser:"| @@"`
}

// InterpolationNode is ${dotted.path}. Leading dots select a container
// relative to the node being resolved, one level per extra dot.
type InterpolationNode struct {
	NodeMeta

	Dots  []string         `parser:"InterOpen @Dot*"`
	First *ConfigKey       `parser:"@@"`
	Rest  []*ConfigKeyTail `parser:"@@*"`
	End   bool             `parser:"@BraceClose"`
}

// ConfigKeyTail is a dot followed by a further key segment.
type ConfigKeyTail struct {
	NodeMeta

	Dot string     `parser:"@Dot"`
	Key *ConfigKey `parser:"@@"`
}

// ConfigKey is one segment of a dotted path: an identifier, a list index,
// or a nested interpolation that must evaluate to a string.
type ConfigKey struct {
	NodeMeta

	Inter *Interpolation `parser:"@@"`
	ID    *string        `parser:"| @ID | @Int"`
}

// InterpolationResolver is ${name:args}. The name may be dotted
// (oc.dict.keys) and each part may itself be an interpolation.
type InterpolationResolver struct {
	NodeMeta

	Name *ResolverName `parser:"InterOpen @@"`
	Args *Sequence     `parser:"Colon @@?"`
	End  bool          `parser:"Ws* @BraceClose"`
}

// ResolverName is a dot-separated resolver name.
type ResolverName struct {
	NodeMeta

	Parts []*ResolverNamePart `parser:"@@ (Dot @@)*"`
}

// ResolverNamePart is one dotted segment of a resolver name.
type ResolverNamePart struct {
	NodeMeta

	Inter *Interpolation `parser:"@@"`
	ID    *string        `parser:"| @ID"`
}

// =============================================================================
// Resolver arguments
// =============================================================================

// Sequence is a comma-separated argument list.
type Sequence struct {
	NodeMeta

	Elements []*Element `parser:"@@ (Comma @@)*"`
}

// Element is a single argument: a list literal, a dict literal, or a
// primitive. Whitespace around the element is insignificant.
type Element struct {
	NodeMeta

	List *ListLiteral `parser:"Ws* ( @@"`
	Dict *DictLiteral `parser:"| @@"`
	Prim *Primitive   `parser:"| @@ ) Ws*"`
}

// ListLiteral is [a, b, …].
type ListLiteral struct {
	NodeMeta

	Open bool      `parser:"@BracketOpen"`
	Seq  *Sequence `parser:"@@?"`
	End  bool      `parser:"Ws* @BracketClose"`
}

// DictLiteral is {key: value, …}.
type DictLiteral struct {
	NodeMeta

	Open  bool      `parser:"@BraceOpen"`
	Pairs []*DictKV `parser:"(@@ (Comma @@)*)?"`
	End   bool      `parser:"Ws* @BraceClose"`
}

// DictKV is a single dict entry. A key is an identifier or an
// interpolation evaluating to a hashable primitive; NaN keys are
// rejected during evaluation.
type DictKV struct {
	NodeMeta

	KeyInter *Interpolation `parser:"Ws* ( @@"`
	KeyID    *string        `parser:"| @ID )"`
	Value    *Element       `parser:"Ws* Colon @@"`
}

// Primitive is an unstructured value: a quoted string, a typed literal,
// or a bareword built from one or more lexemes. A primitive with a
// single item keeps that item's type; multiple items concatenate into a
// string with edge whitespace trimmed.
type Primitive struct {
	NodeMeta

	Items []*PrimitiveItem `parser:"@@+"`
}

// PrimitiveItem is one lexeme of a primitive.
type PrimitiveItem struct {
	NodeMeta

	Quoted *string        `parser:"@Quoted"`
	ID     *string        `parser:"| @ID"`
	Null   *string        `parser:"| @Null"`
	Bool   *string        `parser:"| @Bool"`
	Int    *string        `parser:"| @Int"`
	Float  *string        `parser:"| @Float"`
	Char   *string        `parser:"| @Char"`
	Colon  *string        `parser:"| @Colon"`
	Dot    *string        `parser:"| @Dot"`
	Esc    *string        `parser:"| @Esc"`
	Ws     *string        `parser:"| @Ws"`
	Inter  *Interpolation `parser:"| @@"`
}

// IsWs reports whether this item is pure whitespace.
func (p *PrimitiveItem) IsWs() bool { return p.Ws != nil }

// SingleElement is the root used when a raw value string is parsed on its
// own, as oc.decode does.
type SingleElement struct {
	NodeMeta

	Element *Element `parser:"@@"`
}
