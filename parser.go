package weft

import (
	"errors"
	"strings"

	"github.com/alecthomas/participle/v2"
)

// The grammar needs unbounded lookahead in token terms: a resolver call
// is only distinguished from a node reference by the colon after its
// (possibly nested) name. Interpolation expressions are short, so a
// generous fixed bound behaves as unlimited in practice.
const maxLookahead = 1024

// The two lexer entry modes share one implementation; they differ only in
// which token set the first character is read with.
var (
	toplevelLexer = newGrammarLexer(modeToplevel)
	valueLexer    = newGrammarLexer(modeValue)
)

var configValueParser = participle.MustBuild[ConfigValue](
	participle.Lexer(toplevelLexer),
	participle.UseLookahead(maxLookahead),
)

var singleElementParser = participle.MustBuild[SingleElement](
	participle.Lexer(valueLexer),
	participle.UseLookahead(maxLookahead),
)

// Parse parses a full configuration string, which may mix literal text
// and ${…} interpolations. Lexing starts in toplevel mode.
func Parse(value string) (*ConfigValue, error) {
	ast, err := configValueParser.ParseString("", value)
	if err != nil {
		return nil, translateParseError(err)
	}

	return ast, nil
}

// ParseElement parses a raw value string as a single element (primitive,
// list or dict literal). Lexing starts in value mode. This is the rule
// oc.decode uses.
func ParseElement(value string) (*SingleElement, error) {
	ast, err := singleElementParser.ParseString("", value)
	if err != nil {
		return nil, translateParseError(err)
	}

	return ast, nil
}

// ContainsInterpolation reports whether s could contain an interpolation.
// Callers may use it to skip parsing plain strings.
func ContainsInterpolation(s string) bool {
	return strings.Contains(s, "${")
}

// translateParseError converts lexer and participle failures into the
// typed error set.
func translateParseError(err error) error {
	var lexErr *LexerError
	if errors.As(err, &lexErr) {
		return &SyntaxError{Msg: lexErr.msg, Pos: lexErr.pos}
	}

	var perr participle.Error
	if errors.As(err, &perr) {
		return &SyntaxError{Msg: perr.Message(), Pos: perr.Position()}
	}

	return &SyntaxError{Msg: err.Error()}
}
