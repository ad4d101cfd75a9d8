package weft

import (
	"errors"
	"fmt"

	"github.com/alecthomas/participle/v2/lexer"
)

// Sentinel errors.
var (
	// ErrResolverRegistered is returned when a resolver name is registered twice.
	ErrResolverRegistered = errors.New("weft: resolver already registered")

	// ErrConfigNotFound is returned when no .weft.yaml is found.
	ErrConfigNotFound = errors.New("weft: no .weft.yaml found")
)

// SyntaxError reports a lexer or parser recognition failure: unmatched
// braces, bad quoting, or an illegal character in a bareword.
type SyntaxError struct {
	Msg string
	Pos lexer.Position
}

func (e *SyntaxError) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("syntax error at %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
	}

	return "syntax error: " + e.Msg
}

// AmbiguityError reports a grammar ambiguity detected during parsing.
//
// The recursive-descent parser commits to productions with ordered choice
// and does not report this condition; the type is declared so the error
// set stays stable for callers and for alternative parser strategies.
type AmbiguityError struct {
	Msg string
}

func (e *AmbiguityError) Error() string { return "grammar ambiguity: " + e.Msg }

// AttemptingFullContextError reports that the parser had to fall back to
// full-context prediction. Reserved, like AmbiguityError.
type AttemptingFullContextError struct {
	Msg string
}

func (e *AttemptingFullContextError) Error() string {
	return "attempting full context: " + e.Msg
}

// ContextSensitivityError reports context-sensitive prediction during
// parsing. Reserved, like AmbiguityError.
type ContextSensitivityError struct {
	Msg string
}

func (e *ContextSensitivityError) Error() string { return "context sensitivity: " + e.Msg }

// TypeError reports a type mismatch while evaluating an interpolation:
// a non-string used as a key segment or resolver name, NaN used as a
// dictionary key, or an unhashable value used where a hashable one is
// required.
type TypeError struct {
	Msg  string
	Expr string // source text of the offending construct, when available
}

func (e *TypeError) Error() string {
	if e.Expr != "" {
		return fmt.Sprintf("type error in %s: %s", e.Expr, e.Msg)
	}

	return "type error: " + e.Msg
}

// UnsupportedResolverError reports a resolver interpolation whose name is
// not registered.
type UnsupportedResolverError struct {
	Name string
}

func (e *UnsupportedResolverError) Error() string {
	return fmt.Sprintf("unsupported resolver %q", e.Name)
}

// ConfigKeyError reports a dotted path that does not exist in the
// container, or a missing environment variable.
type ConfigKeyError struct {
	Key  string // the segment or variable that failed
	Path string // the full dotted path being resolved, when available
	Msg  string
}

func (e *ConfigKeyError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}

	if e.Path != "" && e.Path != e.Key {
		return fmt.Sprintf("key %q not found (while resolving %q)", e.Key, e.Path)
	}

	return fmt.Sprintf("key %q not found", e.Key)
}

// MissingValueError reports access to a mandatory value that is still the
// "???" placeholder.
type MissingValueError struct {
	Path string
}

func (e *MissingValueError) Error() string {
	return "missing mandatory value: " + e.Path
}

// ValidationError reports a resolver-level validation failure, such as an
// env default of the wrong type or a malformed argument list.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// CycleError reports an interpolation that directly or indirectly refers
// to a value currently being resolved.
type CycleError struct {
	Path string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("interpolation cycle detected while resolving %q", e.Path)
}

// IsMissing reports whether err is a MissingValueError, possibly wrapped.
func IsMissing(err error) bool {
	var m *MissingValueError

	return errors.As(err, &m)
}
