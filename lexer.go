package weft

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2/lexer"
)

// Token type constants - negative values as per participle convention.
const (
	tEOF          lexer.TokenType = lexer.EOF
	tTopStr       lexer.TokenType = -(iota + 2) //nolint:mnd // participle convention
	tTopEsc                                     // run of escaped backslashes outside interpolations
	tEscInter                                   // \${ introducing a literal ${
	tInterOpen                                  // ${ (switches the lexer into value mode)
	tBraceOpen                                  // { (dict literal, also enters value mode)
	tBraceClose                                 // } (leaves the current value mode)
	tBracketOpen                                // [
	tBracketClose                               // ]
	tComma                                      // ,
	tDot                                        // .
	tColon                                      // :
	tNull                                       // null (case-insensitive)
	tBool                                       // true | false (case-insensitive)
	tInt                                        // integer literal
	tFloat                                      // float literal, inf, nan
	tID                                         // identifier
	tQuoted                                     // single- or double-quoted string, delimiters included
	tEsc                                        // run of escaped backslashes inside an interpolation
	tWs                                         // spaces, tabs, newlines
	tChar                                       // any other single bareword character
)

// Lexer errors.
var (
	ErrUnterminatedString  = &LexerError{msg: "unterminated quoted string"}
	ErrUnexpectedCharacter = &LexerError{msg: "unexpected character"}
)

// LexerError represents a lexer error with position.
type LexerError struct {
	msg string
	pos lexer.Position
	ch  rune
}

func (e *LexerError) Error() string {
	if e.ch != 0 {
		return e.pos.String() + ": " + e.msg + ": " + string(e.ch)
	}

	return e.pos.String() + ": " + e.msg
}

func (e *LexerError) withPos(pos lexer.Position) *LexerError {
	return &LexerError{msg: e.msg, pos: pos, ch: e.ch}
}

func (e *LexerError) withChar(ch rune) *LexerError {
	return &LexerError{msg: e.msg, pos: e.pos, ch: ch}
}

// lexerMode selects which token set the lexer starts in.
type lexerMode int

const (
	// modeToplevel tokenizes a plain configuration string in which ${…}
	// interpolations may be embedded.
	modeToplevel lexerMode = iota
	// modeValue tokenizes the inside of an interpolation, where primitives,
	// quoted strings, lists, dicts and nested ${…} are legal.
	modeValue
)

// grammarDefinition implements lexer.Definition for interpolated config
// strings. The same definition serves both entry modes; `${` and `{`
// push value mode, `}` pops it.
type grammarDefinition struct {
	start   lexerMode
	symbols map[string]lexer.TokenType
}

func newGrammarLexer(start lexerMode) *grammarDefinition {
	return &grammarDefinition{
		start: start,
		symbols: map[string]lexer.TokenType{
			"EOF":          tEOF,
			"TopStr":       tTopStr,
			"TopEsc":       tTopEsc,
			"EscInter":     tEscInter,
			"InterOpen":    tInterOpen,
			"BraceOpen":    tBraceOpen,
			"BraceClose":   tBraceClose,
			"BracketOpen":  tBracketOpen,
			"BracketClose": tBracketClose,
			"Comma":        tComma,
			"Dot":          tDot,
			"Colon":        tColon,
			"Null":         tNull,
			"Bool":         tBool,
			"Int":          tInt,
			"Float":        tFloat,
			"ID":           tID,
			"Quoted":       tQuoted,
			"Esc":          tEsc,
			"Ws":           tWs,
			"Char":         tChar,
		},
	}
}

// Symbols returns the mapping of symbol names to token types.
func (d *grammarDefinition) Symbols() map[string]lexer.TokenType {
	return d.symbols
}

// Lex creates a new Lexer for the given reader.
//
//nolint:ireturn // Required by participle's lexer.Definition interface.
func (d *grammarDefinition) Lex(filename string, r io.Reader) (lexer.Lexer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return newLexerState(filename, string(data), d.start), nil
}

// LexString implements lexer.StringDefinition for efficiency.
//
//nolint:ireturn // Required by participle's lexer.StringDefinition interface.
func (d *grammarDefinition) LexString(filename, input string) (lexer.Lexer, error) {
	return newLexerState(filename, input, d.start), nil
}

// lexerState holds the state for lexing, including the mode stack.
type lexerState struct {
	filename string
	input    string
	offset   int
	line     int
	col      int
	modes    []lexerMode
}

func newLexerState(filename, input string, start lexerMode) *lexerState {
	return &lexerState{
		filename: filename,
		input:    input,
		offset:   0,
		line:     1,
		col:      1,
		modes:    []lexerMode{start},
	}
}

// Next returns the next token.
func (l *lexerState) Next() (lexer.Token, error) {
	if l.eof() {
		return lexer.EOFToken(l.pos()), nil
	}

	if l.mode() == modeToplevel {
		return l.nextToplevel()
	}

	return l.nextValue()
}

func (l *lexerState) nextToplevel() (lexer.Token, error) {
	start := l.pos()

	if l.peek() == '\\' {
		if l.peekAt(1) == '\\' {
			for l.match(`\\`) {
				l.advance()
				l.advance()
			}

			return l.token(tTopEsc, start), nil
		}

		if l.match(`\${`) {
			l.advance()
			l.advance()
			l.advance()

			return l.token(tEscInter, start), nil
		}
	}

	if l.match("${") {
		l.advance()
		l.advance()
		l.push(modeValue)

		return l.token(tInterOpen, start), nil
	}

	// Literal run: stops before ${ and before escape sequences. A lone $
	// or a backslash that escapes nothing is literal text.
	for !l.eof() {
		if l.match("${") {
			break
		}

		if l.peek() == '\\' && (l.peekAt(1) == '\\' || l.match(`\${`)) {
			break
		}

		l.advance()
	}

	return l.token(tTopStr, start), nil
}

func (l *lexerState) nextValue() (lexer.Token, error) {
	start := l.pos()
	r := l.peek()

	if l.match("${") {
		l.advance()
		l.advance()
		l.push(modeValue)

		return l.token(tInterOpen, start), nil
	}

	switch r {
	case '}':
		l.advance()
		l.pop()

		return l.token(tBraceClose, start), nil
	case '{':
		l.advance()
		l.push(modeValue)

		return l.token(tBraceOpen, start), nil
	case '[':
		l.advance()

		return l.token(tBracketOpen, start), nil
	case ']':
		l.advance()

		return l.token(tBracketClose, start), nil
	case ',':
		l.advance()

		return l.token(tComma, start), nil
	case ':':
		l.advance()

		return l.token(tColon, start), nil
	case '\'', '"':
		return l.scanQuoted(start, r)
	case '\\':
		if l.peekAt(1) == '\\' {
			for l.match(`\\`) {
				l.advance()
				l.advance()
			}

			return l.token(tEsc, start), nil
		}

		l.advance()

		return l.token(tChar, start), nil
	}

	if isSpace(r) {
		for !l.eof() && isSpace(l.peek()) {
			l.advance()
		}

		return l.token(tWs, start), nil
	}

	// After a key character, a brace or a dot, '.' separates path segments
	// and a digit run after a dot is a list index: "xs.0.1" is a path.
	if l.offset > 0 {
		prev := l.input[l.offset-1]
		if r == '.' && (isIdentByte(prev) || strings.IndexByte(".{}", prev) >= 0) {
			l.advance()

			return l.token(tDot, start), nil
		}

		if prev == '.' && r >= '0' && r <= '9' {
			for !l.eof() && isDigitByte(l.input[l.offset]) {
				l.advance()
			}

			return l.token(tInt, start), nil
		}
	}

	if typ, n := scanWord(l.input[l.offset:]); n > 0 {
		for range n {
			l.advance()
		}

		return l.token(typ, start), nil
	}

	if r == '.' {
		l.advance()

		return l.token(tDot, start), nil
	}

	// Reserved characters that may not appear in barewords.
	if r == '=' || r == '(' || r == ')' {
		return lexer.Token{}, ErrUnexpectedCharacter.withPos(start).withChar(r)
	}

	l.advance()

	return l.token(tChar, start), nil
}

func (l *lexerState) scanQuoted(start lexer.Position, quote rune) (lexer.Token, error) {
	l.advance() // opening quote

	for !l.eof() {
		ch := l.peek()
		if ch == '\\' && l.peekAt(1) != 0 {
			l.advance() // backslash
			l.advance() // escaped char

			continue
		}

		if ch == quote {
			l.advance() // closing quote

			return l.token(tQuoted, start), nil
		}

		l.advance()
	}

	return lexer.Token{}, ErrUnterminatedString.withPos(start)
}

// scanWord matches the longest of the keyword, number and identifier
// token classes at the start of s. Within the same length, literal
// keywords beat identifiers and integers beat floats. Returns the token
// type and the matched length in bytes; n == 0 means no match.
func scanWord(s string) (lexer.TokenType, int) {
	var (
		nullLen  int
		boolLen  int
		intLen   = scanInt(s)
		floatLen = scanFloat(s)
		idLen    = scanIdent(s)
	)

	if foldPrefix(s, "null") && idLen == len("null") {
		nullLen = len("null")
	}

	if foldPrefix(s, "true") && idLen == len("true") {
		boolLen = len("true")
	} else if foldPrefix(s, "false") && idLen == len("false") {
		boolLen = len("false")
	}

	best := lexer.TokenType(0)
	n := 0

	for _, cand := range []struct {
		typ lexer.TokenType
		len int
	}{
		{tNull, nullLen},
		{tBool, boolLen},
		{tInt, intLen},
		{tFloat, floatLen},
		{tID, idLen},
	} {
		if cand.len > n {
			best, n = cand.typ, cand.len
		}
	}

	return best, n
}

// scanUnsignedInt matches '0' or a non-zero digit followed by digits with
// single underscores allowed between them. Leading zeros never extend.
func scanUnsignedInt(s string) int {
	if s == "" || !isDigitByte(s[0]) {
		return 0
	}

	if s[0] == '0' {
		return 1
	}

	i := 1

	for i < len(s) {
		switch {
		case isDigitByte(s[i]):
			i++
		case s[i] == '_' && i+1 < len(s) && isDigitByte(s[i+1]):
			i += 2
		default:
			return i
		}
	}

	return i
}

// scanFracDigits matches one or more digits with single underscores
// between them. Leading zeros are allowed (the fractional part of 1.05).
func scanFracDigits(s string) int {
	if s == "" || !isDigitByte(s[0]) {
		return 0
	}

	i := 1

	for i < len(s) {
		switch {
		case isDigitByte(s[i]):
			i++
		case s[i] == '_' && i+1 < len(s) && isDigitByte(s[i+1]):
			i += 2
		default:
			return i
		}
	}

	return i
}

func scanInt(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}

	n := scanUnsignedInt(s[i:])
	if n == 0 {
		return 0
	}

	return i + n
}

func scanFloat(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}

	rest := s[i:]

	// inf and nan only count when not part of a longer identifier.
	if (foldPrefix(rest, "inf") || foldPrefix(rest, "nan")) && scanIdent(rest) == 3 {
		return i + 3
	}

	u := scanUnsignedInt(rest)

	point := 0

	if u < len(rest) && rest[u] == '.' {
		frac := scanFracDigits(rest[u+1:])

		switch {
		case frac > 0:
			point = u + 1 + frac
		case u > 0:
			point = u + 1
		}
	}

	best := point

	for _, base := range []int{point, u} {
		if base == 0 || base >= len(rest) || (rest[base] != 'e' && rest[base] != 'E') {
			continue
		}

		k := base + 1
		if k < len(rest) && (rest[k] == '+' || rest[k] == '-') {
			k++
		}

		if e := scanUnsignedInt(rest[k:]); e > 0 && k+e > best {
			best = k + e
		}
	}

	if best == 0 {
		return 0
	}

	return i + best
}

func scanIdent(s string) int {
	if s == "" || !isIdentStartByte(s[0]) {
		return 0
	}

	i := 1
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}

	return i
}

func foldPrefix(s, keyword string) bool {
	return len(s) >= len(keyword) && strings.EqualFold(s[:len(keyword)], keyword)
}

func (l *lexerState) mode() lexerMode {
	return l.modes[len(l.modes)-1]
}

func (l *lexerState) push(m lexerMode) {
	l.modes = append(l.modes, m)
}

func (l *lexerState) pop() {
	if len(l.modes) > 1 {
		l.modes = l.modes[:len(l.modes)-1]
	}
}

func (l *lexerState) pos() lexer.Position {
	return lexer.Position{
		Filename: l.filename,
		Offset:   l.offset,
		Line:     l.line,
		Column:   l.col,
	}
}

func (l *lexerState) eof() bool {
	return l.offset >= len(l.input)
}

func (l *lexerState) peek() rune {
	if l.eof() {
		return 0
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.offset:])

	return r
}

func (l *lexerState) peekAt(n int) rune {
	off := l.offset + n
	if off >= len(l.input) {
		return 0
	}

	r, _ := utf8.DecodeRuneInString(l.input[off:])

	return r
}

func (l *lexerState) advance() rune {
	if l.eof() {
		return 0
	}

	r, size := utf8.DecodeRuneInString(l.input[l.offset:])
	l.offset += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}

	return r
}

func (l *lexerState) match(s string) bool {
	return strings.HasPrefix(l.input[l.offset:], s)
}

func (l *lexerState) token(typ lexer.TokenType, start lexer.Position) lexer.Token {
	return lexer.Token{
		Type:  typ,
		Value: l.input[start.Offset:l.offset],
		Pos:   start,
	}
}

// Character helpers.

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isDigitByte(b byte) bool {
	return b >= '0' && b <= '9'
}

func isIdentStartByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentByte(b byte) bool {
	return isIdentStartByte(b) || isDigitByte(b)
}
