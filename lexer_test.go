package weft

import (
	"testing"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tok is a compact token expectation for tests.
type tok struct {
	Type  lexer.TokenType
	Value string
}

func lexAll(t *testing.T, mode lexerMode, input string) ([]tok, error) {
	t.Helper()

	lx, err := newGrammarLexer(mode).LexString("", input)
	require.NoError(t, err)

	var toks []tok

	for {
		next, err := lx.Next()
		if err != nil {
			return toks, err
		}

		if next.Type == tEOF {
			return toks, nil
		}

		toks = append(toks, tok{Type: next.Type, Value: next.Value})
	}
}

func TestLexerToplevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []tok
	}{
		{
			name:  "plain text",
			input: "hello world",
			want:  []tok{{tTopStr, "hello world"}},
		},
		{
			name:  "lone dollar is literal",
			input: "price: $5",
			want:  []tok{{tTopStr, "price: $5"}},
		},
		{
			name:  "interpolation switches modes",
			input: "a${b}c",
			want: []tok{
				{tTopStr, "a"},
				{tInterOpen, "${"},
				{tID, "b"},
				{tBraceClose, "}"},
				{tTopStr, "c"},
			},
		},
		{
			name:  "escaped interpolation",
			input: `\${x}`,
			want:  []tok{{tEscInter, `\${`}, {tTopStr, "x}"}},
		},
		{
			name:  "escaped backslashes",
			input: `\\\\`,
			want:  []tok{{tTopEsc, `\\\\`}},
		},
		{
			name:  "escaped backslash then interpolation",
			input: `\\${a}`,
			want: []tok{
				{tTopEsc, `\\`},
				{tInterOpen, "${"},
				{tID, "a"},
				{tBraceClose, "}"},
			},
		},
		{
			name:  "stray backslash is literal",
			input: `a\b`,
			want:  []tok{{tTopStr, `a\b`}},
		},
		{
			name:  "stray closing brace is literal",
			input: "a}b",
			want:  []tok{{tTopStr, "a}b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := lexAll(t, modeToplevel, tt.input)
			require.NoError(t, err)

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("token mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLexerValueNumbers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  []tok
	}{
		{"1", []tok{{tInt, "1"}}},
		{"+1", []tok{{tInt, "+1"}}},
		{"-1", []tok{{tInt, "-1"}}},
		{"1_000", []tok{{tInt, "1_000"}}},
		// Leading zeros never extend an integer.
		{"01", []tok{{tInt, "0"}, {tInt, "1"}}},
		{"1.5", []tok{{tFloat, "1.5"}}},
		{".5", []tok{{tFloat, ".5"}}},
		{"1.", []tok{{tFloat, "1."}}},
		{"1.05", []tok{{tFloat, "1.05"}}},
		{"-1e2", []tok{{tFloat, "-1e2"}}},
		{"+1E-2", []tok{{tFloat, "+1E-2"}}},
		{"1_0e1_0", []tok{{tFloat, "1_0e1_0"}}},
		// A zero-led exponent stops the float early.
		{"1e-02", []tok{{tFloat, "1e-0"}, {tInt, "2"}}},
		{"01e2", []tok{{tInt, "0"}, {tFloat, "1e2"}}},
		{"e-2", []tok{{tID, "e"}, {tInt, "-2"}}},
		{"inf", []tok{{tFloat, "inf"}}},
		{"-inf", []tok{{tFloat, "-inf"}}},
		{"+nan", []tok{{tFloat, "+nan"}}},
		{"infx", []tok{{tID, "infx"}}},
		{"1_", []tok{{tInt, "1"}, {tID, "_"}}},
		{"1__0", []tok{{tInt, "1"}, {tID, "__0"}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := lexAll(t, modeValue, tt.input)
			require.NoError(t, err)

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("token mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLexerValueKeywords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  []tok
	}{
		{"null", []tok{{tNull, "null"}}},
		{"NULL", []tok{{tNull, "NULL"}}},
		{"true", []tok{{tBool, "true"}}},
		{"False", []tok{{tBool, "False"}}},
		{"nullx", []tok{{tID, "nullx"}}},
		{"truest", []tok{{tID, "truest"}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := lexAll(t, modeValue, tt.input)
			require.NoError(t, err)

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("token mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLexerValueStructure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []tok
	}{
		{
			name:  "dict tokens",
			input: "{a: 1}",
			want: []tok{
				{tBraceOpen, "{"},
				{tID, "a"},
				{tColon, ":"},
				{tWs, " "},
				{tInt, "1"},
				{tBraceClose, "}"},
			},
		},
		{
			name:  "list tokens",
			input: "[1,b]",
			want: []tok{
				{tBracketOpen, "["},
				{tInt, "1"},
				{tComma, ","},
				{tID, "b"},
				{tBracketClose, "]"},
			},
		},
		{
			name:  "nested interpolation",
			input: "${a}",
			want: []tok{
				{tInterOpen, "${"},
				{tID, "a"},
				{tBraceClose, "}"},
			},
		},
		{
			name:  "bareword chars",
			input: "a/b$c",
			want: []tok{
				{tID, "a"},
				{tChar, "/"},
				{tID, "b"},
				{tChar, "$"},
				{tID, "c"},
			},
		},
		{
			name:  "dots and colons",
			input: ".b:",
			want:  []tok{{tDot, "."}, {tID, "b"}, {tColon, ":"}},
		},
		{
			name:  "quoted with escapes",
			input: `'it\'s'`,
			want:  []tok{{tQuoted, `'it\'s'`}},
		},
		{
			name:  "double quoted",
			input: `"a b"`,
			want:  []tok{{tQuoted, `"a b"`}},
		},
		{
			name:  "escaped backslashes",
			input: `\\`,
			want:  []tok{{tEsc, `\\`}},
		},
		{
			name:  "single backslash is a char",
			input: `a\b`,
			want:  []tok{{tID, "a"}, {tChar, `\`}, {tID, "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := lexAll(t, modeValue, tt.input)
			require.NoError(t, err)

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("token mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLexerValueErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"equals is reserved", "a=b"},
		{"parens are reserved", "(a)"},
		{"unterminated single quote", "'abc"},
		{"unterminated double quote", `"abc`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := lexAll(t, modeValue, tt.input)
			require.Error(t, err)

			var lexErr *LexerError

			assert.ErrorAs(t, err, &lexErr)
		})
	}
}

func TestLexerModeStack(t *testing.T) {
	t.Parallel()

	// ${ and { push value mode, } pops; after the final pop the lexer is
	// back in toplevel mode where } is literal text.
	got, err := lexAll(t, modeToplevel, "${a.${b}}tail}")
	require.NoError(t, err)

	want := []tok{
		{tInterOpen, "${"},
		{tID, "a"},
		{tDot, "."},
		{tInterOpen, "${"},
		{tID, "b"},
		{tBraceClose, "}"},
		{tBraceClose, "}"},
		{tTopStr, "tail}"},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("token mismatch (-want +got):\n%s", diff)
	}
}
