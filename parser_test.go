package weft_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft"
)

func TestParsePlainString(t *testing.T) {
	t.Parallel()

	ast, err := weft.Parse("hello world")
	require.NoError(t, err)

	require.Len(t, ast.Toplevel.Items, 1)
	require.NotNil(t, ast.Toplevel.Items[0].Str)
	assert.Nil(t, ast.Toplevel.Items[0].Inter)
}

func TestParseNodeInterpolation(t *testing.T) {
	t.Parallel()

	ast, err := weft.Parse("${a.b.c}")
	require.NoError(t, err)

	require.Len(t, ast.Toplevel.Items, 1)

	inter := ast.Toplevel.Items[0].Inter
	require.NotNil(t, inter)
	require.NotNil(t, inter.Node)
	assert.Nil(t, inter.Resolver)

	require.NotNil(t, inter.Node.First.ID)
	assert.Equal(t, "a", *inter.Node.First.ID)
	assert.Len(t, inter.Node.Rest, 2)
}

func TestParseRelativeNodeInterpolation(t *testing.T) {
	t.Parallel()

	ast, err := weft.Parse("${..a}")
	require.NoError(t, err)

	inter := ast.Toplevel.Items[0].Inter
	require.NotNil(t, inter)
	require.NotNil(t, inter.Node)
	assert.Len(t, inter.Node.Dots, 2)
}

func TestParseListIndexSegment(t *testing.T) {
	t.Parallel()

	ast, err := weft.Parse("${xs.0}")
	require.NoError(t, err)

	node := ast.Toplevel.Items[0].Inter.Node
	require.NotNil(t, node)
	require.Len(t, node.Rest, 1)
	require.NotNil(t, node.Rest[0].Key.ID)
	assert.Equal(t, "0", *node.Rest[0].Key.ID)
}

func TestParseResolverInterpolation(t *testing.T) {
	t.Parallel()

	ast, err := weft.Parse("${env:PATH,fallback}")
	require.NoError(t, err)

	res := ast.Toplevel.Items[0].Inter.Resolver
	require.NotNil(t, res)
	require.Len(t, res.Name.Parts, 1)
	require.NotNil(t, res.Args)
	assert.Len(t, res.Args.Elements, 2)
}

func TestParseDottedResolverName(t *testing.T) {
	t.Parallel()

	ast, err := weft.Parse("${oc.dict.keys:d}")
	require.NoError(t, err)

	res := ast.Toplevel.Items[0].Inter.Resolver
	require.NotNil(t, res)
	assert.Len(t, res.Name.Parts, 3)
}

func TestParseNestedResolverName(t *testing.T) {
	t.Parallel()

	ast, err := weft.Parse("${${op}:1,2}")
	require.NoError(t, err)

	res := ast.Toplevel.Items[0].Inter.Resolver
	require.NotNil(t, res)
	require.Len(t, res.Name.Parts, 1)
	assert.NotNil(t, res.Name.Parts[0].Inter)
}

func TestParseNestedKeySegment(t *testing.T) {
	t.Parallel()

	ast, err := weft.Parse("${foo.${k}}")
	require.NoError(t, err)

	node := ast.Toplevel.Items[0].Inter.Node
	require.NotNil(t, node)
	require.Len(t, node.Rest, 1)
	assert.NotNil(t, node.Rest[0].Key.Inter)
}

func TestParseMixedToplevel(t *testing.T) {
	t.Parallel()

	ast, err := weft.Parse("x=${a} and ${b}!")
	require.NoError(t, err)

	// text, inter, text, inter, text
	assert.Len(t, ast.Toplevel.Items, 5)
}

func TestParseStructuredArgs(t *testing.T) {
	t.Parallel()

	ast, err := weft.Parse("${f:[a,b], {k: v}}")
	require.NoError(t, err)

	res := ast.Toplevel.Items[0].Inter.Resolver
	require.NotNil(t, res)
	require.Len(t, res.Args.Elements, 2)
	assert.NotNil(t, res.Args.Elements[0].List)
	assert.NotNil(t, res.Args.Elements[1].Dict)
}

func TestParseElementRule(t *testing.T) {
	t.Parallel()

	ast, err := weft.ParseElement("[1, 2.5, 'x']")
	require.NoError(t, err)

	require.NotNil(t, ast.Element.List)
	assert.Len(t, ast.Element.List.Seq.Elements, 3)
}

func TestParseSyntaxErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"unclosed interpolation", "${a"},
		{"unclosed with text", "${env:PATH"},
		{"unterminated quote swallows brace", `${env:X,"}`},
		{"comma inside node path", "${a,b}"},
		{"equals in bareword", "${f:a=b}"},
		{"parens in bareword", "${f:(a)}"},
		{"empty input", ""},
		{"bare brace close inside", "${}"},
		{"space in node path", "${a b}"},
		{"double interior dot", "${a..b}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := weft.Parse(tt.input)
			require.Error(t, err)

			var synErr *weft.SyntaxError

			assert.ErrorAs(t, err, &synErr)
		})
	}
}

func TestContainsInterpolation(t *testing.T) {
	t.Parallel()

	assert.True(t, weft.ContainsInterpolation("a ${b}"))
	assert.False(t, weft.ContainsInterpolation("a $ {b}"))
	assert.False(t, weft.ContainsInterpolation("plain"))
}

func TestElementRawText(t *testing.T) {
	t.Parallel()

	ast, err := weft.Parse("${f:1, b c}")
	require.NoError(t, err)

	res := ast.Toplevel.Items[0].Inter.Resolver
	require.Len(t, res.Args.Elements, 2)

	// Raw text preserves the original spelling, including whitespace.
	assert.Equal(t, "1", res.Args.Elements[0].Text())
	assert.Equal(t, " b c", res.Args.Elements[1].Text())
}
