package lint_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/lint"
)

func TestSourceCleanDocument(t *testing.T) {
	t.Parallel()

	diags, err := lint.Source("ok.yaml", []byte(`
a: plain
b: ${a}
c: prefix ${a} suffix
d: \${escaped}
`))
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestSourceReportsBadInterpolations(t *testing.T) {
	t.Parallel()

	diags, err := lint.Source("bad.yaml", []byte(`a: good ${x}
b: broken ${x
nested:
  deep: ${env:X,"
`))
	require.NoError(t, err)
	require.Len(t, diags, 2)

	assert.Equal(t, "bad.yaml", diags[0].Path)
	assert.Equal(t, "b", diags[0].Key)
	assert.Equal(t, 2, diags[0].Line)

	assert.Equal(t, "nested.deep", diags[1].Key)
	assert.Equal(t, 4, diags[1].Line)
}

func TestSourceSkipsNonStringScalars(t *testing.T) {
	t.Parallel()

	diags, err := lint.Source("n.yaml", []byte("a: 12\nb: true\n"))
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestSourceSequencesGetIndexedKeys(t *testing.T) {
	t.Parallel()

	diags, err := lint.Source("seq.yaml", []byte("items:\n  - ok\n  - ${broken\n"))
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "items.1", diags[0].Key)
}

func TestSourceUndecodableDocument(t *testing.T) {
	t.Parallel()

	diags, err := lint.Source("x.yaml", []byte(":\t:bad:\n\t-"))
	require.NoError(t, err)
	assert.NotEmpty(t, diags)
}

func TestFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")

	require.NoError(t, os.WriteFile(path, []byte("a: ${oops\n"), 0o644))

	diags, err := lint.File(path)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, path, diags[0].Path)
}
