package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/errors"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func collect(t *testing.T, root string) map[string]string {
	t.Helper()
	files, err := DiscoverFiles(root)
	require.NoError(t, err)
	out := map[string]string{}
	for f := range files {
		out[filepath.ToSlash(f.RelPath)] = f.Language
	}
	return out
}

func TestDiscoverFilesClassifiesAndFilters(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/main.cpp", "int main() {}\n")
	writeFile(t, root, "src/util.py", "x = 1\n")
	writeFile(t, root, "Dockerfile", "FROM scratch\n")
	writeFile(t, root, "notes.md", "# notes\n")
	writeFile(t, root, "binary.so", "")
	writeFile(t, root, "unknown.xyz", "data")
	writeFile(t, root, "node_modules/pkg/index.js", "ignored")
	writeFile(t, root, ".git/config", "ignored")
	writeFile(t, root, "app.min.js", "ignored")

	found := collect(t, root)
	assert.Equal(t, map[string]string{
		"src/main.cpp": "cpp",
		"src/util.py":  "python",
		"Dockerfile":   "dockerfile",
		"notes.md":     "markdown",
	}, found)
}

func TestDiscoverFilesPathPrefixIgnore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "docs/_build/page.md", "ignored")
	writeFile(t, root, "docs/guide.md", "kept")

	found := collect(t, root)
	assert.Contains(t, found, "docs/guide.md")
	assert.NotContains(t, found, "docs/_build/page.md")
}

func TestDiscoverFilesInvalidRoot(t *testing.T) {
	_, err := DiscoverFiles(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
	assert.True(t, errors.IsInput(err))

	file := filepath.Join(t.TempDir(), "afile")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = DiscoverFiles(file)
	require.Error(t, err)
	assert.True(t, errors.IsInput(err))
}

func TestLanguageKeyFor(t *testing.T) {
	assert.Equal(t, "dockerfile", languageKeyFor("Dockerfile"))
	assert.Equal(t, "cpp", languageKeyFor("Widget.HPP"))
	assert.Equal(t, "c", languageKeyFor("main.h"))
	assert.Equal(t, "", languageKeyFor("LICENSE"))
}
