package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("# "+f), 0644))
	}
	return root
}

func TestExpand(t *testing.T) {
	root := makeTree(t,
		"a.md",
		"notes.txt",
		"img.png",
		"sub/b.md",
		"sub/deep/c.html",
	)
	j := func(parts ...string) string { return filepath.Join(append([]string{root}, parts...)...) }

	t.Run("single file", func(t *testing.T) {
		got, err := Expand([]string{j("img.png")})
		require.NoError(t, err)
		assert.Equal(t, []string{j("img.png")}, got)
	})

	t.Run("directory keeps supported files", func(t *testing.T) {
		got, err := Expand([]string{root})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{j("a.md"), j("notes.txt"), j("sub", "b.md"), j("sub", "deep", "c.html")}, got)
	})

	t.Run("recursive glob", func(t *testing.T) {
		got, err := Expand([]string{filepath.Join(root, "**", "*.md")})
		require.NoError(t, err)
		assert.Equal(t, []string{j("a.md"), j("sub", "b.md")}, got)
	})

	t.Run("duplicates removed", func(t *testing.T) {
		got, err := Expand([]string{j("a.md"), filepath.Join(root, "*.md")})
		require.NoError(t, err)
		assert.Equal(t, []string{j("a.md")}, got)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Expand([]string{j("nope.md")})
		assert.Error(t, err)
	})

	t.Run("glob without matches", func(t *testing.T) {
		_, err := Expand([]string{filepath.Join(root, "**", "*.rst")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no files match")
	})
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		want     bool
	}{
		{"default supported", nil, "a.md", true},
		{"default unsupported", nil, "a.go", false},
		{"root level with doublestar", []string{"**/*.md"}, "a.md", true},
		{"nested with doublestar", []string{"**/*.md"}, filepath.Join("x", "y", "a.md"), true},
		{"directory scoped", []string{"reqs/**/*.txt"}, filepath.Join("other", "a.txt"), false},
		{"any of several", []string{"*.html", "*.txt"}, "a.txt", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.patterns, tt.path))
		})
	}
}

func TestValidatePatterns(t *testing.T) {
	assert.NoError(t, ValidatePatterns([]string{"**/*.md", "docs/*.{txt,html}"}))
	assert.Error(t, ValidatePatterns([]string{"[unclosed"}))
}
