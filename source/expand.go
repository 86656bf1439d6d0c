package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Expand resolves files, directories and glob patterns into a deduplicated
// list of document paths. Directories contribute every supported file
// beneath them; patterns support ** for recursive matching.
//
// Examples:
//   - "reqs/library.md" → ["reqs/library.md"]
//   - "reqs" → every .md, .txt and .html file under reqs/
//   - "reqs/**/*.md" → every markdown file under reqs/
func Expand(patterns []string) ([]string, error) {
	var resolved []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		paths, err := expandPattern(pattern)
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", pattern, err)
		}
		for _, p := range paths {
			if !seen[p] {
				seen[p] = true
				resolved = append(resolved, p)
			}
		}
	}
	return resolved, nil
}

func expandPattern(pattern string) ([]string, error) {
	if !containsGlob(pattern) {
		info, err := os.Stat(pattern)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return []string{filepath.Clean(pattern)}, nil
		}
		return supportedFiles(filepath.Join(pattern, "**", "*"))
	}

	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no files match")
	}
	sort.Strings(matches)
	return matches, nil
}

func supportedFiles(pattern string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}
	var files []string
	for _, m := range matches {
		if Supported(m) {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Match reports whether a slash- or OS-separated relative path matches any
// of the patterns. An empty pattern list matches every supported file.
func Match(patterns []string, relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	if len(patterns) == 0 {
		return Supported(relPath)
	}
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, relPath); err == nil && ok {
			return true
		}
	}
	return false
}

// ValidatePatterns checks that every pattern is well formed.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid pattern %q: %w", p, doublestar.ErrBadPattern)
		}
	}
	return nil
}

func containsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
