// Package source loads requirement documents from disk, expands glob
// patterns into input sets and watches directories for changes.
package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies how a document's bytes are turned into requirement text.
type Format string

// Supported document formats.
const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatHTML     Format = "html"
)

// FormatFromExtension returns the format for a file extension, or "" when
// the extension is not supported.
func FormatFromExtension(ext string) Format {
	switch strings.ToLower(ext) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".txt", ".text":
		return FormatText
	case ".html", ".htm":
		return FormatHTML
	default:
		return ""
	}
}

// Supported reports whether path has a supported extension.
func Supported(path string) bool {
	return FormatFromExtension(filepath.Ext(path)) != ""
}

// Document is a requirements document ready to hand to the workflow.
type Document struct {
	// Path is the file the document was read from, if any.
	Path   string `json:"path,omitempty"`
	Name   string `json:"name"`
	Format Format `json:"format"`
	// Text is the plain requirement text.
	Text string `json:"text"`
	// Hash is the SHA-256 of the raw bytes.
	Hash string `json:"hash"`
	// Metadata holds markdown frontmatter, when present.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Load reads and parses a requirements document.
func Load(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := Parse(path, content)
	if err != nil {
		return nil, err
	}
	doc.Path = path
	return doc, nil
}

// Parse converts raw bytes into a Document. The format is chosen from the
// filename's extension; unknown extensions are read as plain text.
func Parse(filename string, content []byte) (*Document, error) {
	format := FormatFromExtension(filepath.Ext(filename))
	if format == "" {
		format = FormatText
	}

	doc := &Document{
		Format: format,
		Hash:   ContentHash(content),
	}

	switch format {
	case FormatHTML:
		res, err := ConvertHTML(content)
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", filename, err)
		}
		doc.Name = res.Title
		doc.Text = res.Markdown
	case FormatMarkdown:
		text := string(content)
		if fm, body, err := extractFrontmatter(text); err == nil {
			doc.Metadata = fm
			text = body
		}
		doc.Text = strings.TrimSpace(text)
		doc.Name = frontmatterName(doc.Metadata)
		if doc.Name == "" {
			doc.Name = markdownTitle(doc.Text)
		}
	default:
		doc.Text = strings.TrimSpace(string(content))
	}

	if doc.Name == "" {
		base := filepath.Base(filename)
		doc.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return doc, nil
}

// ContentHash computes a SHA256 hash of the content.
func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func frontmatterName(fm map[string]any) string {
	for _, key := range []string{"name", "title"} {
		if s, ok := fm[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// markdownTitle returns the first H1 heading.
func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// extractFrontmatter splits YAML frontmatter from a markdown body. Content
// without a frontmatter block returns an error.
func extractFrontmatter(content string) (map[string]any, string, error) {
	const delimiter = "---"

	if !strings.HasPrefix(content, delimiter+"\n") && !strings.HasPrefix(content, delimiter+"\r\n") {
		return nil, content, fmt.Errorf("no frontmatter")
	}

	start := len(delimiter)
	if content[start] == '\r' {
		start++
	}
	start++

	closeIdx := strings.Index(content[start:], "\n"+delimiter)
	if closeIdx == -1 {
		return nil, content, fmt.Errorf("no closing frontmatter delimiter")
	}
	yamlContent := content[start : start+closeIdx]

	bodyStart := start + closeIdx + 1 + len(delimiter)
	for bodyStart < len(content) && (content[bodyStart] == '\n' || content[bodyStart] == '\r') {
		bodyStart++
	}

	var frontmatter map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &frontmatter); err != nil {
		return nil, content, fmt.Errorf("parse YAML frontmatter: %w", err)
	}
	return frontmatter, content[bodyStart:], nil
}
