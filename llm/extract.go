package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Pre-compiled regex patterns for JSON extraction from LLM responses.
var (
	// fencedBlock matches one fenced block: its tag and its body up to the
	// next fence.
	fencedBlock = regexp.MustCompile("(?s)```([\\w-]*)[ \\t]*\\r?\\n?(.*?)```")
	// objectSpan matches from the first { to the last } (greedy, not nesting-aware).
	objectSpan = regexp.MustCompile(`(?s)\{.*\}`)
	arraySpan  = regexp.MustCompile(`(?s)\[.*\]`)

	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractionError reports that no parseable JSON was found in model output.
type ExtractionError struct {
	Reason string
	Raw    string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract json: %s", e.Reason)
}

// ExtractJSON returns the first syntactically valid JSON value found in
// content. Candidates are tried in priority order:
//
//  1. an object in a fenced block tagged json
//  2. an object in any fenced block
//  3. the span from the first { to the last } in the text
//  4. the whole trimmed text
//
// The winning candidate is returned verbatim. Only when no candidate parses
// as-is are comment and trailing-comma repairs attempted, in the same order.
//
// Step 3 does not track nesting, so text with several sibling objects outside
// fences yields an invalid span and falls through to step 4.
func ExtractJSON(content string) (string, error) {
	return extract(content, '{', objectSpan)
}

// ExtractJSONArray is ExtractJSON for a top-level array.
func ExtractJSONArray(content string) (string, error) {
	return extract(content, '[', arraySpan)
}

func extract(content string, open byte, span *regexp.Regexp) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", &ExtractionError{Reason: "empty input", Raw: content}
	}

	candidates := fencedCandidates(content, open)
	if s := span.FindString(content); s != "" {
		candidates = append(candidates, s)
	}
	candidates = append(candidates, trimmed)

	for _, c := range candidates {
		if json.Valid([]byte(c)) {
			return c, nil
		}
	}
	for _, c := range candidates {
		if cleaned := cleanJSON(c); json.Valid([]byte(cleaned)) {
			return cleaned, nil
		}
	}
	return "", &ExtractionError{Reason: "no parseable JSON found", Raw: content}
}

// fencedCandidates returns the trimmed bodies of fenced blocks that start
// with open: blocks tagged json first, then the others, each in document order.
func fencedCandidates(content string, open byte) []string {
	var tagged, other []string
	for _, m := range fencedBlock.FindAllStringSubmatch(content, -1) {
		body := strings.TrimSpace(m[2])
		if body == "" || body[0] != open {
			continue
		}
		if strings.EqualFold(m[1], "json") {
			tagged = append(tagged, body)
		} else {
			other = append(other, body)
		}
	}
	return append(tagged, other...)
}

// DecodeObject extracts and decodes a JSON object from content.
func DecodeObject(content string) (map[string]any, error) {
	raw, err := ExtractJSON(content)
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, &ExtractionError{Reason: "extracted JSON is not an object", Raw: content}
	}
	if obj == nil {
		return nil, &ExtractionError{Reason: "extracted JSON is null", Raw: content}
	}
	return obj, nil
}

// cleanJSON removes JavaScript-style comments and trailing commas from JSON.
// LLMs commonly produce these invalid JSON artifacts.
func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, stripLineComment(line))
	}
	result := strings.Join(cleaned, "\n")

	return trailingCommaPattern.ReplaceAllString(result, "$1")
}

// stripLineComment removes a // comment from a JSON line, respecting string values.
//
//	"path/to/file.js",          // This is a comment  → "path/to/file.js",
//	"url": "http://example.com"                        → unchanged
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
