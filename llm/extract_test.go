package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string // exact expected output when non-empty
		wantKey string // if non-empty, check this key exists in parsed JSON
	}{
		{
			name:  "plain JSON",
			input: `{"goal": "test"}`,
			want:  `{"goal": "test"}`,
		},
		{
			name:  "tagged fence returned byte for byte",
			input: "Here is the diagram:\n```json\n{\n  \"name\": \"UC\",\n  \"actors\": [ {\"name\": \"A\"} ]\n}\n```\nLet me know.",
			want:  "{\n  \"name\": \"UC\",\n  \"actors\": [ {\"name\": \"A\"} ]\n}",
		},
		{
			name:  "uppercase tag",
			input: "```JSON\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "untagged fence",
			input: "Result:\n```\n{\"a\": {\"b\": 2}}\n```",
			want:  `{"a": {"b": 2}}`,
		},
		{
			name:  "tagged fence wins over earlier untagged",
			input: "```\n{\"first\": true}\n```\n```json\n{\"second\": true}\n```",
			want:  `{"second": true}`,
		},
		{
			name:  "object in prose",
			input: `The answer is {"status": "pass", "feedback": ""} as requested.`,
			want:  `{"status": "pass", "feedback": ""}`,
		},
		{
			name:  "URL in string with comment after",
			input: "{\"url\": \"http://example.com/path\"} // trailing",
			want:  `{"url": "http://example.com/path"}`,
		},
		{
			name:    "JS comments repaired",
			input:   "```json\n{\n  \"items\": [\n    \"one\",  // first\n    \"two\",  // second\n  ]\n}\n```",
			wantKey: "items",
		},
		{
			name:  "truncated block followed by corrected block",
			input: "```json\n{\"name\": \"Shop\",\n```\nSorry, corrected:\n```json\n{\"name\": \"Shop\"}\n```",
			want:  `{"name": "Shop"}`,
		},
		{
			name:  "untagged block after broken tagged block",
			input: "```json\n{\"a\": \n```\n```\n{\"b\": 2}\n```",
			want:  `{"b": 2}`,
		},
		{
			name:  "fenced non-JSON block before the object",
			input: "```python\nprint('x')\n```\n```json\n{\"c\": 3}\n```",
			want:  `{"c": 3}`,
		},
		{
			name:  "whole text array fallback",
			input: "  [{\"a\": 1}, {\"b\": 2}]  ",
			want:  `[{"a": 1}, {"b": 2}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			require.NoError(t, err)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
			}
			if tt.wantKey != "" {
				var parsed map[string]any
				require.NoError(t, json.Unmarshal([]byte(got), &parsed))
				assert.Contains(t, parsed, tt.wantKey)
			}
		})
	}
}

func TestExtractJSONErrors(t *testing.T) {
	for _, input := range []string{"", "   \n\t ", "This is just text with no JSON.", "{not json}"} {
		_, err := ExtractJSON(input)
		require.Error(t, err, "input %q", input)

		var ee *ExtractionError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, input, ee.Raw)
	}
}

// Sibling objects outside fences produce a span covering both, which does not
// parse; extraction fails rather than guessing which object was meant.
func TestExtractJSONSiblingObjectsLimitation(t *testing.T) {
	_, err := ExtractJSON(`first {"a": 1} then {"b": 2}`)
	var ee *ExtractionError
	require.ErrorAs(t, err, &ee)

	got, err := ExtractJSON("```json\n{\"a\": 1}\n```\n```json\n{\"b\": 2}\n```")
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, got)
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
	}{
		{name: "plain array", input: `["one", "two"]`, wantLen: 2},
		{name: "markdown code block array", input: "```json\n[\"one\", \"two\"]\n```", wantLen: 2},
		{name: "array with comments", input: "```json\n[\n  \"one\",  // first\n  \"two\"   // second\n]\n```", wantLen: 2},
		{name: "broken block then corrected block", input: "```json\n[\"one\",\n```\nFixed:\n```json\n[\"one\", \"two\", \"three\"]\n```", wantLen: 3},
		{name: "array of objects in prose", input: "Constraints: [{\"name\": \"A\"}, {\"name\": \"B\"}, {\"name\": \"C\"}] done", wantLen: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExtractJSONArray(tt.input)
			require.NoError(t, err)

			var parsed []any
			require.NoError(t, json.Unmarshal([]byte(result), &parsed))
			assert.Len(t, parsed, tt.wantLen)
		})
	}

	_, err := ExtractJSONArray("")
	assert.Error(t, err)
}

func TestDecodeObject(t *testing.T) {
	obj, err := DecodeObject("```json\n{\"status\": \"pass\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "pass", obj["status"])

	_, err = DecodeObject(`[1, 2]`)
	var ee *ExtractionError
	assert.ErrorAs(t, err, &ee)

	_, err = DecodeObject(`null`)
	assert.ErrorAs(t, err, &ee)
}

func TestStripLineComment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "no comment", input: `  "key": "value",`, expected: `  "key": "value",`},
		{name: "trailing comment", input: `  "key": "value",  // a comment`, expected: `  "key": "value",`},
		{name: "URL in string preserved", input: `  "url": "http://example.com",`, expected: `  "url": "http://example.com",`},
		{name: "whole line comment", input: `  // This is a comment`, expected: ``},
		{name: "escaped quote in string", input: `  "path": "a\"b//c",  // comment`, expected: `  "path": "a\"b//c",`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stripLineComment(tt.input))
		})
	}
}

func TestCleanJSON(t *testing.T) {
	for _, input := range []string{
		`{"items": ["one", "two",]}`,
		`{"a": 1, "b": 2,}`,
		"{\n  \"items\": [\n    \"one\",  // first\n    \"two\",  // second\n  ]\n}",
	} {
		assert.True(t, json.Valid([]byte(cleanJSON(input))), input)
	}
}
