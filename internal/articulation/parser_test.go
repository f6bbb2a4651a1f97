package articulation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PlainJSON(t *testing.T) {
	p := NewResponseParser()
	got, err := p.Parse(`  {"hint": "Count the tens first.", "scaffoldLevel": 1}  `)
	require.NoError(t, err)
	assert.Equal(t, "json", got.Method)
	assert.Equal(t, "Count the tens first.", got.Fields["hint"])
	assert.Equal(t, `{"hint":"Count the tens first.","scaffoldLevel":1}`, string(got.JSON))
}

func TestParse_FencedJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"json fence", "```json\n{\"a\": 1}\n```"},
		{"bare fence", "```\n{\"a\": 1}\n```"},
		{"upper fence", "```JSON\n{\"a\": 1}```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewResponseParser().Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, "json_markdown", got.Method)
			assert.Equal(t, float64(1), got.Fields["a"])
		})
	}
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"empty", "   ", "empty response"},
		{"prose", "Sure! Here is your hint: think about tens.", "not a JSON object"},
		{"array", `[{"a":1}]`, "not a JSON object"},
		{"truncated", `{"a": 1`, "invalid JSON"},
		{"trailing prose", `{"a": 1} hope that helps`, "invalid JSON"},
		{"null", "```json\nnull\n```", "not a JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResponseParser().Parse(tt.raw)
			require.Error(t, err)
			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Contains(t, pe.Reason, tt.reason)
		})
	}
}

func TestVisibleText_DecodesEscapes(t *testing.T) {
	parsed, err := NewResponseParser().Parse(`{"hint":"Maybe try caf\u00e9 here.","tip":"is it 1\/2?","n":3,"more":{"a":["x \u003e 3","learning\ndisability"]}}`)
	require.NoError(t, err)

	text := VisibleText(parsed.Fields)
	assert.Equal(t, "Maybe try café here.\nx > 3\nlearning disability\nis it 1/2?", text)
}

func TestFieldNames(t *testing.T) {
	fields := map[string]any{
		"hint":  "x",
		"scope": map[string]any{"subjectId": "s-1", "hint": "y"},
		"items": []any{map[string]any{"stem": "z"}},
	}
	assert.Equal(t, []string{"hint", "items", "scope", "stem", "subjectId"}, FieldNames(fields))
	assert.Empty(t, FieldNames(nil))
}

func TestParseError_SnippetIsBounded(t *testing.T) {
	p := &ResponseParser{MaxSnippet: 5}
	_, err := p.Parse("this is not json at all")
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "this ...", pe.Snippet)
}
