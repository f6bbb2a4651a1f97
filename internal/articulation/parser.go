// Package articulation turns raw provider text into structured module output.
package articulation

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"scholarforge/internal/logging"
)

// ParseError reports provider text that could not be decoded. It is never retried.
type ParseError struct {
	Reason  string
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	msg := "parse error: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parsed is a successfully decoded provider response.
type Parsed struct {
	// JSON is the compacted object text with any fencing removed.
	JSON []byte
	// Fields is the decoded top-level object.
	Fields map[string]any
	// Method is "json" or "json_markdown".
	Method string
}

// ResponseParser decodes provider output. Safe for concurrent use.
type ResponseParser struct {
	MaxSnippet int
}

// NewResponseParser creates a parser with default settings.
func NewResponseParser() *ResponseParser {
	return &ResponseParser{MaxSnippet: 120}
}

// Parse strips optional code fences and decodes raw as one JSON object.
func (p *ResponseParser) Parse(raw string) (*Parsed, error) {
	text := strings.TrimSpace(raw)
	method := "json"
	if stripped := stripFences(text); stripped != text {
		text = stripped
		method = "json_markdown"
	}

	parsed, err := p.decode(text)
	if err != nil {
		logging.Get(logging.CategoryArticulation).Warn("Parse failed (%s): %v", method, err)
		return nil, err
	}
	parsed.Method = method
	return parsed, nil
}

func (p *ResponseParser) decode(text string) (*Parsed, error) {
	if text == "" {
		return nil, &ParseError{Reason: "empty response"}
	}
	if !strings.HasPrefix(text, "{") {
		return nil, &ParseError{Reason: "response is not a JSON object", Snippet: p.snippet(text)}
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, &ParseError{Reason: "invalid JSON", Snippet: p.snippet(text), Err: err}
	}
	if fields == nil {
		return nil, &ParseError{Reason: "response is not a JSON object", Snippet: p.snippet(text)}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(text)); err != nil {
		return nil, &ParseError{Reason: "invalid JSON", Snippet: p.snippet(text), Err: err}
	}
	return &Parsed{JSON: compact.Bytes(), Fields: fields}, nil
}

func (p *ResponseParser) snippet(text string) string {
	if p.MaxSnippet <= 0 || len(text) <= p.MaxSnippet {
		return text
	}
	return text[:p.MaxSnippet] + "..."
}

// stripFences removes a leading ``` or ```json marker and a trailing ```.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// VisibleText is every string a reader of fields will see, decoded, with
// whitespace runs collapsed to one space, and joined by newlines. Map keys are
// visited in sorted order so the result is stable.
func VisibleText(fields map[string]any) string {
	var parts []string
	walkStrings(fields, &parts)
	return strings.Join(parts, "\n")
}

func walkStrings(v any, parts *[]string) {
	switch t := v.(type) {
	case string:
		if words := strings.Fields(t); len(words) > 0 {
			*parts = append(*parts, strings.Join(words, " "))
		}
	case map[string]any:
		for _, k := range sortedKeys(t) {
			walkStrings(t[k], parts)
		}
	case []any:
		for _, e := range t {
			walkStrings(e, parts)
		}
	}
}

// FieldNames returns every object key in fields, at any depth, sorted and
// without duplicates.
func FieldNames(fields map[string]any) []string {
	seen := make(map[string]bool)
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			for k, e := range t {
				seen[k] = true
				walk(e)
			}
		case []any:
			for _, e := range t {
				walk(e)
			}
		}
	}
	walk(fields)
	return sortedKeys(seen)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
