package assistant

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports a model reply that did not contain a decodable JSON object.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable model reply (%d bytes): %v", len(e.Raw), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// findJSONObject returns the first balanced top-level {...} block in input.
// Braces inside JSON strings are ignored.
func findJSONObject(input string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(input); i++ {
		ch := input[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			// Quotes only delimit strings once an object has opened.
			if depth > 0 {
				inString = !inString
			}
			continue
		}
		if inString {
			continue
		}
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
			continue
		}
		if ch == '}' {
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				return input[start : i+1], true
			}
		}
	}
	return "", false
}

// replyFields is a decoded model reply, keyed by field name.
type replyFields map[string]json.RawMessage

// parseReply extracts and decodes the first JSON object in raw.
func parseReply(raw string) (replyFields, error) {
	block, ok := findJSONObject(raw)
	if !ok {
		return nil, &ParseError{Raw: raw, Err: fmt.Errorf("no JSON object found")}
	}
	var fields replyFields
	if err := json.Unmarshal([]byte(block), &fields); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	return fields, nil
}

// str returns the field as text. Non-string JSON values are returned in their
// JSON form so nothing the model wrote is dropped. Missing, null and blank
// fields report false.
func (f replyFields) str(key string) (string, bool) {
	v, ok := f[key]
	if !ok {
		return "", false
	}
	trimmed := strings.TrimSpace(string(v))
	if trimmed == "" || trimmed == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return "", false
		}
		return s, true
	}
	return trimmed, true
}

// list returns the field as a list of strings. A single string becomes one
// element; non-string elements are kept in their JSON form.
func (f replyFields) list(key string) ([]string, bool) {
	v, ok := f[key]
	if !ok {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		if s, ok := f.str(key); ok {
			return []string{s}, true
		}
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
			continue
		}
		if t := strings.TrimSpace(string(item)); t != "" && t != "null" {
			out = append(out, t)
		}
	}
	return out, true
}
