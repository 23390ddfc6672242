// Package jsonx pulls JSON values out of free-form model responses, which
// often wrap the payload in markdown fences or surrounding prose.
package jsonx

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when a response carries no parseable JSON value.
var ErrNoJSON = errors.New("no JSON value found in response")

// Largest returns the largest balanced JSON object or array in text that
// is valid JSON. Braces inside string literals are ignored.
func Largest(text string) (string, bool) {
	best := ""
	for start := 0; start < len(text); start++ {
		c := text[start]
		if c != '{' && c != '[' {
			continue
		}
		end := matchClose(text, start)
		if end < 0 {
			continue
		}
		candidate := text[start : end+1]
		if !json.Valid([]byte(candidate)) {
			continue
		}
		if len(candidate) > len(best) {
			best = candidate
		}
		// anything nested in candidate is smaller
		start = end
	}
	return best, best != ""
}

// Object decodes the largest JSON object found in text into v.
func Object(text string, v any) error {
	raw, ok := Largest(text)
	if !ok || raw[0] != '{' {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decoding JSON object: %w", err)
	}
	return nil
}

// Array returns the elements of the JSON array in text. When the response
// is a single object, the first array-valued field is used. A response cut
// off mid-array still yields every element that was complete.
func Array(text string) ([]json.RawMessage, error) {
	if raw, ok := Largest(text); ok {
		var items []json.RawMessage
		if raw[0] == '[' {
			if err := json.Unmarshal([]byte(raw), &items); err != nil {
				return nil, fmt.Errorf("decoding JSON array: %w", err)
			}
			return items, nil
		}
		if items, ok := firstArrayField(raw); ok {
			return items, nil
		}
	}

	if items := truncatedArray(text); len(items) > 0 {
		return items, nil
	}
	return nil, ErrNoJSON
}

// firstArrayField walks the fields of a JSON object in document order and
// returns the elements of the first array value.
func firstArrayField(raw string) ([]json.RawMessage, bool) {
	dec := json.NewDecoder(strings.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, false
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, false
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, false
		}
		var items []json.RawMessage
		if len(v) > 0 && v[0] == '[' && json.Unmarshal(v, &items) == nil {
			return items, true
		}
	}
	return nil, false
}

// matchClose returns the index of the bracket closing the one at start, or
// -1 when the value is unbalanced or truncated.
func matchClose(text string, start int) int {
	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

// truncatedArray collects the complete top-level objects of an array whose
// closing bracket never arrived.
func truncatedArray(text string) []json.RawMessage {
	open := -1
	for i := 0; i < len(text); i++ {
		if text[i] == '[' {
			open = i
			break
		}
	}
	if open < 0 {
		return nil
	}

	var items []json.RawMessage
	for i := open + 1; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end := matchClose(text, i)
		if end < 0 {
			break
		}
		if obj := text[i : end+1]; json.Valid([]byte(obj)) {
			items = append(items, json.RawMessage(obj))
		}
		i = end
	}
	return items
}
