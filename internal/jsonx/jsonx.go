// Package jsonx extracts JSON values embedded in free text. Inference
// collaborators return prose that may contain a JSON array or object anywhere
// in the reply; callers scan for the first balanced span instead of parsing
// from the start.
package jsonx

import "encoding/json"

// Span is the raw text of an extracted JSON value.
type Span struct {
	Raw string
}

// FirstArray returns the first balanced [...] span in text.
func FirstArray(text string) (Span, bool) {
	return firstBalanced(text, '[', ']')
}

// FirstObject returns the first balanced {...} span in text.
func FirstObject(text string) (Span, bool) {
	return firstBalanced(text, '{', '}')
}

// Decode unmarshals the span into out.
func (s Span) Decode(out any) error {
	return json.Unmarshal([]byte(s.Raw), out)
}

// firstBalanced scans text for the first occurrence of open and returns the
// span up to its matching close, tracking nesting depth and skipping string
// literals so braces inside quoted values do not miscount.
func firstBalanced(text string, open, close byte) (Span, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if start >= 0 && inString {
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
		case open:
			if start < 0 {
				start = i
			}
			depth++
		case close:
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return Span{Raw: text[start : i+1]}, true
			}
		case '"':
			if start >= 0 {
				inString = true
			}
		}
	}

	return Span{}, false
}
