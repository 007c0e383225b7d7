package extract

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Array recovers a JSON array from model output. It first parses the whole
// text; failing that it parses the first balanced [...] region. Each element
// is returned undecoded so callers can validate records one at a time.
func Array(text string) ([]json.RawMessage, bool) {
	var out []json.RawMessage
	if !decode(text, '[', &out) {
		return nil, false
	}
	return out, true
}

// Object recovers a JSON object from model output using the same two stages
// as Array, scanning for the first balanced {...} region.
func Object(text string) (map[string]any, bool) {
	var out map[string]any
	if !decode(text, '{', &out) || out == nil {
		return nil, false
	}
	return out, true
}

func decode(text string, open byte, target any) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if startsWith(trimmed, open) && json.Unmarshal([]byte(trimmed), target) == nil {
		return true
	}
	region, ok := balancedRegion(trimmed, open)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(region), target) == nil
}

// startsWith guards the whole-text stage so that valid JSON of the wrong
// shape (a bare string, a number) is not mistaken for success.
func startsWith(text string, open byte) bool {
	return len(text) > 0 && text[0] == open
}

// balancedRegion returns the substring from the first open token to its
// matching close token. Brackets inside JSON string literals are ignored.
func balancedRegion(text string, open byte) (string, bool) {
	closeToken := byte(']')
	if open == '{' {
		closeToken = '}'
	}
	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case closeToken:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// IsNull reports whether raw is the JSON literal null.
func IsNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
