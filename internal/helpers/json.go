package helpers

import (
	"encoding/json"
	"errors"
	"strings"
)

// DecodeModelJSON decodes the first JSON object found in a model response into
// out. Markdown code fences and surrounding prose are tolerated.
func DecodeModelJSON(s string, out interface{}) error {
	raw, err := ExtractJSONObject(s)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

// ExtractJSONObject returns the first balanced {...} segment of s, ignoring
// braces inside string literals.
func ExtractJSONObject(s string) (string, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "\uFEFF")
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end, ok := matchBrace(s, start); ok {
			return s[start : end+1], nil
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", errors.New("no JSON object found")
}

func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
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
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
