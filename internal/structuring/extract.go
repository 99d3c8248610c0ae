package structuring

import "strings"

// ExtractJSONArray strips non-JSON wrapping from a model reply: code fences,
// prose before the first '[' and after its matching ']'. It returns the
// candidate array text and whether a balanced array was found. Brackets
// inside JSON strings are ignored while matching.
func ExtractJSONArray(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

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
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
