package agents

import "strings"

// stripFences removes a surrounding markdown code fence from model output,
// including an optional language tag on the opening line.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx != -1 {
		first := strings.TrimSpace(s[:idx])
		if first != "" && !strings.ContainsAny(first, " {}[]()") {
			s = s[idx+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// firstJSON trims any prose around the outermost JSON value in model output.
func firstJSON(s string) string {
	s = stripFences(s)
	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return s
	}
	open := s[start]
	var closer byte = '}'
	if open == '[' {
		closer = ']'
	}
	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == open:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}
