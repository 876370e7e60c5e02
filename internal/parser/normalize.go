package parser

import "strings"

// Normalize collapses line-ending variance and unwraps the tabular
// "boxed" rendering some clients draw around a dump. It returns the
// cleaned text plus human-readable warnings about what changed.
func Normalize(raw string) (string, []string) {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	boxed := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isBoxRule(trimmed) {
			boxed = true
			continue
		}
		if len(trimmed) >= 2 && strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") {
			boxed = true
			out = append(out, strings.TrimSpace(trimmed[1:len(trimmed)-1]))
			continue
		}
		out = append(out, line)
	}

	var warnings []string
	if boxed {
		warnings = append(warnings, "input looked like a boxed table rendering; frame characters were stripped before parsing")
	}
	return strings.Join(out, "\n"), warnings
}

// isBoxRule matches horizontal rules such as "+------+------+".
func isBoxRule(s string) bool {
	if s == "" {
		return false
	}
	seenPlus := false
	for _, r := range s {
		switch r {
		case '+':
			seenPlus = true
		case '-':
		default:
			return false
		}
	}
	return seenPlus
}
