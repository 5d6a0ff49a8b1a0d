package config

import "strings"

// rawLine is one physical, 1-indexed source line paired with its trimmed,
// whitespace-split fields. Blank and "#"-prefixed lines never become a
// rawLine; the scanner skips them before they reach the parser.
type rawLine struct {
	no     int
	text   string
	fields []string
}

// scanLines splits src into trimmed, non-blank, non-comment lines.
func scanLines(src string) []rawLine {
	var out []rawLine
	for i, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(strings.TrimRight(raw, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, rawLine{
			no:     i + 1,
			text:   line,
			fields: strings.Fields(line),
		})
	}
	return out
}
