package layer

import "strings"

// Wrap cuts text into lines of width runes joined by sep. Whitespace runs,
// newlines included, collapse to a single space first.
func Wrap(text string, width int, sep string) string {
	text = strings.Join(strings.Fields(text), " ")
	if width <= 0 {
		return text
	}
	r := []rune(text)
	var lines []string
	for len(r) > width {
		lines = append(lines, string(r[:width]))
		r = r[width:]
	}
	if len(r) > 0 {
		lines = append(lines, string(r))
	}
	return strings.Join(lines, sep)
}
