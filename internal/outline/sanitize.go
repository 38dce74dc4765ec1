package outline

import (
	"strings"
)

// Sanitize keeps ASCII letters, digits and spaces, dropping bullets,
// punctuation and numbering marks.
func Sanitize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ':
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}

// ShortOutline extracts the structural lines from raw outline text without
// building the full model. The header line is skipped, as in Parse.
func ShortOutline(text string) string {
	lines := splitLines(text)
	var sb strings.Builder
	for i := 1; i < len(lines); i++ {
		switch classify(lines[i]) {
		case kindTitle, kindChapter, kindTopic:
			sb.WriteString(lines[i])
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
