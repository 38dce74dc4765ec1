package llm

import "strings"

// cleanMarkdownOutput drops the code fence some models wrap prose in.
func cleanMarkdownOutput(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	first, rest, ok := strings.Cut(text, "\n")
	if !ok {
		return strings.Trim(text, "`")
	}
	lang := strings.TrimSpace(strings.TrimPrefix(first, "```"))
	if lang != "" && lang != "markdown" && lang != "md" && lang != "text" {
		return text
	}
	rest = strings.TrimSpace(rest)
	rest = strings.TrimSuffix(rest, "```")
	return strings.TrimSpace(rest)
}
