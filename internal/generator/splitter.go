package generator

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SplitMarkdown parses a rendered book into a flat list of heading sections.
// Lines inside fenced code blocks are never treated as headings.
func SplitMarkdown(filename, content string) []DocSection {
	var sections []DocSection
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	currentTitle := ""
	currentLevel := 0
	var currentBuffer strings.Builder
	inFence := false

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
		}
		if level := headingLevel(trimmed); !inFence && level > 0 {
			if strings.TrimSpace(currentBuffer.String()) != "" {
				sections = append(sections, createSection(filename, currentTitle, currentLevel, currentBuffer.String()))
			}
			currentTitle = strings.TrimSpace(trimmed[level:])
			currentLevel = level
			currentBuffer.Reset()
		}
		currentBuffer.WriteString(line + "\n")
	}

	if strings.TrimSpace(currentBuffer.String()) != "" {
		sections = append(sections, createSection(filename, currentTitle, currentLevel, currentBuffer.String()))
	}
	return sections
}

func headingLevel(trimmed string) int {
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || len(trimmed) <= level || trimmed[level] != ' ' {
		return 0
	}
	return level
}

func createSection(filename, title string, level int, content string) DocSection {
	idRaw := fmt.Sprintf("%s:%d:%s", filename, level, title)
	hash := sha256.Sum256([]byte(idRaw))

	return DocSection{
		ID:      hex.EncodeToString(hash[:8]),
		Title:   title,
		Level:   level,
		Content: content,
	}
}
