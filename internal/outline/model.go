// Package outline turns generated outline text into the book structure the
// generation pipeline walks.
package outline

import "strings"

// Outline is the parsed book: title, chapters in appearance order, and the
// structural lines they were read from.
type Outline struct {
	Title    string
	Header   string // first line of the source text, normally the topic
	Chapters []Chapter

	// Structure holds the verbatim book-title, chapter and topic lines.
	Structure []string
}

type Chapter struct {
	Label  string // e.g. "Chapter 3"
	Name   string
	Topics []Topic

	// MainTopicNames are the sanitized topic names, used as compact context
	// in chapter-level prompts.
	MainTopicNames []string
}

type Topic struct {
	Label     string
	Name      string
	Subtopics []string
}

// ShortOutline returns the structure-only view of the outline: every
// book-title, chapter and topic line in original order, newline terminated.
func (o *Outline) ShortOutline() string {
	if o == nil || len(o.Structure) == 0 {
		return ""
	}
	return strings.Join(o.Structure, "\n") + "\n"
}

// DisplayTitle is the title used for the document heading.
func (o *Outline) DisplayTitle() string {
	if t := strings.TrimSpace(o.Title); t != "" {
		return t
	}
	return strings.TrimSpace(o.Header)
}

// PromptCount is the number of generation requests a full traversal issues.
func (o *Outline) PromptCount(expanded, glossary bool) int {
	n := 2 // introduction + conclusion
	if glossary {
		n++
	}
	for _, ch := range o.Chapters {
		n++
		for _, tp := range ch.Topics {
			if expanded {
				n += len(tp.Subtopics)
			} else {
				n++
			}
		}
	}
	return n
}

// Heading is the document heading for the chapter.
func (c Chapter) Heading() string {
	return c.Label + ": " + c.Name
}
