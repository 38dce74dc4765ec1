package generator

import (
	"fmt"
	"strings"

	"bookgen/internal/outline"
)

// PromptBuilder constructs the fixed book prompts. Every prompt embeds the
// short outline so each section is written against the whole book's shape.
type PromptBuilder struct {
	Words       int // target length of each section
	MinExamples int
	MaxExamples int
}

func DefaultPromptBuilder() *PromptBuilder {
	return &PromptBuilder{Words: 2000, MinExamples: 0, MaxExamples: 2}
}

const outlinePreamble = "The following is a book outline for an ebook:"

func (pb *PromptBuilder) Introduction(short string) string {
	return fmt.Sprintf("%s\n %s\nWrite a detailed %d word Introduction for the book.", outlinePreamble, short, pb.Words)
}

func (pb *PromptBuilder) ChapterIntroduction(short string, ch outline.Chapter) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s%s\n", outlinePreamble, short)
	fmt.Fprintf(&sb, "Write a %d word Introduction for %s.\n ", pb.Words, ch.Heading())
	fmt.Fprintf(&sb, "The Chapter's main topics are: %s", strings.Join(ch.MainTopicNames, ", "))
	return sb.String()
}

func (pb *PromptBuilder) Topic(short string, ch outline.Chapter, tp outline.Topic) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s%s\n", outlinePreamble, short)
	fmt.Fprintf(&sb, "Write a %d words section within %s. ", pb.Words, ch.Heading())
	fmt.Fprintf(&sb, "The section's main topic is: %s. %s ", tp.Name, pb.examples())
	return sb.String()
}

func (pb *PromptBuilder) Subtopic(short string, ch outline.Chapter, subtopic string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s%s\n", outlinePreamble, short)
	fmt.Fprintf(&sb, "Write a %d words section within %s. ", pb.Words, ch.Heading())
	fmt.Fprintf(&sb, "The section's topic is: %s. %s ", subtopic, pb.examples())
	sb.WriteString("Do not prefix paragraphs with titles.")
	return sb.String()
}

func (pb *PromptBuilder) Conclusion(short string) string {
	return fmt.Sprintf("%s\n %s\nAs a professional Author, write a detailed %d words conclusion for the book.", outlinePreamble, short, pb.Words)
}

func (pb *PromptBuilder) Glossary(short string) string {
	return fmt.Sprintf("%s\n %s\nAs a professional Author, write a detailed glossary for the book.", outlinePreamble, short)
}

func (pb *PromptBuilder) examples() string {
	var choices []string
	for n := pb.MinExamples; n <= pb.MaxExamples; n++ {
		choices = append(choices, fmt.Sprint(n))
	}
	switch len(choices) {
	case 0:
		return "Do not append examples to this section."
	case 1:
		return fmt.Sprintf("Append %s examples to the end of this section.", choices[0])
	}
	list := strings.Join(choices[:len(choices)-1], ", ") + ", and " + choices[len(choices)-1]
	return fmt.Sprintf("Choose between %s examples to append the end of this section.", list)
}
