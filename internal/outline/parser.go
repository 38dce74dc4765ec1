package outline

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MalformedOutlineError reports a line that cannot be placed in the outline.
type MalformedOutlineError struct {
	Line   int // 1-based, counting the header line
	Text   string
	Reason string
}

func (e *MalformedOutlineError) Error() string {
	if e.Line <= 0 {
		return "malformed outline: " + e.Reason
	}
	return fmt.Sprintf("malformed outline at line %d (%q): %s", e.Line, e.Text, e.Reason)
}

type lineKind int

const (
	kindBlank lineKind = iota
	kindTitle
	kindChapter
	kindTopic
	kindSubtopic
)

// classify matches the trimmed line case-insensitively against the
// recognized prefixes.
func classify(line string) lineKind {
	lower := strings.ToLower(strings.TrimSpace(line))
	switch {
	case lower == "":
		return kindBlank
	case strings.HasPrefix(lower, "book title"):
		return kindTitle
	case strings.HasPrefix(lower, "chapter"):
		return kindChapter
	case strings.HasPrefix(lower, "topic"):
		return kindTopic
	default:
		return kindSubtopic
	}
}

type parseState int

const (
	stateStart parseState = iota
	stateInChapter
	stateInTopic
)

type parser struct {
	state parseState
	out   *Outline
	// index of the open chapter in out.Chapters
	chapter int
	lineNo  int
	line    string
}

var titleCaser = cases.Title(language.Und)

// Parse reads outline text. The first line is a header and is never parsed.
func Parse(text string) (*Outline, error) {
	lines := splitLines(text)
	p := &parser{out: &Outline{}, chapter: -1}
	if len(lines) > 0 {
		p.out.Header = strings.TrimSpace(lines[0])
	}
	for i := 1; i < len(lines); i++ {
		p.lineNo = i + 1
		p.line = lines[i]
		if err := p.step(classify(lines[i]), strings.TrimSpace(lines[i])); err != nil {
			return nil, err
		}
	}
	if err := p.closeChapter(); err != nil {
		return nil, err
	}
	if len(p.out.Chapters) == 0 {
		return nil, &MalformedOutlineError{Reason: "outline has no chapters"}
	}
	return p.out, nil
}

func (p *parser) step(kind lineKind, trimmed string) error {
	switch kind {
	case kindBlank:
		return nil

	case kindTitle:
		title := trimmed[len("book title"):]
		if _, after, ok := strings.Cut(trimmed, ":"); ok {
			title = after
		}
		p.out.Title = titleCaser.String(strings.TrimSpace(title))
		p.out.Structure = append(p.out.Structure, p.line)
		return nil

	case kindChapter:
		if err := p.closeChapter(); err != nil {
			return err
		}
		label, name, err := p.splitLabel(trimmed)
		if err != nil {
			return err
		}
		for _, ch := range p.out.Chapters {
			if ch.Label == label {
				return p.malformed("duplicate chapter label " + label)
			}
		}
		p.out.Chapters = append(p.out.Chapters, Chapter{Label: label, Name: name})
		p.chapter = len(p.out.Chapters) - 1
		p.out.Structure = append(p.out.Structure, p.line)
		p.state = stateInChapter
		return nil

	case kindTopic:
		if p.state == stateStart {
			return p.malformed("topic outside of a chapter")
		}
		label, name, err := p.splitLabel(trimmed)
		if err != nil {
			return err
		}
		ch := &p.out.Chapters[p.chapter]
		for _, tp := range ch.Topics {
			if tp.Label == label {
				return p.malformed("duplicate topic label " + label + " in " + ch.Label)
			}
		}
		ch.Topics = append(ch.Topics, Topic{Label: label, Name: name})
		ch.MainTopicNames = append(ch.MainTopicNames, Sanitize(name))
		p.out.Structure = append(p.out.Structure, p.line)
		p.state = stateInTopic
		return nil

	default:
		if p.state != stateInTopic {
			return p.malformed("subtopic outside of a topic")
		}
		sub := Sanitize(trimmed)
		if sub == "" {
			return nil
		}
		ch := &p.out.Chapters[p.chapter]
		tp := &ch.Topics[len(ch.Topics)-1]
		tp.Subtopics = append(tp.Subtopics, sub)
		return nil
	}
}

func (p *parser) closeChapter() error {
	if p.chapter < 0 {
		return nil
	}
	ch := p.out.Chapters[p.chapter]
	if len(ch.Topics) == 0 {
		return &MalformedOutlineError{Reason: ch.Label + " has no topics"}
	}
	return nil
}

func (p *parser) splitLabel(trimmed string) (string, string, error) {
	label, name, ok := strings.Cut(trimmed, ":")
	if !ok {
		return "", "", p.malformed("missing ':' separator")
	}
	return strings.TrimSpace(label), strings.TrimSpace(name), nil
}

func (p *parser) malformed(reason string) error {
	return &MalformedOutlineError{Line: p.lineNo, Text: strings.TrimSpace(p.line), Reason: reason}
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
