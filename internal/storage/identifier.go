package storage

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	outlineRole  = "outline"
	fullbookRole = "fullbook"
)

// OutlineID names one stored outline: "<topic>_outline.<NNNNN>.txt".
// The zero-padded suffix keeps lexicographic and numeric order aligned.
type OutlineID struct {
	Topic string
	Seq   int
}

var outlineNameRe = regexp.MustCompile(`^(.+)_outline\.(\d+)\.txt$`)

// ParseOutlineID parses a stored outline file name.
func ParseOutlineID(name string) (OutlineID, bool) {
	m := outlineNameRe.FindStringSubmatch(name)
	if m == nil {
		return OutlineID{}, false
	}
	seq, err := strconv.Atoi(m[2])
	if err != nil || seq <= 0 {
		return OutlineID{}, false
	}
	return OutlineID{Topic: m[1], Seq: seq}, true
}

func (id OutlineID) Suffix() string {
	return fmt.Sprintf("%05d", id.Seq)
}

// FileName is the outline's file name.
func (id OutlineID) FileName() string {
	return id.Topic + "_" + outlineRole + "." + id.Suffix() + ".txt"
}

// DocumentName is the base name of the finished book built from this
// outline: same topic and suffix, role renamed.
func (id OutlineID) DocumentName() string {
	return id.Topic + "_" + fullbookRole + "." + id.Suffix()
}

func (id OutlineID) String() string { return id.FileName() }

// Next is the identifier following id for the same topic.
func (id OutlineID) Next() OutlineID {
	return OutlineID{Topic: id.Topic, Seq: id.Seq + 1}
}

// FirstOutlineID is used when a topic has no stored outline.
func FirstOutlineID(topic string) OutlineID {
	return OutlineID{Topic: topic, Seq: 1}
}

// ValidateTopic rejects topics that cannot be used as part of a file name.
func ValidateTopic(topic string) error {
	t := strings.TrimSpace(topic)
	switch {
	case t == "":
		return fmt.Errorf("topic is required")
	case t != topic:
		return fmt.Errorf("topic %q has surrounding whitespace", topic)
	case strings.ContainsAny(t, `/\`+"\x00"), t == "." || t == "..":
		return fmt.Errorf("topic %q cannot be used in a file name", topic)
	}
	return nil
}
