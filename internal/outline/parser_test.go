package outline

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOutline = `machine learning
Book Title: a practical guide to machine learning

Chapter 1: Foundations
Topic 1: What Is Learning?
- Supervised vs. unsupervised
- The bias/variance trade-off
Topic 2: Data
- Collecting data
- Cleaning data

Chapter 2: Models
Topic 1: Linear models
- Regression
Topic 2: Trees
`

func TestParse_Scenario(t *testing.T) {
	text := "Topic X\nBook Title: Widgets\nChapter 1: Intro\nTopic 1: Basics\n- foo\n- bar\n"

	got, err := Parse(text)
	require.NoError(t, err)

	want := &Outline{
		Title:  "Widgets",
		Header: "Topic X",
		Chapters: []Chapter{{
			Label:          "Chapter 1",
			Name:           "Intro",
			MainTopicNames: []string{"Basics"},
			Topics: []Topic{{
				Label:     "Topic 1",
				Name:      "Basics",
				Subtopics: []string{"foo", "bar"},
			}},
		}},
		Structure: []string{"Book Title: Widgets", "Chapter 1: Intro", "Topic 1: Basics"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_SampleOutline(t *testing.T) {
	o, err := Parse(sampleOutline)
	require.NoError(t, err)

	assert.Equal(t, "A Practical Guide To Machine Learning", o.Title)
	assert.Equal(t, "machine learning", o.Header)
	require.Len(t, o.Chapters, 2)

	c1 := o.Chapters[0]
	assert.Equal(t, "Chapter 1", c1.Label)
	assert.Equal(t, "Foundations", c1.Name)
	assert.Equal(t, []string{"What Is Learning", "Data"}, c1.MainTopicNames)
	require.Len(t, c1.Topics, 2)
	assert.Equal(t, "What Is Learning?", c1.Topics[0].Name)
	assert.Equal(t, []string{"Supervised vs unsupervised", "The biasvariance tradeoff"}, c1.Topics[0].Subtopics)

	c2 := o.Chapters[1]
	require.Len(t, c2.Topics, 2)
	assert.Empty(t, c2.Topics[1].Subtopics)
}

func TestParse_FirstLineIsAlwaysHeader(t *testing.T) {
	// A header that looks like a chapter must not open one.
	o, err := Parse("Chapter books\nChapter 1: Picture books\nTopic 1: Art\n")
	require.NoError(t, err)
	require.Len(t, o.Chapters, 1)
	assert.Equal(t, "Chapter books", o.Header)
}

func TestParse_CaseInsensitiveIndentedPrefixes(t *testing.T) {
	o, err := Parse("x\nBOOK TITLE: loud\n  CHAPTER 1: One\n    topic 1: Sub\n      * detail #1\n")
	require.NoError(t, err)
	assert.Equal(t, "Loud", o.Title)
	assert.Equal(t, "CHAPTER 1", o.Chapters[0].Label)
	assert.Equal(t, "topic 1", o.Chapters[0].Topics[0].Label)
	assert.Equal(t, []string{"detail 1"}, o.Chapters[0].Topics[0].Subtopics)
}

func TestParse_CRLF(t *testing.T) {
	o, err := Parse("x\r\nChapter 1: One\r\nTopic 1: A\r\n- a\r\n")
	require.NoError(t, err)
	assert.Equal(t, "One", o.Chapters[0].Name)
	assert.Equal(t, []string{"a"}, o.Chapters[0].Topics[0].Subtopics)
}

func TestParse_ColonInName(t *testing.T) {
	o, err := Parse("x\nChapter 1: Go: The Language\nTopic 1: Syntax: basics\n")
	require.NoError(t, err)
	assert.Equal(t, "Go: The Language", o.Chapters[0].Name)
	assert.Equal(t, "Syntax: basics", o.Chapters[0].Topics[0].Name)
	assert.Equal(t, []string{"Syntax basics"}, o.Chapters[0].MainTopicNames)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		line   int
		reason string
	}{
		{"topic before chapter", "x\nTopic 1: Early\n", 2, "topic outside of a chapter"},
		{"subtopic before chapter", "x\n- stray\n", 2, "subtopic outside of a topic"},
		{"subtopic before topic", "x\nChapter 1: One\n- stray\n", 3, "subtopic outside of a topic"},
		{"chapter without colon", "x\nChapter 1 One\nTopic 1: A\n", 2, "missing ':' separator"},
		{"topic without colon", "x\nChapter 1: One\nTopic 1 A\n", 3, "missing ':' separator"},
		{"duplicate chapter", "x\nChapter 1: One\nTopic 1: A\nChapter 1: Again\nTopic 1: B\n", 4, "duplicate chapter label"},
		{"duplicate topic", "x\nChapter 1: One\nTopic 1: A\nTopic 1: B\n", 4, "duplicate topic label"},
		{"chapter without topics", "x\nChapter 1: One\nChapter 2: Two\nTopic 1: A\n", 0, "has no topics"},
		{"empty body", "x\n\n", 0, "no chapters"},
		{"empty text", "", 0, "no chapters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			require.Error(t, err)
			var mErr *MalformedOutlineError
			require.True(t, errors.As(err, &mErr))
			assert.Equal(t, tt.line, mErr.Line)
			assert.Contains(t, mErr.Reason, tt.reason)
		})
	}
}

func TestParse_StructuralRoundTrip(t *testing.T) {
	o, err := Parse(sampleOutline)
	require.NoError(t, err)

	var want []string
	for _, line := range strings.Split(sampleOutline, "\n")[1:] {
		l := strings.ToLower(strings.TrimSpace(line))
		if strings.HasPrefix(l, "book title") || strings.HasPrefix(l, "chapter") || strings.HasPrefix(l, "topic") {
			want = append(want, line)
		}
	}
	assert.Equal(t, strings.Join(want, "\n")+"\n", o.ShortOutline())
	assert.Equal(t, ShortOutline(sampleOutline), o.ShortOutline())

	// Re-parsing the short form reproduces the structure, without subtopics.
	again, err := Parse(o.Header + "\n" + o.ShortOutline())
	require.NoError(t, err)
	assert.Equal(t, o.Structure, again.Structure)
	assert.Equal(t, o.Title, again.Title)
	require.Len(t, again.Chapters, len(o.Chapters))
	for i := range o.Chapters {
		assert.Equal(t, o.Chapters[i].Label, again.Chapters[i].Label)
		assert.Equal(t, o.Chapters[i].MainTopicNames, again.Chapters[i].MainTopicNames)
	}
}

func TestPromptCount(t *testing.T) {
	o, err := Parse(sampleOutline)
	require.NoError(t, err)

	// intro + 2 chapter intros + 4 topics + conclusion
	assert.Equal(t, 8, o.PromptCount(false, false))
	// intro + 2 chapter intros + (2+2+1+0) subtopics + conclusion + glossary
	assert.Equal(t, 10, o.PromptCount(true, true))
}
