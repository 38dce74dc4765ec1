package generator

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const bookModelSchemaVersion = "v0.1.0"

//go:embed book_model.schema.json
var bookModelSchemaJSON string

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// BookModel is the structured form of a finished book, written next to the
// rendered Markdown.
type BookModel struct {
	SchemaVersion string        `json:"schema_version"`
	Document      BookDoc       `json:"document"`
	Sections      []BookSection `json:"sections"`
	Meta          BookMeta      `json:"meta"`
}

type BookDoc struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	RootSectionIDs []string `json:"root_section_ids"`
}

type BookSection struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Level      int      `json:"level"`
	Order      int      `json:"order"`
	ParentID   *string  `json:"parent_id"`
	Paragraphs []string `json:"paragraphs"`
	Hash       string   `json:"hash"`
}

type BookMeta struct {
	GeneratedAt      string `json:"generated_at"`
	GeneratorVersion string `json:"generator_version,omitempty"`
	OutlineID        string `json:"outline_id,omitempty"`
}

// Block is one heading or paragraph in document order.
type Block struct {
	Heading bool
	Level   int
	Text    string
}

// BuildBookModel folds a block stream into sections. Paragraphs before the
// first heading are kept under an untitled preface section.
func BuildBookModel(id string, blocks []Block, meta BookMeta) *BookModel {
	m := &BookModel{
		SchemaVersion: bookModelSchemaVersion,
		Document:      BookDoc{ID: id, RootSectionIDs: []string{}},
		Sections:      []BookSection{},
		Meta:          meta,
	}
	// taken holds every assigned id; suffixes[base] is the last suffix tried
	// for base. A generated "x-2" can clash with a literal "X 2" heading.
	taken := make(map[string]bool)
	suffixes := make(map[string]int)
	// open heading per level, for parent lookup
	var stack []int

	addSection := func(title string, level int) *BookSection {
		baseID := normalizeSectionID(title)
		sid := baseID
		for taken[sid] {
			n := suffixes[baseID]
			if n == 0 {
				n = 1
			}
			n++
			suffixes[baseID] = n
			sid = fmt.Sprintf("%s-%d", baseID, n)
		}
		taken[sid] = true

		for len(stack) > 0 && m.Sections[stack[len(stack)-1]].Level >= level {
			stack = stack[:len(stack)-1]
		}
		sec := BookSection{ID: sid, Title: title, Level: level, Order: len(m.Sections), Paragraphs: []string{}}
		if len(stack) > 0 {
			parent := m.Sections[stack[len(stack)-1]].ID
			sec.ParentID = &parent
		} else {
			m.Document.RootSectionIDs = append(m.Document.RootSectionIDs, sid)
		}
		m.Sections = append(m.Sections, sec)
		stack = append(stack, len(m.Sections)-1)
		return &m.Sections[len(m.Sections)-1]
	}

	for _, b := range blocks {
		if b.Heading {
			addSection(strings.TrimSpace(b.Text), clampLevel(b.Level))
			continue
		}
		if len(m.Sections) == 0 {
			addSection("Preface", 1)
		}
		last := &m.Sections[len(m.Sections)-1]
		last.Paragraphs = append(last.Paragraphs, strings.TrimSpace(b.Text))
	}
	for i := range m.Sections {
		m.Sections[i].Hash = sectionHash(m.Sections[i])
	}
	if len(m.Sections) > 0 {
		m.Document.Title = m.Sections[0].Title
	}
	return m
}

func (m *BookModel) Validate() error {
	if m == nil {
		return fmt.Errorf("book model is nil")
	}
	if m.SchemaVersion == "" {
		return fmt.Errorf("schema_version is required")
	}
	if len(m.Sections) == 0 {
		return fmt.Errorf("sections must not be empty")
	}
	sectionIDs := make(map[string]bool, len(m.Sections))
	for _, s := range m.Sections {
		if s.ID == "" {
			return fmt.Errorf("section id is required")
		}
		if sectionIDs[s.ID] {
			return fmt.Errorf("duplicate section id: %s", s.ID)
		}
		if s.ParentID != nil && !sectionIDs[*s.ParentID] {
			return fmt.Errorf("section %s has unknown or later parent %s", s.ID, *s.ParentID)
		}
		sectionIDs[s.ID] = true
	}
	return nil
}

// ValidateWithSchema runs the structural checks and the embedded JSON Schema.
func (m *BookModel) ValidateWithSchema() error {
	if err := m.Validate(); err != nil {
		return err
	}
	schema, err := loadCompiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile book model schema: %w", err)
	}

	var v any
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal book model for schema validation: %w", err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("failed to normalize book model for schema validation: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("book model schema validation failed: %w", err)
	}
	return nil
}

func loadCompiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("book_model.schema.json", strings.NewReader(bookModelSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("book_model.schema.json")
	})
	return compiledSchema, schemaErr
}

func LoadBookModel(path string) (*BookModel, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m BookModel
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func SaveBookModel(path string, model *BookModel) error {
	if err := model.ValidateWithSchema(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0644)
}

// RenderMarkdown renders sections in order; empty paragraphs are skipped.
// Headings inside paragraph text are escaped so the rendered structure
// matches the sections.
func RenderMarkdown(m *BookModel) string {
	var sb strings.Builder
	for i, s := range m.Sections {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.Repeat("#", clampLevel(s.Level)) + " " + s.Title + "\n")
		for _, p := range s.Paragraphs {
			if strings.TrimSpace(p) == "" {
				continue
			}
			sb.WriteString("\n" + escapeHeadings(p) + "\n")
		}
	}
	return sb.String()
}

// escapeHeadings turns "# x" lines outside fenced code into literal text.
func escapeHeadings(text string) string {
	lines := strings.Split(text, "\n")
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence || headingLevel(trimmed) == 0 {
			continue
		}
		at := strings.IndexByte(line, '#')
		lines[i] = line[:at] + `\` + line[at:]
	}
	return strings.Join(lines, "\n")
}

func normalizeSectionID(title string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	id := strings.TrimSuffix(sb.String(), "-")
	if id == "" {
		return "section"
	}
	return id
}

func sectionHash(s BookSection) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d\x00%s\x00", s.Level, s.Title)
	for _, p := range s.Paragraphs {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

func clampLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}
