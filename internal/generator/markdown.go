package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bookgen/internal/storage"
)

// Document receives the book in traversal order. Nothing is persisted until
// Close; Discard drops everything written so far.
type Document interface {
	AddHeading(level int, text string) error
	AddParagraph(text string) error
	// Close persists the document and returns its location.
	Close(ctx context.Context) (string, error)
	Discard()
}

// DocumentOpener opens a named document for one pipeline run.
type DocumentOpener interface {
	Open(name string) (Document, error)
}

var errDocumentClosed = errors.New("document already closed")

// MarkdownStore writes each book as <name>.md with its <name>.json model.
type MarkdownStore struct {
	dir       string
	version   string
	outlineID string
	now       func() time.Time
}

func NewMarkdownStore(dir string) *MarkdownStore {
	return &MarkdownStore{dir: dir, version: "bookgen-dev", now: time.Now}
}

// WithOutline records the source outline in each book's model metadata.
func (s *MarkdownStore) WithOutline(id storage.OutlineID) *MarkdownStore {
	cp := *s
	cp.outlineID = id.FileName()
	return &cp
}

func (s *MarkdownStore) Open(name string) (Document, error) {
	if name == "" {
		return nil, fmt.Errorf("document name is required")
	}
	return &markdownDocument{store: s, name: name}, nil
}

func (s *MarkdownStore) MarkdownPath(name string) string {
	return filepath.Join(s.dir, name+".md")
}

func (s *MarkdownStore) ModelPath(name string) string {
	return filepath.Join(s.dir, name+".json")
}

type markdownDocument struct {
	store  *MarkdownStore
	name   string
	blocks []Block
	done   bool
}

func (d *markdownDocument) AddHeading(level int, text string) error {
	if d.done {
		return errDocumentClosed
	}
	d.blocks = append(d.blocks, Block{Heading: true, Level: level, Text: text})
	return nil
}

func (d *markdownDocument) AddParagraph(text string) error {
	if d.done {
		return errDocumentClosed
	}
	d.blocks = append(d.blocks, Block{Text: text})
	return nil
}

func (d *markdownDocument) Close(ctx context.Context) (string, error) {
	if d.done {
		return "", errDocumentClosed
	}
	d.done = true
	if err := ctx.Err(); err != nil {
		return "", err
	}

	model := BuildBookModel(d.name, d.blocks, BookMeta{
		GeneratedAt:      d.store.now().UTC().Format(time.RFC3339),
		GeneratorVersion: d.store.version,
		OutlineID:        d.store.outlineID,
	})
	if err := model.ValidateWithSchema(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(d.store.dir, 0755); err != nil {
		return "", &storage.StorageError{Op: "mkdir", Path: d.store.dir, Err: err}
	}
	modelPath := d.store.ModelPath(d.name)
	if err := SaveBookModel(modelPath, model); err != nil {
		return "", &storage.StorageError{Op: "write", Path: modelPath, Err: err}
	}
	mdPath := d.store.MarkdownPath(d.name)
	if err := os.WriteFile(mdPath, []byte(RenderMarkdown(model)), 0644); err != nil {
		_ = os.Remove(modelPath)
		return "", &storage.StorageError{Op: "write", Path: mdPath, Err: err}
	}
	d.blocks = nil
	return mdPath, nil
}

func (d *markdownDocument) Discard() {
	d.done = true
	d.blocks = nil
}
