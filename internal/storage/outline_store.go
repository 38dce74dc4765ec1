package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileOutlineStore keeps outlines as plain text files in one directory.
type FileOutlineStore struct {
	dir string
}

func NewFileOutlineStore(dir string) *FileOutlineStore {
	return &FileOutlineStore{dir: dir}
}

func (s *FileOutlineStore) Dir() string { return s.dir }

func (s *FileOutlineStore) Path(id OutlineID) string {
	return filepath.Join(s.dir, id.FileName())
}

func (s *FileOutlineStore) List(topic string) ([]OutlineID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &StorageError{Op: "list", Path: s.dir, Err: err}
	}
	var ids []OutlineID
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := ParseOutlineID(e.Name())
		if !ok || id.Topic != topic {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Seq < ids[j].Seq })
	return ids, nil
}

func (s *FileOutlineStore) Load(id OutlineID) (string, error) {
	path := s.Path(id)
	b, err := os.ReadFile(path)
	if err != nil {
		return "", &StorageError{Op: "read", Path: path, Err: err}
	}
	return string(b), nil
}

func (s *FileOutlineStore) Save(id OutlineID, body string) error {
	path := s.Path(id)
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return &StorageError{Op: "mkdir", Path: s.dir, Err: err}
	}
	text := FormatOutlineFile(id.Topic, body)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// FormatOutlineFile is the stored form of an outline: the topic header line
// followed by the generated body.
func FormatOutlineFile(topic, body string) string {
	return fmt.Sprintf("%s\n%s", strings.TrimSpace(topic), body)
}
