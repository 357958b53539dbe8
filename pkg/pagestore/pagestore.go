// Package pagestore persists the verbatim text of each logical page so the
// query router can hand whole pages, not just matched snippets, to the
// completion backend.
package pagestore

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store writes one file per (documentID, pageKey) under a root directory.
// Pages are written once at ingestion and only ever overwritten by
// re-ingesting the same document.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

// Save persists page text, creating the document directory on first use.
func (s *Store) Save(documentID, pageKey, text string) error {
	dir := filepath.Join(s.root, documentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create page dir for document %s: %w", documentID, err)
	}
	path := filepath.Join(dir, pageKey+".txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write page %s/%s: %w", documentID, pageKey, err)
	}
	return nil
}

// DeleteDocument removes every stored page of one document. Deleting a
// document that has no pages is a no-op.
func (s *Store) DeleteDocument(documentID string) error {
	dir := filepath.Join(s.root, documentID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete pages for document %s: %w", documentID, err)
	}
	return nil
}

// Load reads page text. A missing page is a normal outcome reported via the
// second return value, not an error.
func (s *Store) Load(documentID, pageKey string) (string, bool, error) {
	path := filepath.Join(s.root, documentID, pageKey+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read page %s/%s: %w", documentID, pageKey, err)
	}
	return string(data), true, nil
}
