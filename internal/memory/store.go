// File path: internal/memory/store.go
package memory

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nicodishanthj/planbuilder/internal/docstore"
)

// Store is a docstore.Collection persisted as one JSON document per line.
// The whole collection is held in memory and the file is rewritten on every
// mutation.
type Store struct {
	path string
	name string
	mu   sync.RWMutex
	docs []docstore.Document
}

var _ docstore.Collection = (*Store)(nil)

// NewStore opens (or creates) the collection file for name under the
// directory derived from path.
func NewStore(path, name string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path required")
	}
	basePath := determineRoot(path)
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	filePath, err := collectionFile(basePath, name)
	if err != nil {
		return nil, err
	}
	store := &Store{path: filePath, name: strings.TrimSpace(name)}
	docs, err := store.readAll()
	if err != nil {
		return nil, err
	}
	store.docs = docs
	return store, nil
}

// Name returns the collection name.
func (s *Store) Name() string {
	return s.name
}

// Path returns the backing file.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) InsertOne(ctx context.Context, doc docstore.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized, err := docstore.Normalize(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := normalized["id"]; ok {
		for _, existing := range s.docs {
			if docstore.ValuesEqual(existing["id"], id) {
				return fmt.Errorf("%w: id %v", docstore.ErrDuplicateKey, id)
			}
		}
	}
	file, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer file.Close()
	data, err := docstore.Marshal(normalized)
	if err != nil {
		return err
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append doc: %w", err)
	}
	s.docs = append(s.docs, normalized)
	return nil
}

func (s *Store) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(filter)
	if idx < 0 {
		return nil, docstore.ErrNoDocuments
	}
	return docstore.Normalize(s.docs[idx])
}

func (s *Store) Find(ctx context.Context, limit int) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := len(s.docs)
	if limit > 0 && limit < count {
		count = limit
	}
	out := make([]docstore.Document, 0, count)
	for _, doc := range s.docs[:count] {
		copied, err := docstore.Normalize(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, copied)
	}
	return out, nil
}

func (s *Store) UpdateOne(ctx context.Context, filter docstore.Filter, set docstore.Document) (docstore.UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return docstore.UpdateResult{}, err
	}
	normalizedSet, err := docstore.Normalize(set)
	if err != nil {
		return docstore.UpdateResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(filter)
	if idx < 0 {
		return docstore.UpdateResult{}, nil
	}
	updated, err := docstore.Normalize(s.docs[idx])
	if err != nil {
		return docstore.UpdateResult{}, err
	}
	if !docstore.ApplySet(updated, normalizedSet) {
		return docstore.UpdateResult{Matched: 1}, nil
	}
	next := append([]docstore.Document(nil), s.docs...)
	next[idx] = updated
	if err := s.rewrite(ctx, next); err != nil {
		return docstore.UpdateResult{}, err
	}
	s.docs = next
	return docstore.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (s *Store) DeleteOne(ctx context.Context, filter docstore.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(filter)
	if idx < 0 {
		return 0, nil
	}
	next := make([]docstore.Document, 0, len(s.docs)-1)
	next = append(next, s.docs[:idx]...)
	next = append(next, s.docs[idx+1:]...)
	if err := s.rewrite(ctx, next); err != nil {
		return 0, err
	}
	s.docs = next
	return 1, nil
}

// Ping checks that the backing file is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("stat store dir: %w", err)
	}
	return nil
}

// Close is a no-op; every mutation is flushed before it returns.
func (s *Store) Close() error {
	return nil
}

func (s *Store) indexOf(filter docstore.Filter) int {
	for i, doc := range s.docs {
		if filter.Matches(doc) {
			return i
		}
	}
	return -1
}

func (s *Store) rewrite(ctx context.Context, docs []docstore.Document) error {
	file, err := os.OpenFile(s.path, os.O_TRUNC|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer file.Close()
	writer := bufio.NewWriter(file)
	for _, doc := range docs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		data, err := docstore.Marshal(doc)
		if err != nil {
			return err
		}
		if _, err := writer.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write doc: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush store: %w", err)
	}
	return nil
}

func (s *Store) readAll() ([]docstore.Document, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64<<10), 32<<20)
	var docs []docstore.Document
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		doc, err := docstore.Unmarshal(line)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan docs: %w", err)
	}
	return docs, nil
}

func collectionFile(root, name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("collection name required")
	}
	encoded := base64.RawURLEncoding.EncodeToString([]byte(trimmed))
	return filepath.Join(root, fmt.Sprintf("collection_%s.jsonl", encoded)), nil
}

func determineRoot(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "."
	}
	info, err := os.Stat(trimmed)
	if err == nil {
		if info.IsDir() {
			return trimmed
		}
		return filepath.Dir(trimmed)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return filepath.Dir(trimmed)
	}
	// Path does not exist; assume caller intended a file if an extension is present.
	if ext := filepath.Ext(trimmed); ext != "" {
		dir := filepath.Dir(trimmed)
		if dir == "" || dir == "." {
			return "."
		}
		return dir
	}
	return trimmed
}
