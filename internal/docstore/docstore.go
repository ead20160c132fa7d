// File path: internal/docstore/docstore.go
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// ErrNoDocuments is returned by FindOne when no document matches the filter.
var ErrNoDocuments = errors.New("docstore: no documents in result")

// ErrDuplicateKey is returned by InsertOne when a unique key already exists.
var ErrDuplicateKey = errors.New("docstore: duplicate key")

// Document is a schema-less stored record.
type Document map[string]any

// Filter selects documents whose top-level Field equals Value.
type Filter struct {
	Field string
	Value any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate rejects field names that are not plain identifiers.
func (f Filter) Validate() error {
	if !fieldPattern.MatchString(f.Field) {
		return fmt.Errorf("docstore: invalid filter field %q", f.Field)
	}
	return nil
}

// Matches reports whether doc satisfies the filter.
func (f Filter) Matches(doc Document) bool {
	value, ok := doc[f.Field]
	if !ok {
		return false
	}
	return ValuesEqual(value, f.Value)
}

// UpdateResult reports how many documents matched an update and how many were
// actually changed.
type UpdateResult struct {
	Matched  int64
	Modified int64
}

// Collection is a named set of documents. Implementations must be safe for
// concurrent use. The connection behind a collection is owned and closed by
// whoever opened it.
type Collection interface {
	Name() string
	InsertOne(ctx context.Context, doc Document) error
	FindOne(ctx context.Context, filter Filter) (Document, error)
	Find(ctx context.Context, limit int) ([]Document, error)
	UpdateOne(ctx context.Context, filter Filter, set Document) (UpdateResult, error)
	DeleteOne(ctx context.Context, filter Filter) (int64, error)
	Ping(ctx context.Context) error
}

// ApplySet writes each field of set onto doc and reports whether any stored
// value changed.
func ApplySet(doc Document, set Document) bool {
	modified := false
	for key, value := range set {
		if existing, ok := doc[key]; ok && ValuesEqual(existing, value) {
			continue
		}
		doc[key] = value
		modified = true
	}
	return modified
}

// ValuesEqual compares two values by their JSON encoding, so that numbers
// decoded as json.Number compare equal to the same literal.
func ValuesEqual(a, b any) bool {
	left, err := json.Marshal(a)
	if err != nil {
		return false
	}
	right, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}

// Marshal encodes a document as JSON.
func Marshal(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a JSON document, keeping numbers as json.Number.
func Unmarshal(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		return nil, errors.New("decode document: null document")
	}
	return doc, nil
}

// Normalize round-trips doc through JSON so that in-process documents carry
// the same value types as documents read back from storage.
func Normalize(doc Document) (Document, error) {
	data, err := Marshal(doc)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}
