// File path: internal/sqlite/collection.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nicodishanthj/planbuilder/internal/docstore"
)

// Collection is a docstore.Collection stored in the documents table.
type Collection struct {
	store *Store
	name  string
}

var _ docstore.Collection = (*Collection)(nil)

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) InsertOne(ctx context.Context, doc docstore.Document) error {
	if err := c.store.ensureReady(); err != nil {
		return err
	}
	docID, ok := doc["id"].(string)
	if !ok || strings.TrimSpace(docID) == "" {
		return errors.New("sqlite: document id required")
	}
	body, err := docstore.Marshal(doc)
	if err != nil {
		return err
	}
	row := documentRow{Collection: c.name, DocID: docID, Body: string(body)}
	_, err = c.store.db.NamedExecContext(ctx, `INSERT INTO documents(collection, doc_id, body)
                VALUES(:collection, :doc_id, :body)`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", docstore.ErrDuplicateKey, err)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (c *Collection) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	if err := c.store.ensureReady(); err != nil {
		return nil, err
	}
	row, err := c.findRow(ctx, c.store.db, filter)
	if err != nil {
		return nil, err
	}
	return docstore.Unmarshal([]byte(row.Body))
}

func (c *Collection) Find(ctx context.Context, limit int) ([]docstore.Document, error) {
	if err := c.store.ensureReady(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows := []documentRow{}
	if err := c.store.db.SelectContext(ctx, &rows, `SELECT seq, body FROM documents
                WHERE collection = ? ORDER BY seq LIMIT ?`, c.name, limit); err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	docs := make([]docstore.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := docstore.Unmarshal([]byte(row.Body))
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", row.Seq, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter docstore.Filter, set docstore.Document) (docstore.UpdateResult, error) {
	if err := c.store.ensureReady(); err != nil {
		return docstore.UpdateResult{}, err
	}
	normalizedSet, err := docstore.Normalize(set)
	if err != nil {
		return docstore.UpdateResult{}, err
	}
	var result docstore.UpdateResult
	err = withTx(ctx, c.store.db, func(tx *sqlx.Tx) error {
		row, err := c.findRow(ctx, tx, filter)
		if errors.Is(err, docstore.ErrNoDocuments) {
			return nil
		}
		if err != nil {
			return err
		}
		result.Matched = 1
		doc, err := docstore.Unmarshal([]byte(row.Body))
		if err != nil {
			return err
		}
		if !docstore.ApplySet(doc, normalizedSet) {
			return nil
		}
		body, err := docstore.Marshal(doc)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE documents SET body = ?, updated_at = CURRENT_TIMESTAMP
                        WHERE seq = ?`, string(body), row.Seq); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %v", docstore.ErrDuplicateKey, err)
			}
			return fmt.Errorf("update document: %w", err)
		}
		result.Modified = 1
		return nil
	})
	if err != nil {
		return docstore.UpdateResult{}, err
	}
	return result, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter docstore.Filter) (int64, error) {
	if err := c.store.ensureReady(); err != nil {
		return 0, err
	}
	where, args, err := c.where(filter)
	if err != nil {
		return 0, err
	}
	res, err := c.store.db.ExecContext(ctx, `DELETE FROM documents WHERE seq = (
                SELECT seq FROM documents WHERE `+where+` ORDER BY seq LIMIT 1)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	return deleted, nil
}

// Ping verifies the connection pool is usable.
func (c *Collection) Ping(ctx context.Context) error {
	if err := c.store.ensureReady(); err != nil {
		return err
	}
	return c.store.db.PingContext(ctx)
}

func (c *Collection) findRow(ctx context.Context, q sqlx.QueryerContext, filter docstore.Filter) (documentRow, error) {
	where, args, err := c.where(filter)
	if err != nil {
		return documentRow{}, err
	}
	var row documentRow
	err = sqlx.GetContext(ctx, q, &row, `SELECT seq, body FROM documents WHERE `+where+` ORDER BY seq LIMIT 1`, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return documentRow{}, docstore.ErrNoDocuments
	}
	if err != nil {
		return documentRow{}, fmt.Errorf("select document: %w", err)
	}
	return row, nil
}

// where renders the filter as SQL. The "id" field uses the doc_id column;
// other fields are matched through json_extract so that plan_id lookups hit
// idx_documents_plan_id. Field names are validated before interpolation.
func (c *Collection) where(filter docstore.Filter) (string, []any, error) {
	if err := filter.Validate(); err != nil {
		return "", nil, err
	}
	if filter.Field == "id" {
		return `collection = ? AND doc_id = ?`, []any{c.name, fmt.Sprint(filter.Value)}, nil
	}
	clause := fmt.Sprintf(`collection = ? AND json_extract(body, '$.%s') = ?`, filter.Field)
	return clause, []any{c.name, filter.Value}, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
