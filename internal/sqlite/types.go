// File path: internal/sqlite/types.go
package sqlite

import "time"

// documentRow is a stored document. Body holds the JSON encoding; DocID
// mirrors the document's "id" field.
type documentRow struct {
	Seq        int64     `db:"seq"`
	Collection string    `db:"collection"`
	DocID      string    `db:"doc_id"`
	Body       string    `db:"body"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}
