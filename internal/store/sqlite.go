package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/pkg/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	tenant_id  TEXT NOT NULL,
	id         TEXT NOT NULL,
	doc_type   TEXT NOT NULL,
	task_id    TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	body       TEXT NOT NULL,
	PRIMARY KEY (tenant_id, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_type ON documents (tenant_id, doc_type);
CREATE INDEX IF NOT EXISTS idx_documents_task ON documents (tenant_id, task_id);
`

// SQLiteStore persists documents in a single SQLite table, one row per
// JSON document. Filters hit the (tenant, doc_type) and (tenant, task_id)
// indexes; everything else stays inside the body column.
type SQLiteStore struct {
	db     *database.DB
	logger *zap.Logger
}

// NewSQLiteStore creates the store and ensures the schema exists.
func NewSQLiteStore(db *database.DB, logger *zap.Logger) (*SQLiteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create documents schema: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Get performs a tenant-partitioned point read.
func (s *SQLiteStore) Get(ctx context.Context, tenantID, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, id, doc_type, task_id, created_at, body
		 FROM documents WHERE tenant_id = ? AND id = ?`, tenantID, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

// Query returns all tenant documents matching the filter, ordered by
// creation time ascending.
func (s *SQLiteStore) Query(ctx context.Context, tenantID string, f Filter) ([]*Document, error) {
	q := `SELECT tenant_id, id, doc_type, task_id, created_at, body
	      FROM documents WHERE tenant_id = ?`
	args := []interface{}{tenantID}
	if f.DocType != "" {
		q += ` AND doc_type = ?`
		args = append(args, f.DocType)
	}
	if f.TaskID != "" {
		q += ` AND task_id = ?`
		args = append(args, f.TaskID)
	}
	q += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Create inserts a new document, failing with ErrConflict on a duplicate
// (tenant, id).
func (s *SQLiteStore) Create(ctx context.Context, doc *Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (tenant_id, id, doc_type, task_id, created_at, body)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.TenantID, doc.ID, doc.DocType, doc.TaskID,
		doc.CreatedAt.UTC().Format(time.RFC3339Nano), string(doc.Body))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// Replace overwrites an existing document body (last write wins; no
// optimistic concurrency token).
func (s *SQLiteStore) Replace(ctx context.Context, doc *Document) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET doc_type = ?, task_id = ?, body = ?
		 WHERE tenant_id = ? AND id = ?`,
		doc.DocType, doc.TaskID, string(doc.Body), doc.TenantID, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to replace document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a document by (tenant, id).
func (s *SQLiteStore) Delete(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(r rowScanner) (*Document, error) {
	var doc Document
	var createdAt, body string
	if err := r.Scan(&doc.TenantID, &doc.ID, &doc.DocType, &doc.TaskID, &createdAt, &body); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at %q: %w", createdAt, err)
	}
	doc.CreatedAt = t
	doc.Body = []byte(body)
	return &doc, nil
}

func isUniqueViolation(err error) bool {
	// go-sqlite3 reports primary key violations as "UNIQUE constraint failed"
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
