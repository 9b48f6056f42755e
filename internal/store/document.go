// Package store provides the tenant-partitioned JSON document store the
// workflow engine persists into. Documents carry a docType discriminator
// and an optional taskId secondary key; the store offers point reads,
// filtered queries and create/replace/delete, nothing more.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a point read or replace misses.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when creating a document whose (tenant, id)
	// already exists.
	ErrConflict = errors.New("document already exists")
)

// Document is the persistence envelope. Body holds the full entity JSON;
// the remaining fields are indexed copies used for partitioning and
// filtered queries.
type Document struct {
	ID        string
	TenantID  string
	DocType   string
	TaskID    string
	CreatedAt time.Time
	Body      json.RawMessage
}

// Filter narrows a tenant query. Zero-value fields are ignored.
type Filter struct {
	DocType string
	TaskID  string
}

// Store is the document store contract. Query results are ordered by
// creation time ascending (oldest first), document id as tiebreak.
type Store interface {
	Get(ctx context.Context, tenantID, id string) (*Document, error)
	Query(ctx context.Context, tenantID string, f Filter) ([]*Document, error)
	Create(ctx context.Context, doc *Document) error
	Replace(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, tenantID, id string) error
}
