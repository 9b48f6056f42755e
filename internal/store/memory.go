package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process document store used in tests and local
// development. It mirrors the ordering and error semantics of the SQLite
// store.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]map[string]*Document
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[string]map[string]*Document)}
}

func (m *MemoryStore) Get(ctx context.Context, tenantID, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.tenants[tenantID][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(doc), nil
}

func (m *MemoryStore) Query(ctx context.Context, tenantID string, f Filter) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []*Document
	for _, doc := range m.tenants[tenantID] {
		if f.DocType != "" && doc.DocType != f.DocType {
			continue
		}
		if f.TaskID != "" && doc.TaskID != f.TaskID {
			continue
		}
		docs = append(docs, copyDocument(doc))
	}

	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (m *MemoryStore) Create(ctx context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tenant, ok := m.tenants[doc.TenantID]
	if !ok {
		tenant = make(map[string]*Document)
		m.tenants[doc.TenantID] = tenant
	}
	if _, exists := tenant[doc.ID]; exists {
		return ErrConflict
	}
	tenant[doc.ID] = copyDocument(doc)
	return nil
}

func (m *MemoryStore) Replace(ctx context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tenant := m.tenants[doc.TenantID]
	existing, ok := tenant[doc.ID]
	if !ok {
		return ErrNotFound
	}
	replaced := copyDocument(doc)
	replaced.CreatedAt = existing.CreatedAt
	tenant[doc.ID] = replaced
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tenant := m.tenants[tenantID]
	if _, ok := tenant[id]; !ok {
		return ErrNotFound
	}
	delete(tenant, id)
	return nil
}

func copyDocument(doc *Document) *Document {
	cp := *doc
	cp.Body = append([]byte(nil), doc.Body...)
	return &cp
}
