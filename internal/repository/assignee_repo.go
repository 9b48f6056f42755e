package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
	"github.com/amitoj1996/fieldops-web/internal/store"
)

// AssigneeRepository records identities seen by the system, backing the
// assignee picker.
type AssigneeRepository struct {
	store  store.Store
	logger *zap.Logger
}

// NewAssigneeRepository creates a new AssigneeRepository
func NewAssigneeRepository(s store.Store, logger *zap.Logger) *AssigneeRepository {
	return &AssigneeRepository{store: s, logger: logger}
}

// List returns all seen identities for a tenant.
func (r *AssigneeRepository) List(ctx context.Context, tenantID string) ([]*entity.Assignee, error) {
	docs, err := r.store.Query(ctx, tenantID, store.Filter{DocType: entity.DocTypeAssignee})
	if err != nil {
		return nil, err
	}
	assignees := make([]*entity.Assignee, 0, len(docs))
	for _, doc := range docs {
		var a entity.Assignee
		if err := json.Unmarshal(doc.Body, &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal assignee %s: %w", doc.ID, err)
		}
		assignees = append(assignees, &a)
	}
	return assignees, nil
}

// Upsert refreshes the LastSeen stamp for an identity, creating the
// record the first time the identity appears.
func (r *AssigneeRepository) Upsert(ctx context.Context, a *entity.Assignee) error {
	now := time.Now().UTC()
	a.LastSeen = now
	a.UpdatedAt = now

	existing, err := r.store.Get(ctx, a.TenantID, a.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if existing == nil {
		a.CreatedAt = now
		body, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("failed to marshal assignee: %w", err)
		}
		return r.store.Create(ctx, &store.Document{
			ID:        a.ID,
			TenantID:  a.TenantID,
			DocType:   entity.DocTypeAssignee,
			CreatedAt: now,
			Body:      body,
		})
	}

	var prev entity.Assignee
	if err := json.Unmarshal(existing.Body, &prev); err == nil {
		a.CreatedAt = prev.CreatedAt
	}
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal assignee: %w", err)
	}
	return r.store.Replace(ctx, &store.Document{
		ID:       a.ID,
		TenantID: a.TenantID,
		DocType:  entity.DocTypeAssignee,
		Body:     body,
	})
}
