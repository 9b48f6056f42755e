package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
	"github.com/amitoj1996/fieldops-web/internal/store"
)

// EventRepository persists TaskEvent ledger entries. Events are only ever
// created and (during cascade deletion) removed, never replaced.
type EventRepository struct {
	store  store.Store
	logger *zap.Logger
}

// NewEventRepository creates a new EventRepository
func NewEventRepository(s store.Store, logger *zap.Logger) *EventRepository {
	return &EventRepository{store: s, logger: logger}
}

// ListByTask returns all events for a task ordered by timestamp ascending.
func (r *EventRepository) ListByTask(ctx context.Context, tenantID, taskID string) ([]*entity.TaskEvent, error) {
	docs, err := r.store.Query(ctx, tenantID, store.Filter{
		DocType: entity.DocTypeEvent,
		TaskID:  taskID,
	})
	if err != nil {
		return nil, err
	}
	events := make([]*entity.TaskEvent, 0, len(docs))
	for _, doc := range docs {
		ev, err := unmarshalEvent(doc)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

// FindByType returns the single event of the given type for a task, or
// nil when none exists yet.
func (r *EventRepository) FindByType(ctx context.Context, tenantID, taskID, eventType string) (*entity.TaskEvent, error) {
	events, err := r.ListByTask(ctx, tenantID, taskID)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		if ev.EventType == eventType {
			return ev, nil
		}
	}
	return nil, nil
}

// Create appends a new ledger entry.
func (r *EventRepository) Create(ctx context.Context, ev *entity.TaskEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.store.Create(ctx, &store.Document{
		ID:        ev.ID,
		TenantID:  ev.TenantID,
		DocType:   entity.DocTypeEvent,
		TaskID:    ev.TaskID,
		CreatedAt: ev.Timestamp,
		Body:      body,
	})
}

// Delete removes an event document. Only used by cascading task deletion.
func (r *EventRepository) Delete(ctx context.Context, tenantID, id string) error {
	return r.store.Delete(ctx, tenantID, id)
}

func unmarshalEvent(doc *store.Document) (*entity.TaskEvent, error) {
	var ev entity.TaskEvent
	if err := json.Unmarshal(doc.Body, &ev); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event %s: %w", doc.ID, err)
	}
	return &ev, nil
}
