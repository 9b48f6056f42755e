// Package ledger implements the append-only, idempotent event ledger for
// Task lifecycle events. At most one CHECK_IN and one CHECK_OUT entry
// exist per Task; idempotency is enforced by re-reading before insert,
// not by a database uniqueness constraint.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
)

// EventStore is the persistence surface the ledger needs.
type EventStore interface {
	ListByTask(ctx context.Context, tenantID, taskID string) ([]*entity.TaskEvent, error)
	FindByType(ctx context.Context, tenantID, taskID, eventType string) (*entity.TaskEvent, error)
	Create(ctx context.Context, ev *entity.TaskEvent) error
}

// Ledger records Task lifecycle events.
type Ledger struct {
	events EventStore
	logger *zap.Logger
	now    func() time.Time
}

// New creates a ledger over the given event store.
func New(events EventStore, logger *zap.Logger) *Ledger {
	return &Ledger{events: events, logger: logger, now: time.Now}
}

// Entry describes an event to append.
type Entry struct {
	TenantID  string
	TaskID    string
	EventType string
	Actor     string
	Coords    *entity.Coords
	Late      bool
	Reason    string
}

// Append records the entry unless an event of the same type already
// exists for the task; in that case the existing event is returned with
// idempotent=true and nothing is written.
func (l *Ledger) Append(ctx context.Context, e Entry) (*entity.TaskEvent, bool, error) {
	existing, err := l.events.FindByType(ctx, e.TenantID, e.TaskID, e.EventType)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		l.logger.Info("Ledger entry already exists, returning idempotently",
			zap.String("task_id", e.TaskID),
			zap.String("event_type", e.EventType),
			zap.String("event_id", existing.ID))
		return existing, true, nil
	}

	ev := &entity.TaskEvent{
		ID:        uuid.NewString(),
		TenantID:  e.TenantID,
		DocType:   entity.DocTypeEvent,
		TaskID:    e.TaskID,
		EventType: e.EventType,
		Timestamp: l.now().UTC(),
		Actor:     e.Actor,
		Late:      e.Late,
		Reason:    e.Reason,
	}
	if e.Coords != nil {
		lat, lng := e.Coords.Lat, e.Coords.Lng
		ev.Lat = &lat
		ev.Lng = &lng
	}

	if err := l.events.Create(ctx, ev); err != nil {
		return nil, false, err
	}

	l.logger.Info("Ledger entry appended",
		zap.String("task_id", e.TaskID),
		zap.String("event_type", e.EventType),
		zap.String("actor", e.Actor))
	return ev, false, nil
}

// Find returns the event of the given type for a task, or nil.
func (l *Ledger) Find(ctx context.Context, tenantID, taskID, eventType string) (*entity.TaskEvent, error) {
	return l.events.FindByType(ctx, tenantID, taskID, eventType)
}

// List returns all events for a task ordered by timestamp ascending.
func (l *Ledger) List(ctx context.Context, tenantID, taskID string) ([]*entity.TaskEvent, error) {
	return l.events.ListByTask(ctx, tenantID, taskID)
}
