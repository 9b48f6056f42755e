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

// TaskRepository persists Task documents.
type TaskRepository struct {
	store  store.Store
	logger *zap.Logger
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(s store.Store, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{store: s, logger: logger}
}

// Get retrieves a task by id within a tenant. Returns store.ErrNotFound
// when absent or when the document is not a Task.
func (r *TaskRepository) Get(ctx context.Context, tenantID, id string) (*entity.Task, error) {
	doc, err := r.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if doc.DocType != entity.DocTypeTask {
		return nil, store.ErrNotFound
	}
	return unmarshalTask(doc)
}

// List returns all tasks for a tenant, newest first.
func (r *TaskRepository) List(ctx context.Context, tenantID string) ([]*entity.Task, error) {
	docs, err := r.store.Query(ctx, tenantID, store.Filter{DocType: entity.DocTypeTask})
	if err != nil {
		return nil, err
	}
	tasks := make([]*entity.Task, 0, len(docs))
	for _, doc := range docs {
		task, err := unmarshalTask(doc)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// Create inserts a new task document.
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	doc, err := taskDocument(task)
	if err != nil {
		return err
	}
	return r.store.Create(ctx, doc)
}

// Replace overwrites an existing task document (last write wins).
func (r *TaskRepository) Replace(ctx context.Context, task *entity.Task) error {
	doc, err := taskDocument(task)
	if err != nil {
		return err
	}
	return r.store.Replace(ctx, doc)
}

// Delete removes a task document.
func (r *TaskRepository) Delete(ctx context.Context, tenantID, id string) error {
	return r.store.Delete(ctx, tenantID, id)
}

func taskDocument(task *entity.Task) (*store.Document, error) {
	body, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}
	return &store.Document{
		ID:        task.ID,
		TenantID:  task.TenantID,
		DocType:   entity.DocTypeTask,
		CreatedAt: task.CreatedAt,
		Body:      body,
	}, nil
}

func unmarshalTask(doc *store.Document) (*entity.Task, error) {
	var task entity.Task
	if err := json.Unmarshal(doc.Body, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task %s: %w", doc.ID, err)
	}
	return &task, nil
}
