package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
	"github.com/amitoj1996/fieldops-web/internal/store"
)

// ExpenseRepository persists Expense documents.
type ExpenseRepository struct {
	store  store.Store
	logger *zap.Logger
}

// NewExpenseRepository creates a new ExpenseRepository
func NewExpenseRepository(s store.Store, logger *zap.Logger) *ExpenseRepository {
	return &ExpenseRepository{store: s, logger: logger}
}

// Get retrieves an expense by id within a tenant.
func (r *ExpenseRepository) Get(ctx context.Context, tenantID, id string) (*entity.Expense, error) {
	doc, err := r.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if doc.DocType != entity.DocTypeExpense {
		return nil, store.ErrNotFound
	}
	return unmarshalExpense(doc)
}

// FindByTaskAndBlob returns the expense keyed on (taskId, blobPath), or
// nil when none exists. This is the natural key OCR ingestion upserts on.
func (r *ExpenseRepository) FindByTaskAndBlob(ctx context.Context, tenantID, taskID, blobPath string) (*entity.Expense, error) {
	expenses, err := r.ListByTask(ctx, tenantID, taskID)
	if err != nil {
		return nil, err
	}
	for _, e := range expenses {
		if e.BlobPath == blobPath {
			return e, nil
		}
	}
	return nil, nil
}

// ListByTask returns all expenses for a task, oldest first.
func (r *ExpenseRepository) ListByTask(ctx context.Context, tenantID, taskID string) ([]*entity.Expense, error) {
	docs, err := r.store.Query(ctx, tenantID, store.Filter{
		DocType: entity.DocTypeExpense,
		TaskID:  taskID,
	})
	if err != nil {
		return nil, err
	}
	return unmarshalExpenses(docs)
}

// List returns all expenses for a tenant, oldest first.
func (r *ExpenseRepository) List(ctx context.Context, tenantID string) ([]*entity.Expense, error) {
	docs, err := r.store.Query(ctx, tenantID, store.Filter{DocType: entity.DocTypeExpense})
	if err != nil {
		return nil, err
	}
	return unmarshalExpenses(docs)
}

// ListPending returns expenses awaiting review, ordered by creation time
// ascending. Oldest first: a first-in-first-out review queue.
func (r *ExpenseRepository) ListPending(ctx context.Context, tenantID string) ([]*entity.Expense, error) {
	all, err := r.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	pending := make([]*entity.Expense, 0)
	for _, e := range all {
		if e.Approval != nil && e.Approval.Status == entity.ApprovalPendingReview {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

// Create inserts a new expense document.
func (r *ExpenseRepository) Create(ctx context.Context, e *entity.Expense) error {
	doc, err := expenseDocument(e)
	if err != nil {
		return err
	}
	return r.store.Create(ctx, doc)
}

// Replace overwrites an existing expense document (last write wins).
func (r *ExpenseRepository) Replace(ctx context.Context, e *entity.Expense) error {
	doc, err := expenseDocument(e)
	if err != nil {
		return err
	}
	return r.store.Replace(ctx, doc)
}

// Delete removes an expense document. Only used by cascading task deletion.
func (r *ExpenseRepository) Delete(ctx context.Context, tenantID, id string) error {
	return r.store.Delete(ctx, tenantID, id)
}

func expenseDocument(e *entity.Expense) (*store.Document, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal expense: %w", err)
	}
	return &store.Document{
		ID:        e.ID,
		TenantID:  e.TenantID,
		DocType:   entity.DocTypeExpense,
		TaskID:    e.TaskID,
		CreatedAt: e.CreatedAt,
		Body:      body,
	}, nil
}

func unmarshalExpenses(docs []*store.Document) ([]*entity.Expense, error) {
	expenses := make([]*entity.Expense, 0, len(docs))
	for _, doc := range docs {
		e, err := unmarshalExpense(doc)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}

func unmarshalExpense(doc *store.Document) (*entity.Expense, error) {
	var e entity.Expense
	if err := json.Unmarshal(doc.Body, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal expense %s: %w", doc.ID, err)
	}
	return &e, nil
}
