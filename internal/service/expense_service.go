package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/apperr"
	"github.com/amitoj1996/fieldops-web/internal/auth"
	"github.com/amitoj1996/fieldops-web/internal/budget"
	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
	"github.com/amitoj1996/fieldops-web/internal/ocr"
	"github.com/amitoj1996/fieldops-web/internal/repository"
	"github.com/amitoj1996/fieldops-web/internal/store"
)

// ReviewNotifier is informed when an expense lands in the review queue.
// Notification is best-effort: a failure never fails the finalize.
type ReviewNotifier interface {
	ExpensePendingReview(ctx context.Context, task *entity.Task, exp *entity.Expense) error
}

// ExpenseRef resolves an expense either by id or by its natural
// (taskId, blobPath) key.
type ExpenseRef struct {
	ExpenseID string
	TaskID    string
	BlobPath  string
}

// FinalizeInput carries the employee's submission of an expense.
type FinalizeInput struct {
	Category    string
	EditedTotal *float64
	Comment     string
	Principal   auth.Principal
}

// IngestResult is the outcome of an OCR ingestion.
type IngestResult struct {
	Expense    *entity.Expense `json:"expense"`
	Idempotent bool            `json:"idempotent"`
}

// ExpenseService owns the Expense lifecycle: OCR-seeded upsert,
// finalization with a budget decision, and the admin override.
type ExpenseService interface {
	Ingest(ctx context.Context, tenantID, taskID, blobPath string, fields ocr.Fields) (*IngestResult, error)
	Finalize(ctx context.Context, tenantID string, ref ExpenseRef, in FinalizeInput) (*entity.Expense, error)
	Decide(ctx context.Context, tenantID, expenseID, status, note string, p auth.Principal) (*entity.Expense, error)
	ListPending(ctx context.Context, tenantID string) ([]*entity.Expense, error)
	ListByTask(ctx context.Context, tenantID, taskID string) ([]*entity.Expense, error)
	List(ctx context.Context, tenantID string) ([]*entity.Expense, error)
}

type expenseServiceImpl struct {
	expenses  *repository.ExpenseRepository
	tasks     *repository.TaskRepository
	evaluator *budget.Evaluator
	notifier  ReviewNotifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewExpenseService creates a new ExpenseService. notifier may be nil.
func NewExpenseService(
	expenses *repository.ExpenseRepository,
	tasks *repository.TaskRepository,
	evaluator *budget.Evaluator,
	notifier ReviewNotifier,
	logger *zap.Logger,
) ExpenseService {
	return &expenseServiceImpl{
		expenses:  expenses,
		tasks:     tasks,
		evaluator: evaluator,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest upserts the expense keyed on (taskId, blobPath). A repeated
// ingestion refreshes the extracted fields and reports idempotent=true;
// category, approval and override state survive the refresh.
func (s *expenseServiceImpl) Ingest(ctx context.Context, tenantID, taskID, blobPath string, fields ocr.Fields) (*IngestResult, error) {
	tenantID = strings.TrimSpace(tenantID)
	taskID = strings.TrimSpace(taskID)
	blobPath = strings.TrimSpace(blobPath)
	if tenantID == "" {
		return nil, apperr.Validation("tenantId is required")
	}
	if taskID == "" {
		return nil, apperr.Validation("taskId is required")
	}
	if blobPath == "" {
		return nil, apperr.Validation("blobPath is required")
	}

	if _, err := s.tasks.Get(ctx, tenantID, taskID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("task not found")
		}
		return nil, err
	}

	now := s.now().UTC()
	existing, err := s.expenses.FindByTaskAndBlob(ctx, tenantID, taskID, blobPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		existing.Merchant = fields.Merchant
		existing.Total = fields.Total
		existing.Currency = fields.Currency
		existing.TxnDate = fields.TxnDate
		existing.UpdatedAt = now
		if err := s.expenses.Replace(ctx, existing); err != nil {
			return nil, err
		}
		s.logger.Info("Expense refreshed from OCR",
			zap.String("expense_id", existing.ID),
			zap.String("task_id", taskID),
			zap.String("blob_path", blobPath))
		return &IngestResult{Expense: existing, Idempotent: true}, nil
	}

	exp := &entity.Expense{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		DocType:   entity.DocTypeExpense,
		TaskID:    taskID,
		BlobPath:  blobPath,
		Merchant:  fields.Merchant,
		Total:     fields.Total,
		Currency:  fields.Currency,
		TxnDate:   fields.TxnDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.expenses.Create(ctx, exp); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost a race with a concurrent ingest for the same receipt;
			// re-read and report idempotently.
			if winner, ferr := s.expenses.FindByTaskAndBlob(ctx, tenantID, taskID, blobPath); ferr == nil && winner != nil {
				return &IngestResult{Expense: winner, Idempotent: true}, nil
			}
		}
		return nil, err
	}

	s.logger.Info("Expense created from OCR",
		zap.String("expense_id", exp.ID),
		zap.String("task_id", taskID),
		zap.String("blob_path", blobPath))
	return &IngestResult{Expense: exp}, nil
}

// Finalize assigns the category, applies any edited total and computes
// the approval decision. Each call overwrites the prior approval record:
// re-finalizing is a fresh submission that clears an earlier admin
// decision (the displaced decision is kept on the resubmission trail).
func (s *expenseServiceImpl) Finalize(ctx context.Context, tenantID string, ref ExpenseRef, in FinalizeInput) (*entity.Expense, error) {
	if !entity.IsValidCategory(in.Category) {
		return nil, apperr.Validation("category must be one of Hotel, Food, Travel, Other")
	}

	exp, err := s.resolve(ctx, tenantID, ref)
	if err != nil {
		return nil, err
	}

	task, err := s.tasks.Get(ctx, tenantID, exp.TaskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("task not found")
		}
		return nil, err
	}
	if !in.Principal.IsAdmin() && !in.Principal.Matches(task.Assignee) {
		return nil, apperr.Forbidden("caller is neither admin nor the task's assignee")
	}

	if in.EditedTotal != nil {
		edited := *in.EditedTotal
		exp.EditedTotal = &edited
	}
	exp.IsManualOverride = manualOverride(exp.EditedTotal, exp.Total)

	amount := exp.EffectiveTotal()
	taskExpenses, err := s.expenses.ListByTask(ctx, tenantID, exp.TaskID)
	if err != nil {
		return nil, err
	}
	decision := s.evaluator.Evaluate(task, taskExpenses, exp.ID, in.Category, amount)

	// A decided approval displaced by this re-finalize goes onto the
	// additive resubmission trail instead of vanishing.
	if exp.Approval != nil && exp.Approval.DecidedAt != nil {
		exp.Resubmissions = append(exp.Resubmissions, *exp.Approval)
	}

	now := s.now().UTC()
	exp.Category = in.Category
	if in.Comment != "" {
		exp.Comment = in.Comment
	}
	exp.SubmittedBy = in.Principal.Identity()
	exp.Approval = &entity.Approval{
		Status:          decision.Status,
		EvaluatedAt:     &now,
		Limit:           decision.Limit,
		RemainingBefore: decision.RemainingBefore,
		Reason:          decision.Reason,
	}
	exp.UpdatedAt = now

	if err := s.expenses.Replace(ctx, exp); err != nil {
		return nil, err
	}

	s.logger.Info("Expense finalized",
		zap.String("expense_id", exp.ID),
		zap.String("task_id", exp.TaskID),
		zap.String("category", in.Category),
		zap.String("status", decision.Status),
		zap.Float64("amount", amount),
		zap.Float64("remaining_before", decision.RemainingBefore))

	if decision.Status == entity.ApprovalPendingReview && s.notifier != nil {
		if err := s.notifier.ExpensePendingReview(ctx, task, exp); err != nil {
			s.logger.Warn("Failed to notify reviewers", zap.Error(err), zap.String("expense_id", exp.ID))
		}
	}
	return exp, nil
}

// Decide applies the admin override. The decision merges into the
// approval record from finalize without discarding its evaluation fields.
func (s *expenseServiceImpl) Decide(ctx context.Context, tenantID, expenseID, status, note string, p auth.Principal) (*entity.Expense, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("only an admin can decide an expense")
	}
	if status != entity.ApprovalApproved && status != entity.ApprovalRejected {
		return nil, apperr.Validation("decision status must be APPROVED or REJECTED")
	}
	note = strings.TrimSpace(note)
	if status == entity.ApprovalRejected && note == "" {
		return nil, apperr.Validation("a note is required when rejecting an expense")
	}

	exp, err := s.resolve(ctx, tenantID, ExpenseRef{ExpenseID: expenseID})
	if err != nil {
		return nil, err
	}
	if exp.Approval == nil {
		return nil, apperr.Precondition("expense has not been finalized")
	}

	now := s.now().UTC()
	exp.Approval.Status = status
	exp.Approval.DecidedAt = &now
	exp.Approval.DecidedBy = p.Identity()
	exp.Approval.Note = note
	exp.UpdatedAt = now

	if err := s.expenses.Replace(ctx, exp); err != nil {
		return nil, err
	}

	s.logger.Info("Expense decided",
		zap.String("expense_id", exp.ID),
		zap.String("status", status),
		zap.String("decided_by", p.Identity()))
	return exp, nil
}

// ListPending returns the review queue, oldest first.
func (s *expenseServiceImpl) ListPending(ctx context.Context, tenantID string) ([]*entity.Expense, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.Validation("tenantId is required")
	}
	return s.expenses.ListPending(ctx, tenantID)
}

// ListByTask returns all expenses tied to a task.
func (s *expenseServiceImpl) ListByTask(ctx context.Context, tenantID, taskID string) ([]*entity.Expense, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, apperr.Validation("taskId is required")
	}
	return s.expenses.ListByTask(ctx, tenantID, taskID)
}

// List returns all expenses for a tenant.
func (s *expenseServiceImpl) List(ctx context.Context, tenantID string) ([]*entity.Expense, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.Validation("tenantId is required")
	}
	return s.expenses.List(ctx, tenantID)
}

func (s *expenseServiceImpl) resolve(ctx context.Context, tenantID string, ref ExpenseRef) (*entity.Expense, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.Validation("tenantId is required")
	}
	if ref.ExpenseID != "" {
		exp, err := s.expenses.Get(ctx, tenantID, ref.ExpenseID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperr.NotFound("expense not found")
			}
			return nil, err
		}
		return exp, nil
	}
	if ref.TaskID == "" || ref.BlobPath == "" {
		return nil, apperr.Validation("expenseId or taskId and blobPath are required")
	}
	exp, err := s.expenses.FindByTaskAndBlob(ctx, tenantID, ref.TaskID, ref.BlobPath)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, apperr.NotFound("expense not found")
	}
	return exp, nil
}

// manualOverride reports whether the edited total differs numerically
// from the OCR-extracted total.
func manualOverride(edited, extracted *float64) bool {
	if edited == nil {
		return false
	}
	if extracted == nil {
		return true
	}
	return !decimal.NewFromFloat(*edited).Equal(decimal.NewFromFloat(*extracted))
}
