package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/apperr"
	"github.com/amitoj1996/fieldops-web/internal/budget"
	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
	"github.com/amitoj1996/fieldops-web/internal/ocr"
	"github.com/amitoj1996/fieldops-web/internal/repository"
	"github.com/amitoj1996/fieldops-web/internal/store"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingNotifier) ExpensePendingReview(ctx context.Context, task *entity.Task, exp *entity.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, exp.ID)
	return nil
}

type expenseFixture struct {
	svc      ExpenseService
	tasks    TaskService
	notifier *recordingNotifier
}

func newExpenseFixture(t *testing.T) *expenseFixture {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	mem := store.NewMemoryStore()
	taskRepo := repository.NewTaskRepository(mem, logger)
	expenseRepo := repository.NewExpenseRepository(mem, logger)
	eventRepo := repository.NewEventRepository(mem, logger)
	notifier := &recordingNotifier{}

	tasks := NewTaskService(taskRepo, expenseRepo, eventRepo, nil, budget.DefaultConfig(), logger)
	svc := NewExpenseService(expenseRepo, taskRepo, budget.NewEvaluator(budget.DefaultConfig()), notifier, logger)
	return &expenseFixture{svc: svc, tasks: tasks, notifier: notifier}
}

func (f *expenseFixture) createTask(t *testing.T, limits map[string]float64) *entity.Task {
	t.Helper()
	task, err := f.tasks.Create(context.Background(), CreateTaskInput{
		TenantID:      "t1",
		Title:         "Site visit",
		Assignee:      "worker@example.com",
		ExpenseLimits: limits,
	})
	require.NoError(t, err)
	return task
}

func strPtr(s string) *string   { return &s }
func f64Ptr(v float64) *float64 { return &v }

func sampleFields(total float64) ocr.Fields {
	return ocr.Fields{
		Merchant: strPtr("Hotel Adler"),
		Total:    f64Ptr(total),
		Currency: strPtr("EUR"),
		TxnDate:  strPtr("2026-03-01"),
	}
}

func TestExpenseService_Ingest(t *testing.T) {
	ctx := context.Background()
	f := newExpenseFixture(t)
	task := f.createTask(t, nil)

	t.Run("creates on first ingestion", func(t *testing.T) {
		res, err := f.svc.Ingest(ctx, "t1", task.ID, "receipts/a.jpg", sampleFields(120))
		require.NoError(t, err)
		assert.False(t, res.Idempotent)
		assert.Equal(t, "Hotel Adler", *res.Expense.Merchant)
		assert.Empty(t, res.Expense.Category)
		assert.Nil(t, res.Expense.Approval)
		assert.False(t, res.Expense.IsManualOverride)
	})

	t.Run("repeat ingestion refreshes extraction only", func(t *testing.T) {
		first, err := f.svc.Ingest(ctx, "t1", task.ID, "receipts/b.jpg", sampleFields(50))
		require.NoError(t, err)

		_, err = f.svc.Finalize(ctx, "t1",
			ExpenseRef{ExpenseID: first.Expense.ID},
			FinalizeInput{Category: entity.CategoryFood, Principal: worker("worker@example.com")})
		require.NoError(t, err)

		second, err := f.svc.Ingest(ctx, "t1", task.ID, "receipts/b.jpg", sampleFields(55))
		require.NoError(t, err)
		assert.True(t, second.Idempotent)
		assert.Equal(t, first.Expense.ID, second.Expense.ID, "exactly one document per (task, blob)")
		assert.Equal(t, 55.0, *second.Expense.Total)
		assert.Equal(t, entity.CategoryFood, second.Expense.Category, "category survives the refresh")
		require.NotNil(t, second.Expense.Approval, "approval survives the refresh")
	})

	t.Run("unknown task is not found", func(t *testing.T) {
		_, err := f.svc.Ingest(ctx, "t1", "nope", "receipts/c.jpg", sampleFields(10))
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}

func TestExpenseService_Finalize(t *testing.T) {
	ctx := context.Background()

	t.Run("auto-approves within budget and queues beyond it", func(t *testing.T) {
		f := newExpenseFixture(t)
		task := f.createTask(t, map[string]float64{"Food": 100})

		first, err := f.svc.Ingest(ctx, "t1", task.ID, "receipts/a.jpg", sampleFields(60))
		require.NoError(t, err)
		exp, err := f.svc.Finalize(ctx, "t1",
			ExpenseRef{ExpenseID: first.Expense.ID},
			FinalizeInput{Category: entity.CategoryFood, Principal: worker("worker@example.com")})
		require.NoError(t, err)
		assert.Equal(t, entity.ApprovalAutoApproved, exp.Approval.Status)
		assert.Equal(t, 100.0, exp.Approval.Limit)
		assert.Equal(t, 100.0, exp.Approval.RemainingBefore)
		assert.Empty(t, f.notifier.calls)

		second, err := f.svc.Ingest(ctx, "t1", task.ID, "receipts/b.jpg", sampleFields(41))
		require.NoError(t, err)
		exp2, err := f.svc.Finalize(ctx, "t1",
			ExpenseRef{ExpenseID: second.Expense.ID},
			FinalizeInput{Category: entity.CategoryFood, Principal: worker("worker@example.com")})
		require.NoError(t, err)
		assert.Equal(t, entity.ApprovalPendingReview, exp2.Approval.Status)
		assert.Equal(t, 40.0, exp2.Approval.RemainingBefore)
		assert.Equal(t, []string{exp2.ID}, f.notifier.calls, "review queue notification fired")
	})

	t.Run("edited total sets the override flag", func(t *testing.T) {
		f := newExpenseFixture(t)
		task := f.createTask(t, nil)
		res, err := f.svc.Ingest(ctx, "t1", task.ID, "receipts/a.jpg", sampleFields(80))
		require.NoError(t, err)

		exp, err := f.svc.Finalize(ctx, "t1",
			ExpenseRef{ExpenseID: res.Expense.ID},
			FinalizeInput{Category: entity.CategoryTravel, EditedTotal: f64Ptr(75), Principal: worker("worker@example.com")})
		require.NoError(t, err)
		assert.True(t, exp.IsManualOverride)
		assert.Equal(t, 75.0, exp.EffectiveTotal())

		// Re-finalize back to the extracted amount clears the flag.
		exp, err = f.svc.Finalize(ctx, "t1",
			ExpenseRef{ExpenseID: res.Expense.ID},
			FinalizeInput{Category: entity.CategoryTravel, EditedTotal: f64Ptr(80), Principal: worker("worker@example.com")})
		require.NoError(t, err)
		assert.False(t, exp.IsManualOverride)
	})

	t.Run("resolves by task and blob path", func(t *testing.T) {
		f := newExpenseFixture(t)
		task := f.createTask(t, nil)
		_, err := f.svc.Ingest(ctx, "t1", task.ID, "receipts/a.jpg", sampleFields(10))
		require.NoError(t, err)

		exp, err := f.svc.Finalize(ctx, "t1",
			ExpenseRef{TaskID: task.ID, BlobPath: "receipts/a.jpg"},
			FinalizeInput{Category: entity.CategoryOther, Principal: worker("worker@example.com")})
		require.NoError(t, err)
		assert.Equal(t, entity.CategoryOther, exp.Category)
	})

	t.Run("rejects bad category", func(t *testing.T) {
		f := newExpenseFixture(t)
		_, err := f.svc.Finalize(ctx, "t1", ExpenseRef{ExpenseID: "x"},
			FinalizeInput{Category: "Snacks", Principal: worker("worker@example.com")})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("strangers may not finalize", func(t *testing.T) {
		f := newExpenseFixture(t)
		task := f.createTask(t, nil)
		res, err := f.svc.Ingest(ctx, "t1", task.ID, "receipts/a.jpg", sampleFields(10))
		require.NoError(t, err)

		_, err = f.svc.Finalize(ctx, "t1", ExpenseRef{ExpenseID: res.Expense.ID},
			FinalizeInput{Category: entity.CategoryOther, Principal: worker("other@example.com")})
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
	})

	t.Run("re-finalize clears a prior decision into the audit trail", func(t *testing.T) {
		f := newExpenseFixture(t)
		task := f.createTask(t, nil)
		res, err := f.svc.Ingest(ctx, "t1", task.ID, "receipts/a.jpg", sampleFields(10))
		require.NoError(t, err)

		_, err = f.svc.Finalize(ctx, "t1", ExpenseRef{ExpenseID: res.Expense.ID},
			FinalizeInput{Category: entity.CategoryFood, Principal: worker("worker@example.com")})
		require.NoError(t, err)
		_, err = f.svc.Decide(ctx, "t1", res.Expense.ID, entity.ApprovalRejected, "too high", admin())
		require.NoError(t, err)

		exp, err := f.svc.Finalize(ctx, "t1", ExpenseRef{ExpenseID: res.Expense.ID},
			FinalizeInput{Category: entity.CategoryFood, Principal: worker("worker@example.com")})
		require.NoError(t, err)
		assert.Nil(t, exp.Approval.DecidedAt, "fresh submission carries no decision")
		require.Len(t, exp.Resubmissions, 1)
		assert.Equal(t, entity.ApprovalRejected, exp.Resubmissions[0].Status)
		assert.Equal(t, "too high", exp.Resubmissions[0].Note)
	})
}

func TestExpenseService_Decide(t *testing.T) {
	ctx := context.Background()
	f := newExpenseFixture(t)
	task := f.createTask(t, map[string]float64{"Food": 100})
	res, err := f.svc.Ingest(ctx, "t1", task.ID, "receipts/a.jpg", sampleFields(150))
	require.NoError(t, err)
	_, err = f.svc.Finalize(ctx, "t1", ExpenseRef{ExpenseID: res.Expense.ID},
		FinalizeInput{Category: entity.CategoryFood, Principal: worker("worker@example.com")})
	require.NoError(t, err)

	t.Run("non-admins are forbidden", func(t *testing.T) {
		_, err := f.svc.Decide(ctx, "t1", res.Expense.ID, entity.ApprovalApproved, "", worker("worker@example.com"))
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
	})

	t.Run("rejection without a note fails", func(t *testing.T) {
		_, err := f.svc.Decide(ctx, "t1", res.Expense.ID, entity.ApprovalRejected, "", admin())
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("approval merges into the evaluation record", func(t *testing.T) {
		before, err := f.svc.ListByTask(ctx, "t1", task.ID)
		require.NoError(t, err)
		limit := before[0].Approval.Limit
		reason := before[0].Approval.Reason

		exp, err := f.svc.Decide(ctx, "t1", res.Expense.ID, entity.ApprovalApproved, "", admin())
		require.NoError(t, err)
		assert.Equal(t, entity.ApprovalApproved, exp.Approval.Status)
		assert.Equal(t, limit, exp.Approval.Limit, "finalize-time limit preserved")
		assert.Equal(t, reason, exp.Approval.Reason, "finalize-time reason preserved")
		assert.Equal(t, "admin@example.com", exp.Approval.DecidedBy)
		require.NotNil(t, exp.Approval.DecidedAt)
	})

	t.Run("rejected expenses leave the pending queue and free budget", func(t *testing.T) {
		second, err := f.svc.Ingest(ctx, "t1", task.ID, "receipts/b.jpg", sampleFields(150))
		require.NoError(t, err)
		_, err = f.svc.Finalize(ctx, "t1", ExpenseRef{ExpenseID: second.Expense.ID},
			FinalizeInput{Category: entity.CategoryFood, Principal: worker("worker@example.com")})
		require.NoError(t, err)
		_, err = f.svc.Decide(ctx, "t1", second.Expense.ID, entity.ApprovalRejected, "duplicate receipt", admin())
		require.NoError(t, err)

		pending, err := f.svc.ListPending(ctx, "t1")
		require.NoError(t, err)
		assert.Empty(t, pending)

		// 150 approved earlier exhausts the 100 limit; the rejected 150
		// does not count on top of it.
		third, err := f.svc.Ingest(ctx, "t1", task.ID, "receipts/c.jpg", sampleFields(10))
		require.NoError(t, err)
		exp, err := f.svc.Finalize(ctx, "t1", ExpenseRef{ExpenseID: third.Expense.ID},
			FinalizeInput{Category: entity.CategoryFood, Principal: worker("worker@example.com")})
		require.NoError(t, err)
		assert.Equal(t, -50.0, exp.Approval.RemainingBefore)
	})

	t.Run("deciding an unfinalized expense is a precondition failure", func(t *testing.T) {
		raw, err := f.svc.Ingest(ctx, "t1", task.ID, "receipts/d.jpg", sampleFields(5))
		require.NoError(t, err)
		_, err = f.svc.Decide(ctx, "t1", raw.Expense.ID, entity.ApprovalApproved, "", admin())
		assert.True(t, apperr.Is(err, apperr.KindPrecondition))
	})
}
