package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
	"github.com/amitoj1996/fieldops-web/internal/repository"
	"github.com/amitoj1996/fieldops-web/internal/store"
)

type reportFixture struct {
	agg      *Aggregator
	tasks    *repository.TaskRepository
	expenses *repository.ExpenseRepository
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	mem := store.NewMemoryStore()
	tasks := repository.NewTaskRepository(mem, logger)
	expenses := repository.NewExpenseRepository(mem, logger)
	return &reportFixture{
		agg:      NewAggregator(tasks, expenses, logger),
		tasks:    tasks,
		expenses: expenses,
	}
}

func (f *reportFixture) addTask(t *testing.T, id string, createdAt time.Time) *entity.Task {
	t.Helper()
	task := &entity.Task{
		ID: id, TenantID: "t1", DocType: entity.DocTypeTask,
		Title: "Visit " + id, Type: entity.TaskTypeDataCollection,
		Assignee: "worker@example.com", Status: entity.TaskStatusAssigned,
		CreatedAt: createdAt, UpdatedAt: createdAt,
	}
	require.NoError(t, f.tasks.Create(context.Background(), task))
	return task
}

func (f *reportFixture) addExpense(t *testing.T, id, taskID, category string, total float64, status string) {
	t.Helper()
	now := time.Now().UTC()
	exp := &entity.Expense{
		ID: id, TenantID: "t1", DocType: entity.DocTypeExpense, TaskID: taskID,
		BlobPath: "receipts/" + taskID + "/" + id + ".jpg",
		Total:    &total, Category: category,
		CreatedAt: now, UpdatedAt: now,
	}
	if status != "" {
		exp.Approval = &entity.Approval{Status: status}
	}
	require.NoError(t, f.expenses.Create(context.Background(), exp))
}

func TestAggregator_Build(t *testing.T) {
	ctx := context.Background()

	t.Run("task without expenses yields a zero row", func(t *testing.T) {
		f := newReportFixture(t)
		f.addTask(t, "task-1", time.Now().UTC())

		rows, err := f.agg.Build(ctx, "t1", Options{})
		require.NoError(t, err)
		require.Len(t, rows, 1)

		row := rows[0]
		for _, cat := range entity.Categories() {
			assert.Equal(t, "0.00", row.Categories[cat])
		}
		assert.Equal(t, "0.00", row.Total)
		assert.Zero(t, row.Pending)
		assert.Zero(t, row.Approved)
		assert.Zero(t, row.Rejected)
	})

	t.Run("subtotals exclude rejected and count statuses", func(t *testing.T) {
		f := newReportFixture(t)
		task := f.addTask(t, "task-1", time.Now().UTC())
		f.addExpense(t, "e1", task.ID, entity.CategoryFood, 40.5, entity.ApprovalAutoApproved)
		f.addExpense(t, "e2", task.ID, entity.CategoryFood, 10, entity.ApprovalPendingReview)
		f.addExpense(t, "e3", task.ID, entity.CategoryHotel, 99.99, entity.ApprovalApproved)
		f.addExpense(t, "e4", task.ID, entity.CategoryTravel, 500, entity.ApprovalRejected)

		rows, err := f.agg.Build(ctx, "t1", Options{})
		require.NoError(t, err)
		require.Len(t, rows, 1)

		row := rows[0]
		assert.Equal(t, "50.50", row.Categories[entity.CategoryFood])
		assert.Equal(t, "99.99", row.Categories[entity.CategoryHotel])
		assert.Equal(t, "0.00", row.Categories[entity.CategoryTravel], "rejected spend is excluded")
		assert.Equal(t, "150.49", row.Total)
		assert.Equal(t, 1, row.Pending)
		assert.Equal(t, 2, row.Approved)
		assert.Equal(t, 1, row.Rejected)
	})

	t.Run("date range filters by created day, inclusive", func(t *testing.T) {
		f := newReportFixture(t)
		f.addTask(t, "old", time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC))
		f.addTask(t, "edge", time.Date(2026, 3, 15, 23, 30, 0, 0, time.UTC))
		f.addTask(t, "new", time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))

		opts, err := ParseOptions("2026-03-01", "2026-03-15")
		require.NoError(t, err)
		rows, err := f.agg.Build(ctx, "t1", opts)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "edge", rows[0].TaskID, "toDate covers its whole day")
	})

	t.Run("bad date is a validation error", func(t *testing.T) {
		_, err := ParseOptions("03/01/2026", "")
		assert.Error(t, err)
	})
}

func TestWriteCSV(t *testing.T) {
	f := newReportFixture(t)
	f.addTask(t, "task-1", time.Now().UTC())

	rows, err := f.agg.Build(context.Background(), "t1", Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Header(), records[0])
	assert.Len(t, records[1], len(Header()))
	assert.Equal(t, "task-1", records[1][0])
}

func TestExcelWriter(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	f := newReportFixture(t)
	task := f.addTask(t, "task-1", time.Now().UTC())
	f.addExpense(t, "e1", task.ID, entity.CategoryFood, 12.5, entity.ApprovalAutoApproved)

	rows, err := f.agg.Build(context.Background(), "t1", Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewExcelWriter(logger).Write(&buf, rows))
	assert.NotZero(t, buf.Len())
}
