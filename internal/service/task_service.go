package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/apperr"
	"github.com/amitoj1996/fieldops-web/internal/auth"
	"github.com/amitoj1996/fieldops-web/internal/budget"
	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
	"github.com/amitoj1996/fieldops-web/internal/domain/workflow"
	"github.com/amitoj1996/fieldops-web/internal/ledger"
	"github.com/amitoj1996/fieldops-web/internal/repository"
	"github.com/amitoj1996/fieldops-web/internal/store"
)

// CreateTaskInput carries the fields an administrator supplies when
// creating a task.
type CreateTaskInput struct {
	ID            string
	TenantID      string
	Title         string
	Type          string
	Assignee      string
	SLAStart      *time.Time
	SLAEnd        *time.Time
	ExpenseLimits map[string]float64
	Items         []entity.TaskItem
}

// TaskPatch is a field-level partial update: only fields whose pointer is
// non-nil (or whose Set flag is raised, for clearable fields) are applied.
type TaskPatch struct {
	Title    *string
	Type     *string
	Assignee *string

	SetSLAStart bool
	SLAStart    *time.Time
	SetSLAEnd   bool
	SLAEnd      *time.Time

	ExpenseLimits map[string]float64

	SetItems bool
	Items    []entity.TaskItem
}

// TransitionResult is the outcome of a check-in or check-out.
type TransitionResult struct {
	Task       *entity.Task      `json:"task"`
	Event      *entity.TaskEvent `json:"event"`
	Idempotent bool              `json:"idempotent"`
}

// DeleteTaskResult reports what a (possibly cascading) delete removed.
// Cleanup failures never abort the deletion; they are counted here.
type DeleteTaskResult struct {
	EventsRemoved   int `json:"events"`
	ExpensesRemoved int `json:"expenses"`
	CleanupFailures int `json:"cleanupFailures,omitempty"`
}

// TaskService owns the Task lifecycle: creation, partial updates,
// check-in/check-out against the event ledger, and deletion.
type TaskService interface {
	Create(ctx context.Context, in CreateTaskInput) (*entity.Task, error)
	Update(ctx context.Context, tenantID, taskID string, patch TaskPatch) (*entity.Task, error)
	Get(ctx context.Context, tenantID, taskID string) (*entity.Task, error)
	List(ctx context.Context, tenantID string) ([]*entity.Task, error)
	Delete(ctx context.Context, tenantID, taskID string, cascade bool) (*DeleteTaskResult, error)
	CheckIn(ctx context.Context, tenantID, taskID string, p auth.Principal, coords *entity.Coords) (*TransitionResult, error)
	CheckOut(ctx context.Context, tenantID, taskID string, p auth.Principal, coords *entity.Coords, reason string) (*TransitionResult, error)
	ListEvents(ctx context.Context, tenantID, taskID string) ([]*entity.TaskEvent, error)
}

type taskServiceImpl struct {
	tasks     *repository.TaskRepository
	expenses  *repository.ExpenseRepository
	events    *repository.EventRepository
	ledger    *ledger.Ledger
	budgetCfg budget.Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewTaskService creates a new TaskService
func NewTaskService(
	tasks *repository.TaskRepository,
	expenses *repository.ExpenseRepository,
	events *repository.EventRepository,
	l *ledger.Ledger,
	budgetCfg budget.Config,
	logger *zap.Logger,
) TaskService {
	return &taskServiceImpl{
		tasks:     tasks,
		expenses:  expenses,
		events:    events,
		ledger:    l,
		budgetCfg: budgetCfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Create validates the input, applies defaults and persists a new task.
func (s *taskServiceImpl) Create(ctx context.Context, in CreateTaskInput) (*entity.Task, error) {
	tenantID := strings.TrimSpace(in.TenantID)
	title := strings.TrimSpace(in.Title)
	if tenantID == "" {
		return nil, apperr.Validation("tenantId is required")
	}
	if title == "" {
		return nil, apperr.Validation("title is required")
	}

	taskType := strings.TrimSpace(in.Type)
	if taskType == "" {
		taskType = entity.TaskTypeDataCollection
	}

	limits := in.ExpenseLimits
	if len(limits) == 0 {
		limits = s.defaultLimits()
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}

	now := s.now().UTC()
	task := &entity.Task{
		ID:            id,
		TenantID:      tenantID,
		DocType:       entity.DocTypeTask,
		Title:         title,
		Type:          taskType,
		Assignee:      strings.ToLower(strings.TrimSpace(in.Assignee)),
		Status:        entity.TaskStatusAssigned,
		SLAStart:      in.SLAStart,
		SLAEnd:        in.SLAEnd,
		ExpenseLimits: limits,
		Items:         normalizeItems(in.Items),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		s.logger.Error("Failed to create task", zap.Error(err), zap.String("tenant_id", tenantID))
		return nil, err
	}

	s.logger.Info("Task created",
		zap.String("task_id", task.ID),
		zap.String("tenant_id", tenantID),
		zap.String("assignee", task.Assignee))
	return task, nil
}

// Update applies a field-level partial update to an existing task.
func (s *taskServiceImpl) Update(ctx context.Context, tenantID, taskID string, patch TaskPatch) (*entity.Task, error) {
	task, err := s.getTask(ctx, tenantID, taskID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		task.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Type != nil {
		task.Type = strings.TrimSpace(*patch.Type)
	}
	if patch.Assignee != nil {
		task.Assignee = strings.ToLower(strings.TrimSpace(*patch.Assignee))
	}
	if patch.SetSLAStart {
		task.SLAStart = patch.SLAStart
	}
	if patch.SetSLAEnd {
		task.SLAEnd = patch.SLAEnd
	}
	if patch.ExpenseLimits != nil {
		limits := make(map[string]float64, len(entity.Categories()))
		for _, cat := range entity.Categories() {
			limits[cat] = patch.ExpenseLimits[cat]
		}
		task.ExpenseLimits = limits
	}
	if patch.SetItems {
		task.Items = normalizeItems(patch.Items)
	}

	task.UpdatedAt = s.now().UTC()
	if err := s.tasks.Replace(ctx, task); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("task not found")
		}
		s.logger.Error("Failed to update task", zap.Error(err), zap.String("task_id", taskID))
		return nil, err
	}

	s.logger.Info("Task updated", zap.String("task_id", taskID), zap.String("tenant_id", tenantID))
	return task, nil
}

// Get retrieves a single task.
func (s *taskServiceImpl) Get(ctx context.Context, tenantID, taskID string) (*entity.Task, error) {
	return s.getTask(ctx, tenantID, taskID)
}

// List returns all tasks for a tenant, newest first.
func (s *taskServiceImpl) List(ctx context.Context, tenantID string) ([]*entity.Task, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.Validation("tenantId is required")
	}
	return s.tasks.List(ctx, tenantID)
}

// Delete removes a task. When cascade is set, its events and expenses are
// removed too, best-effort: individual cleanup failures are counted and
// logged, never escalated.
func (s *taskServiceImpl) Delete(ctx context.Context, tenantID, taskID string, cascade bool) (*DeleteTaskResult, error) {
	task, err := s.getTask(ctx, tenantID, taskID)
	if err != nil {
		return nil, err
	}

	result := &DeleteTaskResult{}
	if cascade {
		events, err := s.events.ListByTask(ctx, tenantID, task.ID)
		if err != nil {
			s.logger.Warn("Failed to list events for cascade delete", zap.Error(err), zap.String("task_id", taskID))
			result.CleanupFailures++
		}
		for _, ev := range events {
			if err := s.events.Delete(ctx, tenantID, ev.ID); err != nil {
				s.logger.Warn("Failed to delete event during cascade",
					zap.Error(err), zap.String("event_id", ev.ID))
				result.CleanupFailures++
				continue
			}
			result.EventsRemoved++
		}

		expenses, err := s.expenses.ListByTask(ctx, tenantID, task.ID)
		if err != nil {
			s.logger.Warn("Failed to list expenses for cascade delete", zap.Error(err), zap.String("task_id", taskID))
			result.CleanupFailures++
		}
		for _, exp := range expenses {
			if err := s.expenses.Delete(ctx, tenantID, exp.ID); err != nil {
				s.logger.Warn("Failed to delete expense during cascade",
					zap.Error(err), zap.String("expense_id", exp.ID))
				result.CleanupFailures++
				continue
			}
			result.ExpensesRemoved++
		}
	}

	if err := s.tasks.Delete(ctx, tenantID, task.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("task not found")
		}
		return nil, err
	}

	s.logger.Info("Task deleted",
		zap.String("task_id", taskID),
		zap.Bool("cascade", cascade),
		zap.Int("events_removed", result.EventsRemoved),
		zap.Int("expenses_removed", result.ExpensesRemoved),
		zap.Int("cleanup_failures", result.CleanupFailures))
	return result, nil
}

// CheckIn records a CHECK_IN event and moves the task to IN_PROGRESS.
// A repeated check-in returns the original event unchanged.
func (s *taskServiceImpl) CheckIn(ctx context.Context, tenantID, taskID string, p auth.Principal, coords *entity.Coords) (*TransitionResult, error) {
	task, err := s.getTask(ctx, tenantID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(p, task); err != nil {
		return nil, err
	}

	ev, idempotent, err := s.ledger.Append(ctx, ledger.Entry{
		TenantID:  tenantID,
		TaskID:    task.ID,
		EventType: entity.EventCheckIn,
		Actor:     p.Identity(),
		Coords:    coords,
	})
	if err != nil {
		return nil, err
	}
	if idempotent {
		return &TransitionResult{Task: task, Event: ev, Idempotent: true}, nil
	}

	machine := workflow.NewTaskLifecycle(workflow.State(task.Status))
	if machine.CanFire(workflow.TriggerCheckIn) {
		if err := machine.Fire(workflow.TriggerCheckIn); err != nil {
			return nil, err
		}
		task.Status = machine.State().String()
		ts := ev.Timestamp
		task.CheckInAt = &ts
		task.UpdatedAt = s.now().UTC()
		if err := s.tasks.Replace(ctx, task); err != nil {
			return nil, err
		}
	}

	return &TransitionResult{Task: task, Event: ev}, nil
}

// CheckOut records a CHECK_OUT event, evaluates the SLA window and moves
// the task to COMPLETED. Checking out before checking in is rejected; a
// breached SLA requires a reason.
func (s *taskServiceImpl) CheckOut(ctx context.Context, tenantID, taskID string, p auth.Principal, coords *entity.Coords, reason string) (*TransitionResult, error) {
	task, err := s.getTask(ctx, tenantID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(p, task); err != nil {
		return nil, err
	}

	if existing, err := s.ledger.Find(ctx, tenantID, task.ID, entity.EventCheckOut); err != nil {
		return nil, err
	} else if existing != nil {
		return &TransitionResult{Task: task, Event: existing, Idempotent: true}, nil
	}

	checkIn, err := s.ledger.Find(ctx, tenantID, task.ID, entity.EventCheckIn)
	if err != nil {
		return nil, err
	}
	if checkIn == nil {
		return nil, apperr.Precondition("must check in before checking out")
	}

	reason = strings.TrimSpace(reason)
	late := task.SLAEnd != nil && s.now().After(*task.SLAEnd)
	if late && reason == "" {
		return nil, apperr.Validation("reason required: SLA window has been breached")
	}

	ev, idempotent, err := s.ledger.Append(ctx, ledger.Entry{
		TenantID:  tenantID,
		TaskID:    task.ID,
		EventType: entity.EventCheckOut,
		Actor:     p.Identity(),
		Coords:    coords,
		Late:      late,
		Reason:    reason,
	})
	if err != nil {
		return nil, err
	}
	if idempotent {
		return &TransitionResult{Task: task, Event: ev, Idempotent: true}, nil
	}

	machine := workflow.NewTaskLifecycle(workflow.State(task.Status))
	if machine.CanFire(workflow.TriggerCheckOut) {
		if err := machine.Fire(workflow.TriggerCheckOut); err != nil {
			return nil, err
		}
		task.Status = machine.State().String()
	}
	ts := ev.Timestamp
	task.CheckOutAt = &ts
	task.SLABreached = late
	if reason != "" {
		task.LateReason = reason
	}
	task.UpdatedAt = s.now().UTC()
	if err := s.tasks.Replace(ctx, task); err != nil {
		return nil, err
	}

	return &TransitionResult{Task: task, Event: ev}, nil
}

// ListEvents returns the task's ledger entries ordered by timestamp.
func (s *taskServiceImpl) ListEvents(ctx context.Context, tenantID, taskID string) ([]*entity.TaskEvent, error) {
	if _, err := s.getTask(ctx, tenantID, taskID); err != nil {
		return nil, err
	}
	return s.ledger.List(ctx, tenantID, taskID)
}

func (s *taskServiceImpl) getTask(ctx context.Context, tenantID, taskID string) (*entity.Task, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.Validation("tenantId is required")
	}
	if strings.TrimSpace(taskID) == "" {
		return nil, apperr.Validation("taskId is required")
	}
	task, err := s.tasks.Get(ctx, tenantID, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("task not found")
		}
		return nil, err
	}
	return task, nil
}

func (s *taskServiceImpl) authorize(p auth.Principal, task *entity.Task) error {
	if p.IsAdmin() || p.Matches(task.Assignee) {
		return nil
	}
	return apperr.Forbidden("caller is neither admin nor the task's assignee")
}

func (s *taskServiceImpl) defaultLimits() map[string]float64 {
	limits := make(map[string]float64, len(entity.Categories()))
	for _, cat := range entity.Categories() {
		limits[cat] = s.budgetCfg.DefaultLimit
	}
	return limits
}

// normalizeItems drops entries without a product reference and coerces
// quantities to integers >= 1.
func normalizeItems(items []entity.TaskItem) []entity.TaskItem {
	norm := make([]entity.TaskItem, 0, len(items))
	for _, it := range items {
		pid := strings.TrimSpace(it.ProductID)
		if pid == "" {
			continue
		}
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		norm = append(norm, entity.TaskItem{ProductID: pid, Quantity: qty})
	}
	return norm
}
