package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
	"github.com/amitoj1996/fieldops-web/internal/notify"
	"github.com/amitoj1996/fieldops-web/internal/repository"
)

// ReviewReminderPoller periodically re-notifies reviewers about expenses
// that have sat in PENDING_REVIEW past a staleness threshold. It is a
// fallback for the notification sent at finalize time going unseen.
type ReviewReminderPoller struct {
	expenses *repository.ExpenseRepository
	tasks    *repository.TaskRepository
	notifier notify.Notifier
	tenantID string
	logger   *zap.Logger

	pollInterval time.Duration
	staleAfter   time.Duration

	mu           sync.RWMutex
	isRunning    bool
	ctx          context.Context
	cancel       context.CancelFunc
	lastReminded map[string]time.Time
}

// NewReviewReminderPoller creates a new poller for one tenant.
func NewReviewReminderPoller(
	expenses *repository.ExpenseRepository,
	tasks *repository.TaskRepository,
	notifier notify.Notifier,
	tenantID string,
	pollInterval, staleAfter time.Duration,
	logger *zap.Logger,
) *ReviewReminderPoller {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	return &ReviewReminderPoller{
		expenses:     expenses,
		tasks:        tasks,
		notifier:     notifier,
		tenantID:     tenantID,
		logger:       logger,
		pollInterval: pollInterval,
		staleAfter:   staleAfter,
		lastReminded: make(map[string]time.Time),
	}
}

// Start starts the reminder polling worker
func (p *ReviewReminderPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("review reminder poller is already running")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.isRunning = true

	p.logger.Info("ReviewReminderPoller started",
		zap.Duration("poll_interval", p.pollInterval),
		zap.Duration("stale_after", p.staleAfter))

	go p.pollLoop()

	return nil
}

// Stop stops the reminder polling worker
func (p *ReviewReminderPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return
	}

	p.isRunning = false
	if p.cancel != nil {
		p.cancel()
	}

	p.logger.Info("ReviewReminderPoller stopped")
}

// Name returns the worker name for identification
func (p *ReviewReminderPoller) Name() string {
	return "ReviewReminderPoller"
}

func (p *ReviewReminderPoller) pollLoop() {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.remindStale()

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Debug("Poll loop context cancelled")
			return

		case <-ticker.C:
			p.remindStale()
		}
	}
}

// remindStale re-notifies about every pending expense whose evaluation
// is older than the staleness threshold, at most once per threshold
// window per expense.
func (p *ReviewReminderPoller) remindStale() {
	ctx, cancel := context.WithTimeout(p.ctx, 30*time.Second)
	defer cancel()

	pending, err := p.expenses.ListPending(ctx, p.tenantID)
	if err != nil {
		p.logger.Error("Failed to list pending expenses", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	now := time.Now().UTC()
	reminded := 0
	live := make(map[string]struct{}, len(pending))

	for _, exp := range pending {
		live[exp.ID] = struct{}{}
		if !p.isStale(exp, now) {
			continue
		}
		if last, ok := p.lastReminded[exp.ID]; ok && now.Sub(last) < p.staleAfter {
			continue
		}

		task, err := p.tasks.Get(ctx, p.tenantID, exp.TaskID)
		if err != nil {
			p.logger.Warn("Failed to load task for reminder",
				zap.String("expense_id", exp.ID),
				zap.String("task_id", exp.TaskID),
				zap.Error(err))
			continue
		}

		if err := p.notifier.ExpensePendingReview(ctx, task, exp); err != nil {
			p.logger.Warn("Failed to send review reminder",
				zap.String("expense_id", exp.ID),
				zap.Error(err))
			continue
		}
		p.lastReminded[exp.ID] = now
		reminded++
	}

	// Drop bookkeeping for expenses that left the queue.
	for id := range p.lastReminded {
		if _, ok := live[id]; !ok {
			delete(p.lastReminded, id)
		}
	}

	if reminded > 0 {
		p.logger.Info("Review reminders sent",
			zap.Int("pending", len(pending)),
			zap.Int("reminded", reminded))
	}
}

func (p *ReviewReminderPoller) isStale(exp *entity.Expense, now time.Time) bool {
	evaluatedAt := exp.UpdatedAt
	if exp.Approval != nil && exp.Approval.EvaluatedAt != nil {
		evaluatedAt = *exp.Approval.EvaluatedAt
	}
	return now.Sub(evaluatedAt) >= p.staleAfter
}
