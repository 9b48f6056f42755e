package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/apperr"
	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
	"github.com/amitoj1996/fieldops-web/internal/repository"
)

// Row is one report line. Rows are one-to-one with Tasks; a Task with no
// expenses still produces a row with "0.00" in every money column.
type Row struct {
	TaskID      string `json:"taskId"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	Assignee    string `json:"assignee"`
	Status      string `json:"status"`
	SLAStart    string `json:"slaStart"`
	SLAEnd      string `json:"slaEnd"`
	CheckInAt   string `json:"checkInAt"`
	CheckOutAt  string `json:"checkOutAt"`
	SLABreached bool   `json:"slaBreached"`
	Items       string `json:"items"`

	// Money columns in fixed category order, then the grand total, all
	// formatted with two decimal places.
	Categories map[string]string `json:"categories"`
	Total      string            `json:"total"`

	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Options bounds the report by Task creation date. Dates are date-only;
// To is inclusive of the whole day.
type Options struct {
	From *time.Time
	To   *time.Time
}

// ParseOptions interprets optional YYYY-MM-DD bounds.
func ParseOptions(from, to string) (Options, error) {
	var opts Options
	if from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return opts, apperr.Validation("fromDate must be YYYY-MM-DD")
		}
		opts.From = &t
	}
	if to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return opts, apperr.Validation("toDate must be YYYY-MM-DD")
		}
		opts.To = &t
	}
	return opts, nil
}

// Aggregator rolls Tasks and Expenses up into report rows.
type Aggregator struct {
	tasks    *repository.TaskRepository
	expenses *repository.ExpenseRepository
	logger   *zap.Logger
}

// NewAggregator creates a new Aggregator
func NewAggregator(tasks *repository.TaskRepository, expenses *repository.ExpenseRepository, logger *zap.Logger) *Aggregator {
	return &Aggregator{tasks: tasks, expenses: expenses, logger: logger}
}

// Build produces one row per Task created within the date range.
func (a *Aggregator) Build(ctx context.Context, tenantID string, opts Options) ([]Row, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.Validation("tenantId is required")
	}

	tasks, err := a.tasks.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	expenses, err := a.expenses.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	byTask := make(map[string][]*entity.Expense)
	for _, e := range expenses {
		byTask[e.TaskID] = append(byTask[e.TaskID], e)
	}

	rows := make([]Row, 0, len(tasks))
	for _, t := range tasks {
		if !inRange(t.CreatedAt, opts) {
			continue
		}
		rows = append(rows, buildRow(t, byTask[t.ID]))
	}
	a.logger.Info("Report built",
		zap.String("tenant_id", tenantID),
		zap.Int("rows", len(rows)))
	return rows, nil
}

func inRange(createdAt time.Time, opts Options) bool {
	if opts.From != nil && createdAt.Before(*opts.From) {
		return false
	}
	if opts.To != nil {
		// Inclusive of the whole To day.
		end := opts.To.AddDate(0, 0, 1)
		if !createdAt.Before(end) {
			return false
		}
	}
	return true
}

func buildRow(t *entity.Task, expenses []*entity.Expense) Row {
	subtotals := make(map[string]decimal.Decimal, 4)
	for _, c := range entity.Categories() {
		subtotals[c] = decimal.Zero
	}
	total := decimal.Zero
	var pending, approved, rejected int

	for _, e := range expenses {
		if e.Approval != nil {
			switch e.Approval.Status {
			case entity.ApprovalPendingReview:
				pending++
			case entity.ApprovalApproved, entity.ApprovalAutoApproved:
				approved++
			case entity.ApprovalRejected:
				rejected++
			}
		}
		if !e.CountsTowardSpend() {
			continue
		}
		amount := decimal.NewFromFloat(e.EffectiveTotal())
		category := e.Category
		if _, ok := subtotals[category]; !ok {
			category = entity.CategoryOther
		}
		subtotals[category] = subtotals[category].Add(amount)
		total = total.Add(amount)
	}

	categories := make(map[string]string, len(subtotals))
	for c, v := range subtotals {
		categories[c] = v.StringFixed(2)
	}

	return Row{
		TaskID:      t.ID,
		Title:       t.Title,
		Type:        t.Type,
		Assignee:    t.Assignee,
		Status:      t.Status,
		SLAStart:    formatTime(t.SLAStart),
		SLAEnd:      formatTime(t.SLAEnd),
		CheckInAt:   formatTime(t.CheckInAt),
		CheckOutAt:  formatTime(t.CheckOutAt),
		SLABreached: t.SLABreached,
		Items:       flattenItems(t.Items),
		Categories:  categories,
		Total:       total.StringFixed(2),
		Pending:     pending,
		Approved:    approved,
		Rejected:    rejected,
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func flattenItems(items []entity.TaskItem) string {
	if len(items) == 0 {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%sx%d", it.ProductID, it.Quantity))
	}
	return strings.Join(parts, "; ")
}
