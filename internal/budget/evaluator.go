// Package budget computes the approval decision for an expense against
// the per-category remaining allowance of its Task. The remaining budget
// is recomputed from the current set of non-rejected expenses on every
// evaluation rather than kept as a stored counter, so the result always
// reflects the latest, possibly edited, state.
package budget

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
)

// Config holds the injected budget defaults. The default ceiling applies
// to every category of a Task that carries no limits at all.
type Config struct {
	DefaultLimit float64
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{DefaultLimit: 1000}
}

// Decision is the outcome of a budget evaluation.
type Decision struct {
	Status          string
	Limit           float64
	RemainingBefore float64
	Reason          string
}

// Evaluator decides AUTO_APPROVED vs PENDING_REVIEW.
type Evaluator struct {
	cfg Config
}

// NewEvaluator creates an evaluator with the given configuration.
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate computes the decision for spending amount in category on the
// given task. taskExpenses is the full set of expenses currently on the
// task; the expense identified by currentID is excluded from the
// spent-so-far sum, as are REJECTED expenses.
func (e *Evaluator) Evaluate(task *entity.Task, taskExpenses []*entity.Expense, currentID, category string, amount float64) Decision {
	limit := e.limitFor(task, category)
	spent := spentSoFar(taskExpenses, currentID, category)

	remaining := limit.Sub(spent) // may be negative
	allowance := remaining
	if allowance.IsNegative() {
		allowance = decimal.Zero
	}

	amt := decimal.NewFromFloat(amount)
	d := Decision{
		Limit:           limit.InexactFloat64(),
		RemainingBefore: remaining.InexactFloat64(),
	}
	if amt.LessThanOrEqual(allowance) {
		d.Status = entity.ApprovalAutoApproved
		d.Reason = fmt.Sprintf("amount %s within remaining %s of %s limit %s",
			amt.StringFixed(2), remaining.StringFixed(2), category, limit.StringFixed(2))
	} else {
		d.Status = entity.ApprovalPendingReview
		d.Reason = fmt.Sprintf("amount %s exceeds remaining %s of %s limit %s",
			amt.StringFixed(2), remaining.StringFixed(2), category, limit.StringFixed(2))
	}
	return d
}

// limitFor resolves the ceiling for a category: the task's explicit
// limit, falling back to its Other ceiling, then to the configured
// default when the task carries no limits at all.
func (e *Evaluator) limitFor(task *entity.Task, category string) decimal.Decimal {
	if task == nil || len(task.ExpenseLimits) == 0 {
		return decimal.NewFromFloat(e.cfg.DefaultLimit)
	}
	if v, ok := task.ExpenseLimits[category]; ok {
		return decimal.NewFromFloat(v)
	}
	if v, ok := task.ExpenseLimits[entity.CategoryOther]; ok {
		return decimal.NewFromFloat(v)
	}
	return decimal.NewFromFloat(e.cfg.DefaultLimit)
}

// spentSoFar sums editedTotal-else-total over the other non-rejected
// expenses of the same category.
func spentSoFar(expenses []*entity.Expense, currentID, category string) decimal.Decimal {
	total := decimal.Zero
	for _, exp := range expenses {
		if exp.ID == currentID {
			continue
		}
		if exp.Category != category {
			continue
		}
		if !exp.CountsTowardSpend() {
			continue
		}
		total = total.Add(decimal.NewFromFloat(exp.EffectiveTotal()))
	}
	return total
}
