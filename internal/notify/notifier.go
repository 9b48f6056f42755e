package notify

import (
	"context"

	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
)

// Notifier delivers review-queue notifications to administrators.
// Delivery is best-effort; callers log and move on when it fails.
type Notifier interface {
	ExpensePendingReview(ctx context.Context, task *entity.Task, exp *entity.Expense) error
}

// NoopNotifier discards everything. Used when no messaging channel is
// configured and in tests.
type NoopNotifier struct{}

func (NoopNotifier) ExpensePendingReview(ctx context.Context, task *entity.Task, exp *entity.Expense) error {
	return nil
}
