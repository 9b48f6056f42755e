package entity

import "time"

// Task represents a unit of field work assigned to an employee.
// Documents are tenant-partitioned; ID is unique per tenant only.
type Task struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	DocType  string `json:"docType"`

	Title    string `json:"title"`
	Type     string `json:"type"`
	Assignee string `json:"assignee"` // normalized lower-case identity
	Status   string `json:"status"`

	// SLA window. Both bounds are optional; checkout lateness is only
	// evaluated when SLAEnd is set.
	SLAStart *time.Time `json:"slaStart,omitempty"`
	SLAEnd   *time.Time `json:"slaEnd,omitempty"`

	// Per-category spend ceilings. Missing categories fall back to the
	// Other ceiling during budget evaluation.
	ExpenseLimits map[string]float64 `json:"expenseLimits,omitempty"`

	Items []TaskItem `json:"items"`

	CheckInAt   *time.Time `json:"checkInAt,omitempty"`
	CheckOutAt  *time.Time `json:"checkOutAt,omitempty"`
	SLABreached bool       `json:"slaBreached,omitempty"`
	LateReason  string     `json:"lateReason,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TaskItem is a product reference embedded in a Task.
type TaskItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Task type constants
const (
	TaskTypeDataCollection   = "data_collection"
	TaskTypeProductExecution = "product_execution"
	TaskTypeRevisit          = "revisit"
)

// Task status constants. Status only ever advances forward in this order.
const (
	TaskStatusAssigned   = "ASSIGNED"
	TaskStatusInProgress = "IN_PROGRESS"
	TaskStatusCompleted  = "COMPLETED"
)
