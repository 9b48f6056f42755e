package entity

import "time"

// Expense is a single receipt-derived spend record tied to a Task.
// Exactly one Expense exists per (taskId, blobPath) pair; OCR ingestion
// upserts on that key.
type Expense struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	DocType  string `json:"docType"`
	TaskID   string `json:"taskId"`

	// BlobPath is the canonical receipt path, independent of any
	// time-boxed access URL issued for it.
	BlobPath string `json:"blobPath"`

	// OCR-extracted fields. Absent extractions stay nil rather than
	// becoming zero values.
	Merchant *string  `json:"merchant,omitempty"`
	Total    *float64 `json:"total,omitempty"`
	Currency *string  `json:"currency,omitempty"`
	TxnDate  *string  `json:"txnDate,omitempty"`

	// Set during finalize.
	Category         string   `json:"category,omitempty"`
	EditedTotal      *float64 `json:"editedTotal,omitempty"`
	IsManualOverride bool     `json:"isManualOverride"`
	Comment          string   `json:"comment,omitempty"`
	SubmittedBy      string   `json:"submittedBy,omitempty"`

	Approval *Approval `json:"approval,omitempty"`

	// Prior admin decisions displaced by a re-finalize, oldest first.
	Resubmissions []Approval `json:"resubmissions,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Approval records the budget evaluation from finalize and, when present,
// the admin decision merged on top of it.
type Approval struct {
	Status          string     `json:"status"`
	EvaluatedAt     *time.Time `json:"evaluatedAt,omitempty"`
	DecidedAt       *time.Time `json:"decidedAt,omitempty"`
	Limit           float64    `json:"limit"`
	RemainingBefore float64    `json:"remainingBefore"`
	Reason          string     `json:"reason,omitempty"`
	DecidedBy       string     `json:"decidedBy,omitempty"`
	Note            string     `json:"note,omitempty"`
}

// Approval status constants
const (
	ApprovalAutoApproved  = "AUTO_APPROVED"
	ApprovalPendingReview = "PENDING_REVIEW"
	ApprovalApproved      = "APPROVED"
	ApprovalRejected      = "REJECTED"
)

// Expense categories are a fixed set; unknown categories are rejected at
// finalize time.
const (
	CategoryHotel  = "Hotel"
	CategoryFood   = "Food"
	CategoryTravel = "Travel"
	CategoryOther  = "Other"
)

// Categories lists the fixed category set in report column order.
func Categories() []string {
	return []string{CategoryHotel, CategoryFood, CategoryTravel, CategoryOther}
}

// IsValidCategory reports whether c belongs to the fixed category set.
func IsValidCategory(c string) bool {
	switch c {
	case CategoryHotel, CategoryFood, CategoryTravel, CategoryOther:
		return true
	}
	return false
}

// EffectiveTotal returns the employee-edited total when present, falling
// back to the OCR-extracted total, then zero.
func (e *Expense) EffectiveTotal() float64 {
	if e.EditedTotal != nil {
		return *e.EditedTotal
	}
	if e.Total != nil {
		return *e.Total
	}
	return 0
}

// CountsTowardSpend reports whether this expense participates in the
// remaining-budget sum: anything not explicitly REJECTED counts.
func (e *Expense) CountsTowardSpend() bool {
	return e.Approval == nil || e.Approval.Status != ApprovalRejected
}
