package entity

import "time"

// TaskEvent is an append-only ledger entry recording a check-in or
// check-out action against a Task. Events are never mutated; at most one
// event of each type exists per Task.
type TaskEvent struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	DocType  string `json:"docType"`
	TaskID   string `json:"taskId"`

	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`

	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`

	// Checkout-only fields
	Late   bool   `json:"late,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Event type constants
const (
	EventCheckIn  = "CHECK_IN"
	EventCheckOut = "CHECK_OUT"
)

// Coords is an optional geolocation attached to a check-in/check-out.
type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
