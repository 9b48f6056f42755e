package entity

import "time"

// Product is a catalog entry referenced by Task items.
type Product struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	DocType  string `json:"docType"`

	Name  string  `json:"name"`
	SKU   string  `json:"sku,omitempty"`
	Price float64 `json:"price,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Assignee is a lightweight record of an identity seen by the system,
// used to back assignee pickers. ID is the normalized email.
type Assignee struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	DocType  string `json:"docType"`

	Email    string    `json:"email"`
	Name     string    `json:"name,omitempty"`
	LastSeen time.Time `json:"lastSeen"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
