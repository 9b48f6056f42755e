// Package ocr extracts receipt fields (merchant, total, currency,
// transaction date) from an image or PDF reachable through a readable
// URL. Extraction is defensive: fields the backend could not produce
// stay nil, they never become an error.
package ocr

import "context"

// Fields is the extraction result. All fields are optional.
type Fields struct {
	Merchant *string  `json:"merchant,omitempty"`
	Total    *float64 `json:"total,omitempty"`
	Currency *string  `json:"currency,omitempty"`
	TxnDate  *string  `json:"date,omitempty"`
}

// Analyzer analyzes a receipt reachable at readURL. The call blocks
// until the backend's asynchronous job completes or its retry budget is
// exhausted.
type Analyzer interface {
	Analyze(ctx context.Context, readURL string) (Fields, error)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}
