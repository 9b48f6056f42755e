package storage

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/amitoj1996/fieldops-web/internal/apperr"
)

// AccessURL is a time-boxed, permission-scoped URL for one receipt blob.
type AccessURL struct {
	// BlobPath is the canonical path; it is the stable key an Expense is
	// tied to, independent of the signed URL.
	BlobPath string `json:"blobPath"`
	URL      string `json:"url"`
}

// SASIssuer issues scoped access URLs for receipt blobs.
type SASIssuer interface {
	UploadURL(ctx context.Context, taskID, filename string) (*AccessURL, error)
	ReadURL(ctx context.Context, blobPath string) (*AccessURL, error)
}

var filenamePattern = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// CanonicalPath builds the stable receipts/<taskId>/<filename> key.
// The filename is sanitized so a crafted name cannot escape the task's
// receipt prefix.
func CanonicalPath(taskID, filename string) (string, error) {
	taskID = strings.TrimSpace(taskID)
	filename = strings.TrimSpace(filename)
	if taskID == "" {
		return "", apperr.Validation("taskId is required")
	}
	if filename == "" {
		return "", apperr.Validation("filename is required")
	}

	safe := filenamePattern.ReplaceAllString(path.Base(filename), "_")
	if safe == "" || safe == "." || safe == ".." {
		return "", apperr.Validation("filename is not usable")
	}
	return fmt.Sprintf("receipts/%s/%s", taskID, safe), nil
}
