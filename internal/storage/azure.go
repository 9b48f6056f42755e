package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AzureSASIssuer signs service SAS URLs for blobs in a single container,
// using the storage account's shared key. Write URLs are scoped to
// create+write, read URLs to read only.
type AzureSASIssuer struct {
	account   string
	container string
	key       []byte
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

const sasVersion = "2021-08-06"

// NewAzureSASIssuer creates a new AzureSASIssuer. accountKey is the
// base64-encoded shared key from the storage account.
func NewAzureSASIssuer(account, container, accountKey string, ttl time.Duration, logger *zap.Logger) (*AzureSASIssuer, error) {
	key, err := base64.StdEncoding.DecodeString(accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode account key: %w", err)
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &AzureSASIssuer{
		account:   account,
		container: container,
		key:       key,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (a *AzureSASIssuer) UploadURL(ctx context.Context, taskID, filename string) (*AccessURL, error) {
	blobPath, err := CanonicalPath(taskID, filename)
	if err != nil {
		return nil, err
	}
	signed, err := a.sign(blobPath, "cw")
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Issued upload URL", zap.String("blob_path", blobPath))
	return &AccessURL{BlobPath: blobPath, URL: signed}, nil
}

func (a *AzureSASIssuer) ReadURL(ctx context.Context, blobPath string) (*AccessURL, error) {
	signed, err := a.sign(blobPath, "r")
	if err != nil {
		return nil, err
	}
	return &AccessURL{BlobPath: blobPath, URL: signed}, nil
}

// sign builds a service SAS over the blob. String-to-sign layout follows
// the 2021-08-06 service version.
func (a *AzureSASIssuer) sign(blobPath, permissions string) (string, error) {
	start := a.now().UTC().Add(-5 * time.Minute)
	expiry := a.now().UTC().Add(a.ttl)
	st := start.Format("2006-01-02T15:04:05Z")
	se := expiry.Format("2006-01-02T15:04:05Z")

	canonical := fmt.Sprintf("/blob/%s/%s/%s", a.account, a.container, blobPath)
	stringToSign := strings.Join([]string{
		permissions,
		st,
		se,
		canonical,
		"", // signed identifier
		"", // signed IP
		"https",
		sasVersion,
		"b",  // signed resource: blob
		"",   // snapshot time
		"",   // encryption scope
		"",   // cache-control
		"",   // content-disposition
		"",   // content-encoding
		"",   // content-language
		"",   // content-type
	}, "\n")

	mac := hmac.New(sha256.New, a.key)
	mac.Write([]byte(stringToSign))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	q := url.Values{}
	q.Set("sv", sasVersion)
	q.Set("st", st)
	q.Set("se", se)
	q.Set("sr", "b")
	q.Set("sp", permissions)
	q.Set("spr", "https")
	q.Set("sig", sig)

	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s?%s",
		a.account, a.container, blobPath, q.Encode()), nil
}
