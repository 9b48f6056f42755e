package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/apperr"
)

// LocalBlobStore keeps receipt blobs on the local filesystem and issues
// HMAC-tokened URLs served by the application's own /blobs endpoints.
// It stands in for the cloud issuer in development and tests.
type LocalBlobStore struct {
	baseDir string
	baseURL string
	secret  []byte
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewLocalBlobStore creates a new LocalBlobStore rooted at baseDir.
// baseURL is the externally visible prefix for the /blobs endpoints.
func NewLocalBlobStore(baseDir, baseURL, secret string, ttl time.Duration, logger *zap.Logger) *LocalBlobStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &LocalBlobStore{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(secret),
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *LocalBlobStore) UploadURL(ctx context.Context, taskID, filename string) (*AccessURL, error) {
	blobPath, err := CanonicalPath(taskID, filename)
	if err != nil {
		return nil, err
	}
	return &AccessURL{BlobPath: blobPath, URL: s.tokenURL(blobPath, "w")}, nil
}

func (s *LocalBlobStore) ReadURL(ctx context.Context, blobPath string) (*AccessURL, error) {
	return &AccessURL{BlobPath: blobPath, URL: s.tokenURL(blobPath, "r")}, nil
}

// Save writes blob content beneath baseDir, creating parent directories.
func (s *LocalBlobStore) Save(blobPath string, content []byte) error {
	fullPath, err := s.resolve(blobPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create blob directories",
			zap.String("path", filepath.Dir(fullPath)),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}
	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write blob",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to write blob: %w", err)
	}
	s.logger.Debug("Blob saved",
		zap.String("blob_path", blobPath),
		zap.Int("size", len(content)))
	return nil
}

// Read returns blob content for a previously saved path.
func (s *LocalBlobStore) Read(blobPath string) ([]byte, error) {
	fullPath, err := s.resolve(blobPath)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.NotFound("blob not found")
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return content, nil
}

// Verify checks a token produced by tokenURL for the given path and
// permission, rejecting expired or forged tokens.
func (s *LocalBlobStore) Verify(blobPath, permission, expires, sig string) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || s.now().UTC().Unix() > exp {
		return apperr.Forbidden("access token expired")
	}
	expected := s.signToken(blobPath, permission, expires)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return apperr.Forbidden("access token invalid")
	}
	return nil
}

// resolve maps a blob path to a location under baseDir, refusing any
// path that would escape it.
func (s *LocalBlobStore) resolve(blobPath string) (string, error) {
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(absBase, filepath.FromSlash(blobPath)))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", apperr.Validation("blob path escapes storage root")
	}
	return absPath, nil
}

func (s *LocalBlobStore) tokenURL(blobPath, permission string) string {
	expires := strconv.FormatInt(s.now().UTC().Add(s.ttl).Unix(), 10)
	q := url.Values{}
	q.Set("p", permission)
	q.Set("exp", expires)
	q.Set("sig", s.signToken(blobPath, permission, expires))
	return fmt.Sprintf("%s/blobs/%s?%s", s.baseURL, blobPath, q.Encode())
}

func (s *LocalBlobStore) signToken(blobPath, permission, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%s\n%s", blobPath, permission, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
