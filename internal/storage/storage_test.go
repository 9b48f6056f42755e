package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/apperr"
)

func TestCanonicalPath(t *testing.T) {
	t.Run("builds the receipts key", func(t *testing.T) {
		p, err := CanonicalPath("task-1", "receipt.jpg")
		require.NoError(t, err)
		assert.Equal(t, "receipts/task-1/receipt.jpg", p)
	})

	t.Run("sanitizes hostile filenames", func(t *testing.T) {
		p, err := CanonicalPath("task-1", "../../etc/passwd")
		require.NoError(t, err)
		assert.Equal(t, "receipts/task-1/passwd", p)

		p, err = CanonicalPath("task-1", "my receipt (1).jpg")
		require.NoError(t, err)
		assert.Equal(t, "receipts/task-1/my_receipt_1_.jpg", p)
	})

	t.Run("rejects empty inputs", func(t *testing.T) {
		_, err := CanonicalPath("", "a.jpg")
		assert.True(t, apperr.Is(err, apperr.KindValidation))
		_, err = CanonicalPath("task-1", "  ")
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestLocalBlobStore(t *testing.T) {
	ctx := context.Background()
	logger, _ := zap.NewDevelopment()
	s := NewLocalBlobStore(t.TempDir(), "http://localhost:8080", "test-secret", time.Minute, logger)

	t.Run("round-trips blob content", func(t *testing.T) {
		require.NoError(t, s.Save("receipts/task-1/a.jpg", []byte("jpeg bytes")))
		content, err := s.Read("receipts/task-1/a.jpg")
		require.NoError(t, err)
		assert.Equal(t, []byte("jpeg bytes"), content)
	})

	t.Run("missing blob is not found", func(t *testing.T) {
		_, err := s.Read("receipts/task-1/missing.jpg")
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("path escape is rejected", func(t *testing.T) {
		err := s.Save("../outside.txt", []byte("x"))
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})

	t.Run("issued URL verifies", func(t *testing.T) {
		access, err := s.UploadURL(ctx, "task-1", "b.jpg")
		require.NoError(t, err)
		assert.Equal(t, "receipts/task-1/b.jpg", access.BlobPath)

		u, err := url.Parse(access.URL)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(u.Path, "/blobs/receipts/task-1/"))
		q := u.Query()
		assert.Equal(t, "w", q.Get("p"))

		assert.NoError(t, s.Verify(access.BlobPath, "w", q.Get("exp"), q.Get("sig")))
	})

	t.Run("forged or cross-permission tokens fail", func(t *testing.T) {
		access, err := s.ReadURL(ctx, "receipts/task-1/c.jpg")
		require.NoError(t, err)
		q, err := url.Parse(access.URL)
		require.NoError(t, err)
		query := q.Query()

		assert.Error(t, s.Verify("receipts/task-1/c.jpg", "w", query.Get("exp"), query.Get("sig")),
			"read token must not grant writes")
		assert.Error(t, s.Verify("receipts/task-1/other.jpg", "r", query.Get("exp"), query.Get("sig")))
		assert.Error(t, s.Verify("receipts/task-1/c.jpg", "r", query.Get("exp"), "deadbeef"))
	})

	t.Run("expired tokens fail", func(t *testing.T) {
		short := NewLocalBlobStore(t.TempDir(), "http://localhost:8080", "test-secret", time.Minute, logger)
		short.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
		access, err := short.ReadURL(ctx, "receipts/task-1/d.jpg")
		require.NoError(t, err)
		u, _ := url.Parse(access.URL)

		err = s.Verify("receipts/task-1/d.jpg", "r", u.Query().Get("exp"), u.Query().Get("sig"))
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
	})
}

func TestAzureSASIssuer(t *testing.T) {
	ctx := context.Background()
	logger, _ := zap.NewDevelopment()
	// base64 of a throwaway test key
	issuer, err := NewAzureSASIssuer("acct", "receipts", "dGVzdC1rZXktYnl0ZXM=", 10*time.Minute, logger)
	require.NoError(t, err)

	t.Run("rejects a malformed account key", func(t *testing.T) {
		_, err := NewAzureSASIssuer("acct", "receipts", "%%%not-base64%%%", 0, logger)
		assert.Error(t, err)
	})

	t.Run("upload URL is scoped to create+write", func(t *testing.T) {
		access, err := issuer.UploadURL(ctx, "task-1", "a.jpg")
		require.NoError(t, err)
		assert.Equal(t, "receipts/task-1/a.jpg", access.BlobPath)

		u, err := url.Parse(access.URL)
		require.NoError(t, err)
		assert.Equal(t, "acct.blob.core.windows.net", u.Host)
		q := u.Query()
		assert.Equal(t, "cw", q.Get("sp"))
		assert.Equal(t, "b", q.Get("sr"))
		assert.NotEmpty(t, q.Get("sig"))
		assert.NotEmpty(t, q.Get("se"))
	})

	t.Run("read URL is scoped to read", func(t *testing.T) {
		access, err := issuer.ReadURL(ctx, "receipts/task-1/a.jpg")
		require.NoError(t, err)
		u, err := url.Parse(access.URL)
		require.NoError(t, err)
		assert.Equal(t, "r", u.Query().Get("sp"))
	})

	t.Run("signatures are deterministic for a frozen clock", func(t *testing.T) {
		frozen := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		issuer.now = func() time.Time { return frozen }

		a, err := issuer.ReadURL(ctx, "receipts/task-1/a.jpg")
		require.NoError(t, err)
		b, err := issuer.ReadURL(ctx, "receipts/task-1/a.jpg")
		require.NoError(t, err)
		assert.Equal(t, a.URL, b.URL)
	})
}
