package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("writes json lines to a file sink", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "nested", "server.log")
		logger, err := NewLogger(LoggerConfig{Level: "info", OutputPath: logPath, Format: "json"})
		require.NoError(t, err)

		logger.Info("engine started")
		require.NoError(t, logger.Sync())

		content, err := os.ReadFile(logPath)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"engine started"`)
		assert.Contains(t, string(content), `"timestamp"`)
	})

	t.Run("level filters below the configured threshold", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "server.log")
		logger, err := NewLogger(LoggerConfig{Level: "warn", OutputPath: logPath, Format: "json"})
		require.NoError(t, err)

		logger.Info("suppressed")
		logger.Warn("surfaced")
		require.NoError(t, logger.Sync())

		content, err := os.ReadFile(logPath)
		require.NoError(t, err)
		assert.NotContains(t, string(content), "suppressed")
		assert.Contains(t, string(content), "surfaced")
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "server.log")
		logger, err := NewLogger(LoggerConfig{Level: "chatty", OutputPath: logPath, Format: "json"})
		require.NoError(t, err)

		logger.Debug("below fallback")
		logger.Info("at fallback")
		require.NoError(t, logger.Sync())

		content, err := os.ReadFile(logPath)
		require.NoError(t, err)
		assert.NotContains(t, string(content), "below fallback")
		assert.Contains(t, string(content), "at fallback")
	})

	t.Run("console format is the default", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "server.log")
		logger, err := NewLogger(LoggerConfig{Level: "debug", OutputPath: logPath})
		require.NoError(t, err)

		logger.Info("console line")
		require.NoError(t, logger.Sync())

		content, err := os.ReadFile(logPath)
		require.NoError(t, err)
		assert.Contains(t, string(content), "console line")
		assert.False(t, strings.HasPrefix(strings.TrimSpace(string(content)), "{"),
			"console output must not be a json object")
	})
}
