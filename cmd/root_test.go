package cmd

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestNewLogHandler(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		h, err := newLogHandler(&buf, "info", "json")
		require.NoError(t, err)

		slog.New(h).Info("Restart", "restart", 3)
		assert.Contains(t, buf.String(), `"msg":"Restart"`)
		assert.Contains(t, buf.String(), `"restart":3`)
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		h, err := newLogHandler(&buf, "info", "text")
		require.NoError(t, err)

		slog.New(h).Info("Restart", "restart", 3)
		assert.Contains(t, buf.String(), "msg=Restart restart=3")
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		h, err := newLogHandler(&buf, "warn", "text")
		require.NoError(t, err)

		logger := slog.New(h)
		logger.Info("hidden")
		logger.Warn("shown")
		assert.False(t, strings.Contains(buf.String(), "hidden"))
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := newLogHandler(&bytes.Buffer{}, "info", "xml")
		assert.Error(t, err)
	})
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "simplexsearch version "+version+"\n", buf.String())
}
