package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/itohio/gotemp/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LogConfig{Level: "warn", Format: "json"}, &buf, "test")

	logger.Info("dropped")
	logger.Warn("kept", "seq", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "gotemp", rec["app"])
	assert.Equal(t, "test", rec["version"])
	assert.Equal(t, float64(3), rec["seq"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LogConfig{Level: "debug", Format: "text"}, &buf, "test")

	logger.Debug("reading", "raw", 819)
	out := buf.String()
	assert.Contains(t, out, "reading")
	assert.Contains(t, out, "raw=819")
	assert.Contains(t, out, "app=gotemp")
	assert.Contains(t, out, "version=test")
	assert.NotContains(t, out, "\x1b[", "buffers get plain text")
}
