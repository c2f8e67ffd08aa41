package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNewRenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", "text", &buf)
	l.Info("failed", "error", errors.New("boom"))
	assert.Contains(t, buf.String(), "err=boom")
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New("debug", "json", &buf)
	l.Debug("hello", "n", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, float64(1), rec["n"])
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New("warn", "text", &buf)
	l.Info("hidden")
	assert.Empty(t, buf.String())
}
