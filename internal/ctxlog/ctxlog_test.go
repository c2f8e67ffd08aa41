package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := WithLogger(context.Background(), l)

	FromContext(ctx).Info("hello", "eval_id", "abc")
	assert.Contains(t, buf.String(), "eval_id=abc")
}

func TestMissingLoggerDiscards(t *testing.T) {
	l := FromContext(context.Background())
	assert.NotNil(t, l)
	l.Info("dropped")
}
