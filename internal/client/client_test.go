package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/makertron/internal/logging"
	"github.com/chazu/makertron/internal/server"
	"github.com/chazu/makertron/pkg/kernel/kerneltest"
	"github.com/chazu/makertron/pkg/session"
	"github.com/chazu/makertron/pkg/tessellate"
)

func startServer(t *testing.T) string {
	t.Helper()
	pool := session.NewPool(session.New(kerneltest.New()), session.PoolConfig{Workers: 1})
	srv := server.New(pool, server.Options{Version: "test", Logger: logging.NewNop()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
		pool.Close()
	})
	return ts.URL
}

func TestSubmitRoundTrip(t *testing.T) {
	url := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var streamed [][]any
	res, err := Submit(ctx, url, session.Request{
		Script: `echo("a", 1); translate([1, 0, 0]) cube(2);`,
		Format: "triangles",
	}, Options{OnLog: func(args []any) { streamed = append(streamed, args) }})
	require.NoError(t, err)

	require.Nil(t, res.Failure)
	assert.Equal(t, [][]any{{"ECHO: \"a\", 1"}}, res.Logs)
	assert.Equal(t, res.Logs, streamed)
	require.Len(t, res.Results, 1)
	out := res.Results[0]
	assert.Equal(t, tessellate.FormatTriangles, out.Format)
	assert.Equal(t, 1, out.Triangles)
	assert.Equal(t, [3]float64{1, 0, 0}, out.Bounds[0])
}

func TestSubmitFailure(t *testing.T) {
	url := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := Submit(ctx, url, session.Request{Script: "sphere(r = -1);"}, Options{})
	require.NoError(t, err)
	require.NotNil(t, res.Failure)
	assert.Equal(t, session.FailureValidation, res.Failure.Kind)
	assert.Empty(t, res.Results)
}

func TestSubmitUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := Submit(ctx, "http://127.0.0.1:1", session.Request{Script: "cube(1);"}, Options{})
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	var f session.Failure
	require.NoError(t, decode(map[string]any{"kind": "stuck", "message": "2 pending", "line": float64(3)}, &f))
	assert.Equal(t, session.Failure{Kind: session.FailureStuck, Message: "2 pending", Line: 3}, f)

	assert.Error(t, decode(nil, &f))
}
