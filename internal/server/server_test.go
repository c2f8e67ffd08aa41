package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/makertron/internal/logging"
	"github.com/chazu/makertron/internal/metrics"
	"github.com/chazu/makertron/pkg/kernel/kerneltest"
	"github.com/chazu/makertron/pkg/session"
	"github.com/chazu/makertron/pkg/tessellate"
)

func newTestServer(t *testing.T, eval Evaluator, m *metrics.Metrics) *httptest.Server {
	t.Helper()
	opts := Options{Version: "9.9.9", Logger: logging.NewNop()}
	if m != nil {
		opts.Metrics = m.Handler()
	}
	srv := New(eval, opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts
}

func newPool(t *testing.T, opts ...session.Option) *session.Pool {
	t.Helper()
	p := session.NewPool(session.New(kerneltest.New(), opts...), session.PoolConfig{Workers: 2})
	t.Cleanup(p.Close)
	return p
}

func TestVersionBanner(t *testing.T) {
	ts := newTestServer(t, newPool(t), nil)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Makertron server version 9.9.9\n", string(body))
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, newPool(t), nil)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func postEvaluate(t *testing.T, url, body string) (*http.Response, session.Result) {
	t.Helper()
	resp, err := http.Post(url+"/evaluate", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var res session.Result
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	}
	return resp, res
}

func TestEvaluate(t *testing.T) {
	ts := newTestServer(t, newPool(t), nil)

	resp, res := postEvaluate(t, ts.URL, `{"script": "echo(\"hi\"); cube(2);", "format": "triangles"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.Nil(t, res.Failure)
	assert.Equal(t, [][]any{{`ECHO: "hi"`}}, res.Logs)
	require.Len(t, res.Results, 1)
	assert.Equal(t, tessellate.FormatTriangles, res.Results[0].Format)
}

func TestEvaluateFailureInBody(t *testing.T) {
	ts := newTestServer(t, newPool(t), nil)

	resp, res := postEvaluate(t, ts.URL, `{"script": "cube(;"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, res.Failure)
	assert.Equal(t, session.FailureCompile, res.Failure.Kind)
	assert.Equal(t, 1, res.Failure.Line)
}

func TestEvaluateBadBody(t *testing.T) {
	ts := newTestServer(t, newPool(t), nil)

	resp, _ := postEvaluate(t, ts.URL, `{"script": `)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type rejectingEvaluator struct{ err error }

func (r rejectingEvaluator) Submit(context.Context, session.Request) (<-chan session.Event, error) {
	return nil, r.err
}

func TestEvaluateRejected(t *testing.T) {
	ts := newTestServer(t, rejectingEvaluator{session.ErrQueueFull}, nil)

	resp, _ := postEvaluate(t, ts.URL, `{"script": "cube(1);"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestEvaluateBodyTooLarge(t *testing.T) {
	srv := New(newPool(t), Options{Logger: logging.NewNop(), MaxBodyBytes: 64})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})

	big := `{"script": "` + strings.Repeat("cube(1); ", 100) + `"}`
	resp, _ := postEvaluate(t, ts.URL, big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	resp, res := postEvaluate(t, ts.URL, `{"script": "cube(1);"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, res.Results, 1)
}

func TestCloseRefusesNewRelays(t *testing.T) {
	srv := New(newPool(t), Options{Logger: logging.NewNop()})

	require.True(t, srv.track())
	srv.wg.Done()

	srv.Close()
	assert.False(t, srv.track())
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	ts := newTestServer(t, newPool(t, session.WithMetrics(m)), m)

	postEvaluate(t, ts.URL, `{"script": "sphere(1);"}`)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `makertron_evaluations_total{outcome="ok"} 1`)
}

func TestMetricsAbsentWithoutHandler(t *testing.T) {
	ts := newTestServer(t, newPool(t), nil)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
