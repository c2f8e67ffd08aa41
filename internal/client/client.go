// Package client submits scripts to a running makertron server over
// socket.io.
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/mitchellh/mapstructure"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/chazu/makertron/internal/ctxlog"
	"github.com/chazu/makertron/internal/server"
	"github.com/chazu/makertron/pkg/session"
	"github.com/chazu/makertron/pkg/tessellate"
)

// Options tunes Submit.
type Options struct {
	InsecureSkipVerify bool
	// OnLog receives the arguments of every log event, in order.
	OnLog func(args []any)
}

type outcome struct {
	result session.Result
	err    error
}

// Submit sends req to the server at rawURL and waits for the terminal
// event. Evaluation failures are returned in Result.Failure; the error is
// reserved for transport problems and ctx expiry.
func Submit(ctx context.Context, rawURL string, req session.Request, opts Options) (session.Result, error) {
	logger := ctxlog.FromContext(ctx).With("url", rawURL)

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return session.Result{}, fmt.Errorf("failed to parse URL: %w", err)
	}
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)

	ioOpts := socket.DefaultOptions()
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		ioOpts.SetPath(parsedURL.Path)
	}
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		ioOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	ioOpts.SetTransports(types.NewSet(transports.WebSocket))
	ioOpts.SetReconnection(false)

	manager := socket.NewManager(baseURL, ioOpts)
	io := manager.Socket("/", ioOpts)
	defer io.Disconnect()

	var connected atomic.Bool
	done := make(chan outcome, 1)
	finish := func(o outcome) {
		select {
		case done <- o:
		default:
		}
	}
	var mu sync.Mutex
	res := session.Result{Logs: [][]any{}, Results: []tessellate.Output{}}

	io.On(types.EventName("connect"), func(...any) {
		if connected.Swap(true) {
			return
		}
		logger.Debug("connected", "sid", io.Id())
		if err := io.Emit(server.EventEvaluate, req); err != nil {
			finish(outcome{err: fmt.Errorf("emit %s: %w", server.EventEvaluate, err)})
		}
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		finish(outcome{err: fmt.Errorf("socket.io connection failed: %v", first(errs))})
	})
	io.On(types.EventName(server.EventLog), func(args ...any) {
		raw, _ := first(args).(string)
		var log []any
		if err := json.Unmarshal([]byte(raw), &log); err != nil {
			log = []any{raw}
		}
		mu.Lock()
		res.Logs = append(res.Logs, log)
		mu.Unlock()
		if opts.OnLog != nil {
			opts.OnLog(log)
		}
	})
	io.On(types.EventName(server.EventResult), func(args ...any) {
		var outputs []tessellate.Output
		if err := decode(first(args), &outputs); err != nil {
			finish(outcome{err: fmt.Errorf("decode %s: %w", server.EventResult, err)})
			return
		}
		mu.Lock()
		res.Results = outputs
		out := res
		mu.Unlock()
		finish(outcome{result: out})
	})
	io.On(types.EventName(server.EventError), func(args ...any) {
		var f session.Failure
		if err := decode(first(args), &f); err != nil {
			finish(outcome{err: fmt.Errorf("decode %s: %w", server.EventError, err)})
			return
		}
		mu.Lock()
		res.Failure = &f
		out := res
		mu.Unlock()
		finish(outcome{result: out})
	})

	io.Connect()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		if connected.Load() {
			return session.Result{}, fmt.Errorf("waiting for evaluation result: %w", ctx.Err())
		}
		return session.Result{}, fmt.Errorf("waiting for socket.io connection: %w", ctx.Err())
	}
}

// decode maps a JSON-decoded event payload onto out using its json tags.
func decode(payload, out any) error {
	if payload == nil {
		return errors.New("empty payload")
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "json",
	})
	if err != nil {
		return err
	}
	return dec.Decode(payload)
}

func first(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}
