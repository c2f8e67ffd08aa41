// Package server exposes the evaluation pool over HTTP and socket.io.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"

	"github.com/chazu/makertron/internal/ctxlog"
	"github.com/chazu/makertron/pkg/session"
	"github.com/chazu/makertron/pkg/tessellate"
)

// socket.io event names.
const (
	EventEvaluate = "OPENSCAD"
	EventLog      = "OPENSCADLOG"
	EventResult   = "OPENSCADRES"
	EventError    = "OPENSCADERR"
)

var errServerClosed = errors.New("server is shutting down")

// Evaluator queues evaluation requests. *session.Pool implements it.
type Evaluator interface {
	Submit(ctx context.Context, req session.Request) (<-chan session.Event, error)
}

// DefaultMaxBodyBytes caps a POST /evaluate body.
const DefaultMaxBodyBytes = 8 << 20

// Options configures a Server. Zero values pick defaults.
type Options struct {
	Version      string
	Metrics      http.Handler // served at /metrics when set
	CORSOrigin   string
	PingTimeout  time.Duration
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// Server routes HTTP requests and socket.io connections to an Evaluator.
type Server struct {
	eval    Evaluator
	opts    Options
	logger  *slog.Logger
	io      *socket.Server
	handler http.Handler

	// in-flight socket.io evaluations, so Close can wait for them
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New builds the router and the socket.io endpoint.
func New(eval Evaluator, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &Server{eval: eval, opts: opts, logger: opts.Logger}

	ioOpts := socket.DefaultServerOptions()
	if opts.PingTimeout > 0 {
		ioOpts.SetPingTimeout(opts.PingTimeout)
	}
	if opts.CORSOrigin != "" {
		ioOpts.SetCors(&types.Cors{Origin: opts.CORSOrigin, Credentials: true})
	}
	s.io = socket.NewServer(nil, ioOpts)
	s.io.On("connection", func(clients ...any) {
		client, ok := clients[0].(*socket.Socket)
		if !ok {
			return
		}
		s.connect(client)
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleVersion)
	r.Get("/healthz", s.handleHealth)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	r.Post("/evaluate", s.handleEvaluate)
	r.Handle("/socket.io/*", s.io.ServeHandler(nil))

	s.handler = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Close disconnects every socket.io client and waits for their
// evaluations to finish streaming.
// Evaluations requested after Close starts are refused.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.io.Close(nil)
	s.wg.Wait()
}

// track registers a relay with Close, unless the server is closing.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

// requestLogger puts a request-scoped logger into the request context.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := s.logger.With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctxlog.WithLogger(r.Context(), logger)))
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Makertron server version %s\n", s.opts.Version)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEvaluate runs one request synchronously and replies with the
// collected logs and results. Evaluation failures are reported in the
// body with status 200; only transport problems use error statuses.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req session.Request
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	events, err := s.eval.Submit(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrQueueFull) || errors.Is(err, session.ErrPoolClosed) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, session.Collect(events))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// connect wires one socket.io client. Each OPENSCAD event starts an
// evaluation whose events are relayed back on the same socket; a
// disconnect cancels whatever is still running for it.
func (s *Server) connect(client *socket.Socket) {
	logger := s.logger.With("sid", client.Id())
	ctx, cancel := context.WithCancel(ctxlog.WithLogger(context.Background(), logger))
	logger.Info("client connected")

	client.On("disconnect", func(reason ...any) {
		logger.Info("client disconnected", "reason", first(reason))
		cancel()
	})
	client.On("error", func(errs ...any) {
		logger.Error("socket error", "error", first(errs))
	})
	client.On(EventEvaluate, func(args ...any) {
		req, err := session.DecodeRequest(first(args))
		if err != nil {
			s.emit(logger, client, EventError, &session.Failure{Kind: session.FailureCompile, Message: err.Error()})
			return
		}
		if !s.track() {
			s.emit(logger, client, EventError, &session.Failure{Kind: session.FailureInternal, Message: errServerClosed.Error()})
			return
		}
		events, err := s.eval.Submit(ctx, req)
		if err != nil {
			s.wg.Done()
			logger.Warn("evaluation rejected", "error", err)
			s.emit(logger, client, EventError, &session.Failure{Kind: session.FailureInternal, Message: err.Error()})
			return
		}
		go func() {
			defer s.wg.Done()
			s.relay(logger, client, events)
		}()
	})
}

// relay forwards evaluation events until the channel closes.
func (s *Server) relay(logger *slog.Logger, client *socket.Socket, events <-chan session.Event) {
	for ev := range events {
		switch ev.Type {
		case session.EventLog:
			data, err := json.Marshal(ev.Log)
			if err != nil {
				logger.Warn("unencodable log event", "error", err)
				continue
			}
			s.emit(logger, client, EventLog, string(data))
		case session.EventResult:
			results := ev.Results
			if results == nil {
				results = []tessellate.Output{}
			}
			s.emit(logger, client, EventResult, results)
		case session.EventError:
			s.emit(logger, client, EventError, ev.Err)
		}
	}
}

func (s *Server) emit(logger *slog.Logger, client *socket.Socket, event string, payload any) {
	if client.Disconnected() {
		return
	}
	if err := client.Emit(event, payload); err != nil {
		logger.Warn("emit failed", "event", event, "error", err)
	}
}

func first(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}
