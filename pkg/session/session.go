package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/makertron/internal/ctxlog"
	"github.com/chazu/makertron/pkg/graph"
	"github.com/chazu/makertron/pkg/kernel"
	"github.com/chazu/makertron/pkg/script"
	"github.com/chazu/makertron/pkg/tessellate"
)

// Cache stores serialized results by request key.
type Cache interface {
	Get(ctx context.Context, key string) ([]tessellate.Output, bool, error)
	Put(ctx context.Context, key string, outputs []tessellate.Output) error
}

// Metrics receives per-evaluation measurements.
type Metrics interface {
	EvaluationDone(outcome string, d time.Duration)
	GraphResolved(nodes, passes int)
	CacheLookup(hit bool)
}

type nopMetrics struct{}

func (nopMetrics) EvaluationDone(string, time.Duration) {}
func (nopMetrics) GraphResolved(int, int)               {}
func (nopMetrics) CacheLookup(bool)                     {}

// Session evaluates requests against one kernel. It holds configuration
// only and is safe for concurrent use.
type Session struct {
	kernel         kernel.Kernel
	maxIterations  int
	defaultQuality float64
	defaultFormat  tessellate.Format
	cache          Cache
	metrics        Metrics
}

// Option configures a Session.
type Option func(*Session)

// WithMaxIterations caps loop iterations per evaluation.
func WithMaxIterations(n int) Option {
	return func(s *Session) { s.maxIterations = n }
}

// WithDefaults sets the quality and format used when a request omits them.
func WithDefaults(quality float64, format tessellate.Format) Option {
	return func(s *Session) {
		if quality > 0 {
			s.defaultQuality = quality
		}
		if format != "" {
			s.defaultFormat = format
		}
	}
}

// WithCache enables result caching.
func WithCache(c Cache) Option {
	return func(s *Session) { s.cache = c }
}

// WithMetrics installs a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New returns a Session that builds geometry with k.
func New(k kernel.Kernel, opts ...Option) *Session {
	s := &Session{
		kernel:         k,
		maxIterations:  script.DefaultMaxIterations,
		defaultQuality: tessellate.DefaultQuality,
		defaultFormat:  tessellate.FormatSTL,
		metrics:        nopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one evaluation, passing every event to emit. The terminal
// event is also returned. Kernel handles created by the evaluation are
// released before Run returns.
func (s *Session) Run(ctx context.Context, req Request, emit func(Event)) Event {
	id := uuid.NewString()
	logger := ctxlog.FromContext(ctx).With("eval_id", id)
	ctx = ctxlog.WithLogger(ctx, logger)
	start := time.Now()

	outputs, outcome, err := s.evaluate(ctx, req, emit)

	var ev Event
	if err != nil {
		f := Classify(err)
		outcome = string(f.Kind)
		logger.Warn("evaluation failed", "kind", f.Kind, "error", err)
		ev = Event{Type: EventError, Err: f}
	} else {
		ev = Event{Type: EventResult, Results: outputs}
	}
	d := time.Since(start)
	s.metrics.EvaluationDone(outcome, d)
	logger.Info("evaluation finished", "outcome", outcome, "duration", d, "solids", len(outputs))
	emit(ev)
	return ev
}

func (s *Session) evaluate(ctx context.Context, req Request, emit func(Event)) ([]tessellate.Output, string, error) {
	logger := ctxlog.FromContext(ctx)

	dialect, err := script.ParseDialect(req.Dialect)
	if err != nil {
		return nil, "", &script.CompileError{Msg: err.Error()}
	}
	format := s.defaultFormat
	if req.Format != "" {
		if format, err = tessellate.ParseFormat(req.Format); err != nil {
			return nil, "", &script.CompileError{Msg: err.Error()}
		}
	}
	quality := req.Quality
	if quality <= 0 {
		quality = s.defaultQuality
	}
	key := CacheKey(Request{Script: req.Script, Dialect: string(dialect), Quality: quality, Format: string(format)})

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			logger.Warn("cache lookup failed", "error", err)
		}
		s.metrics.CacheLookup(ok)
		if ok {
			logger.Debug("cache hit", "key", key)
			return cached, "cached", nil
		}
	}

	scope := kernel.NewScope(s.kernel)
	defer scope.Release()

	prog, err := script.Compile(ctx, dialect, req.Script)
	if err != nil {
		return nil, "", err
	}

	logf := func(args ...any) {
		emit(Event{Type: EventLog, Log: args})
	}
	b := graph.NewBuilder()
	err = script.Run(ctx, prog, b, scope, script.Options{
		MaxIterations: s.maxIterations,
		Log:           logf,
	})
	if err != nil {
		return nil, "", err
	}
	g, err := b.Graph()
	if err != nil {
		return nil, "", &script.CompileError{Msg: err.Error()}
	}

	resolver := graph.NewResolver(scope)
	resolver.Log = logf
	stats, err := resolver.Resolve(ctx, g)
	s.metrics.GraphResolved(g.NodeCount(), stats.Passes)
	logger.Debug("graph resolved", "nodes", g.NodeCount(), "depth", g.Depth(), "passes", stats.Passes)
	if err != nil {
		return nil, "", err
	}

	outputs, err := tessellate.Serialize(ctx, g.RootResults(), scope, quality, format)
	if err != nil {
		return nil, "", fmt.Errorf("serialize: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, outputs); err != nil {
			logger.Warn("cache store failed", "error", err)
		}
	}
	return outputs, "ok", nil
}

// Result gathers the events of one evaluation.
type Result struct {
	Logs    [][]any             `json:"logs"`
	Results []tessellate.Output `json:"results"`
	Failure *Failure            `json:"error,omitempty"`
}

// Collect drains events until the channel closes.
func Collect(events <-chan Event) Result {
	res := Result{Logs: [][]any{}, Results: []tessellate.Output{}}
	for ev := range events {
		switch ev.Type {
		case EventLog:
			res.Logs = append(res.Logs, ev.Log)
		case EventResult:
			res.Results = ev.Results
		case EventError:
			res.Failure = ev.Err
		}
	}
	return res
}
