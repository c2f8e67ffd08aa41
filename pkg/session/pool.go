package session

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/chazu/makertron/internal/ctxlog"
)

// DefaultEvalTimeout is the hard limit for a single evaluation.
const DefaultEvalTimeout = 30 * time.Second

var (
	// ErrPoolClosed is returned by Submit after Close.
	ErrPoolClosed = errors.New("session: pool closed")
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("session: queue full")
)

// PoolConfig sizes a Pool. Zero values pick defaults.
type PoolConfig struct {
	Workers     int           // default runtime.NumCPU()
	QueueSize   int           // default 4 * Workers
	EvalTimeout time.Duration // default DefaultEvalTimeout
}

type job struct {
	ctx    context.Context
	req    Request
	events chan Event
}

// Pool runs evaluations on a fixed set of worker goroutines fed by a
// bounded queue.
type Pool struct {
	session *Session
	cfg     PoolConfig
	jobs    chan job
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts cfg.Workers workers evaluating with s.
func NewPool(s *Session, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4 * cfg.Workers
	}
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = DefaultEvalTimeout
	}
	p := &Pool{
		session: s,
		cfg:     cfg,
		jobs:    make(chan job, cfg.QueueSize),
	}
	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}
	return p
}

// Submit queues req. The returned channel carries the evaluation's events
// and is closed after the terminal one. Cancelling ctx abandons the
// evaluation; the caller should keep draining the channel until it closes.
func (p *Pool) Submit(ctx context.Context, req Request) (<-chan Event, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	events := make(chan Event, 16)
	select {
	case p.jobs <- job{ctx: ctx, req: req, events: events}:
		return events, nil
	default:
		return nil, ErrQueueFull
	}
}

// Close stops accepting work, lets queued evaluations finish and waits for
// the workers to exit. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.run(j)
	}
}

// run evaluates one job under the pool's timeout. An evaluation that
// overruns is abandoned: a timeout failure is sent in its place and any
// later events from it are dropped.
func (p *Pool) run(j job) {
	defer close(j.events)

	ctx, cancel := context.WithTimeout(j.ctx, p.cfg.EvalTimeout)
	defer cancel()

	var (
		mu       sync.Mutex
		finished bool
	)
	emit := func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if finished {
			return
		}
		if ev.Terminal() {
			finished = true
		}
		select {
		case j.events <- ev:
		case <-j.ctx.Done():
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				ctxlog.FromContext(ctx).Error("panic during evaluation", "panic", r)
				emit(Event{Type: EventError, Err: &Failure{
					Kind:    FailureInternal,
					Message: fmt.Sprintf("panic during evaluation: %v", r),
				}})
			}
		}()
		p.session.Run(ctx, j.req, emit)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		emit(Event{Type: EventError, Err: Classify(ctx.Err())})
	}
}
