package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/makertron/pkg/graph"
	"github.com/chazu/makertron/pkg/script"
	"github.com/chazu/makertron/pkg/tessellate"
)

// EventType distinguishes log events from the terminal ones.
type EventType string

const (
	EventLog    EventType = "log"
	EventResult EventType = "result"
	EventError  EventType = "error"
)

// Event is one message from an evaluation to its client.
type Event struct {
	Type    EventType           `json:"type"`
	Log     []any               `json:"log,omitempty"`
	Results []tessellate.Output `json:"results,omitempty"`
	Err     *Failure            `json:"error,omitempty"`
}

// Terminal reports whether e ends the evaluation.
func (e Event) Terminal() bool { return e.Type != EventLog }

// FailureKind classifies evaluation failures for clients and metrics.
type FailureKind string

const (
	FailureCompile    FailureKind = "compile"
	FailureValidation FailureKind = "validation"
	FailureStuck      FailureKind = "stuck"
	FailureKernel     FailureKind = "kernel"
	FailureTimeout    FailureKind = "timeout"
	FailureInternal   FailureKind = "internal"
)

// Failure is the client-facing form of an evaluation error.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Line    int         `json:"line,omitempty"`
	Col     int         `json:"col,omitempty"`
}

func (f *Failure) Error() string {
	if f.Line > 0 {
		return fmt.Sprintf("%s error at line %d:%d: %s", f.Kind, f.Line, f.Col, f.Message)
	}
	return fmt.Sprintf("%s error: %s", f.Kind, f.Message)
}

// Classify maps an evaluation error to a Failure.
func Classify(err error) *Failure {
	var (
		f  *Failure
		ce *script.CompileError
		ve *script.ValidationError
		se *graph.StuckGraphError
		ke *graph.KernelError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &f):
		return f
	case errors.As(err, &ce):
		return &Failure{Kind: FailureCompile, Message: ce.Msg, Line: ce.Line, Col: ce.Col}
	case errors.As(err, &ve):
		return &Failure{Kind: FailureValidation, Message: ve.Module + ": " + ve.Msg, Line: ve.Line, Col: ve.Col}
	case errors.As(err, &se):
		return &Failure{Kind: FailureStuck, Message: se.Error()}
	case errors.As(err, &ke):
		return &Failure{Kind: FailureKernel, Message: ke.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return &Failure{Kind: FailureTimeout, Message: "evaluation timed out"}
	case errors.Is(err, context.Canceled):
		return &Failure{Kind: FailureInternal, Message: "evaluation canceled"}
	}
	return &Failure{Kind: FailureInternal, Message: err.Error()}
}
