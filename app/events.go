package app

import (
	"time"

	"reviewguard/domain/core"
	"reviewguard/internal/selftrain"
)

// Run event types
const (
	EventIteration    = "iteration"
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"
)

// RunEvent reports progress of one training run. StreamID is copied from the
// request so listeners can follow a single submission.
type RunEvent struct {
	StreamID  string                    `json:"stream_id,omitempty"`
	RunID     core.RunID                `json:"run_id"`
	Algorithm string                    `json:"algorithm"`
	Type      string                    `json:"type"`
	Iteration *selftrain.IterationStats `json:"iteration,omitempty"`
	Error     string                    `json:"error,omitempty"`
	Timestamp time.Time                 `json:"timestamp"`
}

// EventSink receives run events. Publish must not block the training loop.
type EventSink interface {
	Publish(event RunEvent)
}

type discardEvents struct{}

func (discardEvents) Publish(RunEvent) {}
