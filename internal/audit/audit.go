package audit

import (
	"context"
	"time"
)

// Event is one audited account operation.
type Event struct {
	Time      time.Time         `json:"time"`
	Type      string            `json:"type"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IPHash    string            `json:"ip_hash,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Outcomes passed to a Recorder.
const (
	Delivered = "delivered"
	Dropped   = "dropped"
	Failed    = "failed"
)

// Sink stores a batch of events in the order they were appended. The batch
// is not reused after Write returns.
type Sink interface {
	Write(ctx context.Context, batch []Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, batch []Event) error

func (f SinkFunc) Write(ctx context.Context, batch []Event) error { return f(ctx, batch) }

// Recorder learns the outcome of every event, keyed by event type.
type Recorder interface {
	Record(eventType, outcome string)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(eventType, outcome string)

func (f RecorderFunc) Record(eventType, outcome string) { f(eventType, outcome) }

type discard struct{}

func (discard) Write(context.Context, []Event) error { return nil }
func (discard) Record(string, string)                {}
