package dispatch

import (
	"context"
	"errors"
	"time"

	"inkwatch/internal/notification"
	"inkwatch/internal/webhook"
)

var ErrRateLimitRetriesExhausted = errors.New("rate limit retries exhausted")

// Event types published on the bus.
const (
	EventSending     = "dispatch.sending"
	EventRateLimited = "dispatch.rate_limited"
	EventSent        = "dispatch.sent"
	EventFailed      = "dispatch.failed"
)

// Sender submits one rendered message.
type Sender interface {
	Send(ctx context.Context, msg webhook.Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg webhook.Message) error

func (f SenderFunc) Send(ctx context.Context, msg webhook.Message) error { return f(ctx, msg) }

// Config controls delivery.
type Config struct {
	Mentions notification.Mentions
	// RatePerSec is an optional pre-send token bucket shared by all sends. 0 disables it.
	RatePerSec int
	// MaxRateLimitRetries caps rate-limit retries per notification. 0 means unlimited.
	MaxRateLimitRetries int
}

// Outcome is the terminal state of one notification.
type Outcome struct {
	Notification notification.Notification
	Attempts     int
	RateLimited  int
	Took         time.Duration
	Err          error
}

func (o Outcome) OK() bool { return o.Err == nil }

// Event is the bus payload for dispatch lifecycle events.
type Event struct {
	RunID       string        `json:"run_id,omitempty"`
	Feed        string        `json:"feed,omitempty"`
	Kind        string        `json:"kind"`
	Description string        `json:"description"`
	Attempt     int           `json:"attempt"`
	Wait        time.Duration `json:"wait,omitempty"`
	Global      bool          `json:"global,omitempty"`
	Took        time.Duration `json:"took,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Summarize counts successful and failed outcomes.
func Summarize(outs []Outcome) (sent, failed int) {
	for _, o := range outs {
		if o.OK() {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}

// Run labels the dispatches made under a context with the run id and feed name.
type Run struct {
	ID   string
	Feed string
}

type runKey struct{}

func WithRun(ctx context.Context, r Run) context.Context {
	return context.WithValue(ctx, runKey{}, r)
}

func RunFrom(ctx context.Context) Run {
	r, _ := ctx.Value(runKey{}).(Run)
	return r
}
