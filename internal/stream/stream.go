// Package stream opens cancellable streaming connections to the agent
// service and turns the response into a lazy sequence of typed events.
package stream

import (
	"context"

	"GameForge/internal/event"
)

// Request is the body that starts one generation or publish attempt.
// SessionID is generated once per conversation and stays stable across
// turns.
type Request struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// Streamer yields events for one request at a time. Starting a new
// stream aborts any in-flight one; no event from the aborted stream is
// delivered afterwards. The channel closes on the completion sentinel,
// after a single terminal error event, or silently after a deliberate
// Cancel.
type Streamer interface {
	Stream(ctx context.Context, req Request) <-chan event.Event
	Cancel()
}

// doneSentinel ends a stream normally. It arrives as a literal frame, not
// a JSON event.
const doneSentinel = "[DONE]"
