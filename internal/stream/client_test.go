package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"GameForge/internal/event"
)

func newTestClient(baseURL string) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(baseURL, logger, otel.Tracer("test"))
}

// collect drains the channel into a slice, failing the test if the
// stream does not terminate promptly.
func collect(t *testing.T, ch <-chan event.Event) []event.Event {
	t.Helper()
	var out []event.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not terminate")
		}
	}
}

func TestClientStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/generate-game", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "make a maze game", req.Prompt)
		assert.Equal(t, "conv-1", req.SessionID)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		frames := []string{
			`data: {"type":"status","payload":"generating"}`,
			``,
			`: heartbeat comment, no data prefix`,
			`data: this frame is not json`,
			`data: {"type":"code","payload":{"html":"<div/>","css":"","js":""}}`,
			`data: [DONE]`,
			`data: {"type":"status","payload":"never delivered"}`,
		}
		for _, f := range frames {
			fmt.Fprintf(w, "%s\n", f)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	events := collect(t, c.Stream(context.Background(), Request{
		Prompt:    "make a maze game",
		SessionID: "conv-1",
		UserID:    "tester",
	}))

	// The malformed frame is dropped and the sentinel ends the stream
	// before the trailing frame.
	require.Len(t, events, 2)
	assert.Equal(t, event.Status{State: "generating"}, events[0])
	assert.Equal(t, event.Code{HTML: "<div/>"}, events[1])
}

func TestClientReleasesRequestAfterDone(t *testing.T) {
	released := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [DONE]\n")
		w.(http.Flusher).Flush()

		select {
		case <-r.Context().Done():
			released <- struct{}{}
		case <-time.After(3 * time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	events := collect(t, c.Stream(context.Background(), Request{Prompt: "x"}))
	assert.Empty(t, events)

	select {
	case <-released:
	case <-time.After(5 * time.Second):
		t.Fatal("request context not released after the stream ended")
	}
}

func TestClientStreamServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	events := collect(t, c.Stream(context.Background(), Request{Prompt: "x"}))

	require.Len(t, events, 1)
	errEv, ok := events[0].(event.Error)
	require.True(t, ok)
	assert.Contains(t, errEv.Message, "status 500")
	assert.Contains(t, errEv.Message, "agent exploded")
}

func TestClientStreamConnectionRefused(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	events := collect(t, c.Stream(context.Background(), Request{Prompt: "x"}))

	require.Len(t, events, 1)
	errEv, ok := events[0].(event.Error)
	require.True(t, ok)
	assert.Contains(t, errEv.Message, "Connection error")
}

func TestClientCancelEndsStreamSilently(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"status\",\"payload\":\"generating\"}\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ch := c.Stream(context.Background(), Request{Prompt: "x"})

	select {
	case ev := <-ch:
		assert.Equal(t, event.Status{State: "generating"}, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("no event before cancel")
	}

	c.Cancel()

	// The channel closes without a synthetic error event.
	events := collect(t, ch)
	assert.Empty(t, events)
}

func TestClientStreamAbortsPrior(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"status\",\"payload\":\"generating\"}\n")
		w.(http.Flusher).Flush()

		select {
		case <-r.Context().Done():
		case <-time.After(100 * time.Millisecond):
			fmt.Fprint(w, "data: [DONE]\n")
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	first := c.Stream(context.Background(), Request{Prompt: "first"})

	select {
	case <-first:
	case <-time.After(5 * time.Second):
		t.Fatal("first stream produced nothing")
	}

	second := c.Stream(context.Background(), Request{Prompt: "second"})

	// Starting the second stream aborts the first; its channel drains
	// without a terminal error.
	assert.Empty(t, collect(t, first))

	events := collect(t, second)
	require.NotEmpty(t, events)
	assert.Equal(t, event.Status{State: "generating"}, events[0])
}

func TestClientHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))

	c := newTestClient(srv.URL)
	assert.True(t, c.Healthy(context.Background()))

	srv.Close()
	assert.False(t, c.Healthy(context.Background()))
}
