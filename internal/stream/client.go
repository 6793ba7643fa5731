package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"GameForge/internal/event"
)

// Client streams events from the agent service over HTTP. At most one
// request is in flight per client; Stream aborts any prior one before
// issuing a new call.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewClient creates a streaming client for the given base URL.
func NewClient(baseURL string, logger *slog.Logger, tracer trace.Tracer) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 0, // no timeout for streaming responses
		},
		logger: logger,
		tracer: tracer,
	}
}

// Stream posts the request and returns a channel of decoded events. The
// channel closes when the stream ends; see Streamer for the termination
// contract.
func (c *Client) Stream(ctx context.Context, req Request) <-chan event.Event {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	out := make(chan event.Event, 32)
	go c.run(ctx, cancel, req, out)
	return out
}

// Cancel aborts the in-flight request, if any. The aborted stream's
// channel closes without an error event.
func (c *Client) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Healthy reports whether the agent service answers its health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) run(ctx context.Context, cancel context.CancelFunc, req Request, out chan<- event.Event) {
	defer close(out)
	// Release the request context on every exit path, not only on an
	// explicit Cancel.
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "generate_game_stream")
	defer span.End()

	emit := func(ev event.Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	fail := func(msg string) {
		if errors.Is(ctx.Err(), context.Canceled) {
			// Deliberate cancellation ends the sequence silently.
			return
		}
		emit(event.Error{Message: msg})
	}

	body, err := json.Marshal(req)
	if err != nil {
		fail(fmt.Sprintf("Connection error: %v", err))
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate-game", bytes.NewReader(body))
	if err != nil {
		fail(fmt.Sprintf("Connection error: %v", err))
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		fail(fmt.Sprintf("Connection error: %v", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		fail(fmt.Sprintf("API request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 2*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimPrefix(line, "data:")
		data = strings.TrimPrefix(data, " ")

		if data == doneSentinel {
			return
		}

		ev, err := event.ParseFrame([]byte(data))
		if err != nil {
			// Malformed frames never fail or stall the stream.
			c.logger.Warn("dropping malformed event frame", "error", err, "frame", data)
			continue
		}
		if !emit(ev) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		fail(fmt.Sprintf("Connection error: %v", err))
	}
}
