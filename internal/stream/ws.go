package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"GameForge/internal/event"
)

// WSClient streams events over a WebSocket connection carrying the same
// event envelope as the HTTP transport: one JSON event per text frame,
// ended by the literal completion sentinel.
type WSClient struct {
	url    string
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// NewWSClient creates a WebSocket-based streaming client.
func NewWSClient(url string, logger *slog.Logger) *WSClient {
	return &WSClient{url: url, logger: logger}
}

// Stream dials the server, sends the request as the first frame, and
// yields decoded events until the sentinel, an error, or cancellation.
func (c *WSClient) Stream(ctx context.Context, req Request) <-chan event.Event {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	out := make(chan event.Event, 32)
	go c.run(ctx, cancel, req, out)
	return out
}

// Cancel aborts the in-flight stream by closing the connection.
func (c *WSClient) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
		c.conn = nil
	}
}

func (c *WSClient) run(ctx context.Context, cancel context.CancelFunc, req Request, out chan<- event.Event) {
	defer close(out)
	// Release the context on every exit path so the connection watcher
	// below never outlives the stream.
	defer cancel()

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
			return
		}
		emit(event.Error{Message: msg})
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		fail(fmt.Sprintf("Connection error: %v", err))
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	// Close the connection when the context is cancelled so the blocked
	// read below returns.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if err := conn.WriteJSON(req); err != nil {
		fail(fmt.Sprintf("Connection error: %v", err))
		return
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			fail(fmt.Sprintf("Connection error: %v", err))
			return
		}

		data := strings.TrimSpace(string(frame))
		if data == doneSentinel {
			return
		}

		ev, err := event.ParseFrame([]byte(data))
		if err != nil {
			c.logger.Warn("dropping malformed event frame", "error", err, "frame", data)
			continue
		}
		if !emit(ev) {
			return
		}
	}
}
