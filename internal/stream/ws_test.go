package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GameForge/internal/event"
)

var upgrader = websocket.Upgrader{}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestWSClient(url string) *WSClient {
	return NewWSClient(url, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestWSClientStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var req Request
		require.NoError(t, conn.ReadJSON(&req))
		assert.Equal(t, "make a maze game", req.Prompt)

		frames := []string{
			`{"type":"status","payload":"generating"}`,
			`not json at all`,
			`{"type":"code","payload":{"html":"<div/>","css":"","js":""}}`,
			`[DONE]`,
		}
		for _, f := range frames {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
		}
	}))
	defer srv.Close()

	c := newTestWSClient(wsURL(srv))
	events := collect(t, c.Stream(context.Background(), Request{Prompt: "make a maze game"}))

	require.Len(t, events, 2)
	assert.Equal(t, event.Status{State: "generating"}, events[0])
	assert.Equal(t, event.Code{HTML: "<div/>"}, events[1])
}

func TestWSClientReleasesConnectionAfterDone(t *testing.T) {
	readResult := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var req Request
		require.NoError(t, conn.ReadJSON(&req))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"status","payload":"generating"}`)))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`[DONE]`)))

		// A stream ended by the sentinel must tear the connection down
		// without waiting for the next Stream or Cancel call.
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, _, err = conn.ReadMessage()
		readResult <- err
	}))
	defer srv.Close()

	c := newTestWSClient(wsURL(srv))
	events := collect(t, c.Stream(context.Background(), Request{Prompt: "x"}))
	require.Len(t, events, 1)

	select {
	case err := <-readResult:
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			t.Fatal("connection left open after the stream ended")
		}
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server never observed the connection ending")
	}
}

func TestWSClientNormalCloseEndsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var req Request
		require.NoError(t, conn.ReadJSON(&req))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"status","payload":"generating"}`)))
		require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	}))
	defer srv.Close()

	c := newTestWSClient(wsURL(srv))
	events := collect(t, c.Stream(context.Background(), Request{Prompt: "x"}))

	// A clean close is not an error.
	require.Len(t, events, 1)
	assert.Equal(t, event.Status{State: "generating"}, events[0])
}

func TestWSClientDialFailure(t *testing.T) {
	c := newTestWSClient("ws://127.0.0.1:1")
	events := collect(t, c.Stream(context.Background(), Request{Prompt: "x"}))

	require.Len(t, events, 1)
	errEv, ok := events[0].(event.Error)
	require.True(t, ok)
	assert.Contains(t, errEv.Message, "Connection error")
}

func TestWSClientCancelEndsStreamSilently(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var req Request
		require.NoError(t, conn.ReadJSON(&req))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"status","payload":"generating"}`)))

		// Hold the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := newTestWSClient(wsURL(srv))
	ch := c.Stream(context.Background(), Request{Prompt: "x"})

	select {
	case ev := <-ch:
		assert.Equal(t, event.Status{State: "generating"}, ev)
	case <-time.After(5 * time.Second):
		t.Fatal("no event before cancel")
	}

	c.Cancel()

	events := collect(t, ch)
	assert.Empty(t, events)
}
