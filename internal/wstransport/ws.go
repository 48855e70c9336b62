package wstransport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// SyncPath is the HTTP path clients dial to open a sync session.
const SyncPath = "/sync"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Conn adapts a WebSocket connection to the byte-stream transport the
// protocol worker consumes: every Write becomes one binary message, and
// Read drains incoming binary messages in order. Because the worker writes
// through a buffered writer, each protocol flush maps to one message.
type Conn struct {
	ws     *websocket.Conn
	reader io.Reader

	writeMu sync.Mutex
}

// NewConn wraps an established WebSocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

func (c *Conn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			msgType, r, err := c.ws.NextReader()
			if err != nil {
				// Any read failure on a websocket is terminal; fold it
				// into net.ErrClosed so the worker treats the transport
				// as gone instead of retrying.
				return 0, fmt.Errorf("%w: %v", net.ErrClosed, err)
			}
			if msgType != websocket.BinaryMessage {
				continue
			}
			c.reader = r
		}
		n, err := c.reader.Read(p)
		if errors.Is(err, io.EOF) {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

// Handler returns an http.Handler that upgrades requests and hands each
// adapted connection to handle, blocking until the session ends.
func Handler(logger *slog.Logger, handle func(*Conn)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("websocket upgrade failed", "error", err)
			return
		}
		handle(NewConn(ws))
	})
}

// Serve runs a WebSocket listener on addr until the context is cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger, handle func(*Conn)) error {
	mux := http.NewServeMux()
	mux.Handle(SyncPath, Handler(logger, handle))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	logger.Info("WebSocket listener created", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
