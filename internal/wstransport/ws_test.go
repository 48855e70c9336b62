package wstransport

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConn_CarriesByteStreamAcrossMessages(t *testing.T) {
	received := make(chan []byte, 1)

	srv := httptest.NewServer(Handler(discardLogger(), func(conn *Conn) {
		defer conn.Close()

		// Echo the first payload back, then read a second payload that the
		// client split across two messages.
		buf := make([]byte, 5)
		if _, err := io.ReadFull(conn, buf); err != nil {
			t.Errorf("server read error: %v", err)
			return
		}
		if _, err := conn.Write(buf); err != nil {
			t.Errorf("server write error: %v", err)
			return
		}

		rest := make([]byte, 10)
		if _, err := io.ReadFull(conn, rest); err != nil {
			t.Errorf("server read error: %v", err)
			return
		}
		received <- rest
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + SyncPath
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteMessage(websocket.BinaryMessage, []byte("hello")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	_, echo, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if !bytes.Equal(echo, []byte("hello")) {
		t.Fatalf("echo = %q, want hello", echo)
	}

	// The adapter must present split messages as one contiguous stream.
	if err := ws.WriteMessage(websocket.BinaryMessage, []byte("01234")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if err := ws.WriteMessage(websocket.BinaryMessage, []byte("56789")); err != nil {
		t.Fatalf("write error: %v", err)
	}

	select {
	case rest := <-received:
		if string(rest) != "0123456789" {
			t.Fatalf("stream = %q, want 0123456789", rest)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never received the split payload")
	}
}

func TestConn_ReadAfterPeerCloseReportsClosed(t *testing.T) {
	readErr := make(chan error, 1)

	srv := httptest.NewServer(Handler(discardLogger(), func(conn *Conn) {
		defer conn.Close()
		buf := make([]byte, 1)
		_, err := conn.Read(buf)
		readErr <- err
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + SyncPath
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	ws.Close()

	select {
	case err := <-readErr:
		if err == nil {
			t.Fatal("expected read error after peer close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server read never returned")
	}
}
