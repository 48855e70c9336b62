package server

import (
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"
)

type fakeTransport struct {
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{done: make(chan struct{})}
}

func (t *fakeTransport) Read(p []byte) (int, error)  { return 0, io.EOF }
func (t *fakeTransport) Write(p []byte) (int, error) { return len(p), nil }
func (t *fakeTransport) RemoteAddr() net.Addr        { return nil }

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.done)
	}
	return nil
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatchdog_FiresAndClosesTransport(t *testing.T) {
	transport := newFakeTransport()
	w := newWatchdog(transport, discardLogger())

	w.Set(20 * time.Millisecond)

	select {
	case <-transport.done:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not close the transport")
	}
	if !w.Fired() {
		t.Fatal("Fired() = false after the watchdog closed the transport")
	}
}

func TestWatchdog_SetReplacesPendingSchedule(t *testing.T) {
	transport := newFakeTransport()
	w := newWatchdog(transport, discardLogger())

	w.Set(50 * time.Millisecond)
	w.Set(10 * time.Second)
	defer w.Clear()

	time.Sleep(150 * time.Millisecond)
	if transport.isClosed() {
		t.Fatal("replaced schedule still fired")
	}
	if w.Fired() {
		t.Fatal("Fired() = true without a fire")
	}
}

func TestWatchdog_ClearCancels(t *testing.T) {
	transport := newFakeTransport()
	w := newWatchdog(transport, discardLogger())

	w.Set(50 * time.Millisecond)
	w.Clear()

	time.Sleep(150 * time.Millisecond)
	if transport.isClosed() {
		t.Fatal("cleared schedule still fired")
	}
}

func TestWatchdog_ClearWithoutScheduleIsSafe(t *testing.T) {
	w := newWatchdog(newFakeTransport(), discardLogger())
	w.Clear()
	w.Clear()
}
