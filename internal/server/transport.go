package server

import (
	"io"
	"net"
)

// Transport is one accepted byte-stream connection to a peer. net.Conn
// satisfies it directly; the WebSocket and QUIC listeners adapt their
// connections to the same surface so every peer is handled by the same
// protocol worker. Close must be safe to call concurrently with Read and
// Write and must unblock them: the idle watchdog relies on that to
// terminate a session the worker is blocked inside.
type Transport interface {
	io.Reader
	io.Writer
	Close() error
	RemoteAddr() net.Addr
}
