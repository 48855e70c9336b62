package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/syncserv/syncserv/internal/logging"
	"github.com/syncserv/syncserv/pkg/catalog"
	"github.com/syncserv/syncserv/pkg/protocol"
)

// Options tunes per-session behavior. Zero values fall back to the
// protocol defaults.
type Options struct {
	IdleTimeout     time.Duration // default 120s, shared protocol constant
	SyncIdleTimeout time.Duration // default 600s, shared protocol constant
	WriteBufferSize int           // outbound buffer / transfer chunk size
	ConnLogDir      string        // per-connection log files ("" disables)
	LogLevel        string        // level for per-connection log files
}

const (
	defaultIdleTimeout     = 120 * time.Second
	defaultSyncIdleTimeout = 600 * time.Second
	defaultWriteBufferSize = 64 * 1024
)

// Server owns the read-only snapshots every session shares and spawns one
// protocol worker per accepted transport.
type Server struct {
	vocab   protocol.Vocabulary
	catalog *catalog.Catalog
	dirs    []string
	log     *slog.Logger
	opts    Options
}

// New creates a server over the given vocabulary, catalog and managed
// directory snapshots. The snapshots must not be mutated afterwards.
func New(vocab protocol.Vocabulary, cat *catalog.Catalog, dirs []string, log *slog.Logger, opts Options) *Server {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	if opts.SyncIdleTimeout <= 0 {
		opts.SyncIdleTimeout = defaultSyncIdleTimeout
	}
	if opts.WriteBufferSize <= 0 {
		opts.WriteBufferSize = defaultWriteBufferSize
	}
	return &Server{
		vocab:   vocab,
		catalog: cat,
		dirs:    dirs,
		log:     log,
		opts:    opts,
	}
}

// Serve accepts connections until the context is cancelled or the listener
// fails, handling each on its own goroutine.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("accepting connections", "addr", ln.Addr())
	for {
		conn, err := acceptWithContext(ctx, ln)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		go s.Handle(conn)
	}
}

// Handle runs one protocol session over the transport and blocks until the
// session ends. The transport is closed on return.
func (s *Server) Handle(t Transport) {
	log, closeLog, err := logging.ForConnection(s.log, t.RemoteAddr(), s.opts.ConnLogDir, s.opts.LogLevel)
	if err != nil {
		s.log.Error("failed to open connection log, using shared logger", "error", err)
		log = s.log.With(slog.String("conn", logging.ConnectionName(t.RemoteAddr())))
		closeLog = nil
	}
	newSession(t, s, log, closeLog).Run()
}

func acceptWithContext(ctx context.Context, ln net.Listener) (net.Conn, error) {
	type res struct {
		conn net.Conn
		err  error
	}
	ch := make(chan res, 1)
	go func() {
		c, err := ln.Accept()
		ch <- res{conn: c, err: err}
	}()
	select {
	case <-ctx.Done():
		_ = ln.Close()
		// The accept may still have won the race; closing the listener
		// unblocks it, and any connection it produced must not leak.
		if r := <-ch; r.conn != nil {
			_ = r.conn.Close()
		}
		return nil, ctx.Err()
	case r := <-ch:
		return r.conn, r.err
	}
}
