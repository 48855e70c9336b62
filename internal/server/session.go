package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/syncserv/syncserv/pkg/catalog"
	"github.com/syncserv/syncserv/pkg/protocol"
)

// Session is the per-connection protocol worker. It reads one message at a
// time, dispatches it, writes the response, and re-arms the idle watchdog
// before every blocking read. It owns the transport and the watchdog;
// nothing else is shared with other sessions except the read-only
// vocabulary, catalog and directory snapshots.
//
// There is no enforced handshake-first state: handshake is just one of the
// messages the loop dispatches, and the peer is expected to send it first
// by convention.
type Session struct {
	transport Transport
	r         *bufio.Reader
	w         *bufio.Writer

	vocab   protocol.Vocabulary
	catalog *catalog.Catalog
	dirs    []string

	watchdog        *watchdog
	idleTimeout     time.Duration
	syncIdleTimeout time.Duration
	chunkSize       int

	log      *slog.Logger
	closeLog func() error
}

func newSession(t Transport, srv *Server, log *slog.Logger, closeLog func() error) *Session {
	if closeLog == nil {
		closeLog = func() error { return nil }
	}
	return &Session{
		transport:       t,
		r:               bufio.NewReader(t),
		w:               bufio.NewWriterSize(t, srv.opts.WriteBufferSize),
		vocab:           srv.vocab,
		catalog:         srv.catalog,
		dirs:            srv.dirs,
		watchdog:        newWatchdog(t, log),
		idleTimeout:     srv.opts.IdleTimeout,
		syncIdleTimeout: srv.opts.SyncIdleTimeout,
		chunkSize:       srv.opts.WriteBufferSize,
		log:             log,
		closeLog:        closeLog,
	}
}

// Run drives the session until the client exits, violates the protocol,
// goes idle past the timeout, or the transport fails.
func (s *Session) Run() {
	defer s.teardown()

	s.log.Info("connection established", "remote", s.transport.RemoteAddr())

	for {
		s.watchdog.Set(s.idleTimeout)

		token, err := protocol.ReadString(s.r)
		if err != nil {
			if s.watchdog.Fired() {
				s.log.Info("client timed out")
				return
			}
			if isClosed(err) {
				s.log.Info("connection closed", "error", err)
				return
			}
			// Tolerated: a malformed message does not end the session.
			s.log.Debug("failed to read message", "error", err)
			continue
		}
		if token == "" {
			s.log.Debug("received empty message, this should not happen")
			continue
		}

		s.log.Info("received message", "token", token)

		if token == s.vocab.Token(protocol.KindHandshake) {
			if err := s.sendVocabulary(); err != nil {
				s.log.Error("failed to send vocabulary", "error", err)
				return
			}
			continue
		}

		kind, known := s.vocab.Kind(token)
		if !known {
			// A message outside the vocabulary is a protocol violation,
			// not a retryable condition: report it once and disconnect.
			if err := s.sendUnknownMessage(token); err != nil {
				s.log.Error("failed to send unknown-message error", "error", err)
			}
			return
		}

		switch kind {
		case protocol.KindSyncFiles:
			if err := s.syncFiles(); err != nil {
				s.log.Error("failed to finish sync", "error", err)
				return
			}
		case protocol.KindGetManagedDirectories:
			if err := s.sendDirectories(); err != nil {
				s.log.Error("failed to send managed directories", "error", err)
				return
			}
		case protocol.KindGetNumberOfManagedFiles:
			if err := s.sendFileCount(); err != nil {
				s.log.Error("failed to send file count", "error", err)
				return
			}
		case protocol.KindExit:
			s.log.Info("client requested exit, sync process complete")
			return
		}
	}
}

func (s *Session) sendVocabulary() error {
	s.log.Info("sending message vocabulary")
	if err := protocol.WriteVocabulary(s.w, s.vocab); err != nil {
		return err
	}
	return s.flush()
}

func (s *Session) sendUnknownMessage(token string) error {
	s.log.Info("unknown message received", "token", token)
	if err := protocol.WriteUnknownMessage(s.w, protocol.UnknownMessage{Token: token}); err != nil {
		return err
	}
	return s.flush()
}

func (s *Session) sendDirectories() error {
	if err := protocol.WriteStringList(s.w, s.dirs); err != nil {
		return err
	}
	return s.flush()
}

func (s *Session) sendFileCount() error {
	if err := protocol.WriteCount(s.w, int32(s.catalog.Len())); err != nil {
		return err
	}
	return s.flush()
}

// syncFiles runs the file-negotiation sub-protocol over every catalog entry
// in order. A failure on one entry aborts the remaining entries of this
// invocation but keeps the session alive; the trailing "no more entries"
// flag is sent regardless.
func (s *Session) syncFiles() error {
	for _, entry := range s.catalog.Entries() {
		if err := s.offerFile(entry); err != nil {
			s.log.Error("encountered error during sync, killing sync process", "path", entry.Path, "error", err)
			break
		}
	}
	s.log.Debug("finished sync")
	if err := protocol.WriteBool(s.w, false); err != nil {
		return err
	}
	return s.flush()
}

func (s *Session) offerFile(entry catalog.Entry) error {
	s.log.Debug("asking client if they have file", "path", entry.Path)
	if err := protocol.WriteBool(s.w, true); err != nil {
		return err
	}
	if err := protocol.WriteString(s.w, entry.Path); err != nil {
		return err
	}
	if err := protocol.WriteString(s.w, entry.Hash); err != nil {
		return err
	}
	if err := s.flush(); err != nil {
		return err
	}

	answer, err := protocol.ReadAnswer(s.r)
	if err != nil {
		return err
	}

	if answer == protocol.AnswerNo {
		s.log.Debug("client said they don't have the file", "path", entry.Path)
		// A large transfer must not be killed by the short default.
		s.watchdog.Set(s.syncIdleTimeout)
		return s.transferFile(entry.Path)
	}

	s.log.Debug("client said they have the file already", "path", entry.Path)
	s.watchdog.Set(s.idleTimeout)
	return nil
}

func (s *Session) flush() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func (s *Session) teardown() {
	s.log.Info("closing connection", "remote", s.transport.RemoteAddr())
	s.watchdog.Clear()
	_ = s.transport.Close()
	if err := s.closeLog(); err != nil {
		s.log.Debug("failed to close connection log", "error", err)
	}
}

// isClosed reports whether a read failed because the transport is gone
// (peer disconnect or watchdog close) rather than a malformed message.
func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed)
}
