package server

import (
	"fmt"
	"io"
	"os"

	"github.com/syncserv/syncserv/pkg/protocol"
)

// transferFile streams one catalog file to the peer, prefixed by its byte
// length. The path comes from the catalog so it is not re-validated there,
// only against the filesystem at send time: a file that cannot be stat'ed
// is reported as length 0 and the session continues.
//
// The length is a promise to the peer about how many payload bytes follow.
// If the transfer fails partway the promise is deliberately not corrected:
// deployed clients expect the stream to simply fall short and there is no
// correction record in the protocol, so sending one would desync every
// existing peer. An error return here means the transport itself failed and
// the current sync invocation must stop.
func (s *Session) transferFile(path string) error {
	s.log.Info("writing file to client", "path", path)

	var size int64
	info, err := os.Stat(path)
	switch {
	case err == nil:
		size = info.Size()
	case os.IsPermission(err):
		s.log.Debug("stat failed", "path", path, "error", err)
		s.log.Error("insufficient permissions to read server file", "path", path)
	default:
		s.log.Debug("stat failed", "path", path, "error", err)
		s.log.Error("server could not find file", "path", path)
	}
	s.log.Debug("file size", "path", path, "size", size)

	if err := protocol.WriteLength(s.w, size); err != nil {
		return err
	}
	if err := s.flush(); err != nil {
		return err
	}

	if size > 0 {
		if err := s.streamFile(path); err != nil {
			s.log.Debug("failed to write file", "path", path, "error", err)
		}
	}
	if err := s.flush(); err != nil {
		return err
	}

	s.log.Info("finished writing file", "path", path)
	return nil
}

// streamFile copies the file onto the buffered writer in chunks sized to
// the outbound buffer, without flushing per chunk.
func (s *Session) streamFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, s.chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if _, werr := s.w.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write chunk: %w", werr)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
	}
}
