package logging

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// New creates a new structured logger with text output.
// app: application name (e.g., "syncservd")
// level: one of "debug", "info", "warn", "error" (default: "info")
func New(app string, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	logger := slog.New(handler)

	// Add default attributes: app and pid
	return logger.With(
		slog.String("app", app),
		slog.Int("pid", os.Getpid()),
	)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

// ConnectionName derives the per-connection logger identity from the peer
// address. Characters unsafe for use as a file name are replaced with "-".
func ConnectionName(addr net.Addr) string {
	raw := "unknown"
	if addr != nil {
		raw = addr.String()
	}
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '.', ':', '@', '?', '|', '*', '"':
			return '-'
		}
		return r
	}, raw)
	return "server-connection-from-" + sanitized
}

// ForConnection returns a child logger carrying the connection identity.
// When dir is non-empty the connection additionally gets its own log file
// there, named after the identity; the returned closer releases it. The
// closer is never nil.
func ForConnection(base *slog.Logger, addr net.Addr, dir string, level string) (*slog.Logger, func() error, error) {
	name := ConnectionName(addr)
	if dir == "" {
		return base.With(slog.String("conn", name)), func() error { return nil }, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create connection log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open connection log: %w", err)
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, f), &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	logger := slog.New(handler).With(slog.String("conn", name))
	return logger, f.Close, nil
}
