package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/syncserv/syncserv/internal/config"
	"github.com/syncserv/syncserv/internal/logging"
	"github.com/syncserv/syncserv/internal/quictransport"
	"github.com/syncserv/syncserv/internal/server"
	"github.com/syncserv/syncserv/internal/wstransport"
	"github.com/syncserv/syncserv/pkg/catalog"
	"github.com/syncserv/syncserv/pkg/protocol"
)

const serverVersion = "v0.1.0"

func main() {
	if hasHelpFlag(os.Args[1:]) {
		printUsage()
		return
	}
	if hasVersionFlag(os.Args[1:]) {
		fmt.Println(serverVersion)
		return
	}

	cfg := config.ParseServerConfig()
	logger := logging.New("syncservd", cfg.LogLevel)

	if len(cfg.SyncDirs) == 0 {
		logger.Warn("no managed directories configured, serving an empty catalog")
	}
	cat, err := catalog.Scan(cfg.SyncDirs)
	if err != nil {
		logger.Warn("catalog scan finished with errors", "error", err)
	}
	logger.Info("catalog built", "files", cat.Len(), "directories", len(cfg.SyncDirs))

	srv := server.New(protocol.DefaultVocabulary(), cat, cfg.SyncDirs, logger, server.Options{
		IdleTimeout:     cfg.IdleTimeout,
		SyncIdleTimeout: cfg.SyncIdleTimeout,
		WriteBufferSize: cfg.WriteBufferSize,
		ConnLogDir:      cfg.ConnLogDir,
		LogLevel:        cfg.LogLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.WSAddr != "" {
		go func() {
			err := wstransport.Serve(ctx, cfg.WSAddr, logger, func(conn *wstransport.Conn) {
				srv.Handle(conn)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("websocket listener failed", "error", err)
			}
		}()
	}

	if cfg.QUICAddr != "" {
		quicListener, err := quictransport.Listen(cfg.QUICAddr, logger)
		if err != nil {
			logger.Error("failed to start QUIC listener", "error", err)
			os.Exit(1)
		}
		defer quicListener.Close()
		go func() {
			err := quictransport.Serve(ctx, quicListener, logger, func(conn *quictransport.StreamConn) {
				srv.Handle(conn)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("QUIC listener failed", "error", err)
			}
		}()
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Error("failed to listen", "addr", cfg.Addr, "error", err)
		os.Exit(1)
	}

	if err := srv.Serve(ctx, ln); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: syncservd [--addr HOST:PORT] [--dir PATH]...")
	fmt.Fprintln(os.Stderr, "  --addr HOST:PORT         TCP listen address (default :38067)")
	fmt.Fprintln(os.Stderr, "  --ws-addr HOST:PORT      WebSocket listen address (empty disables)")
	fmt.Fprintln(os.Stderr, "  --quic-addr HOST:PORT    QUIC listen address (empty disables)")
	fmt.Fprintln(os.Stderr, "  --dir PATH               managed directory (repeatable)")
	fmt.Fprintln(os.Stderr, "  --log-level LEVEL        debug, info, warn, error (default info)")
	fmt.Fprintln(os.Stderr, "  --conn-log-dir PATH      per-connection log files (empty disables)")
	fmt.Fprintln(os.Stderr, "  --idle-timeout DURATION  idle timeout between messages (default 2m0s)")
	fmt.Fprintln(os.Stderr, "  --sync-idle-timeout DURATION")
	fmt.Fprintln(os.Stderr, "                           idle timeout during a transfer (default 10m0s)")
	fmt.Fprintln(os.Stderr, "  --write-buffer BYTES     outbound buffer / chunk size (default 65536)")
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func hasVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}
