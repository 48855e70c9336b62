package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds configuration for the syncservd binary.
type ServerConfig struct {
	Addr            string        // TCP listen address
	WSAddr          string        // WebSocket listen address ("" disables)
	QUICAddr        string        // QUIC listen address ("" disables)
	LogLevel        string        // debug, info, warn, error
	ConnLogDir      string        // per-connection log file directory ("" disables)
	SyncDirs        []string      // managed directories, in order
	IdleTimeout     time.Duration // idle time allowed between client messages
	SyncIdleTimeout time.Duration // idle time allowed during an active transfer
	WriteBufferSize int           // outbound buffer / transfer chunk size in bytes
}

// Defaults. The two timeouts are protocol constants shared with the client.
const (
	DefaultAddr            = ":38067"
	DefaultIdleTimeout     = 120 * time.Second
	DefaultSyncIdleTimeout = 600 * time.Second
	DefaultWriteBufferSize = 64 * 1024
)

// ParseServerConfig parses server configuration from a .env file (if
// present), environment variables, and flags. Flags take precedence over
// the environment, which takes precedence over .env.
func ParseServerConfig() ServerConfig {
	return parseServerConfigWithFlagSet(flag.CommandLine, os.Args[1:])
}

// parseServerConfigWithFlagSet is an internal helper for testing with isolated flag sets.
func parseServerConfigWithFlagSet(fs *flag.FlagSet, args []string) ServerConfig {
	// godotenv only fills in variables that are not already set, so the
	// process environment keeps precedence over the file.
	_ = godotenv.Load()

	cfg := ServerConfig{
		Addr:            DefaultAddr,
		LogLevel:        "info",
		IdleTimeout:     DefaultIdleTimeout,
		SyncIdleTimeout: DefaultSyncIdleTimeout,
		WriteBufferSize: DefaultWriteBufferSize,
	}

	// Read from environment first
	if addr := os.Getenv("SYNCSERV_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if addr := os.Getenv("SYNCSERV_WS_ADDR"); addr != "" {
		cfg.WSAddr = addr
	}
	if addr := os.Getenv("SYNCSERV_QUIC_ADDR"); addr != "" {
		cfg.QUICAddr = addr
	}
	if logLevel := os.Getenv("SYNCSERV_LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if dir := os.Getenv("SYNCSERV_CONN_LOG_DIR"); dir != "" {
		cfg.ConnLogDir = dir
	}
	if dirs := os.Getenv("SYNCSERV_DIRS"); dirs != "" {
		cfg.SyncDirs = splitDirs(dirs)
	}
	if d := parseDurationEnv("SYNCSERV_IDLE_TIMEOUT"); d > 0 {
		cfg.IdleTimeout = d
	}
	if d := parseDurationEnv("SYNCSERV_SYNC_IDLE_TIMEOUT"); d > 0 {
		cfg.SyncIdleTimeout = d
	}
	if raw := os.Getenv("SYNCSERV_WRITE_BUFFER"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.WriteBufferSize = n
		}
	}

	// Flags override environment
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "TCP listen address")
	fs.StringVar(&cfg.WSAddr, "ws-addr", cfg.WSAddr, "WebSocket listen address (empty disables)")
	fs.StringVar(&cfg.QUICAddr, "quic-addr", cfg.QUICAddr, "QUIC listen address (empty disables)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.ConnLogDir, "conn-log-dir", cfg.ConnLogDir, "per-connection log file directory (empty disables)")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "idle timeout between client messages")
	fs.DurationVar(&cfg.SyncIdleTimeout, "sync-idle-timeout", cfg.SyncIdleTimeout, "idle timeout during an active file transfer")
	fs.IntVar(&cfg.WriteBufferSize, "write-buffer", cfg.WriteBufferSize, "outbound buffer / transfer chunk size in bytes")

	// Handle repeatable --dir flag
	dirs := make([]string, 0)
	fs.Var((*stringSlice)(&dirs), "dir", "managed directory (repeatable)")

	fs.Parse(args)

	// If dirs were provided, they replace any environment value
	if len(dirs) > 0 {
		cfg.SyncDirs = dirs
	}

	if cfg.WriteBufferSize < 1 {
		cfg.WriteBufferSize = DefaultWriteBufferSize
	}

	return cfg
}

func splitDirs(raw string) []string {
	parts := strings.Split(raw, ",")
	dirs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			dirs = append(dirs, p)
		}
	}
	return dirs
}

func parseDurationEnv(key string) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}

// stringSlice implements flag.Value for repeatable string flags.
type stringSlice []string

func (s *stringSlice) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

var _ flag.Value = (*stringSlice)(nil)
