package config

import (
	"flag"
	"testing"
	"time"
)

func TestParseServerConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseServerConfigWithFlagSet(fs, nil)

	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, DefaultAddr)
	}
	if cfg.IdleTimeout != 120*time.Second {
		t.Errorf("IdleTimeout = %v, want 120s", cfg.IdleTimeout)
	}
	if cfg.SyncIdleTimeout != 600*time.Second {
		t.Errorf("SyncIdleTimeout = %v, want 600s", cfg.SyncIdleTimeout)
	}
	if cfg.WSAddr != "" || cfg.QUICAddr != "" {
		t.Errorf("optional listeners should be disabled by default: ws=%q quic=%q", cfg.WSAddr, cfg.QUICAddr)
	}
	if cfg.WriteBufferSize != DefaultWriteBufferSize {
		t.Errorf("WriteBufferSize = %d, want %d", cfg.WriteBufferSize, DefaultWriteBufferSize)
	}
}

func TestParseServerConfig_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("SYNCSERV_ADDR", ":9999")
	t.Setenv("SYNCSERV_LOG_LEVEL", "warn")
	t.Setenv("SYNCSERV_IDLE_TIMEOUT", "30s")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseServerConfigWithFlagSet(fs, []string{"--addr", ":7777"})

	if cfg.Addr != ":7777" {
		t.Errorf("Addr = %q, want flag value :7777", cfg.Addr)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want env value warn", cfg.LogLevel)
	}
	if cfg.IdleTimeout != 30*time.Second {
		t.Errorf("IdleTimeout = %v, want env value 30s", cfg.IdleTimeout)
	}
}

func TestParseServerConfig_RepeatableDirFlag(t *testing.T) {
	t.Setenv("SYNCSERV_DIRS", "ignored")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseServerConfigWithFlagSet(fs, []string{"--dir", "mods", "--dir", "config"})

	if len(cfg.SyncDirs) != 2 || cfg.SyncDirs[0] != "mods" || cfg.SyncDirs[1] != "config" {
		t.Fatalf("SyncDirs = %v, want [mods config]", cfg.SyncDirs)
	}
}

func TestParseServerConfig_DirsFromEnv(t *testing.T) {
	t.Setenv("SYNCSERV_DIRS", "mods, config ,resourcepacks")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := parseServerConfigWithFlagSet(fs, nil)

	want := []string{"mods", "config", "resourcepacks"}
	if len(cfg.SyncDirs) != len(want) {
		t.Fatalf("SyncDirs = %v, want %v", cfg.SyncDirs, want)
	}
	for i := range want {
		if cfg.SyncDirs[i] != want[i] {
			t.Errorf("SyncDirs[%d] = %q, want %q", i, cfg.SyncDirs[i], want[i])
		}
	}
}
