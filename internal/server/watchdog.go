package server

import (
	"log/slog"
	"sync"
	"time"
)

// watchdog supervises one session's idle time. It holds at most one
// scheduled close at a time; Set replaces the schedule and Clear cancels
// it. Firing force-closes the session's transport without waiting for the
// worker, which observes the close on its next I/O call.
//
// Replacement is atomic with respect to a concurrently firing timer: each
// schedule carries a generation number and a fire whose generation is no
// longer current does nothing.
type watchdog struct {
	transport Transport
	log       *slog.Logger

	mu    sync.Mutex
	gen   uint64
	timer *time.Timer
	fired bool
}

func newWatchdog(t Transport, log *slog.Logger) *watchdog {
	return &watchdog{transport: t, log: log}
}

// Set cancels any previously scheduled close and schedules a new one to
// fire after d.
func (w *watchdog) Set(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.gen++
	gen := w.gen
	w.timer = time.AfterFunc(d, func() {
		w.fire(gen)
	})
	w.log.Debug("reset idle timeout", "duration", d)
}

func (w *watchdog) fire(gen uint64) {
	w.mu.Lock()
	if gen != w.gen {
		// Replaced or cleared after this fire was already scheduled.
		w.mu.Unlock()
		return
	}
	w.fired = true
	w.mu.Unlock()

	w.log.Info("client connection timed out, closing")
	_ = w.transport.Close()
}

// Clear cancels the scheduled close if one exists. Safe to call when none
// exists.
func (w *watchdog) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.gen++
}

// Fired reports whether the watchdog has force-closed the transport.
func (w *watchdog) Fired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fired
}
