package watcher

import (
	"sync/atomic"
	"time"

	"aircast/work/logger"
)

// stalledReaper is what the watchdog needs from the session manager: a
// sweep that resets play attempts waiting on the client for longer than
// the timeout.
type stalledReaper interface {
	ReapStalled(timeout time.Duration) int
}

// Watchdog periodically sweeps casting sessions and abandons play attempts
// whose outstanding fetch request the client never answered. The fetch
// protocol itself is fire-and-forget with no retries, so this is the only
// place a stalled attempt gets cleaned up.
type Watchdog struct {
	mgr      stalledReaper
	lg       *logger.Logger
	timeout  time.Duration
	interval time.Duration
	running  atomic.Bool
	stopChan chan struct{}
}

// New creates a Watchdog that reaps attempts older than timeout, sweeping
// at a quarter of the timeout (at least once a second).
func New(mgr stalledReaper, lg *logger.Logger, timeout time.Duration) *Watchdog {
	interval := timeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	return &Watchdog{
		mgr:      mgr,
		lg:       lg,
		timeout:  timeout,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start launches the sweep loop. Idempotent, and safe to call again after
// Stop.
func (w *Watchdog) Start() {
	if !w.running.CompareAndSwap(false, true) {
		return
	}

	// A fresh channel per run: Stop closes it, so a restarted loop needs
	// its own.
	stop := make(chan struct{})
	w.stopChan = stop

	w.lg.Info("watchdog: started (timeout %s, sweep every %s)", w.timeout, w.interval)
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n := w.mgr.ReapStalled(w.timeout); n > 0 {
					w.lg.Warn("watchdog: reaped %d stalled play attempt(s)", n)
				}
			}
		}
	}()
}

// Stop halts the sweep loop. Idempotent.
func (w *Watchdog) Stop() {
	if w.running.CompareAndSwap(true, false) {
		close(w.stopChan)
	}
}
