package watcher

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aircast/work/logger"
)

type countingReaper struct {
	sweeps atomic.Int32
}

func (c *countingReaper) ReapStalled(timeout time.Duration) int {
	c.sweeps.Add(1)
	return 0
}

func TestWatchdogSweeps(t *testing.T) {
	reaper := &countingReaper{}
	wd := New(reaper, logger.New("ERROR"), 100*time.Millisecond)

	// Sub-second timeouts still sweep at the one-second floor
	assert.Equal(t, time.Second, wd.interval)

	wd.Start()
	defer wd.Stop()

	require.Eventually(t, func() bool {
		return reaper.sweeps.Load() >= 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestWatchdogStartStopIdempotent(t *testing.T) {
	wd := New(&countingReaper{}, logger.New("ERROR"), time.Minute)

	assert.Equal(t, 15*time.Second, wd.interval)

	wd.Start()
	wd.Start()
	wd.Stop()
	wd.Stop()
}

func TestWatchdogRestartsAfterStop(t *testing.T) {
	reaper := &countingReaper{}
	wd := New(reaper, logger.New("ERROR"), 100*time.Millisecond)

	wd.Start()
	require.Eventually(t, func() bool {
		return reaper.sweeps.Load() >= 1
	}, 3*time.Second, 50*time.Millisecond)
	wd.Stop()

	// A second run must sweep again, not exit on the closed channel
	swept := reaper.sweeps.Load()
	wd.Start()
	defer wd.Stop()
	require.Eventually(t, func() bool {
		return reaper.sweeps.Load() > swept
	}, 3*time.Second, 50*time.Millisecond)
}
