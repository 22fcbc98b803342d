package dispatch

import (
	"sync/atomic"
	"time"
)

// Stats contains counters for a dispatcher.
// Values are read without a lock and may be slightly inconsistent while
// dispatches are in progress.
type Stats struct {
	// Dispatched is the total number of tasks handed to the dispatcher.
	Dispatched uint64

	// Succeeded is the number of successful handler executions.
	Succeeded uint64

	// Failed is the number of handlers that returned errors (timeouts included).
	Failed uint64

	// Panicked is the number of handlers that panicked.
	Panicked uint64

	// TimedOut is the number of handlers that exceeded their timeout.
	TimedOut uint64

	// Skipped is the number of tasks that never started (e.g., context cancelled).
	Skipped uint64

	// InFlight is the number of handlers currently executing.
	InFlight int64

	// TotalDuration is the cumulative time spent in handlers.
	TotalDuration time.Duration

	// AvgDuration is the average handler execution time.
	AvgDuration time.Duration
}

// counters is embedded by both dispatchers.
type counters struct {
	dispatched  atomic.Uint64
	succeeded   atomic.Uint64
	failed      atomic.Uint64
	panicked    atomic.Uint64
	timedOut    atomic.Uint64
	skipped     atomic.Uint64
	inFlight    atomic.Int64
	totalTimeNs atomic.Int64
}

func (c *counters) record(result Result) {
	c.totalTimeNs.Add(result.Duration.Nanoseconds())

	switch {
	case result.Skipped:
		c.skipped.Add(1)
	case result.Panicked:
		c.panicked.Add(1)
	case result.TimedOut:
		c.timedOut.Add(1)
		c.failed.Add(1)
	case result.Error != nil:
		c.failed.Add(1)
	case result.Success:
		c.succeeded.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	dispatched := c.dispatched.Load()
	totalNs := c.totalTimeNs.Load()

	var avgNs int64
	if dispatched > 0 {
		avgNs = totalNs / int64(dispatched)
	}

	return Stats{
		Dispatched:    dispatched,
		Succeeded:     c.succeeded.Load(),
		Failed:        c.failed.Load(),
		Panicked:      c.panicked.Load(),
		TimedOut:      c.timedOut.Load(),
		Skipped:       c.skipped.Load(),
		InFlight:      c.inFlight.Load(),
		TotalDuration: time.Duration(totalNs),
		AvgDuration:   time.Duration(avgNs),
	}
}
