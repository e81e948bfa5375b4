// Package recorder implements beamdump's capture-to-disk core: the virtual
// ring buffer, the Ingress and Egress goroutines that move bytes through
// it, the Control goroutine that funnels signals and timers into the
// shared stop level, and the Statistics reports printed along the way.
package recorder

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lofar-obs/beamdump/internal/conf"
	"github.com/lofar-obs/beamdump/internal/logging"
)

// progressThreshold is the cumulative-bytes trigger for periodic progress
// reports, per spec.md §4.2 step 10 and §4.4 "Periodic progress".
const progressThreshold = 1 << 30 // 1 GiB

// Recorder is spec.md §9's "immutable configuration + sinks + counters"
// value: everything Ingress, Egress and Control need that is not the
// Channel itself.
type Recorder struct {
	cfg    *conf.Config
	logger *logging.Logger

	channel  *Channel
	counters []*PortCounters // parallel to cfg.Ports, or a single stdin entry

	sinkOpen     atomic.Bool
	lastActivity atomic.Int64 // UnixNano of the last successfully ingested datagram

	seq               atomic.Int32
	bytesThisFile     atomic.Int64
	progressSinceLast atomic.Uint64

	// preOpenedSink is set by control.start() when --Start schedules a
	// future start instant: spec.md's "Start scheduling" note requires the
	// first sink to be opened, stamped with that instant, before the
	// control goroutine sleeps until it arrives. Written once before
	// Ingress/Egress are launched, read once by runEgress; no
	// synchronization needed beyond the happens-before of goroutine
	// creation in Run().
	preOpenedSink *sink

	stopReason chan string // Control -> main, first terminal reason wins
	stopOnce   sync.Once

	wg sync.WaitGroup
}

// New builds a Recorder and its Channel from a validated Config.
func New(cfg *conf.Config, logger *logging.Logger) (*Recorder, error) {
	channel, err := NewChannel(int(cfg.BufSize))
	if err != nil {
		return nil, fmt.Errorf("allocating ring buffer: %w", err)
	}

	counters := make([]*PortCounters, len(cfg.Ports))
	for i, p := range cfg.Ports {
		counters[i] = NewPortCounters(p)
	}

	r := &Recorder{
		cfg:        cfg,
		logger:     logger,
		channel:    channel,
		counters:   counters,
		stopReason: make(chan string, 1),
	}
	r.lastActivity.Store(time.Now().UnixNano())
	return r, nil
}

// Close releases the Channel's mapped memory.
func (r *Recorder) Close() error { return r.channel.Close() }

// Run starts Ingress, Egress and Control, and blocks until the recording
// session reaches a terminal state (spec.md §5's join sequence). It returns
// the human-readable reason recording stopped.
func (r *Recorder) Run() string {
	ctrl := newControl(r)
	ctrl.start()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runIngress()
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runEgress()
	}()

	r.wg.Wait()
	ctrl.stop()

	select {
	case reason := <-r.stopReason:
		return reason
	default:
		return "terminated"
	}
}

// recordStop records the first reason the session reached StopProgram; only
// the first call has any effect, matching "first terminal reason wins".
func (r *Recorder) recordStop(reason string) {
	r.stopOnce.Do(func() {
		r.stopReason <- reason
	})
}

// markActivity updates the idle-timeout clock. Called by Ingress on every
// successfully ingested datagram, from any source.
func (r *Recorder) markActivity() {
	r.lastActivity.Store(time.Now().UnixNano())
}

// idleSince returns how long it has been since the last ingested datagram.
func (r *Recorder) idleSince() time.Duration {
	last := r.lastActivity.Load()
	return time.Since(time.Unix(0, last))
}

func (r *Recorder) counterFor(port int) *PortCounters {
	for _, c := range r.counters {
		if c.Port == port {
			return c
		}
	}
	return nil
}
