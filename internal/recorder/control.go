package recorder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// control funnels asynchronous events (OS signals, timers, idle detection)
// into stop-level transitions on the Channel. Rather than touching mutexes
// and condition variables from inside a signal handler (the reference
// implementation's approach, flagged as not strictly async-signal-safe by
// spec.md §9), signals are delivered to a channel via os/signal.Notify and
// applied by this dedicated goroutine — the Go equivalent of the
// self-pipe/dedicated-control-thread alternative spec.md §4.4 and §9 invite.
type control struct {
	r *Recorder

	sigCh    chan os.Signal
	done     chan struct{}
	ticker   *time.Ticker
	endTimer *time.Timer
}

func newControl(r *Recorder) *control {
	return &control{
		r:     r,
		sigCh: make(chan os.Signal, 4),
		done:  make(chan struct{}),
	}
}

// idleCheckInterval is how often the control loop polls for the idle
// timeout having elapsed. It is capped relative to the configured timeout
// so short --timeout values still get reasonably prompt detection.
func idleCheckInterval(timeout time.Duration) time.Duration {
	interval := timeout / 4
	if interval > 250*time.Millisecond {
		interval = 250 * time.Millisecond
	}
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

// start schedules the recording session's start/end instants, arms signal
// delivery, and launches the control goroutine. Fatal startup conditions
// (an end instant already past, or within 100ms of now) exit the process
// directly, matching spec.md §4.4's "Start scheduling" note.
func (c *control) start() {
	signal.Notify(c.sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	if c.r.cfg.Start != nil {
		// spec.md's "Start scheduling" note: open the first sink stamped
		// with S before sleeping until S arrives, matching the reference's
		// start_file(start_timestamp)-then-wait ordering.
		c.r.preOpenedSink = c.r.openSinkAt(*c.r.cfg.Start, false)
		sleepUntil(*c.r.cfg.Start)
	}

	end := c.effectiveEnd()
	if end != nil {
		remaining := time.Until(*end)
		if remaining < 100*time.Millisecond {
			c.r.logger.Fatalf("end instant %s is already within 100ms of now", end.Format(time.RFC3339))
		}
		c.endTimer = time.AfterFunc(remaining, func() {
			c.r.channel.SetStop(StopProgram)
			c.r.recordStop(fmt.Sprintf("end instant %s reached", end.Format(time.RFC3339)))
		})
	}

	c.ticker = time.NewTicker(idleCheckInterval(c.r.cfg.Timeout))

	go c.loop()
}

// effectiveEnd resolves spec.md §4.4's "A duration D in combination with S
// defines E = S + D; without S but with D, E = now + D" rule. conf.Validate
// already rejects --End combined with --duration, so at most one of
// cfg.End/cfg.Duration is set here.
func (c *control) effectiveEnd() *time.Time {
	if c.r.cfg.End != nil {
		return c.r.cfg.End
	}
	if c.r.cfg.Duration != 0 {
		base := time.Now()
		if c.r.cfg.Start != nil {
			base = *c.r.cfg.Start
		}
		end := base.Add(c.r.cfg.Duration)
		return &end
	}
	return nil
}

// sleepUntil waits for instant, using coarse one-second sleeps for the bulk
// of the wait and a single fine-grained sleep for the tail, per spec.md
// §4.4. A negative (past) instant returns immediately.
func sleepUntil(instant time.Time) {
	for {
		remaining := time.Until(instant)
		if remaining <= 0 {
			return
		}
		if remaining > time.Second {
			time.Sleep(time.Second)
			continue
		}
		time.Sleep(remaining)
		return
	}
}

func (c *control) loop() {
	for {
		select {
		case sig := <-c.sigCh:
			c.onSignal(sig)
		case <-c.ticker.C:
			c.onIdleCheck()
		case <-c.done:
			return
		}
	}
}

func (c *control) onSignal(sig os.Signal) {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM:
		c.r.channel.SetStop(StopProgram)
		c.r.recordStop(fmt.Sprintf("received %s", sig))
	case syscall.SIGHUP:
		// Reproduces the reference's outf != NULL guard exactly: SIGHUP
		// while no sink is open is a documented no-op (spec.md §9 Open
		// Questions).
		if c.r.sinkOpen.Load() {
			c.r.channel.SetStopIfRunning(StopFile)
		}
	}
}

func (c *control) onIdleCheck() {
	if c.r.idleSince() < c.r.cfg.Timeout {
		return
	}
	if c.r.sinkOpen.Load() {
		if c.r.channel.SetStopIfRunning(StopFile) {
			c.r.logger.Infof("idle timeout after %s, closing current file", c.r.cfg.Timeout)
		}
	} else {
		c.r.logger.Debugf("idle timeout after %s, no sink open", c.r.cfg.Timeout)
	}
}

// stop tears down the control goroutine and its timers. Safe to call once,
// after both Ingress and Egress have returned.
func (c *control) stop() {
	signal.Stop(c.sigCh)
	if c.endTimer != nil {
		c.endTimer.Stop()
	}
	if c.ticker != nil {
		c.ticker.Stop()
	}
	close(c.done)
}
