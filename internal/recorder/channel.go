package recorder

import (
	"sync"
	"sync/atomic"

	"github.com/lofar-obs/beamdump/internal/vrb"
)

// Stop levels, shared between Control, Ingress and Egress.
const (
	StopNone    = 0  // running normally
	StopFile    = 1  // stop current file only; reopen on next packet
	StopProgram = 2  // drain and terminate
	StopSplit   = -1 // split current file and continue (size rollover)
)

// Channel is the single piece of shared mutable state spec.md §9 asks to be
// encapsulated rather than left as process-wide globals: the VRB, the region
// mutex guarding it and the running counters, the two condition variables
// ingress and egress rendezvous on, and the stop level.
//
// The stop level is kept in an atomic.Int32 rather than behind its own
// mutex: spec.md §5 calls for "one mutex for the VRB + counters, one for
// the stop level", but every transition that sets it must also pulse
// dataAvailable under regionMu, and code that needs to read the level while
// already holding regionMu (WaitForData, ReserveBlocking) would otherwise
// have to acquire a second mutex in the opposite order from SetStop — a
// lock-order inversion. An atomic gives the same cross-goroutine visibility
// guarantee without imposing an acquisition order between the two.
type Channel struct {
	ring *vrb.VRB

	regionMu       sync.Mutex
	dataAvailable  *sync.Cond
	spaceAvailable *sync.Cond

	Aggregate AggregateCounters

	stop atomic.Int32
}

// NewChannel allocates a VRB of at least minSize bytes and its coordinating
// locks.
func NewChannel(minSize int) (*Channel, error) {
	ring, err := vrb.New(minSize)
	if err != nil {
		return nil, err
	}
	c := &Channel{ring: ring}
	c.dataAvailable = sync.NewCond(&c.regionMu)
	c.spaceAvailable = sync.NewCond(&c.regionMu)
	return c, nil
}

// Capacity returns the VRB's rounded-up byte capacity.
func (c *Channel) Capacity() int { return c.ring.Cap() }

// Close releases the VRB's mapped memory.
func (c *Channel) Close() error { return c.ring.Close() }

// StopLevel returns the current stop level.
func (c *Channel) StopLevel() int { return int(c.stop.Load()) }

// SetStop sets the stop level unconditionally and wakes anything waiting on
// "data available", matching the Control table in spec.md §4.4 where every
// level transition also pulses that condition so a blocked Egress notices.
func (c *Channel) SetStop(level int) {
	c.stop.Store(int32(level))

	c.regionMu.Lock()
	c.dataAvailable.Broadcast()
	// Also wake any stdin reader blocked in ReserveBlocking: a terminal
	// stop must unblock that waiter too, even though spec.md §4.4's table
	// only calls out "data available" (written with UDP's non-blocking
	// Reserve in mind).
	c.spaceAvailable.Broadcast()
	c.regionMu.Unlock()
}

// SetStopIfRunning sets the stop level to level only if it is currently
// StopNone, returning whether it changed. Used for SIGHUP / idle-timeout
// transitions, which must not downgrade a stronger pending stop.
func (c *Channel) SetStopIfRunning(level int) bool {
	changed := c.stop.CompareAndSwap(StopNone, int32(level))
	if changed {
		c.regionMu.Lock()
		c.dataAvailable.Broadcast()
		c.regionMu.Unlock()
	}
	return changed
}

// ResetStopIfMatches resets the stop level to StopNone iff it still equals
// snapshot and is not StopProgram, per spec.md §4.3 step 5: this lets Egress
// clear a transient StopFile/StopSplit it has already handled, while never
// clobbering a StopProgram that arrived in the meantime.
func (c *Channel) ResetStopIfMatches(snapshot int) {
	if snapshot == StopProgram {
		return
	}
	c.stop.CompareAndSwap(int32(snapshot), StopNone)
}

// Reserve reserves n bytes at the tail under the region mutex. Returns
// ok=false immediately (no blocking) if there is no space, matching
// spec.md §4.2 step 9's drop-on-full semantics for UDP sources.
func (c *Channel) Reserve(n int) (region []byte, ok bool) {
	c.regionMu.Lock()
	defer c.regionMu.Unlock()
	return c.ring.Reserve(n)
}

// ReserveBlocking reserves n bytes, blocking on "space available" while full,
// for stdin's no-drop backpressure mode (spec.md §4.2 "Stdin mode exception").
// It returns ok=false only once stop has reached StopProgram while waiting.
func (c *Channel) ReserveBlocking(n int) (region []byte, ok bool) {
	c.regionMu.Lock()
	defer c.regionMu.Unlock()
	for {
		if c.StopLevel() == StopProgram {
			return nil, false
		}
		if region, ok := c.ring.Reserve(n); ok {
			return region, true
		}
		c.spaceAvailable.Wait()
	}
}

// Commit advances the tail by n bytes, records the aggregate fill/volume
// statistics, and wakes "data available" for Egress.
func (c *Channel) Commit(n int) {
	c.regionMu.Lock()
	c.ring.Commit(n)
	fill := c.ring.Fill()
	c.dataAvailable.Broadcast()
	c.regionMu.Unlock()

	c.Aggregate.TotalLen.Add(uint64(n))
	c.Aggregate.ObserveFill(fill)
}

// WaitForData blocks until fill > 0 or the stop level is non-zero, then
// returns a peek of the current contents (possibly empty) and the stop
// level snapshot taken under the same region-mutex critical section as the
// wakeup, per spec.md §4.3 step 1.
func (c *Channel) WaitForData() (region []byte, stopSnapshot int) {
	c.regionMu.Lock()
	defer c.regionMu.Unlock()
	for {
		region, ok := c.ring.Peek()
		stop := c.StopLevel()
		if ok || stop != StopNone {
			return region, stop
		}
		c.dataAvailable.Wait()
	}
}

// Release advances the head by n bytes and wakes "space available" for a
// blocked stdin reader.
func (c *Channel) Release(n int) {
	c.regionMu.Lock()
	c.ring.Release(n)
	c.spaceAvailable.Broadcast()
	c.regionMu.Unlock()
}

// Fill returns the VRB's current resident byte count.
func (c *Channel) Fill() int {
	c.regionMu.Lock()
	defer c.regionMu.Unlock()
	return c.ring.Fill()
}
