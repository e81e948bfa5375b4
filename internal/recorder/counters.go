package recorder

import "sync/atomic"

// PortCounters holds the running statistics for one configured port (or the
// single stdin source). All fields are updated by Ingress at commit time.
// BytesWritten counts payload bytes handed to the VRB, not bytes actually
// flushed to the sink: once committed, a packet is never lost except via
// the explicit Dropped accounting, so the two converge by the time the
// session ends (the only residual gap is whatever is still resident in the
// VRB at a given instant).
type PortCounters struct {
	Port int

	Seen         atomic.Uint64
	Dropped      atomic.Uint64
	BytesWritten atomic.Uint64
	Good         atomic.Uint64

	// FirstPacno/LastPacno are only meaningful when beamformed checking is
	// enabled. firstSet guards the one-time initialization of FirstPacno.
	firstSet   atomic.Bool
	FirstPacno atomic.Int64
	LastPacno  atomic.Int64

	// snapshot fields below are read and written only from the progress
	// report path (Control/Statistics), which is single-threaded relative
	// to itself, so plain fields suffice.
	lastSeen    uint64
	lastDropped uint64
	lastWritten uint64
	lastGood    uint64
}

// NewPortCounters returns a zeroed counters block for the given port
// (port == 0 denotes the stdin source).
func NewPortCounters(port int) *PortCounters {
	return &PortCounters{Port: port}
}

// ObservePacno folds one packet's sequence number into FirstPacno/LastPacno,
// initializing FirstPacno on the first call.
func (c *PortCounters) ObservePacno(n int64) {
	if c.firstSet.CompareAndSwap(false, true) {
		c.FirstPacno.Store(n)
	}
	c.LastPacno.Store(n)
}

// AggregateCounters tracks buffer-wide statistics across all ports.
type AggregateCounters struct {
	TotalLen   atomic.Uint64
	MaxFill    atomic.Int64
	fillSum    atomic.Uint64 // sum of Fill() observed at each commit
	fillCount  atomic.Uint64
}

// ObserveFill folds one post-commit VRB fill level into the running peak
// and mean-fill statistics.
func (a *AggregateCounters) ObserveFill(fill int) {
	for {
		cur := a.MaxFill.Load()
		if int64(fill) <= cur {
			break
		}
		if a.MaxFill.CompareAndSwap(cur, int64(fill)) {
			break
		}
	}
	a.fillSum.Add(uint64(fill))
	a.fillCount.Add(1)
}

// MeanFillFraction returns the mean of Fill()/capacity sampled at every
// commit, or 0 if no samples were taken.
func (a *AggregateCounters) MeanFillFraction(capacity int) float64 {
	count := a.fillCount.Load()
	if count == 0 || capacity == 0 {
		return 0
	}
	return float64(a.fillSum.Load()) / float64(count) / float64(capacity)
}
