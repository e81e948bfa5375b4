package recorder

import (
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer groups large packet counts with thousands separators for
// readability at the packet rates this system targets (tens of millions of
// packets per run), per SPEC_FULL.md §4.5.
var printer = message.NewPrinter(language.English)

// reportProgress prints the periodic per-port block summary from spec.md
// §4.4 "Periodic progress", triggered whenever 1 GiB has been ingested
// since the last report.
func (r *Recorder) reportProgress() {
	for _, c := range r.counters {
		seen := c.Seen.Load()
		dropped := c.Dropped.Load()
		written := c.BytesWritten.Load()
		good := c.Good.Load()

		printer.Fprintf(os.Stdout, "progress port %d: seen=%d dropped=%d good=%d written=%s\n",
			c.Port, seen, dropped, good, datasize.ByteSize(written).HR())

		c.lastSeen = seen
		c.lastDropped = dropped
		c.lastWritten = written
		c.lastGood = good
	}
}

// reportFileStats prints a short line after a file closes, summarizing the
// bytes written to it.
func (r *Recorder) reportFileStats(path string) {
	printer.Fprintf(os.Stdout, "wrote %s to %s\n", datasize.ByteSize(r.bytesThisFile.Load()).HR(), path)
}

// finalReport prints the per-port and aggregate statistics from spec.md
// §4.5. Egress calls it once it has drained the buffer under StopProgram,
// just before it returns; Ingress goroutines may still be winding down.
func (r *Recorder) finalReport() {
	for _, c := range r.counters {
		seen := c.Seen.Load()
		dropped := c.Dropped.Load()
		written := c.BytesWritten.Load()

		if r.cfg.Check {
			first := c.FirstPacno.Load()
			last := c.LastPacno.Load()
			expected := last - first + 1
			missed := expected - int64(seen)
			good := c.Good.Load()
			printer.Fprintf(os.Stdout,
				"port %d: expected=%d missed=%d seen=%d good=%d (%.2f%%) dropped=%d (%.2f%%) written=%s\n",
				c.Port, expected, missed, seen, good, pct(good, seen), dropped, pct(dropped, seen+dropped),
				datasize.ByteSize(written).HR())
			continue
		}

		printer.Fprintf(os.Stdout, "port %d: seen=%d dropped=%d written=%s\n",
			c.Port, seen, dropped, datasize.ByteSize(written).HR())
	}

	capacity := r.channel.Capacity()
	maxFill := r.channel.Aggregate.MaxFill.Load()
	total := r.channel.Aggregate.TotalLen.Load()
	meanFrac := r.channel.Aggregate.MeanFillFraction(capacity)

	fmt.Fprintf(os.Stdout, "total written: %s, peak fill: %s / %s (%.2f%%), mean fill: %.2f%%\n",
		datasize.ByteSize(total).HR(),
		datasize.ByteSize(uint64(maxFill)).HR(),
		datasize.ByteSize(uint64(capacity)).HR(),
		100*float64(maxFill)/float64(capacity),
		100*meanFrac,
	)

	if dropped := r.logger.Dropped(); dropped > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d log lines dropped\n", dropped)
	}
}

func pct(n, d uint64) float64 {
	if d == 0 {
		return 0
	}
	return 100 * float64(n) / float64(d)
}
