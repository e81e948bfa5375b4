package recorder

import (
	"time"
)

// runEgress is the Egress component of spec.md §4.3: drains the Channel in
// bounded chunks to the active sink, managing file lifecycle (open, split,
// close) and the stop-level handshake with Control.
func (r *Recorder) runEgress() {
	active := r.preOpenedSink

	for {
		region, stop := r.channel.WaitForData()
		fill := len(region)

		if r.sinkOpen.Load() && r.cfg.MaxFileSize > 0 && r.bytesThisFile.Load() > r.cfg.MaxFileSize {
			stop = StopSplit
		}

		closing := (stop == StopProgram && fill == 0) || stop == StopSplit || stop == StopFile
		if closing && active != nil {
			r.closeSink(active, stop == StopSplit)
			active = nil
		}

		if stop == StopProgram && fill == 0 {
			r.finalReport()
			return
		}

		r.channel.ResetStopIfMatches(stop)

		if fill == 0 {
			continue
		}

		if active == nil {
			active = r.openSinkForNow(stop == StopSplit)
		}

		chunk := fill
		if chunk > int(r.cfg.MaxWrite) {
			chunk = int(r.cfg.MaxWrite)
		}
		if r.cfg.Len > 0 {
			chunk -= chunk % r.cfg.Len
			if chunk == 0 {
				// Less than one whole packet resident; wait for more.
				continue
			}
		}

		n, err := active.Write(region[:chunk])
		if err != nil {
			r.logger.Fatalf("short write to %s: %v", active.path, err)
			return
		}
		if n != chunk {
			r.logger.Fatalf("short write to %s: wrote %d of %d bytes", active.path, n, chunk)
			return
		}
		r.bytesThisFile.Add(int64(chunk))

		r.channel.Release(chunk)
	}
}

// openSinkForNow opens the next sink stamped with the current time, bumping
// the split sequence number when this open follows a size-based split.
func (r *Recorder) openSinkForNow(splitting bool) *sink {
	return r.openSinkAt(time.Now(), splitting)
}

// openSinkAt opens the next sink stamped with at. Filenames carry a
// sequence suffix whenever file splitting is configured at all, even for
// the first file, so a split mid-session never produces a mix of suffixed
// and unsuffixed names for the same run.
func (r *Recorder) openSinkAt(at time.Time, splitting bool) *sink {
	if splitting {
		r.seq.Add(1)
	}
	seq := int(r.seq.Load())

	s, err := openSink(r.cfg, at, seq, r.cfg.MaxFileSize > 0)
	if err != nil {
		r.logger.Fatalf("opening sink: %v", err)
		return nil
	}
	r.sinkOpen.Store(true)
	r.bytesThisFile.Store(0)
	return s
}

// closeSink flushes and closes active, reporting the compression ratio
// achieved if compression was enabled, per spec.md §4.3 step 3.
func (r *Recorder) closeSink(active *sink, splitting bool) {
	ratio, err := active.close()
	r.sinkOpen.Store(false)
	if err != nil {
		r.logger.Fatalf("closing %s: %v", active.path, err)
		return
	}
	if r.cfg.Compress {
		r.logger.Infof("closed %s (compression ratio %.2fx)", active.path, ratio)
	} else {
		r.logger.Infof("closed %s", active.path)
	}
	if r.cfg.StatPerSplitFile || !splitting {
		r.reportFileStats(active.path)
	}
}
