package recorder

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/lofar-obs/beamdump/internal/conf"
	"github.com/lofar-obs/beamdump/internal/pkg/buffer"
)

// socketReadBufferSize enlarges each UDP socket's receive buffer to absorb
// bursts before the VRB does, matching the teacher's SetReadBuffer tuning
// for its own shared UDP connections.
const socketReadBufferSize = 8 * 1024 * 1024

// runIngress is the Ingress component of spec.md §4.2: one goroutine per
// configured UDP port, or a single stdin reader when cfg.Stdin is set.
func (r *Recorder) runIngress() {
	if r.cfg.Stdin {
		r.runStdinSource()
		return
	}

	var wg sync.WaitGroup
	for _, port := range r.cfg.Ports {
		port := port
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.runUDPSource(port)
		}()
	}
	wg.Wait()
}

// runUDPSource binds one UDP socket and reads datagrams from it until the
// stop level reaches StopProgram. A per-iteration read deadline of
// cfg.Timeout gives the loop a chance to observe the stop level even when
// no traffic arrives; idle-timeout events themselves are detected centrally
// by Control (see control.go), from the shared lastActivity clock.
func (r *Recorder) runUDPSource(port int) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		r.logger.Fatalf("binding UDP port %d: %v", port, err)
		return
	}
	defer conn.Close()

	if err := conn.SetReadBuffer(socketReadBufferSize); err != nil {
		r.logger.Debugf("SetReadBuffer for port %d: %v", port, err)
	}

	counters := r.counterFor(port)
	bufPtr := buffer.Get()
	defer buffer.Put(bufPtr)
	buf := *bufPtr

	for {
		if r.channel.StopLevel() == StopProgram {
			return
		}

		conn.SetReadDeadline(time.Now().Add(r.cfg.Timeout))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if r.channel.StopLevel() == StopProgram {
				return
			}
			r.logger.Fatalf("recvfrom on port %d: %v", port, err)
			return
		}
		if n >= conf.MaxPacketLen {
			r.logger.Fatalf("oversize datagram on port %d: %d bytes", port, n)
			return
		}

		r.ingestDatagram(port, counters, buf[:n])
	}
}

// runStdinSource reads fixed-length blocks from standard input. conf.Validate
// guarantees cfg.Len is set whenever cfg.Stdin is true. Unlike UDP, stdin
// mode never drops: Reserve blocks on "space available" instead, per
// spec.md §4.2's "Stdin mode exception".
func (r *Recorder) runStdinSource() {
	counters := r.counterFor(0)
	// cfg.Len, not buffer.MaxPacketLen: stdin's block size is whatever the
	// operator configured, not a fixed datagram ceiling, so it doesn't fit
	// the shared scratch pool's fixed-size contract.
	buf := make([]byte, r.cfg.Len)

	for {
		if r.channel.StopLevel() == StopProgram {
			return
		}

		_, err := io.ReadFull(os.Stdin, buf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				r.channel.SetStop(StopProgram)
				r.recordStop("stdin EOF")
				return
			}
			r.logger.Fatalf("reading stdin: %v", err)
			return
		}

		r.ingestDatagram(0, counters, buf)
	}
}

// ingestDatagram implements spec.md §4.2 steps 5-10 for one datagram already
// read into payload. payload must not be retained by the caller after this
// call returns, since stdin's fixed buffer is reused.
func (r *Recorder) ingestDatagram(port int, counters *PortCounters, payload []byte) {
	if r.channel.StopLevel() == StopProgram {
		if r.cfg.Verbose {
			r.logger.Debugf("discarding packet on port %d: stopping", port)
		}
		return
	}

	if r.cfg.Len != 0 && len(payload) != r.cfg.Len {
		r.logger.Errorf("wrong length packet on port %d: got %d bytes, want %d", port, len(payload), r.cfg.Len)
		return
	}

	if r.cfg.Check {
		hdr := &BeamformedHeader{}
		if err := hdr.DecodeFromBytes(payload, nil); err == nil {
			counters.ObservePacno(hdr.Packno())
			if hdr.Good() {
				counters.Good.Add(1)
			}
		}
	}

	total := len(payload)
	if r.cfg.SizeHead {
		total += 2
	}

	var region []byte
	var ok bool
	if r.cfg.Stdin {
		region, ok = r.channel.ReserveBlocking(total)
	} else {
		region, ok = r.channel.Reserve(total)
	}
	if !ok {
		counters.Dropped.Add(1)
		return
	}

	offset := 0
	if r.cfg.SizeHead {
		// Host-endianness, per the Open Question resolution in SPEC_FULL.md
		// §9: the reference leaves this unspecified, so the prefix is the
		// 16-bit payload length in the recording machine's native byte order.
		binary.NativeEndian.PutUint16(region[0:2], uint16(len(payload)))
		offset = 2
	}
	copy(region[offset:], payload)
	r.channel.Commit(total)

	counters.Seen.Add(1)
	counters.BytesWritten.Add(uint64(len(payload)))
	r.markActivity()

	if r.progressSinceLast.Add(uint64(total)) >= progressThreshold {
		r.progressSinceLast.Store(0)
		r.reportProgress()
	}
}
