package logging

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap/zapcore"
)

// asyncCore is a zapcore.Core that encodes synchronously (so field values
// are captured without a race) but hands the encoded line to a bounded
// channel for an independent drain goroutine to write out. A full channel
// drops the line and counts it — this core never blocks its caller on I/O.
type asyncCore struct {
	enc    zapcore.Encoder
	out    zapcore.WriteSyncer
	logger *Logger

	lines   chan string
	dropped atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func newAsyncCore(enc zapcore.Encoder, out zapcore.WriteSyncer, logger *Logger) *asyncCore {
	c := &asyncCore{
		enc:    enc,
		out:    out,
		logger: logger,
		lines:  make(chan string, channelCapacity),
		done:   make(chan struct{}),
	}
	c.wg.Add(1)
	go c.drain()
	return c
}

func (c *asyncCore) drain() {
	defer c.wg.Done()
	for line := range c.lines {
		_, _ = c.out.Write([]byte(line))
	}
}

func (c *asyncCore) Enabled(lvl zapcore.Level) bool {
	return int32(lvl) >= c.logger.minimum.Load()
}

func (c *asyncCore) With(fields []zapcore.Field) zapcore.Core {
	enc := c.enc.Clone()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return &asyncCore{enc: enc, out: c.out, logger: c.logger, lines: c.lines, done: c.done}
}

func (c *asyncCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *asyncCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	line := buf.String()
	buf.Free()

	select {
	case c.lines <- line:
	default:
		c.dropped.Add(1)
	}
	return nil
}

func (c *asyncCore) Sync() error { return c.out.Sync() }

// flush gives the drain goroutine a brief window to empty the channel
// before a fatal exit.
func (c *asyncCore) flush() {
	deadline := time.After(50 * time.Millisecond)
	for len(c.lines) > 0 {
		select {
		case <-deadline:
			return
		case <-time.After(time.Millisecond):
		}
	}
}

func (c *asyncCore) close() {
	c.closeOnce.Do(func() {
		c.flush()
		close(c.lines)
		c.wg.Wait()
	})
}
