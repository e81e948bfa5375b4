// Package logging provides beamdump's diagnostic logger: a structured,
// non-blocking, drop-counted sink built on top of zap.
//
// The shape is deliberately the one used by most hand-rolled loggers seen
// in network-facing Go services that cannot afford to stall a hot path on
// log I/O: entries are encoded synchronously (so log lines keep their field
// values without races) but handed to a bounded channel drained by one
// goroutine, and a full channel drops the entry and counts it rather than
// blocking the caller. Ingress and Egress never block on a log call.
package logging

import (
	"fmt"
	"math"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const channelCapacity = 1024

// Logger is beamdump's process-wide diagnostic logger.
type Logger struct {
	sugar   *zap.SugaredLogger
	core    *asyncCore
	minimum atomic.Int32
}

// None disables all logging. Deliberately not -1: zapcore.DebugLevel is -1,
// so -1 as a "disabled" sentinel would make --verbose (which sets the
// minimum to DebugLevel) indistinguishable from "logging off".
const None int = math.MaxInt32

// New constructs a Logger writing encoded entries to stderr, matching
// spec §7's "diagnostics go to standard error".
func New(level int) *Logger {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		MessageKey:    "msg",
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		ConsoleSeparator: " ",
	})

	l := &Logger{}
	l.minimum.Store(int32(level))

	core := newAsyncCore(enc, zapcore.Lock(zapcore.AddSync(os.Stderr)), l)
	l.core = core
	l.sugar = zap.New(core).Sugar()
	return l
}

// SetLevel adjusts the minimum enabled level. Passing None disables logging
// entirely.
func (l *Logger) SetLevel(level int) { l.minimum.Store(int32(level)) }

// Dropped returns the number of log entries dropped because the internal
// channel was full.
func (l *Logger) Dropped() uint64 { return l.core.dropped.Load() }

// Close drains and stops the background writer. Safe to call once, at
// shutdown, after no more log calls will be issued.
func (l *Logger) Close() { l.core.close() }

func (l *Logger) Debugf(format string, args ...any) { l.logf(int(zapcore.DebugLevel), format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(int(zapcore.InfoLevel), format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(int(zapcore.WarnLevel), format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(int(zapcore.ErrorLevel), format, args...) }

// Fatalf logs at Error level, blocks briefly for the entry to drain, then
// exits the process with status 1 — matching spec §7's fatal-condition
// disposition.
func (l *Logger) Fatalf(format string, args ...any) {
	l.logf(int(zapcore.ErrorLevel), format, args...)
	l.core.flush()
	os.Exit(1)
}

func (l *Logger) logf(level int, format string, args ...any) {
	if level < int(l.minimum.Load()) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	switch zapcore.Level(level) {
	case zapcore.DebugLevel:
		l.sugar.Debug(msg)
	case zapcore.WarnLevel:
		l.sugar.Warn(msg)
	case zapcore.ErrorLevel:
		l.sugar.Error(msg)
	default:
		l.sugar.Info(msg)
	}
}
