package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newBufferedLogger builds a Logger the same way New does, but writing to an
// in-memory buffer instead of os.Stderr so tests can inspect the output.
func newBufferedLogger(level int) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: " ",
	})

	l := &Logger{}
	l.minimum.Store(int32(level))
	core := newAsyncCore(enc, zapcore.AddSync(&buf), l)
	l.core = core
	l.sugar = zap.New(core).Sugar()
	return l, &buf
}

func waitForOutput(buf *bytes.Buffer) string {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if buf.Len() > 0 {
			return buf.String()
		}
		time.Sleep(time.Millisecond)
	}
	return buf.String()
}

func TestVerboseEnablesDebugOutput(t *testing.T) {
	l, buf := newBufferedLogger(verbosityLevel(true))
	defer l.Close()

	l.Debugf("debug message %d", 1)

	out := waitForOutput(buf)
	require.Contains(t, out, "debug message 1")
	require.True(t, strings.Contains(strings.ToUpper(out), "DEBUG"))
}

func TestNonVerboseSuppressesDebugOutput(t *testing.T) {
	l, buf := newBufferedLogger(verbosityLevel(false))
	defer l.Close()

	l.Debugf("debug message")
	l.Infof("info message")

	out := waitForOutput(buf)
	require.NotContains(t, out, "debug message")
	require.Contains(t, out, "info message")
}

func TestNoneSuppressesEverything(t *testing.T) {
	l, buf := newBufferedLogger(None)
	defer l.Close()

	l.Errorf("should not appear")
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 0, buf.Len())
}

// verbosityLevel mirrors cmd.verbosityLevel so this package's tests don't
// depend on cmd (which would be an import cycle risk if cmd ever imported
// logging's test helpers). Kept in lockstep with cmd/root.go's mapping.
func verbosityLevel(verbose bool) int {
	if verbose {
		return int(zapcore.DebugLevel)
	}
	return int(zapcore.InfoLevel)
}
