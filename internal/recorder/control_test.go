package recorder

import (
	"os"
	"testing"
	"time"

	"github.com/lofar-obs/beamdump/internal/conf"
	"github.com/stretchr/testify/require"
)

// TestStartSchedulingPreOpensSink covers spec.md's "Start scheduling" note:
// the first sink must be opened, stamped with S, before control sleeps
// until S arrives — not lazily on first packet.
func TestStartSchedulingPreOpensSink(t *testing.T) {
	dir := t.TempDir()
	start := time.Now().Add(150 * time.Millisecond).UTC()

	cfg := conf.New()
	cfg.PortList = "4346"
	cfg.Out = dir + "/rec"
	cfg.Len = 64
	cfg.Start = &start

	r := newTestRecorder(t, cfg)
	ctrl := newControl(r)

	before := time.Now()
	ctrl.start()
	defer ctrl.stop()

	require.GreaterOrEqual(t, time.Since(before), start.Sub(before))
	require.NotNil(t, r.preOpenedSink)
	require.True(t, r.sinkOpen.Load())

	stamp := start.Format("2006-01-02T15:04:05.000")
	require.Contains(t, r.preOpenedSink.path, stamp)

	_, err := os.Stat(r.preOpenedSink.path)
	require.NoError(t, err)
}
