package recorder

import (
	"testing"
	"time"

	"github.com/lofar-obs/beamdump/internal/conf"
	"github.com/stretchr/testify/require"
)

func TestSinkFilenameDevNullPassthrough(t *testing.T) {
	cfg := conf.New()
	cfg.Out = "/dev/null"
	name, err := sinkFilename(cfg, time.Now(), 0, false)
	require.NoError(t, err)
	require.Equal(t, "/dev/null", name)
}

func TestSinkFilenameTemplate(t *testing.T) {
	cfg := conf.New()
	cfg.Out = "/tmp/udp"
	cfg.PortList = "4346"
	at := time.Date(2026, 7, 31, 12, 0, 0, 123_000_000, time.UTC)

	name, err := sinkFilename(cfg, at, 0, false)
	require.NoError(t, err)
	require.Contains(t, name, "/tmp/udp_4346.")
	require.Contains(t, name, "2026-07-31T12:00:00.123")
	require.NotContains(t, name, "_0000")
}

func TestSinkFilenameSplitSuffix(t *testing.T) {
	cfg := conf.New()
	cfg.Out = "/tmp/udp"
	at := time.Now()

	name, err := sinkFilename(cfg, at, 3, true)
	require.NoError(t, err)
	require.Contains(t, name, "_0003")
}

func TestSinkFilenameCompressedSuffix(t *testing.T) {
	cfg := conf.New()
	cfg.Out = "/tmp/udp"
	cfg.Compress = true
	at := time.Now()

	name, err := sinkFilename(cfg, at, 0, false)
	require.NoError(t, err)
	require.Contains(t, name, ".zst")
}
