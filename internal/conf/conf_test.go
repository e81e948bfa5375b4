package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePortListSingle(t *testing.T) {
	ports, err := ParsePortList("4346")
	require.NoError(t, err)
	assert.Equal(t, []int{4346}, ports)
}

func TestParsePortListExpansion(t *testing.T) {
	ports, err := ParsePortList("4346x3,5000")
	require.NoError(t, err)
	assert.Equal(t, []int{4346, 4347, 4348, 5000}, ports)
}

func TestParsePortListStdin(t *testing.T) {
	ports, err := ParsePortList("0")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, ports)
}

func TestParsePortListStdinCannotCombine(t *testing.T) {
	_, err := ParsePortList("0,1")
	require.Error(t, err)
}

func TestParsePortListTooManySockets(t *testing.T) {
	_, err := ParsePortList("1x100")
	require.Error(t, err)
}

func TestValidateDefaultsOK(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []int{4346}, cfg.Ports)
	assert.False(t, cfg.Stdin)
}

func TestValidateCheckForcesLen(t *testing.T) {
	cfg := New()
	cfg.Check = true
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BeamformedPacketLen, cfg.Len)
}

func TestValidateCheckConflictingLen(t *testing.T) {
	cfg := New()
	cfg.Check = true
	cfg.Len = 100
	require.Error(t, cfg.Validate())
}

func TestValidateEndAndDurationMutuallyExclusive(t *testing.T) {
	cfg := New()
	end := time.Now().Add(time.Hour)
	cfg.End = &end
	cfg.Duration = time.Minute
	require.Error(t, cfg.Validate())
}

func TestValidateStdinRequiresLen(t *testing.T) {
	cfg := New()
	cfg.PortList = "0"
	require.Error(t, cfg.Validate())

	cfg.Len = 7824
	require.NoError(t, cfg.Validate())
}

func TestValidateStdinRejectsSchedule(t *testing.T) {
	cfg := New()
	cfg.PortList = "0"
	cfg.Len = 7824
	start := time.Now().Add(time.Minute)
	cfg.Start = &start
	require.Error(t, cfg.Validate())
}

func TestValidateNegativeMaxFileSizeFoldsIntoStatFlag(t *testing.T) {
	cfg := New()
	cfg.MaxFileSize = -1000
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(1000), cfg.MaxFileSize)
	assert.False(t, cfg.StatPerSplitFile)
}

func TestValidateBufSizeRange(t *testing.T) {
	cfg := New()
	cfg.BufSize = 100
	require.Error(t, cfg.Validate())

	cfg.BufSize = 17_000_000_000
	require.Error(t, cfg.Validate())
}

func TestValidateCompCommandMustContainFormatVerb(t *testing.T) {
	cfg := New()
	cfg.Compress = true
	cfg.CompCommand = "zstd -q -f -o out.zst"
	require.Error(t, cfg.Validate())
}
