package recorder

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

// buildHeader encodes a test fixture matching header_lofar's actual packed
// little-endian layout: version(1), source_int(2, LE, bitfield), config(1),
// station(2, LE), num_beamlets(1), num_slices(1), timestamp(4, LE),
// sequence(4, LE). is200mhz/error sit at bits 7/6 of source_int's low byte.
func buildHeader(t *testing.T, is200mhz, hasError bool, timestamp, sequence int32) []byte {
	t.Helper()
	buf := make([]byte, HeaderLen)
	buf[0] = 1 // version
	var sourceLow byte
	if hasError {
		sourceLow |= 0x40
	}
	if is200mhz {
		sourceLow |= 0x80
	}
	buf[1] = sourceLow
	buf[2] = 0  // source_int high byte (bm/unused2), unused by the decoder
	buf[3] = 7  // config
	binary.LittleEndian.PutUint16(buf[4:6], 42)
	buf[6] = 244 // num_beamlets
	buf[7] = 16  // num_slices
	binary.LittleEndian.PutUint32(buf[8:12], uint32(timestamp))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(sequence))
	return buf
}

func TestDecodeFromBytesTooShort(t *testing.T) {
	h := &BeamformedHeader{}
	err := h.DecodeFromBytes(make([]byte, 10), nil)
	require.Error(t, err)
}

func TestDecodeFromBytesFields(t *testing.T) {
	data := buildHeader(t, true, false, 1000, 32)
	h := &BeamformedHeader{}
	require.NoError(t, h.DecodeFromBytes(data, nil))

	require.Equal(t, uint8(1), h.Version)
	require.True(t, h.Is200MHz)
	require.False(t, h.Error)
	require.Equal(t, uint16(42), h.Station)
	require.Equal(t, int32(1000), h.Timestamp)
	require.Equal(t, int32(32), h.Sequence)
}

func TestGoodRequiresNoErrorAndValidTimestamp(t *testing.T) {
	good := &BeamformedHeader{Error: false, Timestamp: 100}
	require.True(t, good.Good())

	errored := &BeamformedHeader{Error: true, Timestamp: 100}
	require.False(t, errored.Good())

	sentinel := &BeamformedHeader{Error: false, Timestamp: -1}
	require.False(t, sentinel.Good())
}

func TestPacnoReproducesReferenceRounding(t *testing.T) {
	h := &BeamformedHeader{Is200MHz: false, Timestamp: 1000, Sequence: 32}
	// rate = 160 for is200mhz=false
	// ((1000*1_000_000*160+512)/1024 + 32) / 16
	want := (int64(1000*1_000_000*160+512)/1024 + 32) / 16
	require.Equal(t, want, h.Packno())
}

// TestDecodeFromBytesStructuralMatch decodes an errored, sentinel-timestamp
// header and checks the full decoded struct against an expected value with cmp, so
// a future field added to BeamformedHeader without updating this test shows
// up as an unexplained diff instead of silently passing.
func TestDecodeFromBytesStructuralMatch(t *testing.T) {
	data := buildHeader(t, false, true, -1, 7)
	got := &BeamformedHeader{}
	require.NoError(t, got.DecodeFromBytes(data, nil))

	want := &BeamformedHeader{
		Version:     1,
		Is200MHz:    false,
		Error:       true,
		Config:      7,
		Station:     42,
		NumBeamlets: 244,
		NumSlices:   16,
		Timestamp:   -1,
		Sequence:    7,
	}

	if diff := cmp.Diff(want, got, cmpopts.IgnoreUnexported(BeamformedHeader{})); diff != "" {
		t.Errorf("decoded header mismatch (-want +got):\n%s", diff)
	}
}

func TestPacno200MHzUsesHigherRate(t *testing.T) {
	h200 := &BeamformedHeader{Is200MHz: true, Timestamp: 500, Sequence: 0}
	h160 := &BeamformedHeader{Is200MHz: false, Timestamp: 500, Sequence: 0}
	require.Greater(t, h200.Packno(), h160.Packno())
}
