package recorder

import (
	"encoding/binary"
	"fmt"

	"github.com/gopacket/gopacket"
)

// HeaderLen is the fixed size of the beamformed LOFAR-style packet header.
const HeaderLen = 16

// BeamformedLayerType is a private gopacket.LayerType for the 16-byte
// beamformed header. There is no existing entry in gopacket/layers for this
// format, but registering a LayerType and implementing DecodingLayer still
// buys the standard LayerType()/NextLayerType() plumbing other gopacket
// consumers expect, and keeps the hot-path check a single, testable
// DecodeFromBytes call instead of ad hoc struct casting.
var BeamformedLayerType = gopacket.RegisterLayerType(
	18100,
	gopacket.LayerTypeMetadata{Name: "Beamformed", Decoder: gopacket.DecodeFunc(decodeBeamformed)},
)

// BeamformedHeader is the decoded form of the header spec.md §3 describes.
type BeamformedHeader struct {
	Version      uint8
	Is200MHz     bool
	Error        bool
	Config       uint8
	Station      uint16
	NumBeamlets  uint8
	NumSlices    uint8
	Timestamp    int32
	Sequence     int32

	contents []byte
}

// LayerType implements gopacket.Layer.
func (h *BeamformedHeader) LayerType() gopacket.LayerType { return BeamformedLayerType }

// LayerContents implements gopacket.Layer.
func (h *BeamformedHeader) LayerContents() []byte { return h.contents }

// LayerPayload implements gopacket.Layer; the header carries no further
// gopacket-decodable payload in this system (sample data beyond it is never
// parsed, per spec.md's non-goals).
func (h *BeamformedHeader) LayerPayload() []byte { return nil }

// NextLayerType implements gopacket.DecodingLayer; there is nothing further
// to decode.
func (h *BeamformedHeader) NextLayerType() gopacket.LayerType { return gopacket.LayerTypeZero }

// CanDecode implements gopacket.DecodingLayer.
func (h *BeamformedHeader) CanDecode() gopacket.LayerClass { return BeamformedLayerType }

// DecodeFromBytes implements gopacket.DecodingLayer. It validates length and
// unpacks the bitfields and signed timestamps/sequence with encoding/binary
// and manual bit masking, matching the reference's packed little-endian
// struct layout exactly (header_lofar in dump_udp_ow_11.c):
//
//	uint8_t  version;                 // offset 0
//	uint16_t source_int;              // offset 1-2, little-endian bitfield
//	uint8_t  config;                  // offset 3
//	uint16_t station;                 // offset 4-5, little-endian
//	uint8_t  num_beamlets, num_slices; // offset 6, 7
//	int32_t  timestamp, sequence;     // offset 8-11, 12-15, little-endian
//
// source_int's bitfield (GCC default allocation order, LSB first, on the
// reference's little-endian target) packs rsp_id:5 (bits 0-4), unused1:1
// (bit 5), error:1 (bit 6), is200mhz:1 (bit 7), bm:2 (bits 8-9), unused2:6
// (bits 10-15) — so error and is200mhz both live in the byte at offset 1,
// not bits 0/1 of it. The reference never byte-swaps any header field
// (ntohs/ntohl only ever apply to socket addresses in that source), so
// nothing here does either.
func (h *BeamformedHeader) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < HeaderLen {
		return fmt.Errorf("beamformed header: need %d bytes, got %d", HeaderLen, len(data))
	}
	h.contents = data[:HeaderLen]

	h.Version = data[0]
	sourceLow := data[1]
	h.Error = sourceLow&0x40 != 0
	h.Is200MHz = sourceLow&0x80 != 0
	h.Config = data[3]
	h.Station = binary.LittleEndian.Uint16(data[4:6])
	h.NumBeamlets = data[6]
	h.NumSlices = data[7]
	h.Timestamp = int32(binary.LittleEndian.Uint32(data[8:12]))
	h.Sequence = int32(binary.LittleEndian.Uint32(data[12:16]))
	return nil
}

func decodeBeamformed(data []byte, p gopacket.PacketBuilder) error {
	h := &BeamformedHeader{}
	if err := h.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(h)
	return nil
}

// Good reports whether the header passes the validity check from spec.md
// §3: error bit clear and timestamp not the sentinel -1.
func (h *BeamformedHeader) Good() bool {
	return !h.Error && h.Timestamp != -1
}

// Packno computes the monotonically increasing packet number, reproducing
// the reference's integer truncation and operation order exactly:
//
//	packno = ( ( timestamp*1_000_000*(160+40*is200mhz) + 512 ) / 1024 + sequence ) / 16
func (h *BeamformedHeader) Packno() int64 {
	rate := int64(160)
	if h.Is200MHz {
		rate = 200
	}
	ts := int64(h.Timestamp)
	seq := int64(h.Sequence)
	return ((ts*1_000_000*rate+512)/1024 + seq) / 16
}
