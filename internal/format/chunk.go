package format

import (
	"fmt"
	"hash/crc32"

	"github.com/pngkit/pngkit/internal/buf"
)

// ChunkHeader is the fixed 8-byte prefix of every chunk.
//
// Chunk layout (big-endian):
//
//	Offset  Size  Description
//	0x00    4     Payload length (does not include framing)
//	0x04    4     Type code
//	0x08    n     Payload
//	0x08+n  4     CRC-32 over type + payload
type ChunkHeader struct {
	Length uint32
	Type   ChunkType
}

// ParseChunkHeader decodes the header at the start of b.
func ParseChunkHeader(b []byte) (ChunkHeader, error) {
	if len(b) < ChunkHeaderSize {
		return ChunkHeader{}, fmt.Errorf("chunk header: %w", ErrTruncated)
	}
	return ChunkHeader{
		Length: buf.U32BE(b),
		Type:   ChunkType(buf.U32BE(b[4:])),
	}, nil
}

// PutChunkHeader encodes h at the start of b. b must hold ChunkHeaderSize bytes.
func PutChunkHeader(b []byte, h ChunkHeader) {
	buf.PutU32BE(b, h.Length)
	buf.PutU32BE(b[4:], uint32(h.Type))
}

// ChunkCRC computes the checksum for a chunk with the given type and payload.
func ChunkCRC(t ChunkType, payload []byte) uint32 {
	var tb [4]byte
	buf.PutU32BE(tb[:], uint32(t))
	crc := crc32.Update(0, crc32.IEEETable, tb[:])
	return crc32.Update(crc, crc32.IEEETable, payload)
}

// UpdateCRC recomputes and stores the trailing checksum of the complete chunk
// at the start of b. The declared payload length is trusted; callers must
// have validated it against len(b) already.
func UpdateCRC(b []byte) error {
	h, err := ParseChunkHeader(b)
	if err != nil {
		return err
	}
	end, err := buf.CheckChunkBounds(len(b), 0, int(h.Length))
	if err != nil {
		return fmt.Errorf("chunk %s: %w", h.Type, ErrTruncated)
	}
	crc := crc32.ChecksumIEEE(b[4 : end-ChunkCRCSize])
	buf.PutU32BE(b[end-ChunkCRCSize:], crc)
	return nil
}

// VerifyCRC checks the stored checksum of the complete chunk at the start of b.
func VerifyCRC(b []byte) error {
	h, err := ParseChunkHeader(b)
	if err != nil {
		return err
	}
	end, err := buf.CheckChunkBounds(len(b), 0, int(h.Length))
	if err != nil {
		return fmt.Errorf("chunk %s: %w", h.Type, ErrTruncated)
	}
	want := crc32.ChecksumIEEE(b[4 : end-ChunkCRCSize])
	if got := buf.U32BE(b[end-ChunkCRCSize:]); got != want {
		return fmt.Errorf("chunk %s: stored 0x%08x, computed 0x%08x: %w",
			h.Type, got, want, ErrBadCRC)
	}
	return nil
}

// WriteChunk assembles a complete chunk (header, payload, CRC) into dst,
// returning the byte count. dst must have room for len(payload)+ChunkOverhead
// bytes.
func WriteChunk(dst []byte, t ChunkType, payload []byte) int {
	n := len(payload) + ChunkOverhead
	PutChunkHeader(dst, ChunkHeader{Length: uint32(len(payload)), Type: t})
	copy(dst[ChunkHeaderSize:], payload)
	buf.PutU32BE(dst[n-ChunkCRCSize:], ChunkCRC(t, payload))
	return n
}
