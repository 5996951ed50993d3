package format

import (
	"fmt"

	"github.com/pngkit/pngkit/internal/buf"
)

// IHDR is the decoded payload of the mandatory header chunk.
//
// Payload layout (big-endian):
//
//	Offset  Size  Description
//	0x00    4     Width in pixels
//	0x04    4     Height in pixels
//	0x08    1     Bit depth
//	0x09    1     Colour type
//	0x0A    1     Compression method (must be 0)
//	0x0B    1     Filter method (must be 0)
//	0x0C    1     Interlace method (0 = none, 1 = Adam7)
type IHDR struct {
	Width       uint32
	Height      uint32
	BitDepth    uint8
	ColourType  uint8
	Compression uint8
	Filter      uint8
	Interlace   uint8
}

// ParseIHDR decodes an IHDR payload. Only framing-level validity is enforced
// here; whether the (colour type, bit depth) pair is legal is a codec concern.
func ParseIHDR(b []byte) (IHDR, error) {
	if len(b) < IHDRLength {
		return IHDR{}, fmt.Errorf("ihdr: %w", ErrTruncated)
	}
	h := IHDR{
		Width:       buf.U32BE(b),
		Height:      buf.U32BE(b[4:]),
		BitDepth:    b[8],
		ColourType:  b[9],
		Compression: b[10],
		Filter:      b[11],
		Interlace:   b[12],
	}
	if h.Width == 0 || h.Height == 0 {
		return IHDR{}, fmt.Errorf("ihdr: zero dimension: %w", ErrBadIHDR)
	}
	if h.Compression != 0 || h.Filter != 0 {
		return IHDR{}, fmt.Errorf("ihdr: compression=%d filter=%d: %w",
			h.Compression, h.Filter, ErrBadIHDR)
	}
	if h.Interlace > 1 {
		return IHDR{}, fmt.Errorf("ihdr: interlace=%d: %w", h.Interlace, ErrBadIHDR)
	}
	return h, nil
}

// Encode writes the 13-byte IHDR payload into b.
func (h IHDR) Encode(b []byte) {
	if len(b) < IHDRLength {
		return
	}
	buf.PutU32BE(b, h.Width)
	buf.PutU32BE(b[4:], h.Height)
	b[8] = h.BitDepth
	b[9] = h.ColourType
	b[10] = h.Compression
	b[11] = h.Filter
	b[12] = h.Interlace
}
