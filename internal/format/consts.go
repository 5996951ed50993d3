// Package format houses low-level decoders for the PNG container format. The
// goal is to keep the parsing focused, allocation-free where possible, and
// independent from the public API so higher-level packages can orchestrate
// the data in a more ergonomic form.
//
// Only the container framing lives here: the file signature, chunk headers,
// chunk CRCs and the IHDR payload. Pixel data is opaque at this layer.
package format

// Signature is the fixed eight-byte mark at the start of every PNG stream.
var Signature = []byte{137, 80, 78, 71, 13, 10, 26, 10}

const (
	// SignatureSize is the length of the file signature in bytes.
	SignatureSize = 8

	// ChunkHeaderSize is the number of bytes in a chunk header: a 4-byte
	// big-endian payload length followed by the 4-byte type code.
	ChunkHeaderSize = 8

	// ChunkCRCSize is the number of bytes in the trailing chunk checksum.
	ChunkCRCSize = 4

	// ChunkOverhead is the framing cost of one chunk: header plus CRC.
	ChunkOverhead = ChunkHeaderSize + ChunkCRCSize

	// IHDRLength is the mandatory payload length of the IHDR chunk.
	IHDRLength = 13
)

// ChunkType is a four-character chunk type code packed big-endian into a
// uint32, so IHDR is 0x49484452.
type ChunkType uint32

// MakeType packs a four-character type code.
func MakeType(a, b, c, d byte) ChunkType {
	return ChunkType(uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d))
}

// Chunk type codes used by the harness.
const (
	TypeIHDR ChunkType = 0x49484452 // "IHDR"
	TypePLTE ChunkType = 0x504c5445 // "PLTE"
	TypeIDAT ChunkType = 0x49444154 // "IDAT"
	TypeIEND ChunkType = 0x49454e44 // "IEND"
	TypeGAMA ChunkType = 0x67414d41 // "gAMA"
	TypeSBIT ChunkType = 0x73424954 // "sBIT"
	TypeSRGB ChunkType = 0x73524742 // "sRGB"
	TypeTEXT ChunkType = 0x74455874 // "tEXt"
)

// String renders the four-character code, replacing non-ASCII bytes with '?'.
func (t ChunkType) String() string {
	var s [4]byte
	for i := 0; i < 4; i++ {
		c := byte(t >> uint(24-8*i))
		if c < 0x20 || c > 0x7e {
			c = '?'
		}
		s[i] = c
	}
	return string(s[:])
}
