// Package raster synthesizes the deterministic test images used by the
// harness and describes their shapes.
//
// Every image is 128 samples wide. The height is chosen per format so the
// pixel values sweep the representable sample space: a 16-bit greyscale image,
// for example, is 512 rows tall and contains every one of the 65536 sample
// values exactly once, in order. Because rows are a pure function of the
// format triple and the row index, any row can be regenerated independently
// for comparison against decoder output.
package raster

import (
	"fmt"
	"strconv"
)

// ColourType enumerates the channel layouts, using the container format's
// numeric codes.
type ColourType uint8

const (
	Gray      ColourType = 0
	RGB       ColourType = 2
	Palette   ColourType = 3
	GrayAlpha ColourType = 4
	RGBA      ColourType = 6
)

var colourNames = map[ColourType]string{
	Gray:      "greyscale",
	RGB:       "truecolour",
	Palette:   "indexed-colour",
	GrayAlpha: "greyscale with alpha",
	RGBA:      "truecolour with alpha",
}

// String returns the colour type's conventional name.
func (ct ColourType) String() string {
	if s, ok := colourNames[ct]; ok {
		return s
	}
	return "invalid"
}

// Valid reports whether ct is one of the five defined colour types.
func (ct ColourType) Valid() bool {
	_, ok := colourNames[ct]
	return ok
}

// Interlace selects the pixel transmission order.
type Interlace uint8

const (
	InterlaceNone  Interlace = 0
	InterlaceAdam7 Interlace = 1
)

// Passes returns the number of passes a reader produces for il.
func (il Interlace) Passes() int {
	if il == InterlaceAdam7 {
		return 7
	}
	return 1
}

// String names the interlace scheme.
func (il Interlace) String() string {
	if il == InterlaceAdam7 {
		return "interlaced"
	}
	return "sequential"
}

// FormatID packs a format triple into a 32-bit value:
//
//	bits 0-2   colour type
//	bits 3-7   bit depth
//	bits 8-15  interlace scheme
//
// The packing is lossless; the accessors recover the exact triple.
type FormatID uint32

// MakeFormatID packs a format triple.
func MakeFormatID(ct ColourType, bitDepth uint8, il Interlace) FormatID {
	return FormatID(uint32(ct) | uint32(bitDepth)<<3 | uint32(il)<<8)
}

// ColourType unpacks the colour type.
func (id FormatID) ColourType() ColourType { return ColourType(id & 0x7) }

// BitDepth unpacks the bit depth.
func (id FormatID) BitDepth() uint8 { return uint8((id >> 3) & 0x1f) }

// Interlace unpacks the interlace scheme.
func (id FormatID) Interlace() Interlace { return Interlace((id >> 8) & 0xff) }

// Name produces a human-readable description such as
// "truecolour 16 bit interlaced".
func (id FormatID) Name() string {
	s := id.ColourType().String() + " " + strconv.Itoa(int(id.BitDepth())) + " bit"
	if id.Interlace() != InterlaceNone {
		s += " interlaced"
	}
	return s
}

// NextFormat steps through every valid (colour type, bit depth) pair. Start
// with both values zero; each call advances to the next pair and returns
// false once the enumeration is exhausted. Bit depth doubles through
// {1,2,4,8,16} and rolls over to the next colour type at the type's ceiling;
// indexed-colour images stop at 8 bits.
func NextFormat(ct *ColourType, bitDepth *uint8) bool {
	if *bitDepth == 0 {
		*ct, *bitDepth = Gray, 1
		return true
	}

	*bitDepth <<= 1
	if *bitDepth <= 8 || (*ct != Palette && *bitDepth <= 16) {
		return true
	}

	switch *ct {
	case Gray:
		*ct, *bitDepth = RGB, 8
		return true
	case RGB:
		*ct, *bitDepth = Palette, 1
		return true
	case Palette:
		*ct, *bitDepth = GrayAlpha, 8
		return true
	case GrayAlpha:
		*ct, *bitDepth = RGBA, 8
		return true
	default:
		return false
	}
}

// Channels returns the sample count per pixel for ct.
func Channels(ct ColourType) int {
	switch ct {
	case Gray, Palette:
		return 1
	case GrayAlpha:
		return 2
	case RGB:
		return 3
	case RGBA:
		return 4
	default:
		return 0
	}
}

// BitSize returns the number of bits per pixel, or an error for an invalid
// colour type.
func BitSize(ct ColourType, bitDepth uint8) (int, error) {
	n := Channels(ct)
	if n == 0 {
		return 0, fmt.Errorf("raster: invalid colour type %d", ct)
	}
	return n * int(bitDepth), nil
}
