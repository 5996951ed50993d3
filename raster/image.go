package raster

import "fmt"

const (
	// Width is the fixed sample width of every generated image.
	Width = 128

	// MaxRowSize is the row byte count of the widest format (64 bits per pixel).
	MaxRowSize = Width * 8

	// MaxHeight is the tallest generated image (the 48/64 bit formats).
	MaxHeight = 2048

	// MaxImageSize bounds the byte size of any generated image.
	MaxImageSize = MaxRowSize * MaxHeight
)

// RowSize returns the byte count of one packed row.
func RowSize(ct ColourType, bitDepth uint8) (int, error) {
	bits, err := BitSize(ct, bitDepth)
	if err != nil {
		return 0, err
	}
	return Width * bits / 8, nil
}

// Height returns the row count chosen for the format. Sub-byte and 8-bit
// single-channel formats sweep their whole sample space in 128 or 256 pixels;
// 16-bit-per-pixel and wider formats get 65536 pixels (or four times that for
// the 48/64 bit cases).
func Height(ct ColourType, bitDepth uint8) (int, error) {
	bits, err := BitSize(ct, bitDepth)
	if err != nil {
		return 0, err
	}
	switch bits {
	case 1, 2, 4:
		return 1, nil
	case 8:
		return 2, nil
	case 16, 24, 32:
		return 512, nil
	case 48, 64:
		return 2048, nil
	default:
		return 0, fmt.Errorf("raster: invalid bit depth %d for %s", bitDepth, ct)
	}
}

// Row fills dst with row y of the image for the given format pair. dst must
// hold at least RowSize bytes. The contents depend only on the arguments, so
// a row written through the codec can be regenerated later for comparison.
func Row(dst []byte, ct ColourType, bitDepth uint8, y uint32) error {
	bits, err := BitSize(ct, bitDepth)
	if err != nil {
		return err
	}

	v := y << 7
	switch bits {
	case 1:
		for i := 0; i < Width/8; i++ {
			dst[i] = byte(v)
			v += 17
		}
	case 2:
		for i := 0; i < Width/4; i++ {
			dst[i] = byte(v)
			v += 33
		}
	case 4:
		for i := 0; i < Width/2; i++ {
			dst[i] = byte(v)
			v += 65
		}
	case 8:
		// 256 bytes total, 128 in each of the two rows.
		for i := 0; i < Width; i++ {
			dst[i] = byte(v)
			v++
		}
	case 16:
		// All 65536 sample values in order across the 512 rows. This covers
		// the 8-bit two-channel case as well as 16-bit greyscale.
		for i := 0; i < Width; i++ {
			dst[2*i] = byte(v >> 8)
			dst[2*i+1] = byte(v)
			v++
		}
	case 24:
		// 65536 pixels; derive blue from red^green to rotate the values.
		for i := 0; i < Width; i++ {
			dst[3*i+0] = byte(v >> 8)
			dst[3*i+1] = byte(v)
			dst[3*i+2] = byte((v >> 8) ^ v)
			v++
		}
	case 32:
		for i := 0; i < Width; i++ {
			dst[4*i+0] = byte(v >> 8)
			dst[4*i+1] = byte(v)
			dst[4*i+2] = byte(v >> 8)
			dst[4*i+3] = byte(v)
			v++
		}
	case 48:
		// Red advances by 1 per pixel, green by 257, blue by 257*17.
		for i := 0; i < Width; i++ {
			t := v
			v++
			dst[6*i+0] = byte(t >> 8)
			dst[6*i+1] = byte(t)
			t *= 257
			dst[6*i+2] = byte(t >> 8)
			dst[6*i+3] = byte(t)
			t *= 17
			dst[6*i+4] = byte(t >> 8)
			dst[6*i+5] = byte(t)
		}
	case 64:
		for i := 0; i < Width; i++ {
			t := v
			v++
			dst[8*i+0] = byte(t >> 8)
			dst[8*i+1] = byte(t)
			dst[8*i+4] = byte(t >> 8)
			dst[8*i+5] = byte(t)
			t *= 257
			dst[8*i+2] = byte(t >> 8)
			dst[8*i+3] = byte(t)
			dst[8*i+6] = byte(t >> 8)
			dst[8*i+7] = byte(t)
		}
	default:
		return fmt.Errorf("raster: invalid bit depth %d for %s", bitDepth, ct)
	}
	return nil
}

// Sample extracts sample s (0 = grey/red/index, 1 = green, 2 = blue; the
// alpha channel follows the colour channels) of pixel x from a packed row.
func Sample(row []byte, ct ColourType, bitDepth uint8, x uint32, s uint32) uint {
	bits := uint32(bitDepth) * x
	index := bits

	if ct&1 == 0 { // not indexed-colour
		if ct&2 != 0 {
			index *= 3 // three colour channels
		}
		if ct&4 != 0 {
			index += bits // the alpha channel follows them
		}
		if ct&(2|4) != 0 {
			index += s * uint32(bitDepth) // select one channel
		}
	}

	row = row[index>>3:]
	result := uint(row[0])

	if bitDepth == 8 {
		return result
	}
	if bitDepth > 8 {
		return result<<8 + uint(row[1])
	}

	// Sub-byte samples.
	shift := index & 7
	return (result >> (8 - uint(shift) - uint(bitDepth))) & ((1 << bitDepth) - 1)
}

// PaletteRamp returns the 256-entry identity greyscale palette written with
// every indexed-colour image: entry i is (i, i, i).
func PaletteRamp() [][3]uint8 {
	pal := make([][3]uint8, 256)
	for i := range pal {
		pal[i] = [3]uint8{uint8(i), uint8(i), uint8(i)}
	}
	return pal
}
