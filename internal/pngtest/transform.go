package pngtest

import (
	"math"

	"github.com/pngkit/pngkit/codec"
	"github.com/pngkit/pngkit/raster"
)

// gammaThreshold matches the validator's: products closer to 1 than this get
// no correction at all.
const gammaThreshold = 0.05

// maxGammaBits caps the input precision used when gamma correcting 16-bit
// samples down to 8 bits.
const maxGammaBits = 11

// applyTransforms rewrites the decoded rows per the read options and returns
// them with their bit depth. Untransformed streams come back unchanged.
//
// Gamma correction trusts only the declared significant bits of each input
// sample. Samples of 8 bits or less go through an 8-bit lookup table; 2 and
// 4 bit greyscale is corrected by replicating the bits up to 8, applying the
// table and shifting back down without rounding, which is the behavior the
// validator's low-depth compensation constants describe. Alpha and palette
// indices are never corrected.
func applyTransforms(md codec.Metadata, opts codec.ReadOptions, rows [][]byte) ([][]byte, uint8) {
	depth := md.BitDepth
	ct := md.ColourType
	strip := opts.Strip16 && depth == 16
	outDepth := depth
	if strip {
		outDepth = 8
	}

	gammaOn := opts.ScreenGamma > 0 && md.FileGamma > 0 &&
		math.Abs(md.FileGamma*opts.ScreenGamma-1) >= gammaThreshold &&
		ct != raster.Palette

	if !gammaOn && !strip {
		return rows, outDepth
	}

	power := 1.0
	if gammaOn {
		power = 1 / (md.FileGamma * opts.ScreenGamma)
	}

	sbit := int(depth)
	if md.SBit >= 1 && md.SBit < sbit {
		sbit = md.SBit
	}
	if strip && gammaOn && sbit > maxGammaBits {
		sbit = maxGammaBits
	}

	width := int(md.Width)
	channels := raster.Channels(ct)
	hasAlpha := ct == raster.GrayAlpha || ct == raster.RGBA

	correct := func(v uint64, inBits, outBits int) uint64 {
		top := v >> (uint(inBits) - uint(sbit))
		i := float64(top) / float64(uint(1)<<sbit-1)
		outMax := float64(uint(1)<<outBits - 1)
		return uint64(math.Floor(math.Pow(i, power)*outMax + .5))
	}

	switch {
	case depth < 8:
		// Greyscale only at these depths once palette is excluded. Build
		// the full 8-bit table and shift the result down.
		var table [256]byte
		for v := range table {
			table[v] = byte(correct(uint64(v), 8, 8))
		}
		scale := 255 / (int(1)<<depth - 1)
		out := cloneRows(rows)
		for y, row := range rows {
			for x := 0; x < width; x++ {
				v := getPixel(row, int(depth), x)
				tv := table[int(v)*scale]
				putPixel(out[y], int(depth), x, uint64(tv)>>(8-depth))
			}
		}
		return out, outDepth

	case depth == 8:
		var table [256]byte
		for v := range table {
			table[v] = byte(correct(uint64(v), 8, 8))
		}
		out := cloneRows(rows)
		for y, row := range rows {
			for x := 0; x < width; x++ {
				for c := 0; c < channels; c++ {
					if hasAlpha && c == channels-1 {
						continue
					}
					idx := x*channels + c
					out[y][idx] = table[row[idx]]
				}
			}
		}
		return out, outDepth

	case strip:
		outSize := rowBytes(8*channels, width)
		out := make([][]byte, len(rows))
		for y, row := range rows {
			out[y] = make([]byte, outSize)
			for x := 0; x < width; x++ {
				for c := 0; c < channels; c++ {
					idx := x*channels + c
					v := getPixel(row, 16, idx)
					var o uint64
					if gammaOn && !(hasAlpha && c == channels-1) {
						o = correct(v, 16, 8)
					} else {
						o = v >> 8
					}
					out[y][idx] = byte(o)
				}
			}
		}
		return out, outDepth

	default: // 16-bit, gamma in place
		out := cloneRows(rows)
		for y, row := range rows {
			for x := 0; x < width; x++ {
				for c := 0; c < channels; c++ {
					if hasAlpha && c == channels-1 {
						continue
					}
					idx := x*channels + c
					putPixel(out[y], 16, idx, correct(getPixel(row, 16, idx), 16, 16))
				}
			}
		}
		return out, outDepth
	}
}

func cloneRows(rows [][]byte) [][]byte {
	out := make([][]byte, len(rows))
	for y, row := range rows {
		out[y] = append([]byte(nil), row...)
	}
	return out
}
