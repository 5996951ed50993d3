package harness

import (
	"io"

	"github.com/pngkit/pngkit/codec"
	"github.com/pngkit/pngkit/raster"
)

// sbitLimit returns the largest valid significant-bit count for a format.
func sbitLimit(ct raster.ColourType, bd uint8) int {
	if ct == raster.Palette {
		return 8
	}
	return int(bd)
}

// ErrorTest drives the codec with deliberately invalid metadata and checks
// each case is rejected. The expected-error plumbing absorbs the rejections
// so a correctly behaving codec records nothing.
func ErrorTest(c codec.Codec, rec *Recorder) {
	var ct raster.ColourType
	var bd uint8
	for raster.NextFormat(&ct, &bd) {
		cases := []struct {
			name string
			sbit int
		}{
			{"zero sBIT", 0},
			{"oversized sBIT", sbitLimit(ct, bd) + 1},
		}
		for _, tc := range cases {
			id := raster.MakeFormatID(ct, bd, raster.InterlaceNone)
			rec.Begin("error " + tc.name + " " + id.Name())

			md, err := standardMetadata(ct, bd, raster.InterlaceNone)
			if err != nil {
				rec.Errorf("%v", err)
				continue
			}
			md.SBit = tc.sbit

			rec.ExpectError(true)
			err = c.NewWriter(io.Discard, rec).SetMetadata(md)
			rec.ExpectError(false)
			if err == nil {
				rec.Errorf("%s accepted", tc.name)
			}
		}
	}

	// Invalid ancillary text is advisory: the entry is dropped with a
	// warning and the stream is still written.
	rec.Begin("error non-Latin-1 text")
	md, err := standardMetadata(raster.Gray, 8, raster.InterlaceNone)
	if err != nil {
		rec.Errorf("%v", err)
		return
	}
	md.Text = []codec.TextEntry{{Keyword: "Comment", Value: "☃"}}

	rec.ExpectWarning(true)
	err = writeDiscard(c, rec, md)
	rec.ExpectWarning(false)
	if err != nil {
		rec.Errorf("write failed: %v", err)
	} else if !rec.SawWarning() {
		rec.Errorf("invalid text entry written without a warning")
	}
}

// writeDiscard writes a full image for md to nowhere. Used by tests that
// only care about the diagnostics the write raises.
func writeDiscard(c codec.Codec, rec *Recorder, md codec.Metadata) error {
	w := c.NewWriter(io.Discard, rec)
	if err := w.SetMetadata(md); err != nil {
		return err
	}
	rowSize, err := raster.RowSize(md.ColourType, md.BitDepth)
	if err != nil {
		return err
	}
	row := make([]byte, rowSize)
	for y := uint32(0); y < md.Height; y++ {
		if err := raster.Row(row, md.ColourType, md.BitDepth, y); err != nil {
			return err
		}
		if err := w.WriteRow(row); err != nil {
			return err
		}
	}
	return w.Finalize()
}
