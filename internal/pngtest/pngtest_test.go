package pngtest

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pngkit/pngkit/codec"
	"github.com/pngkit/pngkit/raster"
)

type warnings struct{ msgs []string }

func (w *warnings) Warning(msg string) { w.msgs = append(w.msgs, msg) }

// encode writes rows through the codec and returns the stream.
func encode(t *testing.T, md codec.Metadata, rows [][]byte) []byte {
	t.Helper()
	var out bytes.Buffer
	w := Codec{}.NewWriter(&out, &warnings{})
	require.NoError(t, w.SetMetadata(md))
	for _, row := range rows {
		require.NoError(t, w.WriteRow(row))
	}
	require.NoError(t, w.Finalize())
	return out.Bytes()
}

// decodeRows reads every row back through the pull reader.
func decodeRows(t *testing.T, stream []byte, opts codec.ReadOptions) (codec.Metadata, [][]byte) {
	t.Helper()
	r := Codec{}.NewReader(bytes.NewReader(stream), &warnings{}, opts)
	md, err := r.ReadInfo()
	require.NoError(t, err)

	var rows [][]byte
	for {
		row := make([]byte, raster.MaxRowSize)
		err := r.ReadRow(row, nil)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
	require.NoError(t, r.ReadEnd())
	return md, rows
}

func testRows(height, size int) [][]byte {
	rows := make([][]byte, height)
	for y := range rows {
		rows[y] = make([]byte, size)
		for i := range rows[y] {
			rows[y][i] = byte(y*31 + i*7)
		}
	}
	return rows
}

func meta(ct raster.ColourType, bd uint8, il raster.Interlace, w, h uint32) codec.Metadata {
	return codec.Metadata{
		Width: w, Height: h,
		BitDepth: bd, ColourType: ct, Interlace: il,
		SBit: -1, SRGBIntent: -1,
	}
}

func TestRoundTripGray8(t *testing.T) {
	md := meta(raster.Gray, 8, raster.InterlaceNone, 16, 4)
	rows := testRows(4, 16)
	stream := encode(t, md, rows)

	got, decoded := decodeRows(t, stream, codec.ReadOptions{})
	assert.Equal(t, md.Width, got.Width)
	assert.Equal(t, md.Height, got.Height)
	assert.Equal(t, md.BitDepth, got.BitDepth)
	assert.Equal(t, md.ColourType, got.ColourType)
	require.Len(t, decoded, 4)
	for y, row := range rows {
		assert.Equal(t, row, decoded[y][:len(row)], "row %d", y)
	}
}

func TestRoundTripAdam7(t *testing.T) {
	tests := []struct {
		name string
		ct   raster.ColourType
		bd   uint8
	}{
		{"rgb 8", raster.RGB, 8},
		{"gray 16", raster.Gray, 16},
		{"gray 1", raster.Gray, 1},
		{"gray 2", raster.Gray, 2},
		{"rgba 16", raster.RGBA, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const w, h = 13, 9 // sizes that leave partial Adam7 passes
			pixelBits := raster.Channels(tt.ct) * int(tt.bd)
			size := rowBytes(pixelBits, w)
			md := meta(tt.ct, tt.bd, raster.InterlaceAdam7, w, h)
			rows := testRows(int(h), size)
			stream := encode(t, md, rows)

			got, decoded := decodeRows(t, stream, codec.ReadOptions{})
			assert.Equal(t, raster.InterlaceAdam7, got.Interlace)
			require.Len(t, decoded, int(h))
			// Compare pixel by pixel: recombination leaves the padding
			// bits past the last pixel of a sub-byte row zero.
			for y, row := range rows {
				for x := 0; x < w; x++ {
					assert.Equal(t, getPixel(row, pixelBits, x),
						getPixel(decoded[y], pixelBits, x), "row %d pixel %d", y, x)
				}
			}
		})
	}
}

func TestRoundTripPalette(t *testing.T) {
	md := meta(raster.Palette, 8, raster.InterlaceNone, 16, 2)
	md.Palette = raster.PaletteRamp()
	rows := testRows(2, 16)
	stream := encode(t, md, rows)

	got, decoded := decodeRows(t, stream, codec.ReadOptions{})
	require.Len(t, got.Palette, 256)
	assert.Equal(t, md.Palette, got.Palette)
	for y, row := range rows {
		assert.Equal(t, row, decoded[y][:len(row)], "row %d", y)
	}
}

func TestAncillaryRoundTrip(t *testing.T) {
	md := meta(raster.Gray, 8, raster.InterlaceNone, 4, 1)
	md.FileGamma = 1 / 2.2
	md.SBit = 5
	md.SRGBIntent = 1
	md.Text = []codec.TextEntry{{Keyword: "Comment", Value: "café"}}
	stream := encode(t, md, testRows(1, 4))

	got, _ := decodeRows(t, stream, codec.ReadOptions{})
	assert.InDelta(t, 1/2.2, got.FileGamma, 1e-5)
	assert.Equal(t, 5, got.SBit)
	assert.Equal(t, 1, got.SRGBIntent)
	require.Len(t, got.Text, 1)
	assert.Equal(t, "Comment", got.Text[0].Keyword)
	assert.Equal(t, "café", got.Text[0].Value)
}

func TestIncrementalMatchesSequential(t *testing.T) {
	md := meta(raster.RGB, 8, raster.InterlaceAdam7, 13, 9)
	rows := testRows(9, 13*3)
	stream := encode(t, md, rows)

	_, want := decodeRows(t, stream, codec.ReadOptions{})

	var got [][]byte
	var infoMD codec.Metadata
	ended := false
	inc := Codec{}.NewIncremental(codec.Callbacks{
		Info: func(md codec.Metadata) error { infoMD = md; return nil },
		Row: func(row []byte, y uint32, _ int) error {
			require.Equal(t, uint32(len(got)), y)
			got = append(got, append([]byte(nil), row...))
			return nil
		},
		End: func() error { ended = true; return nil },
	}, &warnings{}, codec.ReadOptions{})

	// Feed in awkward slice sizes.
	for off := 0; off < len(stream); {
		n := off%13 + 1
		if off+n > len(stream) {
			n = len(stream) - off
		}
		require.NoError(t, inc.Push(stream[off:off+n]))
		off += n
	}

	assert.True(t, ended)
	assert.Equal(t, md.Width, infoMD.Width)
	require.Len(t, got, len(want))
	for y := range want {
		assert.Equal(t, want[y][:len(got[y])], got[y], "row %d", y)
	}
}

func TestGammaBelowThresholdUntouched(t *testing.T) {
	md := meta(raster.Gray, 8, raster.InterlaceNone, 16, 2)
	md.FileGamma = 1 / 2.2
	rows := testRows(2, 16)
	stream := encode(t, md, rows)

	// 1/2.2 * 2.2 is within the threshold of 1: no correction at all.
	_, decoded := decodeRows(t, stream, codec.ReadOptions{ScreenGamma: 2.2})
	for y, row := range rows {
		assert.Equal(t, row, decoded[y][:len(row)], "row %d", y)
	}
}

func TestGammaCorrection8(t *testing.T) {
	md := meta(raster.Gray, 8, raster.InterlaceNone, 256, 1)
	row := make([]byte, 256)
	for i := range row {
		row[i] = byte(i)
	}
	md.FileGamma = 1 / 2.2
	stream := encode(t, md, [][]byte{row})

	_, decoded := decodeRows(t, stream, codec.ReadOptions{ScreenGamma: 1.0})
	const power = 2.2 // 1/(file*screen)
	for v := 0; v < 256; v++ {
		want := byte(math.Floor(math.Pow(float64(v)/255, power)*255 + .5))
		assert.Equal(t, want, decoded[0][v], "sample %d", v)
	}
}

func TestStrip16(t *testing.T) {
	md := meta(raster.Gray, 16, raster.InterlaceNone, 8, 1)
	row := []byte{
		0x00, 0x00, 0x01, 0xff, 0x12, 0x34, 0x7f, 0xff,
		0x80, 0x00, 0xab, 0xcd, 0xfe, 0xdc, 0xff, 0xff,
	}
	stream := encode(t, md, [][]byte{row})

	_, decoded := decodeRows(t, stream, codec.ReadOptions{Strip16: true})
	assert.Equal(t, []byte{0x00, 0x01, 0x12, 0x7f, 0x80, 0xab, 0xfe, 0xff},
		decoded[0][:8], "strip takes the top byte")
}

func TestSetMetadataRejectsInvalid(t *testing.T) {
	var sink bytes.Buffer
	tests := []struct {
		name string
		mut  func(*codec.Metadata)
	}{
		{"sBIT zero", func(md *codec.Metadata) { md.SBit = 0 }},
		{"sBIT too large", func(md *codec.Metadata) { md.SBit = 9 }},
		{"bad depth for rgb", func(md *codec.Metadata) { md.ColourType = raster.RGB; md.BitDepth = 4 }},
		{"zero width", func(md *codec.Metadata) { md.Width = 0 }},
		{"palette without PLTE", func(md *codec.Metadata) { md.ColourType = raster.Palette }},
		{"bad sRGB intent", func(md *codec.Metadata) { md.SRGBIntent = 7 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := meta(raster.Gray, 8, raster.InterlaceNone, 4, 1)
			tt.mut(&md)
			w := Codec{}.NewWriter(&sink, nil)
			assert.ErrorIs(t, w.SetMetadata(md), ErrMetadata)
		})
	}
}

func TestCorruptStreamRejected(t *testing.T) {
	md := meta(raster.Gray, 8, raster.InterlaceNone, 4, 1)
	stream := encode(t, md, testRows(1, 4))

	t.Run("bad crc", func(t *testing.T) {
		bad := append([]byte(nil), stream...)
		bad[len(bad)-5] ^= 0xff // inside IEND's CRC
		r := Codec{}.NewReader(bytes.NewReader(bad), nil, codec.ReadOptions{})
		_, err := r.ReadInfo()
		assert.Error(t, err)
	})

	t.Run("truncated", func(t *testing.T) {
		r := Codec{}.NewReader(bytes.NewReader(stream[:len(stream)-8]), nil, codec.ReadOptions{})
		_, err := r.ReadInfo()
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("bad signature", func(t *testing.T) {
		bad := append([]byte(nil), stream...)
		bad[0] = 'X'
		r := Codec{}.NewReader(bytes.NewReader(bad), nil, codec.ReadOptions{})
		_, err := r.ReadInfo()
		assert.Error(t, err)
	})
}

func TestPixelPacking(t *testing.T) {
	row := make([]byte, 4)
	// 2-bit pixels fill bytes from the high bits down.
	putPixel(row, 2, 0, 3)
	putPixel(row, 2, 1, 1)
	putPixel(row, 2, 4, 2)
	assert.Equal(t, byte(0xd0), row[0])
	assert.Equal(t, byte(0x80), row[1])
	assert.Equal(t, uint64(3), getPixel(row, 2, 0))
	assert.Equal(t, uint64(1), getPixel(row, 2, 1))
	assert.Equal(t, uint64(2), getPixel(row, 2, 4))

	wide := make([]byte, 8)
	putPixel(wide, 16, 1, 0xbeef)
	assert.Equal(t, []byte{0, 0, 0xbe, 0xef, 0, 0, 0, 0}, wide)
	assert.Equal(t, uint64(0xbeef), getPixel(wide, 16, 1))

	assert.Equal(t, 2, rowBytes(1, 13))
	assert.Equal(t, 4, rowBytes(2, 13))
	assert.Equal(t, 39, rowBytes(24, 13))
}
