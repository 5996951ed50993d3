package pngtest

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"math"

	"golang.org/x/text/encoding/charmap"

	"github.com/pngkit/pngkit/codec"
	"github.com/pngkit/pngkit/internal/format"
	"github.com/pngkit/pngkit/raster"
)

// validDepths lists the legal bit depths per colour type.
var validDepths = map[raster.ColourType][]uint8{
	raster.Gray:      {1, 2, 4, 8, 16},
	raster.RGB:       {8, 16},
	raster.Palette:   {1, 2, 4, 8},
	raster.GrayAlpha: {8, 16},
	raster.RGBA:      {8, 16},
}

func depthValid(ct raster.ColourType, bd uint8) bool {
	for _, d := range validDepths[ct] {
		if d == bd {
			return true
		}
	}
	return false
}

type writer struct {
	dst io.Writer
	h   codec.Handler

	md      codec.Metadata
	bpp     int // bits per pixel
	rowSize int
	rows    [][]byte

	metaSet bool
	done    bool
}

func (w *writer) SetMetadata(md codec.Metadata) error {
	if w.metaSet {
		return fmt.Errorf("metadata already set: %w", ErrState)
	}
	if md.Width == 0 || md.Height == 0 {
		return fmt.Errorf("zero dimension: %w", ErrMetadata)
	}
	if !depthValid(md.ColourType, md.BitDepth) {
		return fmt.Errorf("colour type %d depth %d: %w",
			md.ColourType, md.BitDepth, ErrMetadata)
	}
	if md.Interlace > raster.InterlaceAdam7 {
		return fmt.Errorf("interlace %d: %w", md.Interlace, ErrMetadata)
	}
	if md.ColourType == raster.Palette && len(md.Palette) == 0 {
		return fmt.Errorf("indexed-colour image without palette: %w", ErrMetadata)
	}
	if md.SBit != -1 {
		// Sample depth scaling: significant bits must be 1..depth (1..8 for
		// indexed colour, where they describe the palette entries).
		limit := int(md.BitDepth)
		if md.ColourType == raster.Palette {
			limit = 8
		}
		if md.SBit < 1 || md.SBit > limit {
			return fmt.Errorf("invalid sBIT depth %d: %w", md.SBit, ErrMetadata)
		}
	}
	if md.SRGBIntent > 3 {
		return fmt.Errorf("sRGB intent %d: %w", md.SRGBIntent, ErrMetadata)
	}

	w.md = md
	w.bpp = raster.Channels(md.ColourType) * int(md.BitDepth)
	w.rowSize = rowBytes(w.bpp, int(md.Width))
	w.metaSet = true
	return nil
}

func (w *writer) WriteRow(row []byte) error {
	if !w.metaSet || w.done {
		return fmt.Errorf("write row: %w", ErrState)
	}
	if len(row) < w.rowSize {
		return fmt.Errorf("row %d: got %d bytes, need %d: %w",
			len(w.rows), len(row), w.rowSize, ErrMetadata)
	}
	if len(w.rows) == int(w.md.Height) {
		return fmt.Errorf("too many rows: %w", ErrState)
	}
	w.rows = append(w.rows, append([]byte(nil), row[:w.rowSize]...))
	return nil
}

func (w *writer) Finalize() error {
	if !w.metaSet || w.done {
		return fmt.Errorf("finalize: %w", ErrState)
	}
	if len(w.rows) != int(w.md.Height) {
		return fmt.Errorf("finalize after %d of %d rows: %w",
			len(w.rows), w.md.Height, ErrState)
	}
	w.done = true

	if _, err := w.dst.Write(format.Signature); err != nil {
		return err
	}

	hdr := make([]byte, format.IHDRLength)
	format.IHDR{
		Width:      w.md.Width,
		Height:     w.md.Height,
		BitDepth:   w.md.BitDepth,
		ColourType: uint8(w.md.ColourType),
		Interlace:  uint8(w.md.Interlace),
	}.Encode(hdr)
	if err := w.writeChunk(format.TypeIHDR, hdr); err != nil {
		return err
	}

	if w.md.FileGamma > 0 {
		fixed := uint32(math.Floor(w.md.FileGamma*100000 + .5))
		payload := []byte{byte(fixed >> 24), byte(fixed >> 16), byte(fixed >> 8), byte(fixed)}
		if err := w.writeChunk(format.TypeGAMA, payload); err != nil {
			return err
		}
	}
	if w.md.SBit != -1 {
		n := raster.Channels(w.md.ColourType)
		if w.md.ColourType == raster.Palette {
			n = 3
		}
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(w.md.SBit)
		}
		if err := w.writeChunk(format.TypeSBIT, payload); err != nil {
			return err
		}
	}
	if w.md.SRGBIntent >= 0 {
		if err := w.writeChunk(format.TypeSRGB, []byte{byte(w.md.SRGBIntent)}); err != nil {
			return err
		}
	}
	if len(w.md.Palette) > 0 {
		payload := make([]byte, 0, 3*len(w.md.Palette))
		for _, e := range w.md.Palette {
			payload = append(payload, e[0], e[1], e[2])
		}
		if err := w.writeChunk(format.TypePLTE, payload); err != nil {
			return err
		}
	}
	if err := w.writeText(); err != nil {
		return err
	}

	idat, err := w.compressImage()
	if err != nil {
		return err
	}
	if err := w.writeChunk(format.TypeIDAT, idat); err != nil {
		return err
	}
	return w.writeChunk(format.TypeIEND, nil)
}

// writeText emits one tEXt chunk per entry. The container is Latin-1 only;
// entries that cannot be encoded are skipped with a warning rather than
// failing the whole image.
func (w *writer) writeText() error {
	enc := charmap.ISO8859_1.NewEncoder()
	for _, e := range w.md.Text {
		kw, err := enc.Bytes([]byte(e.Keyword))
		if err != nil || len(kw) == 0 || len(kw) > 79 {
			if w.h != nil {
				w.h.Warning(fmt.Sprintf("tEXt keyword %q dropped", e.Keyword))
			}
			continue
		}
		text, err := enc.Bytes([]byte(e.Value))
		if err != nil {
			if w.h != nil {
				w.h.Warning(fmt.Sprintf("tEXt value for %q dropped", e.Keyword))
			}
			continue
		}
		payload := make([]byte, 0, len(kw)+1+len(text))
		payload = append(payload, kw...)
		payload = append(payload, 0)
		payload = append(payload, text...)
		if err := w.writeChunk(format.TypeTEXT, payload); err != nil {
			return err
		}
	}
	return nil
}

// compressImage serializes the rows (pass-extracted when interlaced) with a
// type 0 filter byte per row and deflates the lot into one IDAT payload.
func (w *writer) compressImage() ([]byte, error) {
	var raw bytes.Buffer
	if w.md.Interlace == raster.InterlaceAdam7 {
		for p := 0; p < 7; p++ {
			pw := raster.Adam7PassWidth(p, int(w.md.Width))
			ph := raster.Adam7PassHeight(p, int(w.md.Height))
			if pw == 0 || ph == 0 {
				continue
			}
			sub := make([]byte, rowBytes(w.bpp, pw))
			for j := 0; j < ph; j++ {
				for b := range sub {
					sub[b] = 0
				}
				for i := 0; i < pw; i++ {
					x, y := raster.Adam7Position(p, i, j)
					copyPixel(sub, w.rows[y], i, x, w.bpp)
				}
				raw.WriteByte(0) // filter type
				raw.Write(sub)
			}
		}
	} else {
		for _, row := range w.rows {
			raw.WriteByte(0)
			raw.Write(row)
		}
	}

	var out bytes.Buffer
	zw := zlib.NewWriter(&out)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (w *writer) writeChunk(typ format.ChunkType, payload []byte) error {
	b := make([]byte, len(payload)+format.ChunkOverhead)
	format.WriteChunk(b, typ, payload)
	_, err := w.dst.Write(b)
	return err
}
