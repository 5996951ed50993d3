package pngtest

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"

	"github.com/pngkit/pngkit/codec"
	"github.com/pngkit/pngkit/internal/buf"
	"github.com/pngkit/pngkit/internal/format"
	"github.com/pngkit/pngkit/raster"
)

// parser accumulates stream state chunk by chunk. Both the pull and the push
// reader feed it; decode runs once IEND has been seen.
type parser struct {
	h    codec.Handler
	opts codec.ReadOptions

	md       codec.Metadata
	haveIHDR bool
	sawIDAT  bool
	idat     []byte
	finished bool
}

func newParser(h codec.Handler, opts codec.ReadOptions) *parser {
	return &parser{h: h, opts: opts, md: codec.Metadata{SBit: -1, SRGBIntent: -1}}
}

// handleChunk processes one complete framed chunk, checksum included.
func (pr *parser) handleChunk(b []byte) error {
	if err := format.VerifyCRC(b); err != nil {
		return fmt.Errorf("pngtest: %w", err)
	}
	h, _ := format.ParseChunkHeader(b)
	payload := b[format.ChunkHeaderSize : format.ChunkHeaderSize+int(h.Length)]

	if !pr.haveIHDR && h.Type != format.TypeIHDR {
		return fmt.Errorf("pngtest: %s before IHDR: %w", h.Type, ErrFormat)
	}

	switch h.Type {
	case format.TypeIHDR:
		return pr.handleIHDR(payload)

	case format.TypePLTE:
		if pr.sawIDAT || len(payload)%3 != 0 || len(payload) == 0 || len(payload) > 3*256 {
			return fmt.Errorf("pngtest: bad PLTE: %w", ErrFormat)
		}
		pr.md.Palette = make([][3]uint8, len(payload)/3)
		for i := range pr.md.Palette {
			pr.md.Palette[i] = [3]uint8{payload[3*i], payload[3*i+1], payload[3*i+2]}
		}

	case format.TypeGAMA:
		if len(payload) != 4 {
			return fmt.Errorf("pngtest: bad gAMA length %d: %w", len(payload), ErrFormat)
		}
		pr.md.FileGamma = float64(buf.U32BE(payload)) / 100000

	case format.TypeSBIT:
		if len(payload) == 0 {
			return fmt.Errorf("pngtest: empty sBIT: %w", ErrFormat)
		}
		limit := int(pr.md.BitDepth)
		if pr.md.ColourType == raster.Palette {
			limit = 8
		}
		s := int(payload[0])
		if s < 1 || s > limit {
			return fmt.Errorf("pngtest: invalid sBIT depth %d: %w", s, ErrFormat)
		}
		pr.md.SBit = s

	case format.TypeSRGB:
		if len(payload) != 1 || payload[0] > 3 {
			return fmt.Errorf("pngtest: bad sRGB: %w", ErrFormat)
		}
		pr.md.SRGBIntent = int(payload[0])

	case format.TypeTEXT:
		pr.handleText(payload)

	case format.TypeIDAT:
		pr.sawIDAT = true
		pr.idat = append(pr.idat, payload...)

	case format.TypeIEND:
		if h.Length != 0 {
			return fmt.Errorf("pngtest: IEND with payload: %w", ErrFormat)
		}
		pr.finished = true

	default:
		// Bit 5 of the first type byte distinguishes ancillary from
		// critical; an unknown critical chunk cannot be skipped safely.
		if b[format.ChunkHeaderSize-4]&0x20 == 0 {
			return fmt.Errorf("pngtest: unknown critical chunk %s: %w", h.Type, ErrFormat)
		}
		if pr.h != nil {
			pr.h.Warning(fmt.Sprintf("ignoring unknown chunk %s", h.Type))
		}
	}
	return nil
}

func (pr *parser) handleIHDR(payload []byte) error {
	if pr.haveIHDR {
		return fmt.Errorf("pngtest: duplicate IHDR: %w", ErrFormat)
	}
	h, err := format.ParseIHDR(payload)
	if err != nil {
		return fmt.Errorf("pngtest: %w", err)
	}
	ct := raster.ColourType(h.ColourType)
	if !depthValid(ct, h.BitDepth) {
		return fmt.Errorf("pngtest: colour type %d depth %d: %w",
			h.ColourType, h.BitDepth, ErrFormat)
	}
	pr.md.Width = h.Width
	pr.md.Height = h.Height
	pr.md.BitDepth = h.BitDepth
	pr.md.ColourType = ct
	pr.md.Interlace = raster.Interlace(h.Interlace)
	pr.haveIHDR = true
	return nil
}

func (pr *parser) handleText(payload []byte) {
	nul := bytes.IndexByte(payload, 0)
	if nul <= 0 || nul > 79 {
		if pr.h != nil {
			pr.h.Warning("malformed tEXt chunk ignored")
		}
		return
	}
	dec := charmap.ISO8859_1.NewDecoder()
	kw, err1 := dec.Bytes(payload[:nul])
	val, err2 := dec.Bytes(payload[nul+1:])
	if err1 != nil || err2 != nil {
		if pr.h != nil {
			pr.h.Warning("undecodable tEXt chunk ignored")
		}
		return
	}
	pr.md.Text = append(pr.md.Text, codec.TextEntry{Keyword: string(kw), Value: string(val)})
}

// image is a fully decoded, transformed result.
type image struct {
	md       codec.Metadata
	outDepth uint8    // bit depth of rows after transforms
	rows     [][]byte // full de-interlaced rows
	passes   int
}

// decode inflates the data stream, unfilters and de-interlaces it, and
// applies the configured sample transforms.
func (pr *parser) decode() (*image, error) {
	if !pr.finished {
		return nil, fmt.Errorf("pngtest: stream incomplete: %w", ErrFormat)
	}
	if !pr.sawIDAT {
		return nil, fmt.Errorf("pngtest: no image data: %w", ErrFormat)
	}
	if pr.md.ColourType == raster.Palette && len(pr.md.Palette) == 0 {
		return nil, fmt.Errorf("pngtest: indexed-colour stream without PLTE: %w", ErrFormat)
	}

	zr, err := zlib.NewReader(bytes.NewReader(pr.idat))
	if err != nil {
		return nil, fmt.Errorf("pngtest: inflate: %w", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("pngtest: inflate: %w", err)
	}

	bpp := raster.Channels(pr.md.ColourType) * int(pr.md.BitDepth)
	width, height := int(pr.md.Width), int(pr.md.Height)
	rows := make([][]byte, height)
	for y := range rows {
		rows[y] = make([]byte, rowBytes(bpp, width))
	}

	off := 0
	take := func(n int) ([]byte, error) {
		if off+n > len(raw) {
			return nil, fmt.Errorf("pngtest: image data short: %w", ErrFormat)
		}
		b := raw[off : off+n]
		off += n
		return b, nil
	}

	if pr.md.Interlace == raster.InterlaceAdam7 {
		for p := 0; p < 7; p++ {
			pw := raster.Adam7PassWidth(p, width)
			ph := raster.Adam7PassHeight(p, height)
			if pw == 0 || ph == 0 {
				continue
			}
			size := rowBytes(bpp, pw)
			for j := 0; j < ph; j++ {
				line, err := take(1 + size)
				if err != nil {
					return nil, err
				}
				if line[0] != 0 {
					return nil, fmt.Errorf("pngtest: filter %d: %w", line[0], ErrFilter)
				}
				for i := 0; i < pw; i++ {
					x, y := raster.Adam7Position(p, i, j)
					copyPixel(rows[y], line[1:], x, i, bpp)
				}
			}
		}
	} else {
		size := rowBytes(bpp, width)
		for y := 0; y < height; y++ {
			line, err := take(1 + size)
			if err != nil {
				return nil, err
			}
			if line[0] != 0 {
				return nil, fmt.Errorf("pngtest: filter %d: %w", line[0], ErrFilter)
			}
			copy(rows[y], line[1:])
		}
	}
	if off != len(raw) {
		return nil, fmt.Errorf("pngtest: %d trailing image bytes: %w", len(raw)-off, ErrFormat)
	}

	rows, outDepth := applyTransforms(pr.md, pr.opts, rows)
	return &image{
		md:       pr.md,
		outDepth: outDepth,
		rows:     rows,
		passes:   pr.md.Interlace.Passes(),
	}, nil
}

// decodeStream parses a complete in-memory stream. Bytes past IEND are
// ignored.
func decodeStream(data []byte, h codec.Handler, opts codec.ReadOptions) (*image, error) {
	if len(data) < format.SignatureSize ||
		!bytes.Equal(data[:format.SignatureSize], format.Signature) {
		return nil, fmt.Errorf("pngtest: %w", format.ErrSignatureMismatch)
	}
	pr := newParser(h, opts)
	off := format.SignatureSize
	for !pr.finished {
		if off+format.ChunkHeaderSize > len(data) {
			return nil, fmt.Errorf("pngtest: truncated at %d: %w", off, ErrFormat)
		}
		ch, _ := format.ParseChunkHeader(data[off:])
		end, err := buf.CheckChunkBounds(len(data), off, int(ch.Length))
		if err != nil {
			return nil, fmt.Errorf("pngtest: chunk %s: %w", ch.Type, ErrFormat)
		}
		if err := pr.handleChunk(data[off:end]); err != nil {
			return nil, err
		}
		off = end
	}
	return pr.decode()
}
