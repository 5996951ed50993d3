package harness

import (
	"bytes"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/pngkit/pngkit/codec"
	"github.com/pngkit/pngkit/pool"
	"github.com/pngkit/pngkit/raster"
	"github.com/pngkit/pngkit/store"
)

// checkStandardInfo verifies the decoded metadata against the format the
// image was generated with.
func checkStandardInfo(rec *Recorder, id raster.FormatID, md codec.Metadata) bool {
	ct, bd, il := id.ColourType(), id.BitDepth(), id.Interlace()
	height, _ := raster.Height(ct, bd)
	ok := true
	if md.Width != raster.Width {
		rec.Errorf("width %d, want %d", md.Width, raster.Width)
		ok = false
	}
	if md.Height != uint32(height) {
		rec.Errorf("height %d, want %d", md.Height, height)
		ok = false
	}
	if md.BitDepth != bd {
		rec.Errorf("bit depth %d, want %d", md.BitDepth, bd)
		ok = false
	}
	if md.ColourType != ct {
		rec.Errorf("colour type %v, want %v", md.ColourType, ct)
		ok = false
	}
	if md.Interlace != il {
		rec.Errorf("interlace %v, want %v", md.Interlace, il)
		ok = false
	}
	if ct == raster.Palette {
		want := raster.PaletteRamp()[:1<<bd]
		if len(md.Palette) != len(want) {
			rec.Errorf("palette size %d, want %d", len(md.Palette), len(want))
			ok = false
		} else {
			for i, e := range want {
				if md.Palette[i] != e {
					rec.Errorf("palette entry %d is %v, want %v", i, md.Palette[i], e)
					ok = false
					break
				}
			}
		}
	}
	return ok
}

// checkStandardRow compares one decoded row against the regenerated
// reference. label distinguishes the raw and display outputs.
func checkStandardRow(rec *Recorder, y uint32, label string, got, ref []byte) {
	if !bytes.Equal(got, ref) {
		rec.Errorf("row %d (%s) differs from generated image", y, label)
	}
}

// sequentialStandardTest round-trips one stored image through the pull
// reader, checking both the raw and the display output of every row.
func sequentialStandardTest(s *store.Store, c codec.Codec, rec *Recorder, rpool *pool.Pool, id raster.FormatID) error {
	rec.Begin("read " + id.Name())
	if _, err := s.OpenForRead(id); err != nil {
		return err
	}
	defer s.CloseRead()

	ct, bd := id.ColourType(), id.BitDepth()
	rowSize, err := raster.RowSize(ct, bd)
	if err != nil {
		return err
	}

	r := c.NewReader(s, rec, codec.ReadOptions{})
	md, err := r.ReadInfo()
	if err != nil {
		return fmt.Errorf("read %s: %w", id.Name(), err)
	}
	if !checkStandardInfo(rec, id, md) {
		return nil
	}

	rawAlloc, err := rpool.Allocate(rowSize)
	if err != nil {
		return err
	}
	defer rpool.Free(rawAlloc)
	displayAlloc, err := rpool.Allocate(rowSize)
	if err != nil {
		return err
	}
	defer rpool.Free(displayAlloc)
	raw, display := rawAlloc.Bytes(), displayAlloc.Bytes()
	ref := make([]byte, rowSize)

	for y := uint32(0); y < md.Height; y++ {
		if err := r.ReadRow(raw, display); err != nil {
			return fmt.Errorf("read %s: row %d: %w", id.Name(), y, err)
		}
		if err := raster.Row(ref, ct, bd, y); err != nil {
			return err
		}
		checkStandardRow(rec, y, "raw", raw, ref)
		checkStandardRow(rec, y, "display", display, ref)
	}
	if err := r.ReadEnd(); err != nil {
		return fmt.Errorf("read %s: %w", id.Name(), err)
	}
	return nil
}

// incrementalStandardTest round-trips one stored image through the push
// reader, feeding it a page at a time in noise-sized slices.
func incrementalStandardTest(s *store.Store, c codec.Codec, rec *Recorder, noise *Noise, id raster.FormatID) error {
	rec.Begin("progressive read " + id.Name())
	f, err := s.OpenForRead(id)
	if err != nil {
		return err
	}
	defer s.CloseRead()

	ct, bd := id.ColourType(), id.BitDepth()
	ref := make([]byte, raster.MaxRowSize)
	var rows uint32
	ended := false

	inc := c.NewIncremental(codec.Callbacks{
		Info: func(md codec.Metadata) error {
			checkStandardInfo(rec, id, md)
			return nil
		},
		Row: func(row []byte, y uint32, pass int) error {
			if err := raster.Row(ref, ct, bd, y); err != nil {
				return err
			}
			checkStandardRow(rec, y, "progressive", row, ref[:len(row)])
			rows++
			return nil
		},
		End: func() error {
			ended = true
			return nil
		},
	}, rec, codec.ReadOptions{})

	fed := blake3.New()
	for {
		page, err := s.PageBytes()
		if err != nil {
			return err
		}
		for len(page) > 0 {
			n := noise.Next()
			if n > len(page) {
				n = len(page)
			}
			if err := inc.Push(page[:n]); err != nil {
				return fmt.Errorf("progressive read %s: %w", id.Name(), err)
			}
			fed.Write(page[:n])
			page = page[n:]
		}
		more, err := s.NextPage()
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}

	// The noise-sliced feed must have pushed exactly the stored stream.
	if want := f.Digest(); !bytes.Equal(fed.Sum(nil), want[:]) {
		rec.Errorf("fed bytes do not match the stored stream digest")
	}

	height, _ := raster.Height(ct, bd)
	if rows != uint32(height) {
		rec.Errorf("delivered %d rows, want %d", rows, height)
	}
	if !ended {
		rec.Errorf("stream never signalled completion")
	}
	return nil
}

// StandardTest runs the structural round trip over every stored image in
// both read modes.
func StandardTest(s *store.Store, c codec.Codec, rec *Recorder, rpool *pool.Pool, noise *Noise) {
	var ct raster.ColourType
	var bd uint8
	for raster.NextFormat(&ct, &bd) {
		for _, il := range []raster.Interlace{raster.InterlaceNone, raster.InterlaceAdam7} {
			id := raster.MakeFormatID(ct, bd, il)
			if err := sequentialStandardTest(s, c, rec, rpool, id); err != nil {
				rec.Errorf("%v", err)
			}
			if err := incrementalStandardTest(s, c, rec, noise, id); err != nil {
				rec.Errorf("%v", err)
			}
		}
	}
}
