package harness

import (
	"fmt"

	"github.com/pngkit/pngkit/codec"
	"github.com/pngkit/pngkit/pool"
	"github.com/pngkit/pngkit/raster"
	"github.com/pngkit/pngkit/store"
)

// standardMetadata builds the baseline metadata for one generated format.
func standardMetadata(ct raster.ColourType, bitDepth uint8, il raster.Interlace) (codec.Metadata, error) {
	height, err := raster.Height(ct, bitDepth)
	if err != nil {
		return codec.Metadata{}, err
	}
	md := codec.Metadata{
		Width:      raster.Width,
		Height:     uint32(height),
		BitDepth:   bitDepth,
		ColourType: ct,
		Interlace:  il,
		SBit:       -1,
		SRGBIntent: -1,
	}
	if ct == raster.Palette {
		// A depth-d index can only address 1<<d entries.
		md.Palette = raster.PaletteRamp()[:1<<bitDepth]
	}
	return md, nil
}

// writeStandardImage serializes one generated image into the store under its
// format ID. The row buffer comes from the write pool so the write path is
// covered by the pool's guards.
func writeStandardImage(s *store.Store, c codec.Codec, rec *Recorder, wpool *pool.Pool, id raster.FormatID) error {
	ct, bd, il := id.ColourType(), id.BitDepth(), id.Interlace()
	name := id.Name()
	rec.Begin("write " + name)

	md, err := standardMetadata(ct, bd, il)
	if err != nil {
		return err
	}
	rowSize, err := raster.RowSize(ct, bd)
	if err != nil {
		return err
	}
	rowAlloc, err := wpool.Allocate(rowSize)
	if err != nil {
		return err
	}
	defer wpool.Free(rowAlloc)
	row := rowAlloc.Bytes()

	if err := s.BeginWrite(name); err != nil {
		return err
	}
	w := c.NewWriter(s, rec)
	if err := w.SetMetadata(md); err != nil {
		s.DiscardWrite()
		return fmt.Errorf("write %s: %w", name, err)
	}
	for y := uint32(0); y < md.Height; y++ {
		if err := raster.Row(row, ct, bd, y); err != nil {
			s.DiscardWrite()
			return err
		}
		if err := w.WriteRow(row); err != nil {
			s.DiscardWrite()
			return fmt.Errorf("write %s: row %d: %w", name, y, err)
		}
	}
	if err := w.Finalize(); err != nil {
		s.DiscardWrite()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if _, err := s.Finalize(name, id); err != nil {
		return err
	}
	return nil
}

// MakeStandardImages writes every (colour type, bit depth) pair in both
// transmission orders into the store. Failures are recorded and do not stop
// the remaining formats.
func MakeStandardImages(s *store.Store, c codec.Codec, rec *Recorder, wpool *pool.Pool) {
	var ct raster.ColourType
	var bd uint8
	for raster.NextFormat(&ct, &bd) {
		for _, il := range []raster.Interlace{raster.InterlaceNone, raster.InterlaceAdam7} {
			id := raster.MakeFormatID(ct, bd, il)
			if err := writeStandardImage(s, c, rec, wpool, id); err != nil {
				rec.Errorf("%v", err)
			}
		}
	}
}
