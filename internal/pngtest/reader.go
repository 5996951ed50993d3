package pngtest

import (
	"fmt"
	"io"

	"github.com/pngkit/pngkit/codec"
)

// reader is the pull-mode read path. The whole stream is consumed and
// decoded at ReadInfo; rows are then served fully de-interlaced, top to
// bottom.
type reader struct {
	src  io.Reader
	h    codec.Handler
	opts codec.ReadOptions

	img *image
	y   int
}

func (r *reader) ReadInfo() (codec.Metadata, error) {
	if r.img != nil {
		return r.img.md, nil
	}
	data, err := io.ReadAll(r.src)
	if err != nil {
		return codec.Metadata{}, fmt.Errorf("pngtest: read: %w", err)
	}
	img, err := decodeStream(data, r.h, r.opts)
	if err != nil {
		return codec.Metadata{}, err
	}
	r.img = img
	return img.md, nil
}

// OutputDepth returns the row bit depth after transforms (8 when a 16-bit
// stream is being stripped).
func (r *reader) OutputDepth() uint8 {
	if r.img == nil {
		return 0
	}
	return r.img.outDepth
}

func (r *reader) Passes() int {
	if r.img == nil {
		return 0
	}
	return r.img.passes
}

// ReadRow copies the next row into raw and display; either may be nil. Both
// receive identical bytes since rows are served after de-interlacing.
func (r *reader) ReadRow(raw, display []byte) error {
	if r.img == nil {
		return fmt.Errorf("read row before info: %w", ErrState)
	}
	if r.y >= len(r.img.rows) {
		return io.EOF
	}
	row := r.img.rows[r.y]
	if raw != nil {
		copy(raw, row)
	}
	if display != nil {
		copy(display, row)
	}
	r.y++
	return nil
}

func (r *reader) ReadEnd() error {
	if r.img == nil {
		return fmt.Errorf("read end before info: %w", ErrState)
	}
	if r.y != len(r.img.rows) {
		return fmt.Errorf("read end after %d of %d rows: %w",
			r.y, len(r.img.rows), ErrState)
	}
	return nil
}
