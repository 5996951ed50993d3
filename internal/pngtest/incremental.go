package pngtest

import (
	"bytes"
	"fmt"

	"github.com/pngkit/pngkit/codec"
	"github.com/pngkit/pngkit/internal/format"
)

// incremental is the push-mode read path. Chunks are parsed as soon as they
// complete across Push boundaries; the Info callback fires when the first
// image-data chunk arrives, and the Row/End callbacks fire from within the
// Push that delivers the end-of-stream chunk.
type incremental struct {
	cb   codec.Callbacks
	h    codec.Handler
	opts codec.ReadOptions

	pr      *parser
	buf     []byte
	sigDone bool
	info    bool
	done    bool
}

func (p *incremental) Push(data []byte) error {
	if p.done {
		return fmt.Errorf("push after end of stream: %w", ErrState)
	}
	if p.pr == nil {
		p.pr = newParser(p.h, p.opts)
	}
	p.buf = append(p.buf, data...)

	for {
		if !p.sigDone {
			if len(p.buf) < format.SignatureSize {
				return nil
			}
			if !bytes.Equal(p.buf[:format.SignatureSize], format.Signature) {
				return fmt.Errorf("pngtest: %w", format.ErrSignatureMismatch)
			}
			p.buf = p.buf[format.SignatureSize:]
			p.sigDone = true
		}

		if len(p.buf) < format.ChunkHeaderSize {
			return nil
		}
		h, _ := format.ParseChunkHeader(p.buf)
		need := int(h.Length) + format.ChunkOverhead
		if len(p.buf) < need {
			return nil
		}

		if h.Type == format.TypeIDAT && !p.info {
			p.info = true
			if p.cb.Info != nil {
				if err := p.cb.Info(p.pr.md); err != nil {
					return err
				}
			}
		}
		if err := p.pr.handleChunk(p.buf[:need]); err != nil {
			return err
		}
		p.buf = append(p.buf[:0], p.buf[need:]...)

		if p.pr.finished {
			p.done = true
			img, err := p.pr.decode()
			if err != nil {
				return err
			}
			for y, row := range img.rows {
				if p.cb.Row != nil {
					if err := p.cb.Row(row, uint32(y), 0); err != nil {
						return err
					}
				}
			}
			if p.cb.End != nil {
				return p.cb.End()
			}
			return nil
		}
	}
}
