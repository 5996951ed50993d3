// Package pngtest is a deliberately small PNG codec that gives the harness a
// collaborator to exercise: the repo's own tests and the command line tool
// run it through the full write/read/validate cycle. It is not a product
// feature and supports exactly what the harness needs — filter type 0 rows,
// one zlib stream, Adam7, and the gamma behavior the validator's tolerance
// model describes, including the shifted (unrounded) lookup for 2 and 4 bit
// greyscale.
package pngtest

import (
	"io"

	"github.com/pngkit/pngkit/codec"
)

// Codec implements the harness codec contract.
type Codec struct{}

var _ codec.Codec = Codec{}

// NewWriter returns a writer emitting a complete stream into w at Finalize.
func (Codec) NewWriter(w io.Writer, h codec.Handler) codec.Writer {
	return &writer{dst: w, h: h}
}

// NewReader returns a buffered pull reader over r.
func (Codec) NewReader(r io.Reader, h codec.Handler, opts codec.ReadOptions) codec.Reader {
	return &reader{src: r, h: h, opts: opts}
}

// NewIncremental returns a push reader delivering results through cb.
func (Codec) NewIncremental(cb codec.Callbacks, h codec.Handler, opts codec.ReadOptions) codec.Incremental {
	return &incremental{cb: cb, h: h, opts: opts}
}
