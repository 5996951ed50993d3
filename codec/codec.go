// Package codec declares the contract between the harness and the image
// codec under test. The harness drives any implementation of these
// interfaces; it ships no codec of its own.
package codec

import (
	"io"

	"github.com/pngkit/pngkit/raster"
)

// TextEntry is one keyword/value pair of ancillary text.
type TextEntry struct {
	Keyword string
	Value   string
}

// Metadata describes an image and the ancillary information attached to it.
type Metadata struct {
	Width      uint32
	Height     uint32
	BitDepth   uint8
	ColourType raster.ColourType
	Interlace  raster.Interlace

	// FileGamma is the encoding gamma the stream declares; 0 means none.
	FileGamma float64

	// SBit is the declared significant bits per sample, or -1 when absent.
	// Zero is expressible but invalid; writers must reject it.
	SBit int

	// SRGBIntent is the sRGB rendering intent, or -1 when absent.
	SRGBIntent int

	// Palette holds the RGB entries for indexed-colour images.
	Palette [][3]uint8

	Text []TextEntry
}

// Handler receives advisory diagnostics from the codec. Fatal conditions are
// returned as errors from the operation that hit them; a warning is reported
// through the handler and the operation continues.
type Handler interface {
	Warning(msg string)
}

// ReadOptions select the optional sample transforms a reader applies.
type ReadOptions struct {
	// ScreenGamma, when non-zero, asks the reader to gamma correct decoded
	// samples from the stream's declared gamma to this display gamma.
	ScreenGamma float64

	// Strip16 reduces 16-bit samples to 8 bits on read.
	Strip16 bool
}

// Writer is the codec's write path: declare the image, feed rows top to
// bottom, finalize the stream.
type Writer interface {
	SetMetadata(md Metadata) error
	WriteRow(row []byte) error
	Finalize() error
}

// Reader is the codec's pull-mode read path. ReadRow fills raw with the
// pass's own bytes and, when display is non-nil, composites the pass into
// display for interlaced de-interlacing; for Passes()==1 the two are
// identical. Rows are requested pass by pass, top to bottom within a pass.
type Reader interface {
	ReadInfo() (Metadata, error)
	Passes() int
	ReadRow(raw, display []byte) error
	ReadEnd() error
}

// Callbacks receive decoded results from an incremental reader. Any callback
// may be nil; a non-nil callback returning an error aborts the Push that
// triggered it.
type Callbacks struct {
	Info func(md Metadata) error
	Row  func(row []byte, y uint32, pass int) error
	End  func() error
}

// Incremental is the codec's push-mode read path: the caller feeds
// arbitrarily sized byte slices and the reader invokes the callbacks from
// within Push as soon as each result is complete.
type Incremental interface {
	Push(data []byte) error
}

// Codec constructs the three halves of an implementation under test.
type Codec interface {
	NewWriter(w io.Writer, h Handler) Writer
	NewReader(r io.Reader, h Handler, opts ReadOptions) Reader
	NewIncremental(cb Callbacks, h Handler, opts ReadOptions) Incremental
}
