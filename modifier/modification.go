package modifier

import (
	"fmt"
	"math"

	"golang.org/x/text/encoding/charmap"

	"github.com/pngkit/pngkit/internal/format"
	"github.com/pngkit/pngkit/raster"
)

// Modification describes one chunk-level change applied while a stream passes
// through a Modifier. A single registered value fires at most once per read
// for each of its one-shot actions.
//
// Apply is called with the matched (or to-be-synthesized) chunk staged in the
// Modifier's working buffer; add is true when the call is an offer to insert
// a new chunk ahead of an anchor rather than to rewrite an existing one.
// Returning true commits the staged buffer: the Modifier recomputes the
// trailing checksum before emitting it. Returning false declines and the
// stream is unchanged. Apply may drop the staged chunk entirely with
// Modifier.DropChunk and still return true.
type Modification struct {
	// Type is the chunk type the modification matches.
	Type format.ChunkType

	// Anchor, when set to PLTE, IDAT or IEND, asks for the chunk to be
	// synthesized immediately before the first occurrence of that chunk if
	// no matching chunk was seen earlier. A PLTE anchor also fires at the
	// first IDAT, since PLTE is optional for non-palette images.
	Anchor format.ChunkType

	// Delete removes every matching chunk outright. Apply is ignored.
	Delete bool

	// Apply performs the change. Required unless Delete is set.
	Apply func(m *Modifier, mod *Modification, add bool) bool

	// One-shot outcome flags, set by the Modifier.
	Modified bool // an existing chunk was rewritten
	Added    bool // an insertion offer was made at an anchor
	Removed  bool // a chunk was dropped from the stream
}

// Reset clears the one-shot outcome flags so the modification can be reused
// for another read.
func (mod *Modification) Reset() {
	mod.Modified = false
	mod.Added = false
	mod.Removed = false
}

// NewGammaModification sets the stream's gamma to the given value, rewriting
// an existing gAMA chunk or inserting one ahead of the palette/data chunks.
// The value is stored in the container's usual fixed-point encoding
// (gamma x 100000, rounded).
func NewGammaModification(gamma float64) *Modification {
	fixed := uint32(math.Floor(gamma*100000 + .5))
	return &Modification{
		Type:   format.TypeGAMA,
		Anchor: format.TypePLTE,
		Apply: func(m *Modifier, _ *Modification, _ bool) bool {
			var payload [4]byte
			payload[0] = byte(fixed >> 24)
			payload[1] = byte(fixed >> 16)
			payload[2] = byte(fixed >> 8)
			payload[3] = byte(fixed)
			m.SetChunk(format.TypeGAMA, payload[:])
			return true
		},
	}
}

// NewSRGBModification forces the given rendering intent, rewriting or
// inserting an sRGB chunk. An intent above 3 is not representable, so the
// modification instead deletes any sRGB chunk present.
func NewSRGBModification(intent uint8) *Modification {
	if intent > 3 {
		return &Modification{Type: format.TypeSRGB, Delete: true}
	}
	return &Modification{
		Type:   format.TypeSRGB,
		Anchor: format.TypePLTE,
		Apply: func(m *Modifier, _ *Modification, _ bool) bool {
			m.SetChunk(format.TypeSRGB, []byte{intent})
			return true
		},
	}
}

// NewSBitModification declares sbit significant bits per channel. When the
// stream's bit depth exceeds sbit the sBIT chunk is rewritten or inserted
// with one entry per channel; otherwise an existing sBIT chunk is dropped
// (declaring full precision is the same as declaring nothing).
func NewSBitModification(sbit uint8) *Modification {
	return &Modification{
		Type:   format.TypeSBIT,
		Anchor: format.TypePLTE,
		Apply: func(m *Modifier, _ *Modification, add bool) bool {
			if m.BitDepth() > sbit {
				n := raster.Channels(m.ColourType())
				if m.ColourType() == raster.Palette {
					n = 3 // palette sBIT covers the RGB entries
				}
				payload := make([]byte, n)
				for i := range payload {
					payload[i] = sbit
				}
				m.SetChunk(format.TypeSBIT, payload)
				return true
			}
			if !add {
				m.DropChunk()
				return true
			}
			return false
		},
	}
}

// NewTextModification inserts a tEXt chunk ahead of the image data. The
// keyword and value are encoded as Latin-1, as the container requires; it
// fails if either contains an unrepresentable rune, or if the keyword is
// empty or longer than the 79-byte limit.
func NewTextModification(keyword, value string) (*Modification, error) {
	enc := charmap.ISO8859_1.NewEncoder()
	kw, err := enc.Bytes([]byte(keyword))
	if err != nil {
		return nil, fmt.Errorf("modifier: tEXt keyword %q: %w", keyword, err)
	}
	if len(kw) == 0 || len(kw) > 79 {
		return nil, fmt.Errorf("modifier: tEXt keyword %q: bad length %d", keyword, len(kw))
	}
	text, err := enc.Bytes([]byte(value))
	if err != nil {
		return nil, fmt.Errorf("modifier: tEXt value %q: %w", value, err)
	}

	payload := make([]byte, 0, len(kw)+1+len(text))
	payload = append(payload, kw...)
	payload = append(payload, 0)
	payload = append(payload, text...)

	return &Modification{
		Type:   format.TypeTEXT,
		Anchor: format.TypeIDAT,
		Apply: func(m *Modifier, _ *Modification, _ bool) bool {
			m.SetChunk(format.TypeTEXT, payload)
			return true
		},
	}, nil
}

// NewDeleteModification removes every chunk of the given type from the
// stream.
func NewDeleteModification(t format.ChunkType) *Modification {
	return &Modification{Type: t, Delete: true}
}
