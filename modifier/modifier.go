// Package modifier rewrites a chunked stream as it is read out of a store.
//
// A Modifier wraps an open store read cursor and serves the stream through a
// small working buffer, one chunk at a time. Registered Modifications can
// rewrite chunks in place, delete them, or synthesize new chunks immediately
// ahead of the structural PLTE/IDAT/IEND markers; every emitted chunk leaves
// the pipeline with a correct trailing checksum. Chunks too large for the
// working buffer pass through byte-for-byte, unmodified.
package modifier

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pngkit/pngkit/internal/buf"
	"github.com/pngkit/pngkit/internal/format"
	"github.com/pngkit/pngkit/raster"
	"github.com/pngkit/pngkit/store"
)

// BufferSize bounds the chunks that can be modified: a chunk must fit in the
// working buffer, framing included, to be offered to any Modification.
const BufferSize = 1024

type state int

const (
	stateStart         state = iota // expect the file signature
	stateHaveSignature              // expect the IHDR chunk
	stateSteady                     // general chunk loop
)

// Modifier streams a stored file through registered Modifications. It
// implements io.Reader; with no modifications registered it reproduces the
// stored bytes exactly.
type Modifier struct {
	src  *store.Store
	mods []*Modification

	state      state
	bitDepth   uint8
	colourType raster.ColourType

	// A structural chunk's header is staged here while a synthesized chunk
	// goes out ahead of it.
	pendingLen  uint32
	pendingType format.ChunkType

	flush int // bytes of an oversized chunk still to stream through

	buf   [BufferSize]byte
	count int // bytes staged in buf
	pos   int // read position in buf
}

// New returns a modifier reading from the store's open read cursor.
func New(src *store.Store) (*Modifier, error) {
	if src.Current() == nil {
		return nil, ErrNoCursor
	}
	return &Modifier{src: src}, nil
}

// Register installs mod. Modifications registered later are offered chunks
// first.
func (m *Modifier) Register(mod *Modification) {
	m.mods = append(m.mods, nil)
	copy(m.mods[1:], m.mods)
	m.mods[0] = mod
}

// Reset rewinds the underlying cursor, drops all registered modifications
// and returns the modifier to its initial state, ready for another read of
// the same file.
func (m *Modifier) Reset() error {
	if err := m.src.Rewind(); err != nil {
		return err
	}
	m.mods = nil
	m.state = stateStart
	m.bitDepth = 0
	m.colourType = 0
	m.pendingLen, m.pendingType = 0, 0
	m.flush = 0
	m.count, m.pos = 0, 0
	return nil
}

// BitDepth returns the stream's bit depth, cached from the (possibly
// rewritten) IHDR. Zero before the IHDR has passed.
func (m *Modifier) BitDepth() uint8 { return m.bitDepth }

// ColourType returns the stream's colour type, cached from the IHDR.
func (m *Modifier) ColourType() raster.ColourType { return m.colourType }

// Avail returns the bytes still to be served, counting both the staged
// buffer and the unread remainder of the store. Deletions can shrink the
// stream after this is called, insertions can grow it; the value is an
// upper bound used by incremental feeders sizing their next slice.
func (m *Modifier) Avail() int {
	return m.count - m.pos + m.flush + m.src.Avail()
}

// SetChunk replaces the staged chunk with a synthesized one. For use by
// Modification.Apply; the checksum is filled in when the buffer is
// committed. The payload must leave room for framing within BufferSize.
func (m *Modifier) SetChunk(t format.ChunkType, payload []byte) {
	format.PutChunkHeader(m.buf[:], format.ChunkHeader{
		Length: uint32(len(payload)),
		Type:   t,
	})
	copy(m.buf[format.ChunkHeaderSize:], payload)
	m.count = len(payload) + format.ChunkOverhead
	m.pos = 0
}

// Payload returns the staged chunk's payload for in-place edits. Resizing
// requires SetChunk.
func (m *Modifier) Payload() []byte {
	n := buf.U32BE(m.buf[:])
	return m.buf[format.ChunkHeaderSize : format.ChunkHeaderSize+n]
}

// DropChunk discards the staged chunk so nothing is emitted for it.
func (m *Modifier) DropChunk() {
	m.count, m.pos = 0, 0
}

// commit recomputes the staged chunk's checksum and rewinds the buffer for
// emission.
func (m *Modifier) commit() {
	n := int(buf.U32BE(m.buf[:])) + format.ChunkOverhead
	// The length field was written by this package or by SetChunk, so it
	// cannot exceed the buffer.
	_ = format.UpdateCRC(m.buf[:n])
	m.count = n
	m.pos = 0
}

// Read implements io.Reader. Bytes are served from the working buffer except
// while an oversized chunk streams through directly. io.EOF is reported once
// the store is exhausted and the buffer is drained.
func (m *Modifier) Read(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		// Staged bytes go out first.
		if m.pos < m.count {
			n := copy(p, m.buf[m.pos:m.count])
			m.pos += n
			p = p[n:]
			total += n
			continue
		}

		// Then the remainder of an oversized chunk, straight through.
		if m.flush > 0 {
			n := m.flush
			if n > len(p) {
				n = len(p)
			}
			if err := m.src.ReadFull(p[:n]); err != nil {
				return total, fmt.Errorf("modifier: flush: %w", err)
			}
			m.flush -= n
			p = p[n:]
			total += n
			continue
		}

		if err := m.step(); err != nil {
			if err == io.EOF && total > 0 {
				return total, nil
			}
			return total, err
		}
	}
	return total, nil
}

// step advances the state machine by one unit of output: the signature, the
// IHDR, or one chunk (possibly staging a pending header for the next call).
func (m *Modifier) step() error {
	switch m.state {
	case stateStart:
		if err := m.src.ReadFull(m.buf[:format.SignatureSize]); err != nil {
			return fmt.Errorf("modifier: signature: %w", err)
		}
		if !bytes.Equal(m.buf[:format.SignatureSize], format.Signature) {
			return ErrSignature
		}
		m.count, m.pos = format.SignatureSize, 0
		m.state = stateHaveSignature
		return nil

	case stateHaveSignature:
		const ihdrSize = format.IHDRLength + format.ChunkOverhead
		if err := m.src.ReadFull(m.buf[:ihdrSize]); err != nil {
			return fmt.Errorf("modifier: IHDR: %w", err)
		}
		h, err := format.ParseChunkHeader(m.buf[:])
		if err != nil || h.Length != format.IHDRLength || h.Type != format.TypeIHDR {
			return ErrHeader
		}
		m.count, m.pos = ihdrSize, 0

		// IHDR may be rewritten but never deleted or inserted.
		for _, mod := range m.mods {
			if mod.Type == format.TypeIHDR && !mod.Delete && mod.Apply != nil &&
				mod.Apply(m, mod, false) {
				mod.Modified = true
				m.commit()
			}
		}

		// Cache image properties from the IHDR as emitted.
		m.bitDepth = m.buf[format.ChunkHeaderSize+8]
		m.colourType = raster.ColourType(m.buf[format.ChunkHeaderSize+9])
		m.state = stateSteady
		m.flush = 0
		return nil
	}

	// Steady state. A header staged by an earlier insertion takes priority
	// over reading a new one.
	if m.pendingType != 0 {
		format.PutChunkHeader(m.buf[:], format.ChunkHeader{
			Length: m.pendingLen,
			Type:   m.pendingType,
		})
		m.pendingLen, m.pendingType = 0, 0
	} else {
		if m.src.Avail() == 0 {
			return io.EOF
		}
		if err := m.src.ReadFull(m.buf[:format.ChunkHeaderSize]); err != nil {
			return fmt.Errorf("modifier: chunk header: %w", err)
		}
	}
	m.count, m.pos = format.ChunkHeaderSize, 0

	h, _ := format.ParseChunkHeader(m.buf[:])

	// The structural markers are where new chunks can be inserted. At most
	// one insertion fires per boundary; the marker's own header is staged
	// as pending and handled on the next step.
	if h.Type == format.TypePLTE || h.Type == format.TypeIDAT || h.Type == format.TypeIEND {
		for _, mod := range m.mods {
			if mod.Delete || mod.Apply == nil || mod.Modified || mod.Added {
				continue
			}
			if mod.Anchor != h.Type &&
				!(mod.Anchor == format.TypePLTE && h.Type == format.TypeIDAT) {
				continue
			}
			// One offer only, whatever Apply decides.
			mod.Added = true
			if !mod.Apply(m, mod, true) {
				continue
			}
			if m.count > 0 {
				m.commit()
			} else {
				m.pos = 0
				mod.Removed = true
			}
			m.pendingLen = h.Length
			m.pendingType = h.Type
			return nil
		}
	}

	// A chunk must fit in the working buffer, framing included, to be
	// offered for modification.
	if int(h.Length)+format.ChunkOverhead <= len(m.buf) {
		body := m.buf[m.count : int(h.Length)+format.ChunkOverhead]
		if err := m.src.ReadFull(body); err != nil {
			return fmt.Errorf("modifier: chunk %s body: %w", h.Type, err)
		}
		m.count = int(h.Length) + format.ChunkOverhead

		for _, mod := range m.mods {
			if mod.Type != h.Type {
				continue
			}
			if mod.Delete {
				m.DropChunk()
				mod.Removed = true
				break
			}
			if mod.Apply != nil && mod.Apply(m, mod, false) {
				mod.Modified = true
				if m.count == 0 {
					// Apply dropped the chunk.
					m.pos = 0
					break
				}
				m.commit()
			}
		}
		return nil
	}

	// Too big to stage: the header goes out from the buffer, the body
	// streams through untouched.
	m.flush = int(h.Length) + format.ChunkOverhead - m.count
	return nil
}
