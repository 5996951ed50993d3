package store

import (
	"github.com/zeebo/blake3"

	"github.com/pngkit/pngkit/raster"
)

// PageSize is the fixed capacity of one page. Serialized streams are split
// into pages of this size so that reads exercise buffer-boundary handling in
// the consumer; the odd size guarantees the boundaries never line up with
// chunk framing.
const PageSize = 500

// MaxNameSize bounds stored file names.
const MaxNameSize = 64

// File is an immutable named byte sequence produced by finalizing a write
// session. Pages are held in order; all pages are full except the last,
// which holds lastCount bytes.
type File struct {
	name      string
	id        raster.FormatID
	pages     [][]byte
	lastCount int
	size      int
	digest    [32]byte
}

// Name returns the name given at finalize time, truncated to MaxNameSize.
func (f *File) Name() string { return f.name }

// ID returns the format ID the file was stored under.
func (f *File) ID() raster.FormatID { return f.id }

// Size returns the total byte count.
func (f *File) Size() int { return f.size }

// Digest returns the BLAKE3 hash of the file's contents, computed once at
// finalize time. It gives readers a whole-stream identity check: the
// progressive feed verifies the bytes it pushed against this digest.
func (f *File) Digest() [32]byte { return f.digest }

// Bytes assembles and returns a copy of the file's contents.
func (f *File) Bytes() []byte {
	out := make([]byte, 0, f.size)
	for i, p := range f.pages {
		if i == len(f.pages)-1 {
			p = p[:f.lastCount]
		}
		out = append(out, p...)
	}
	return out
}

// pageLen returns the valid byte count of page i.
func (f *File) pageLen(i int) int {
	if i == len(f.pages)-1 {
		return f.lastCount
	}
	return PageSize
}

func newFile(name string, id raster.FormatID, pages [][]byte, lastCount int) *File {
	if len(name) > MaxNameSize {
		name = name[:MaxNameSize]
	}
	if len(pages) == 0 {
		pages = [][]byte{{}}
		lastCount = 0
	}
	f := &File{
		name:      name,
		id:        id,
		pages:     pages,
		lastCount: lastCount,
		size:      (len(pages)-1)*PageSize + lastCount,
	}

	h := blake3.New()
	for i, p := range pages {
		if i == len(pages)-1 {
			p = p[:lastCount]
		}
		h.Write(p)
	}
	h.Sum(f.digest[:0])
	return f
}
