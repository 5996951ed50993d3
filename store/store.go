// Package store emulates sequential file I/O over in-memory paged buffers.
//
// The harness writes a serialized image through a Store, finalizes the bytes
// into an immutable named File tagged with its format ID, and later opens the
// File for reading — either byte-at-a-time across page boundaries or a page
// at a time for incremental consumers. Nothing ever touches real storage.
//
// Later files shadow earlier ones stored under the same ID, so a test can
// regenerate an image without tearing the whole store down.
package store

import (
	"fmt"
	"io"

	"github.com/pngkit/pngkit/raster"
)

// Store holds finalized files and at most one open write session and one
// open read cursor. It is not safe for concurrent use; the harness is
// single-threaded by design.
type Store struct {
	files []*File // most recently finalized last

	// Write session.
	writing   bool
	wname     string
	wpages    [][]byte
	wbuf      []byte
	wbufCount int

	// Read cursor.
	current *File
	pageIdx int
	readPos int
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// BeginWrite opens a write session under the given name (used only for
// diagnostics). It fails if a session is already open.
func (s *Store) BeginWrite(name string) error {
	if s.writing {
		return fmt.Errorf("begin write %q: session already open: %w", name, ErrInvalidState)
	}
	s.writing = true
	s.wname = name
	s.wpages = nil
	s.wbuf = make([]byte, PageSize)
	s.wbufCount = 0
	return nil
}

// Write appends p to the open write session, sealing full pages as it goes.
// It implements io.Writer.
func (s *Store) Write(p []byte) (int, error) {
	if !s.writing {
		return 0, fmt.Errorf("write: %w", ErrInvalidState)
	}
	written := len(p)
	for len(p) > 0 {
		if s.wbufCount == PageSize {
			s.wpages = append(s.wpages, s.wbuf)
			s.wbuf = make([]byte, PageSize)
			s.wbufCount = 0
		}
		n := copy(s.wbuf[s.wbufCount:], p)
		s.wbufCount += n
		p = p[n:]
	}
	return written, nil
}

// Finalize seals the open write session into an immutable File registered
// under id, shadowing any earlier file with the same id. The write session
// is closed whether or not an error occurs.
func (s *Store) Finalize(name string, id raster.FormatID) (*File, error) {
	if !s.writing {
		return nil, fmt.Errorf("finalize %q: %w", name, ErrInvalidState)
	}
	pages := append(s.wpages, s.wbuf)
	f := newFile(name, id, pages, s.wbufCount)
	s.files = append(s.files, f)
	s.discardWrite()
	return f, nil
}

// DiscardWrite abandons the open write session, if any, without storing a
// file. Used when a write test fails partway.
func (s *Store) DiscardWrite() {
	s.discardWrite()
}

func (s *Store) discardWrite() {
	s.writing = false
	s.wname = ""
	s.wpages = nil
	s.wbuf = nil
	s.wbufCount = 0
}

// WriteName returns the name of the open write session, or "".
func (s *Store) WriteName() string { return s.wname }

// Lookup returns the file currently registered under id, without touching
// the read cursor. Later files shadow earlier ones.
func (s *Store) Lookup(id raster.FormatID) (*File, error) {
	for i := len(s.files) - 1; i >= 0; i-- {
		if s.files[i].id == id {
			return s.files[i], nil
		}
	}
	return nil, fmt.Errorf("lookup %s: %w", id.Name(), ErrFileNotFound)
}

// OpenForRead positions the read cursor at the start of the file registered
// under id.
func (s *Store) OpenForRead(id raster.FormatID) (*File, error) {
	f, err := s.Lookup(id)
	if err != nil {
		return nil, err
	}
	s.current = f
	s.pageIdx = 0
	s.readPos = 0
	return f, nil
}

// Current returns the file under the read cursor, or nil.
func (s *Store) Current() *File { return s.current }

// Rewind moves the read cursor back to the start of the current file.
func (s *Store) Rewind() error {
	if s.current == nil {
		return fmt.Errorf("rewind: %w", ErrInvalidState)
	}
	s.pageIdx = 0
	s.readPos = 0
	return nil
}

// CloseRead drops the read cursor.
func (s *Store) CloseRead() {
	s.current = nil
	s.pageIdx = 0
	s.readPos = 0
}

// Avail returns the bytes remaining under the read cursor.
func (s *Store) Avail() int {
	if s.current == nil {
		return 0
	}
	total := 0
	for i := s.pageIdx; i < len(s.current.pages); i++ {
		total += s.current.pageLen(i)
	}
	return total - s.readPos
}

// ReadFull copies exactly len(p) bytes from the cursor, crossing page
// boundaries as needed. It fails with ErrReadPastEnd when fewer bytes remain;
// the cursor position is unspecified after a failed read.
func (s *Store) ReadFull(p []byte) error {
	if s.current == nil {
		return fmt.Errorf("read: %w", ErrInvalidState)
	}
	for len(p) > 0 {
		if s.pageIdx >= len(s.current.pages) {
			return fmt.Errorf("read %q: %w", s.current.name, ErrReadPastEnd)
		}
		page := s.current.pages[s.pageIdx][:s.current.pageLen(s.pageIdx)]
		n := copy(p, page[s.readPos:])
		if n == 0 {
			if ok, err := s.NextPage(); err != nil {
				return err
			} else if !ok {
				return fmt.Errorf("read %q: %w", s.current.name, ErrReadPastEnd)
			}
			continue
		}
		s.readPos += n
		p = p[n:]
	}
	return nil
}

// Read implements io.Reader: it fills p as far as the file allows and
// reports io.EOF once the cursor is exhausted.
func (s *Store) Read(p []byte) (int, error) {
	if s.current == nil {
		return 0, fmt.Errorf("read: %w", ErrInvalidState)
	}
	avail := s.Avail()
	if avail == 0 {
		return 0, io.EOF
	}
	if len(p) > avail {
		p = p[:avail]
	}
	if err := s.ReadFull(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// PageBytes returns the unread remainder of the current page without
// advancing the cursor. Incremental consumers take a page at a time and then
// call NextPage.
func (s *Store) PageBytes() ([]byte, error) {
	if s.current == nil {
		return nil, fmt.Errorf("page bytes: %w", ErrInvalidState)
	}
	if s.pageIdx >= len(s.current.pages) {
		return nil, nil
	}
	page := s.current.pages[s.pageIdx][:s.current.pageLen(s.pageIdx)]
	if s.readPos > len(page) {
		return nil, fmt.Errorf("page bytes: position %d beyond page: %w", s.readPos, ErrCursorLost)
	}
	return page[s.readPos:], nil
}

// NextPage advances the cursor to the start of the following page. It
// returns false at end of file and fails with ErrCursorLost if the cursor's
// bookkeeping is inconsistent.
func (s *Store) NextPage() (bool, error) {
	if s.current == nil {
		return false, fmt.Errorf("next page: %w", ErrInvalidState)
	}
	if s.pageIdx > len(s.current.pages) {
		return false, fmt.Errorf("next page: index %d of %d: %w",
			s.pageIdx, len(s.current.pages), ErrCursorLost)
	}
	if s.pageIdx == len(s.current.pages) {
		return false, nil
	}
	s.pageIdx++
	s.readPos = 0
	return s.pageIdx < len(s.current.pages), nil
}

// Files returns the number of stored files, counting shadowed ones.
func (s *Store) Files() int { return len(s.files) }

// Close tears the store down, dropping all files and sessions.
func (s *Store) Close() {
	s.files = nil
	s.discardWrite()
	s.CloseRead()
}
