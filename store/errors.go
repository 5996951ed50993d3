package store

import "errors"

var (
	// ErrInvalidState indicates a write or read call outside an open session.
	ErrInvalidState = errors.New("store: no session open")
	// ErrFileNotFound indicates no stored file matches the requested ID.
	ErrFileNotFound = errors.New("store: file not found")
	// ErrReadPastEnd indicates a read of more bytes than the file holds.
	ErrReadPastEnd = errors.New("store: read past end of file")
	// ErrCursorLost indicates the read cursor's page bookkeeping went
	// inconsistent. This is a programmer error and is always fatal.
	ErrCursorLost = errors.New("store: read cursor lost")
)
