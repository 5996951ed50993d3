package format

import "errors"

var (
	// ErrSignatureMismatch indicates a stream had an unexpected magic.
	ErrSignatureMismatch = errors.New("format: signature mismatch")
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrBadIHDR indicates a malformed header chunk.
	ErrBadIHDR = errors.New("format: invalid IHDR")
	// ErrBadCRC indicates a chunk whose stored checksum does not match its contents.
	ErrBadCRC = errors.New("format: chunk CRC mismatch")
)
