package pngtest

import "errors"

var (
	// ErrMetadata reports image metadata the codec cannot encode or was
	// asked to encode in an invalid combination.
	ErrMetadata = errors.New("pngtest: invalid metadata")
	// ErrState reports an operation called out of order.
	ErrState = errors.New("pngtest: operation out of order")
	// ErrFormat reports a malformed stream.
	ErrFormat = errors.New("pngtest: malformed stream")
	// ErrFilter reports a row filter type this codec does not produce.
	ErrFilter = errors.New("pngtest: unsupported row filter")
)
