package modifier

import "errors"

var (
	// ErrSignature reports a stream that does not open with the PNG signature.
	ErrSignature = errors.New("modifier: invalid file signature")
	// ErrHeader reports a stream whose first chunk is not a well-formed IHDR.
	ErrHeader = errors.New("modifier: malformed IHDR chunk")
	// ErrNoCursor reports a modifier built over a store with no open read
	// cursor.
	ErrNoCursor = errors.New("modifier: no file open for read")
)
