package pool

import "errors"

var (
	// ErrOutOfMemory indicates the pool's configured allocation limit was hit.
	ErrOutOfMemory = errors.New("pool: out of memory")
	// ErrBadFree indicates a free of a handle the pool never issued, or a
	// double free.
	ErrBadFree = errors.New("pool: bad pointer to free")
	// ErrCorruptOwner indicates a record claiming to belong to another pool.
	ErrCorruptOwner = errors.New("pool: memory corrupted (pool)")
	// ErrCorruptHead indicates a damaged guard mark before the payload.
	ErrCorruptHead = errors.New("pool: memory corrupted (start)")
	// ErrCorruptSize indicates a stored size larger than any allocation the
	// pool has handed out this run.
	ErrCorruptSize = errors.New("pool: memory corrupted (size)")
	// ErrCorruptTail indicates a damaged guard mark after the payload.
	ErrCorruptTail = errors.New("pool: memory corrupted (end)")
	// ErrLeaked reports a record still live at reset time.
	ErrLeaked = errors.New("pool: memory lost")
)
