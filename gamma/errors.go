package gamma

import "errors"

// ErrOutOfWindow reports a decoded sample outside every acceptance window
// the tolerances allow.
var ErrOutOfWindow = errors.New("gamma: sample outside tolerance window")
