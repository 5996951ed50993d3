package harness

// Noise is a deterministic 9-bit feedback generator producing awkward slice
// sizes for the incremental read path. Feeding a decoder slices of 1..511
// bytes guarantees chunk framing and signature boundaries land mid-slice.
type Noise struct {
	state uint32
}

// NewNoise seeds a generator. A zero seed is replaced so the register never
// sticks at zero.
func NewNoise(seed uint32) *Noise {
	if seed == 0 {
		seed = 0x9f41
	}
	return &Noise{state: seed}
}

// Next returns the next size in 1..511.
func (n *Noise) Next() int {
	n.state = n.state<<9 | ((n.state ^ n.state>>4) & 0x1ff)
	size := int(n.state & 0x1ff)
	if size == 0 {
		size = 1
	}
	return size
}
