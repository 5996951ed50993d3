package pool

// MarkSize is the width of a guard mark in bytes.
const MarkSize = 4

// Mark is one guard value. A fresh mark is drawn for every pool epoch so a
// stale free from a previous run cannot present valid guards by accident.
type Mark [MarkSize]byte

// MarkSource generates the deterministic guard-mark sequence. It is a 33-bit
// linear feedback shift register: the next bit of the sequence is bit 33 XOR
// bit 20. The state is split into a 32-bit low word and a single high bit,
// and eight new bits are produced per output byte. The sequence is identical
// on every platform, which keeps corruption reports reproducible.
type MarkSource struct {
	u0 uint32
	u1 uint32
}

// NewMarkSource returns a source at the documented initial state.
func NewMarkSource() *MarkSource {
	return &MarkSource{u0: 0x12345678, u1: 1}
}

// Next draws the next 4-byte mark.
func (m *MarkSource) Next() Mark {
	var mark Mark
	for i := range mark {
		u := ((m.u0 >> 12) ^ ((m.u1 << 7) | (m.u0 >> 25))) & 0xff
		m.u1 = m.u1<<8 | m.u0>>24
		m.u0 = m.u0<<8 | u
		mark[i] = byte(u)
	}
	return mark
}
