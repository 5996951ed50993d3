package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The guard-mark sequence must be identical on every run and platform.
func TestMarkSequenceDeterministic(t *testing.T) {
	m := NewMarkSource()
	assert.Equal(t, Mark{0xcc, 0x7d, 0xa7, 0xfb}, m.Next())
	assert.Equal(t, Mark{0xbc, 0x41, 0x68, 0x39}, m.Next())
	assert.Equal(t, Mark{0xc8, 0xa3, 0x28, 0x96}, m.Next())

	// Independent sources produce the same sequence.
	a, b := NewMarkSource(), NewMarkSource()
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Next(), b.Next(), "mark %d", i)
	}
}

func TestAllocateFreeBalance(t *testing.T) {
	p := New("test", NewMarkSource())

	var allocs []*Allocation
	for _, n := range []int{10, 200, 0, 37} {
		a, err := p.Allocate(n)
		require.NoError(t, err)
		require.Len(t, a.Bytes(), n)
		allocs = append(allocs, a)
	}

	st := p.Stats()
	assert.Equal(t, 247, st.Current)
	assert.Equal(t, 247, st.Peak)
	assert.Equal(t, 247, st.Total)
	assert.Equal(t, 200, st.MaxSingle)

	for _, a := range allocs {
		require.NoError(t, p.Free(a))
	}
	assert.Equal(t, 0, p.Stats().Current)

	leaked := p.Reset(nil)
	assert.Equal(t, 0, leaked)
	assert.Equal(t, 247, p.MaxStats().Total)
	assert.Equal(t, Stats{}, p.Stats())
}

func TestFreeUnknownHandle(t *testing.T) {
	p := New("test", NewMarkSource())
	other := New("other", NewMarkSource())

	a, err := other.Allocate(8)
	require.NoError(t, err)
	assert.ErrorIs(t, p.Free(a), ErrBadFree)

	assert.ErrorIs(t, p.Free(nil), ErrBadFree)

	b, err := p.Allocate(8)
	require.NoError(t, err)
	require.NoError(t, p.Free(b))
	assert.ErrorIs(t, p.Free(b), ErrBadFree, "double free")
}

func TestCorruptionDetection(t *testing.T) {
	t.Run("head", func(t *testing.T) {
		p := New("test", NewMarkSource())
		a, err := p.Allocate(16)
		require.NoError(t, err)
		a.backing[0] ^= 0xff
		assert.ErrorIs(t, p.Free(a), ErrCorruptHead)
		assert.Equal(t, 0, p.Stats().Current, "bytes reclaimed despite corruption")
	})

	t.Run("tail", func(t *testing.T) {
		p := New("test", NewMarkSource())
		a, err := p.Allocate(16)
		require.NoError(t, err)
		a.backing[MarkSize+16+1] ^= 0xff
		assert.ErrorIs(t, p.Free(a), ErrCorruptTail)
		assert.Equal(t, 0, p.Stats().Current)
	})

	t.Run("owner", func(t *testing.T) {
		p := New("test", NewMarkSource())
		a, err := p.Allocate(16)
		require.NoError(t, err)
		a.pool = New("imposter", NewMarkSource())
		assert.ErrorIs(t, p.Free(a), ErrCorruptOwner)
	})

	t.Run("size", func(t *testing.T) {
		p := New("test", NewMarkSource())
		a, err := p.Allocate(16)
		require.NoError(t, err)
		// A stored size above the run's observed maximum cannot be genuine.
		a.size = 17
		assert.ErrorIs(t, p.Free(a), ErrCorruptSize)
	})
}

func TestResetReportsLeaks(t *testing.T) {
	p := New("read", NewMarkSource())
	_, err := p.Allocate(100)
	require.NoError(t, err)
	_, err = p.Allocate(50)
	require.NoError(t, err)

	var reports []error
	leaked := p.Reset(func(err error) { reports = append(reports, err) })
	assert.Equal(t, 2, leaked)
	require.Len(t, reports, 2)
	for _, err := range reports {
		assert.ErrorIs(t, err, ErrLeaked)
	}
	assert.Equal(t, 0, p.Stats().Current)
}

// Reset must change the epoch mark, so records from a previous epoch fail
// the guard check.
func TestResetRotatesMark(t *testing.T) {
	p := New("test", NewMarkSource())
	before := p.Mark()

	a, err := p.Allocate(4)
	require.NoError(t, err)
	stale := *a // keep a copy referencing the old backing

	p.Reset(nil)
	assert.NotEqual(t, before, p.Mark())

	// Re-link the stale record to simulate a use-after-epoch free.
	stale.prev = nil
	p.live = &stale
	p.run.MaxSingle = 4
	assert.ErrorIs(t, p.Free(&stale), ErrCorruptHead)
}

func TestAllocationLimit(t *testing.T) {
	p := New("test", NewMarkSource())
	p.Limit = 100

	a, err := p.Allocate(80)
	require.NoError(t, err)
	_, err = p.Allocate(40)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	require.NoError(t, p.Free(a))
	_, err = p.Allocate(40)
	assert.NoError(t, err)

	_, err = p.Allocate(-1)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestLIFOFreeOrder(t *testing.T) {
	p := New("test", NewMarkSource())
	var allocs []*Allocation
	for i := 0; i < 10; i++ {
		a, err := p.Allocate(i)
		require.NoError(t, err)
		allocs = append(allocs, a)
	}
	// Free out of order; every handle must still be found.
	for _, i := range []int{5, 0, 9, 3, 1, 7, 2, 8, 6, 4} {
		require.NoError(t, p.Free(allocs[i]))
	}
	assert.Equal(t, 0, p.Reset(nil))
}
