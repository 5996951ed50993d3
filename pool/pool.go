// Package pool implements a guarded allocator used to instrument the memory
// behavior of the codec under test.
//
// Every allocation the codec receives is tracked in a live-record list and
// flanked by guard marks: the pool's current 4-byte epoch mark is written
// immediately before and after the payload inside the backing array. At free
// time both marks, the record's owning pool and its recorded size are
// validated; a mismatch is reported as corruption but the record is
// reclaimed anyway so cleanup can continue. Reset reports whatever is still
// live as leaked, folds the run's counters into cumulative maxima and draws
// a fresh epoch mark.
package pool

import (
	"bytes"
	"fmt"
)

// Allocation is the handle for one tracked block. The payload returned by
// Bytes aliases the middle of the backing array; the guard bytes around it
// belong to the pool.
type Allocation struct {
	pool    *Pool
	size    int
	backing []byte
	prev    *Allocation // LIFO live list
}

// Bytes returns the payload.
func (a *Allocation) Bytes() []byte {
	return a.backing[MarkSize : MarkSize+a.size]
}

// Size returns the payload length in bytes.
func (a *Allocation) Size() int { return a.size }

// Stats are the allocation counters for one run.
type Stats struct {
	MaxSingle int // largest single allocation
	Current   int // bytes currently allocated
	Peak      int // highest value of Current
	Total     int // sum of all allocation sizes
}

// Pool tracks live allocations and per-run counters.
type Pool struct {
	// Name labels the pool in diagnostics ("read", "write").
	Name string

	// Limit, when non-zero, bounds Current; an allocation that would push
	// past it fails with ErrOutOfMemory. This simulates allocation failure,
	// which cannot be observed reliably in a garbage-collected runtime.
	Limit int

	marks *MarkSource
	mark  Mark
	live  *Allocation

	run Stats
	max Stats // cumulative maxima across runs
}

// New returns a pool drawing epoch marks from marks.
func New(name string, marks *MarkSource) *Pool {
	p := &Pool{Name: name, marks: marks}
	p.mark = marks.Next()
	return p
}

// Mark returns the current epoch mark.
func (p *Pool) Mark() Mark { return p.mark }

// Stats returns the current run's counters.
func (p *Pool) Stats() Stats { return p.run }

// MaxStats returns the cumulative maxima folded in by Reset.
func (p *Pool) MaxStats() Stats { return p.max }

// Allocate returns a guarded block of n bytes.
func (p *Pool) Allocate(n int) (*Allocation, error) {
	if n < 0 {
		return nil, fmt.Errorf("allocate %d: %w", n, ErrOutOfMemory)
	}
	if p.Limit > 0 && p.run.Current+n > p.Limit {
		return nil, fmt.Errorf("allocate %d (limit %d): %w", n, p.Limit, ErrOutOfMemory)
	}

	a := &Allocation{
		pool:    p,
		size:    n,
		backing: make([]byte, MarkSize+n+MarkSize),
		prev:    p.live,
	}
	copy(a.backing[:MarkSize], p.mark[:])
	copy(a.backing[MarkSize+n:], p.mark[:])
	p.live = a

	if n > p.run.MaxSingle {
		p.run.MaxSingle = n
	}
	p.run.Current += n
	if p.run.Current > p.run.Peak {
		p.run.Peak = p.run.Current
	}
	p.run.Total += n
	return a, nil
}

// validate checks a record's ownership, guard marks and size heuristic.
// The size check compares against the largest allocation seen this run: a
// stored size above that cannot have been written by this pool.
func (p *Pool) validate(a *Allocation) error {
	switch {
	case a.pool != p:
		return fmt.Errorf("%s pool: %w", p.Name, ErrCorruptOwner)
	case !bytes.Equal(a.backing[:MarkSize], p.mark[:]):
		return fmt.Errorf("%s pool: %w", p.Name, ErrCorruptHead)
	case a.size > p.run.MaxSingle:
		return fmt.Errorf("%s pool: size %d > max %d: %w",
			p.Name, a.size, p.run.MaxSingle, ErrCorruptSize)
	case !bytes.Equal(a.backing[MarkSize+a.size:], p.mark[:]):
		return fmt.Errorf("%s pool: %w", p.Name, ErrCorruptTail)
	}
	return nil
}

// unlink removes a from the live list, reporting whether it was present.
func (p *Pool) unlink(a *Allocation) bool {
	for link := &p.live; *link != nil; link = &(*link).prev {
		if *link == a {
			*link = a.prev
			a.prev = nil
			return true
		}
	}
	return false
}

// Free releases a. An unknown handle fails with ErrBadFree and nothing else
// happens. A known handle is always reclaimed — the current counter drops
// even when validation reports corruption, so teardown can finish — and the
// validation error, if any, is returned for the caller to report.
func (p *Pool) Free(a *Allocation) error {
	if a == nil || !p.unlink(a) {
		return fmt.Errorf("%s pool: %w", p.Name, ErrBadFree)
	}
	err := p.validate(a)
	p.run.Current -= a.size
	return err
}

// Reset reports every record still live as leaked (via report, which may be
// nil), reclaims them, folds the run counters into the cumulative maxima,
// zeroes the run counters and draws a new epoch mark. It returns the number
// of leaked records.
func (p *Pool) Reset(report func(error)) int {
	leaked := 0
	for p.live != nil {
		a := p.live
		p.live = a.prev
		leaked++
		if report != nil {
			report(fmt.Errorf("%s pool: %d bytes: %w", p.Name, a.size, ErrLeaked))
			if err := p.validate(a); err != nil {
				report(err)
			}
		}
		p.run.Current -= a.size
	}

	if p.run.MaxSingle > p.max.MaxSingle {
		p.max.MaxSingle = p.run.MaxSingle
	}
	if p.run.Peak > p.max.Peak {
		p.max.Peak = p.run.Peak
	}
	if p.run.Total > p.max.Total {
		p.max.Total = p.run.Total
	}
	balanced := p.run.Current == 0
	p.run = Stats{}
	p.mark = p.marks.Next()

	if !balanced && report != nil {
		report(fmt.Errorf("%s pool: memory counter mismatch (internal error)", p.Name))
	}
	return leaked
}
