// File: internal/fanout/ring.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lock-free, single-process MPMC ring buffer used as each fan-out
// worker's fast-path inbox. Adapted from the teacher's
// core/concurrency/ring.go (itself duplicated verbatim in
// internal/concurrency/ring.go in the original tree; this module keeps
// one copy, here, instead of two).

package fanout

import (
	"sync/atomic"

	"github.com/momentics/shmqueue/api"
)

type cell[T any] struct {
	sequence atomic.Uint64
	data     T
}

// ringBuffer is a bounded, lock-free, power-of-two-sized circular buffer.
type ringBuffer[T any] struct {
	head uint64
	_    [64]byte
	tail uint64
	_    [64]byte
	mask uint64
	cells []cell[T]
}

// newRingBuffer allocates a ring buffer of power-of-two size.
func newRingBuffer[T any](size uint64) *ringBuffer[T] {
	if size < 2 {
		size = 2
	}
	if size&(size-1) != 0 {
		n := size - 1
		n |= n >> 1
		n |= n >> 2
		n |= n >> 4
		n |= n >> 8
		n |= n >> 16
		n |= n >> 32
		size = n + 1
	}
	r := &ringBuffer[T]{
		mask:  size - 1,
		cells: make([]cell[T], size),
	}
	for i := range r.cells {
		r.cells[i].sequence.Store(uint64(i))
	}
	return r
}

var _ api.Ring[any] = (*ringBuffer[any])(nil)

// Enqueue adds item; returns false if full. Satisfies api.Ring[T].
func (r *ringBuffer[T]) Enqueue(item T) bool {
	for {
		tail := atomic.LoadUint64(&r.tail)
		index := tail & r.mask
		c := &r.cells[index]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(tail)

		if dif == 0 {
			if atomic.CompareAndSwapUint64(&r.tail, tail, tail+1) {
				c.data = item
				c.sequence.Store(tail + 1)
				return true
			}
		} else if dif < 0 {
			return false
		}
	}
}

// Dequeue removes and returns item; ok is false if empty. Satisfies
// api.Ring[T].
func (r *ringBuffer[T]) Dequeue() (item T, ok bool) {
	for {
		head := atomic.LoadUint64(&r.head)
		index := head & r.mask
		c := &r.cells[index]
		seq := c.sequence.Load()
		dif := int64(seq) - int64(head+1)

		if dif == 0 {
			if atomic.CompareAndSwapUint64(&r.head, head, head+1) {
				item = c.data
				c.sequence.Store(head + r.mask + 1)
				return item, true
			}
		} else if dif < 0 {
			var zero T
			return zero, false
		}
	}
}

// Len returns a snapshot item count. Under concurrent Enqueue/Dequeue this
// is approximate (head/tail are loaded separately), matching api.Ring's
// best-effort contract for a lock-free ring.
func (r *ringBuffer[T]) Len() int {
	head := atomic.LoadUint64(&r.head)
	tail := atomic.LoadUint64(&r.tail)
	if tail < head {
		return 0
	}
	return int(tail - head)
}

// Cap returns the ring's fixed, power-of-two capacity.
func (r *ringBuffer[T]) Cap() int {
	return len(r.cells)
}
