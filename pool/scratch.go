// File: pool/scratch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-handle scratch buffer. facade.Handle uses its capacity as the
// payload-byte budget of each GetMany call and grows it when the next
// record does not fit. Go has no language-level thread-local storage;
// following the teacher's own pattern of handing each consumer its own
// private state over a shared mapping (see
// sakateka-yanet2/modules/pdump/controlplane/ring.go's workerArea.buf,
// cloned per reader goroutine), the scratch buffer here is owned by an
// explicit per-caller handle rather than attached to an OS thread.

package pool

import "github.com/momentics/shmqueue/api"

const defaultInitialSize = 5000

// ScratchBuffer is a lazily grown, per-handle byte buffer. Reset zeroes
// its length and retains its capacity. It is not safe for concurrent use — each goroutine that wants isolation
// should own its own ScratchBuffer, exactly as each reader in the
// teacher's ring owns its own buf.
type ScratchBuffer struct {
	buf []byte
	cap int // ring capacity: the hard ceiling growth will not exceed
}

var _ api.BytePool = (*scratchAdapter)(nil)

// New creates a scratch buffer that starts at initialSize (or
// defaultInitialSize if non-positive) and never grows past ringCapacity.
func New(initialSize, ringCapacity int) *ScratchBuffer {
	if initialSize <= 0 {
		initialSize = defaultInitialSize
	}
	if initialSize > ringCapacity {
		initialSize = ringCapacity
	}
	return &ScratchBuffer{
		buf: make([]byte, 0, initialSize),
		cap: ringCapacity,
	}
}

// Reset zeroes the logical length while retaining the allocated capacity.
func (s *ScratchBuffer) Reset() {
	s.buf = s.buf[:0]
}

// Cap returns the buffer's current allocated capacity.
func (s *ScratchBuffer) Cap() int {
	return cap(s.buf)
}

// RingCapacity returns the hard ceiling growth will not exceed.
func (s *ScratchBuffer) RingCapacity() int {
	return s.cap
}

// Grow doubles the buffer's capacity, capped at the ring capacity, and
// returns whether it actually grew (false means it was already at the
// ceiling, per spec.md §4.6's "cap at queue capacity"). The existing
// contents are not preserved: the grown buffer is a fresh, empty
// allocation. ringqueue copies fresh payload slices, so growth never
// needs to preserve in-flight data across a retry.
func (s *ScratchBuffer) Grow() bool {
	if cap(s.buf) >= s.cap {
		return false
	}
	next := cap(s.buf) * 2
	if next == 0 {
		next = defaultInitialSize
	}
	if next > s.cap {
		next = s.cap
	}
	s.buf = make([]byte, 0, next)
	return true
}

// scratchAdapter exposes a ScratchBuffer as an api.BytePool for callers
// that want the teacher's BytePool contract (Acquire/Release) instead of
// the Grow/Reset pair above.
type scratchAdapter struct {
	s *ScratchBuffer
}

// AsBytePool wraps s as an api.BytePool.
func (s *ScratchBuffer) AsBytePool() api.BytePool {
	return &scratchAdapter{s: s}
}

// Acquire returns a slice of n bytes, growing the underlying buffer (up
// to RingCapacity) as needed. If n exceeds the largest capacity growth
// can reach, the slice is clamped to that capacity and is shorter than n.
func (a *scratchAdapter) Acquire(n int) []byte {
	for cap(a.s.buf) < n && a.s.Grow() {
	}
	if cap(a.s.buf) < n {
		n = cap(a.s.buf)
	}
	return a.s.buf[:n]
}

// Release resets the scratch buffer for reuse; the teacher's BytePool
// contract is a pooled-allocator interface, but a per-handle scratch
// buffer has exactly one owner, so Release only needs to reset length.
func (a *scratchAdapter) Release(buf []byte) {
	a.s.Reset()
}
