// File: internal/ringqueue/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Producer/consumer algorithms over a shared region: Put/PutMany and
// Get/GetMany, the notification policy, and the derived state-machine
// accessors. Operates purely on byte slices (already-serialized records);
// serialization/deserialization happen one layer up in codec/ and facade,
// outside of any lock held here.

package ringqueue

import (
	"context"
	"runtime"
	"time"

	"github.com/momentics/shmqueue/api"
	"github.com/momentics/shmqueue/internal/framing"
	"github.com/momentics/shmqueue/internal/shm"
)

// Queue is the core shared-ring engine. One Queue value wraps one attached
// shm.Region; it holds no per-handle state (scratch buffers live in pool,
// owned by the caller's facade.Handle).
type Queue struct {
	region *shm.Region
}

// New wraps an already-open, already-initialized region.
func New(region *shm.Region) *Queue {
	return &Queue{region: region}
}

// EnsureInitialized constructs the region's process-shared mutex and
// condition variables exactly once across every attaching process.
func EnsureInitialized(region *shm.Region) error {
	return shm.EnsureInitialized(region.Header())
}

func (q *Queue) header() *shm.Header { return q.region.Header() }
func (q *Queue) ring() []byte        { return q.region.Ring() }

// blockMode derives the blocking behavior and absolute deadline from a
// context: an already-done context means non-blocking (spec.md's
// timeout==0), a context with a deadline blocks up to that absolute time,
// and any other context blocks indefinitely. The deadline is computed
// once, here, so spurious wakeups never reset the clock.
func blockMode(ctx context.Context) (blocking bool, deadline time.Time) {
	if ctx == nil {
		return true, time.Time{}
	}
	if ctx.Err() != nil {
		return false, time.Time{}
	}
	if dl, ok := ctx.Deadline(); ok {
		return true, dl
	}
	return true, time.Time{}
}

// PutMany enqueues every record in records as a single atomic batch: the
// full batch is written, or none of it is. records must already be
// serialized; PutMany never calls user code.
func (q *Queue) PutMany(ctx context.Context, records [][]byte) error {
	if len(records) == 0 {
		return nil
	}
	h := q.header()
	total := uint64(framing.BatchFramedSize(records))
	if total > h.Capacity {
		return api.ErrTooLarge
	}

	blocking, deadline := blockMode(ctx)

	// A robust pthread mutex tracks its owner by OS thread; pin this
	// goroutine so the whole lock...wait...unlock sequence runs on one
	// OS thread instead of risking an unlock from a different M.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	recovered, err := shm.Lock(h)
	if err != nil {
		return err
	}
	if recovered {
		shm.Unlock(h)
		return api.ErrInconsistentRecovered
	}

	for {
		if h.Closed == 1 {
			shm.Unlock(h)
			return api.ErrClosed
		}
		if h.Used+total <= h.Capacity {
			break
		}
		if !blocking {
			shm.Unlock(h)
			return api.ErrFull
		}
		timedOut, recovered, err := shm.Wait(h, shm.NotFull, deadline)
		if err != nil {
			shm.Unlock(h)
			return err
		}
		if recovered {
			shm.Unlock(h)
			return api.ErrInconsistentRecovered
		}
		if timedOut {
			shm.Unlock(h)
			return api.ErrFull
		}
		// re-check predicate, per the loop
	}

	newTail, written := framing.WriteRecords(q.ring(), h.Tail, records)
	h.Tail = newTail
	h.Used += written
	h.Count += uint64(len(records))

	notify(h, shm.NotEmpty, len(records))

	return shm.Unlock(h)
}

// Put enqueues a single already-serialized record.
func (q *Queue) Put(ctx context.Context, record []byte) error {
	return q.PutMany(ctx, [][]byte{record})
}

// GetMany dequeues up to maxMessages records, limited additionally to
// maxBytes of total payload (the scratch budget the caller has available
// right now). It returns a non-empty list on success. If the very first
// available record's payload alone exceeds maxBytes, it returns
// (nil, firstTooBig=true) so the caller can grow its scratch buffer and
// retry without ever taking a partial, possibly-misleading result.
func (q *Queue) GetMany(ctx context.Context, maxMessages, maxBytes int) (payloads [][]byte, firstTooBig bool, err error) {
	h := q.header()
	blocking, deadline := blockMode(ctx)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	recovered, err := shm.Lock(h)
	if err != nil {
		return nil, false, err
	}
	if recovered {
		shm.Unlock(h)
		return nil, false, api.ErrInconsistentRecovered
	}

	for {
		if h.Used > 0 {
			break
		}
		if h.Closed == 1 {
			shm.Unlock(h)
			return nil, false, api.ErrClosed
		}
		if !blocking {
			shm.Unlock(h)
			return nil, false, api.ErrEmpty
		}
		timedOut, recovered, err := shm.Wait(h, shm.NotEmpty, deadline)
		if err != nil {
			shm.Unlock(h)
			return nil, false, err
		}
		if recovered {
			shm.Unlock(h)
			return nil, false, api.ErrInconsistentRecovered
		}
		if timedOut {
			shm.Unlock(h)
			return nil, false, api.ErrEmpty
		}
	}

	payloads, consumed, tooBig := framing.ReadRecords(q.ring(), h.Head, h.Used, maxBytes, maxMessages)
	if tooBig {
		shm.Unlock(h)
		return nil, true, nil
	}

	h.Head = (h.Head + consumed) % h.Capacity
	h.Used -= consumed
	h.Count -= uint64(len(payloads))

	notify(h, shm.NotFull, len(payloads))

	if err := shm.Unlock(h); err != nil {
		return nil, false, err
	}
	return payloads, false, nil
}

// Get dequeues a single record.
func (q *Queue) Get(ctx context.Context) ([]byte, error) {
	payloads, tooBig, err := q.GetMany(ctx, 1, maxInt)
	if err != nil {
		return nil, err
	}
	if tooBig {
		// A single Get never bounds maxBytes, so this cannot happen; kept
		// for symmetry with GetMany's contract.
		return nil, api.ErrTooLarge
	}
	return payloads[0], nil
}

const maxInt = int(^uint(0) >> 1)

// notify applies spec.md §4.2's single-vs-broadcast rule: a batch of
// exactly one record signals a single waiter, a larger batch broadcasts,
// since it may satisfy more than one waiter at once.
func notify(h *shm.Header, w shm.Waitable, n int) {
	if n <= 0 {
		return
	}
	if n == 1 {
		shm.Signal(h, w)
		return
	}
	shm.Broadcast(h, w)
}

// Close flips the closed flag and wakes every waiter on both condition
// variables. Idempotent: a second call is a no-op.
func (q *Queue) Close() error {
	h := q.header()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	recovered, err := shm.Lock(h)
	if err != nil {
		return err
	}
	if recovered {
		shm.Unlock(h)
		return api.ErrInconsistentRecovered
	}
	if h.Closed == 1 {
		return shm.Unlock(h)
	}
	h.Closed = 1
	if err := shm.Broadcast(h, shm.NotEmpty); err != nil {
		shm.Unlock(h)
		return err
	}
	if err := shm.Broadcast(h, shm.NotFull); err != nil {
		shm.Unlock(h)
		return err
	}
	return shm.Unlock(h)
}

// Size returns the number of complete records currently in the ring.
func (q *Queue) Size() (int, error) {
	h := q.header()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	recovered, err := shm.Lock(h)
	if err != nil {
		return 0, err
	}
	defer shm.Unlock(h)
	if recovered {
		return 0, api.ErrInconsistentRecovered
	}
	return int(h.Count), nil
}

// Empty reports whether the ring currently holds zero records.
func (q *Queue) Empty() (bool, error) {
	n, err := q.Size()
	return n == 0, err
}

// Full reports whether the ring has no room for one more minimum-size
// (zero-payload) record.
func (q *Queue) Full() (bool, error) {
	h := q.header()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	recovered, err := shm.Lock(h)
	if err != nil {
		return false, err
	}
	defer shm.Unlock(h)
	if recovered {
		return false, api.ErrInconsistentRecovered
	}
	return h.Used+uint64(framing.HeaderLen) > h.Capacity, nil
}

// IsClosed reports whether Close has been called.
func (q *Queue) IsClosed() (bool, error) {
	h := q.header()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	recovered, err := shm.Lock(h)
	if err != nil {
		return false, err
	}
	defer shm.Unlock(h)
	if recovered {
		return false, api.ErrInconsistentRecovered
	}
	return h.Closed == 1, nil
}
