// File: facade/handle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Handle is both the serializable cross-process attachment descriptor
// (Path/Capacity/Codec) and the per-caller scratch-buffer owner described
// in SPEC_FULL.md §4.6. Go has no thread-local storage; following the
// teacher's sakateka-yanet2/modules/pdump/controlplane/ring.go pattern of
// handing each reader goroutine its own cloned workerArea over one shared
// ring, every call to Queue.Handle() returns an independent Handle with
// its own growable scratch buffer layered over the same shared region.

package facade

import (
	"context"

	"github.com/c2h5oh/datasize"
	"github.com/momentics/shmqueue/api"
	"github.com/momentics/shmqueue/codec"
	"github.com/momentics/shmqueue/internal/ringqueue"
	"github.com/momentics/shmqueue/pool"
)

// Handle is the serializable attachment descriptor a process passes to
// Open to reattach to an existing queue without re-running the region's
// one-time synchronization-object initialization. The unexported fields
// carry the live per-caller state (ring, codec, scratch) and are never
// populated by (de)serializing a Handle value.
type Handle struct {
	Path     string
	Capacity datasize.ByteSize
	Codec    string

	ring    *ringqueue.Queue
	cdc     codec.Codec
	scratch *pool.ScratchBuffer
}

func newHandle(path string, capacity datasize.ByteSize, codecName string, ring *ringqueue.Queue, cdc codec.Codec, scratchInit int) *Handle {
	return &Handle{
		Path:     path,
		Capacity: capacity,
		Codec:    codecName,
		ring:     ring,
		cdc:      cdc,
		scratch:  pool.New(scratchInit, int(capacity)),
	}
}

// Put serializes value and enqueues it as a single record.
func (h *Handle) Put(ctx context.Context, value any) error {
	b, err := codec.Serialize(h.cdc, value)
	if err != nil {
		return err
	}
	return h.ring.Put(ctx, b)
}

// PutMany serializes every value and enqueues them as one atomic batch.
func (h *Handle) PutMany(ctx context.Context, values []any) error {
	records := make([][]byte, len(values))
	for i, v := range values {
		b, err := codec.Serialize(h.cdc, v)
		if err != nil {
			return err
		}
		records[i] = b
	}
	return h.ring.PutMany(ctx, records)
}

// PutNowait is Put with an already-cancelled context: spec.md's
// put(value, block=false).
func (h *Handle) PutNowait(value any) error {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return h.Put(ctx, value)
}

// Get dequeues and deserializes a single record.
func (h *Handle) Get(ctx context.Context) (any, error) {
	values, err := h.GetMany(ctx, 1)
	if err != nil {
		return nil, err
	}
	return values[0], nil
}

// GetMany dequeues up to maxMessages records, deserializing each. The
// scratch buffer's current capacity bounds per-call payload bytes; if the
// next available record alone would exceed it, GetMany grows the scratch
// buffer (doubling, capped at the ring's capacity) and retries once per
// growth step before giving up with api.ErrTooLarge.
func (h *Handle) GetMany(ctx context.Context, maxMessages int) ([]any, error) {
	for {
		payloads, firstTooBig, err := h.ring.GetMany(ctx, maxMessages, h.scratch.Cap())
		if err != nil {
			// A closed-and-drained ring has no more "Closed vs Empty"
			// distinction worth surfacing to a consumer: end-of-stream
			// reads as Empty, per the resolved Open Question in
			// DESIGN.md. Put/PutMany deliberately keep raw ErrClosed,
			// since a producer has no "drained" state to fall back to.
			if err == api.ErrClosed {
				return nil, api.ErrEmpty
			}
			return nil, err
		}
		if firstTooBig {
			if !h.scratch.Grow() {
				return nil, api.ErrTooLarge
			}
			continue
		}
		values := make([]any, len(payloads))
		for i, p := range payloads {
			v, err := codec.Deserialize(h.cdc, p)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		return values, nil
	}
}

// Size, Empty, Full, IsClosed, and Close all delegate to the shared ring;
// any Handle attached to the same Queue observes the same state.

func (h *Handle) Size() (int, error)      { return h.ring.Size() }
func (h *Handle) Empty() (bool, error)    { return h.ring.Empty() }
func (h *Handle) Full() (bool, error)     { return h.ring.Full() }
func (h *Handle) IsClosed() (bool, error) { return h.ring.IsClosed() }
func (h *Handle) Close() error            { return h.ring.Close() }
