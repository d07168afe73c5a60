// File: internal/fanout/dispatcher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// In-process fan-out of one GetMany batch to a fixed pool of local
// handler goroutines, so a single shared-memory attachment can serve
// several logical consumers without a second trip through the ring.
// Adapted from the teacher's internal/concurrency/executor.go: a fast
// lock-free inbox per worker (ring.go) backed by a mutex-guarded
// github.com/eapache/queue overflow queue for bursts that briefly outrun
// a worker, instead of the teacher's busy-spinning dequeue loop.

package fanout

import (
	"sync"

	"github.com/eapache/queue"
)

// Handler processes one dispatched value. Handlers run on the
// Dispatcher's worker goroutines, never inside any shmqueue lock.
type Handler func(value any)

type worker struct {
	inbox    *ringBuffer[any]
	overflow *queue.Queue
	mu       sync.Mutex
	wake     chan struct{}
	stop     chan struct{}
	handler  Handler
}

func newWorker(inboxSize int, handler Handler) *worker {
	w := &worker{
		inbox:    newRingBuffer[any](uint64(inboxSize)),
		overflow: queue.New(),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		handler:  handler,
	}
	go w.run()
	return w
}

func (w *worker) run() {
	for {
		for {
			if v, ok := w.inbox.Dequeue(); ok {
				w.handler(v)
				continue
			}
			w.mu.Lock()
			if w.overflow.Length() == 0 {
				w.mu.Unlock()
				break
			}
			v := w.overflow.Remove()
			w.mu.Unlock()
			w.handler(v)
		}
		select {
		case <-w.stop:
			return
		case <-w.wake:
		}
	}
}

func (w *worker) submit(v any) {
	w.mu.Lock()
	// Only use the inbox while the overflow queue is empty, so a value
	// never overtakes older values still waiting in overflow.
	if w.overflow.Length() == 0 && w.inbox.Enqueue(v) {
		w.mu.Unlock()
		w.signal()
		return
	}
	w.overflow.Add(v)
	w.mu.Unlock()
	w.signal()
}

func (w *worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) close() {
	close(w.stop)
}

// Dispatcher round-robins dispatched values across a fixed worker pool.
type Dispatcher struct {
	workers []*worker
	next    uint64
}

// NewDispatcher starts numWorkers goroutines, each running handler over
// its own inbox. inboxSize is rounded up to a power of two per worker.
func NewDispatcher(numWorkers, inboxSize int, handler Handler) *Dispatcher {
	if numWorkers < 1 {
		numWorkers = 1
	}
	d := &Dispatcher{workers: make([]*worker, numWorkers)}
	for i := range d.workers {
		d.workers[i] = newWorker(inboxSize, handler)
	}
	return d
}

// Submit hands one value to the next worker in round-robin order. It
// never blocks: a full inbox spills into that worker's overflow queue.
func (d *Dispatcher) Submit(value any) {
	idx := d.next % uint64(len(d.workers))
	d.next++
	d.workers[idx].submit(value)
}

// SubmitBatch submits every value in order, preserving per-producer order
// within each worker's stream (spec.md's ordering guarantee is per
// producer, not global, so round-robin splitting across workers is
// compatible with it only when the caller wants per-worker ordering —
// callers needing strict single-stream order should use a Dispatcher with
// numWorkers=1).
func (d *Dispatcher) SubmitBatch(values []any) {
	for _, v := range values {
		d.Submit(v)
	}
}

// Close stops every worker goroutine. In-flight and queued-but-unhandled
// values are dropped.
func (d *Dispatcher) Close() {
	for _, w := range d.workers {
		w.close()
	}
}
