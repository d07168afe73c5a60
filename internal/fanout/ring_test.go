// File: internal/fanout/ring_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fanout

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRingBufferCorrectness(t *testing.T) {
	r := newRingBuffer[int](16)
	for i := 0; i < 16; i++ {
		require.True(t, r.Enqueue(i))
	}
	require.False(t, r.Enqueue(99), "ring should be full")

	for i := 0; i < 16; i++ {
		v, ok := r.Dequeue()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	_, ok := r.Dequeue()
	require.False(t, ok, "ring should be empty")
}

// TestRingBufferConcurrent exercises the ring with multiple concurrent
// producers and consumers, checking that every enqueued value is observed
// exactly once, adapted from the teacher's property-based ring buffer test.
func TestRingBufferConcurrent(t *testing.T) {
	r := newRingBuffer[int](128)
	const producers, consumers, perProducer = 4, 4, 1000
	total := producers * perProducer

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(time.Now().UnixNano() + int64(base)))
			for i := 0; i < perProducer; i++ {
				v := base*perProducer + i
				for !r.Enqueue(v) {
					if rnd.Intn(2) == 0 {
						time.Sleep(time.Microsecond)
					}
				}
			}
		}(p)
	}

	var mu sync.Mutex
	seen := make(map[int]struct{}, total)
	var collected atomic.Int64
	var cwg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for collected.Load() < int64(total) {
				if v, ok := r.Dequeue(); ok {
					mu.Lock()
					seen[v] = struct{}{}
					mu.Unlock()
					collected.Add(1)
					continue
				}
				time.Sleep(time.Microsecond)
			}
		}()
	}

	wg.Wait()
	cwg.Wait()

	require.Len(t, seen, total)
}
