// File: internal/ringqueue/queue_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ringqueue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/shmqueue/api"
	"github.com/momentics/shmqueue/internal/shm"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, capacity int) *Queue {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("shmqueue-test-%d", time.Now().UnixNano()))
	region, _, err := shm.OpenOrCreate(path, capacity)
	require.NoError(t, err)
	require.NoError(t, EnsureInitialized(region))
	t.Cleanup(func() {
		region.Close()
		os.Remove(path)
	})
	return New(region)
}

func TestSingleProcRoundTrip(t *testing.T) {
	q := newTestQueue(t, 1_000_000)
	require.NoError(t, q.Put(context.Background(), []byte("payload-42")))

	size, err := q.Size()
	require.NoError(t, err)
	require.Equal(t, 1, size)

	got, err := q.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "payload-42", string(got))

	empty, err := q.Empty()
	require.NoError(t, err)
	require.True(t, empty)
}

func TestFillToFull(t *testing.T) {
	q := newTestQueue(t, 60)
	rec := []byte{1, 2}
	n := 0
	for {
		err := q.Put(nonBlockingCtx(), rec)
		if err == api.ErrFull {
			break
		}
		require.NoError(t, err)
		n++
		require.Less(t, n, 1000, "loop did not converge to Full")
	}
	full, err := q.Full()
	require.NoError(t, err)
	require.True(t, full)

	got, err := q.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, rec, got)

	require.NoError(t, q.Put(nonBlockingCtx(), rec))
}

func TestBulkDrain(t *testing.T) {
	q := newTestQueue(t, 100_000)
	batch := make([][]byte, 5)
	for i := range batch {
		batch[i] = []byte("identical-record")
	}
	require.NoError(t, q.PutMany(context.Background(), batch))

	var drained [][]byte
	for {
		payloads, tooBig, err := q.GetMany(nonBlockingCtx(), 100, 1<<20)
		if err == api.ErrEmpty {
			break
		}
		require.NoError(t, err)
		require.False(t, tooBig)
		require.NotEmpty(t, payloads)
		drained = append(drained, payloads...)
	}
	require.Len(t, drained, 5)
	for _, rec := range drained {
		require.Equal(t, "identical-record", string(rec))
	}
}

func TestWrapAroundAcrossManyOperations(t *testing.T) {
	q := newTestQueue(t, 128)
	for i := 0; i < 500; i++ {
		want := []byte(fmt.Sprintf("rec-%d", i))
		require.NoError(t, q.Put(context.Background(), want))
		got, err := q.Get(context.Background())
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestTimeoutBound(t *testing.T) {
	q := newTestQueue(t, 1024)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := q.Get(ctx)
	elapsed := time.Since(start)

	require.Equal(t, api.ErrEmpty, err)
	require.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	require.Less(t, elapsed, 2*time.Second)
}

func TestCloseDuringWait(t *testing.T) {
	q := newTestQueue(t, 1024)
	done := make(chan error, 1)
	go func() {
		_, err := q.Get(context.Background())
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case err := <-done:
		require.Equal(t, api.ErrClosed, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not wake up after close")
	}
}

func TestLargeRecordTooLarge(t *testing.T) {
	q := newTestQueue(t, 1024)
	before, err := q.Size()
	require.NoError(t, err)

	err = q.Put(context.Background(), make([]byte, 10_000))
	require.Equal(t, api.ErrTooLarge, err)

	after, err := q.Size()
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestBatchAtomicityTooLargeLeavesUsedUnchanged(t *testing.T) {
	q := newTestQueue(t, 256)
	require.NoError(t, q.Put(context.Background(), []byte("already-here")))

	err := q.PutMany(context.Background(), [][]byte{make([]byte, 1000)})
	require.Equal(t, api.ErrTooLarge, err)

	size, err := q.Size()
	require.NoError(t, err)
	require.Equal(t, 1, size)
}

// TestConcurrentProducersPreserveOrderPerProducer starts several producer
// goroutines, each Put-ing its own strictly increasing sequence of records,
// against several consumer goroutines draining via GetMany concurrently.
// Every record must be observed exactly once, and each producer's own
// subsequence must come out in the order that producer put it in — spec.md
// §8's "single-producer order" property — even though the interleaving of
// different producers' records in the shared ring is unconstrained.
func TestConcurrentProducersPreserveOrderPerProducer(t *testing.T) {
	q := newTestQueue(t, 1<<20)
	const producers = 20
	const perProducer = 2000
	const consumers = 3
	total := producers * perProducer

	var pwg sync.WaitGroup
	for p := 0; p < producers; p++ {
		pwg.Add(1)
		go func(producer int) {
			defer pwg.Done()
			for seq := 0; seq < perProducer; seq++ {
				rec := []byte(fmt.Sprintf("%d:%d", producer, seq))
				require.NoError(t, q.Put(context.Background(), rec))
			}
		}(p)
	}

	// mu serializes each consumer's GetMany call together with recording
	// its result, so the order recorded into perProducerSeen matches the
	// ring's true FIFO removal order. Without this, a goroutine that
	// dequeued an earlier batch could be descheduled before it records
	// its result, letting a goroutine that dequeued a later batch record
	// first — a race in this test's bookkeeping, not in the ring itself.
	var mu sync.Mutex
	perProducerSeen := make([][]int, producers)
	var collected atomic.Int64

	var cwg sync.WaitGroup
	for c := 0; c < consumers; c++ {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for collected.Load() < int64(total) {
				mu.Lock()
				payloads, _, err := q.GetMany(nonBlockingCtx(), 32, 1<<16)
				if err != nil {
					mu.Unlock()
					time.Sleep(time.Microsecond)
					continue
				}
				for _, rec := range payloads {
					var producer, seq int
					_, scanErr := fmt.Sscanf(string(rec), "%d:%d", &producer, &seq)
					require.NoError(t, scanErr)
					perProducerSeen[producer] = append(perProducerSeen[producer], seq)
				}
				mu.Unlock()
				collected.Add(int64(len(payloads)))
			}
		}()
	}

	pwg.Wait()
	cwg.Wait()

	size, err := q.Size()
	require.NoError(t, err)
	require.Equal(t, 0, size, "every put record was collected")

	for producer, seen := range perProducerSeen {
		require.Len(t, seen, perProducer, "producer %d: missing or duplicate records", producer)
		for i, seq := range seen {
			require.Equal(t, i, seq, "producer %d: record %d arrived out of order", producer, i)
		}
	}
}

// nonBlockingCtx returns a context that is already done, the idiomatic
// equivalent of spec.md's block=false / timeout=0.
func nonBlockingCtx() context.Context {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	cancel()
	return ctx
}
