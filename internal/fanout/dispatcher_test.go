// File: internal/fanout/dispatcher_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fanout

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversEveryValue(t *testing.T) {
	const n = 5000
	var mu sync.Mutex
	seen := make(map[int]bool, n)
	var wg sync.WaitGroup
	wg.Add(n)

	d := NewDispatcher(4, 16, func(v any) {
		mu.Lock()
		seen[v.(int)] = true
		mu.Unlock()
		wg.Done()
	})
	defer d.Close()

	for i := 0; i < n; i++ {
		d.Submit(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not deliver all values in time")
	}

	require.Len(t, seen, n)
}

func TestDispatcherSingleWorkerPreservesOrder(t *testing.T) {
	const n = 2000
	var got []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(n)

	d := NewDispatcher(1, 8, func(v any) {
		mu.Lock()
		got = append(got, v.(int))
		mu.Unlock()
		wg.Done()
	})
	defer d.Close()

	for i := 0; i < n; i++ {
		d.Submit(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.Equal(t, i, got[i])
	}
}
