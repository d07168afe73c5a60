// File: pool/scratch_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewClampsInitialSizeToRingCapacity(t *testing.T) {
	s := New(1<<20, 4096)
	require.Equal(t, 4096, s.Cap())
	require.Equal(t, 4096, s.RingCapacity())
}

func TestNewDefaultsNonPositiveInitialSize(t *testing.T) {
	s := New(0, 65536)
	require.Equal(t, defaultInitialSize, s.Cap())
}

func TestGrowDoublesUntilRingCapacityThenStops(t *testing.T) {
	s := New(100, 350)
	require.Equal(t, 100, s.Cap())

	require.True(t, s.Grow())
	require.Equal(t, 200, s.Cap())

	require.True(t, s.Grow())
	require.Equal(t, 350, s.Cap(), "growth caps at ring capacity instead of overshooting to 400")

	require.False(t, s.Grow(), "already at the ceiling")
	require.Equal(t, 350, s.Cap())
}

func TestResetPreservesCapacity(t *testing.T) {
	s := New(64, 4096)
	s.buf = append(s.buf, []byte("hello")...)
	require.Equal(t, 5, len(s.buf))

	s.Reset()
	require.Equal(t, 0, len(s.buf))
	require.Equal(t, 64, s.Cap())
}

func TestBytePoolAdapterAcquireGrowsAsNeeded(t *testing.T) {
	s := New(8, 1024)
	bp := s.AsBytePool()

	buf := bp.Acquire(100)
	require.GreaterOrEqual(t, len(buf), 100)
	require.LessOrEqual(t, cap(buf), 1024)

	bp.Release(buf)
	require.Equal(t, 0, len(s.buf))
}

func TestBytePoolAdapterAcquireClampsAtRingCapacity(t *testing.T) {
	s := New(8, 64)
	bp := s.AsBytePool()

	buf := bp.Acquire(10000)
	require.Equal(t, 64, len(buf), "Acquire clamps to RingCapacity rather than exceeding it")
}
