// File: internal/framing/codec_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package framing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	ring := make([]byte, 64)
	records := [][]byte{[]byte("hello"), []byte("world"), {}}

	newTail, written := WriteRecords(ring, 0, records)
	require.Equal(t, uint64(BatchFramedSize(records)), written)

	payloads, consumed, tooBig := ReadRecords(ring, 0, written, 64, 10)
	require.False(t, tooBig)
	require.Equal(t, written, consumed)
	require.Equal(t, newTail, (0+consumed)%uint64(len(ring)))
	require.Len(t, payloads, 3)
	require.Equal(t, "hello", string(payloads[0]))
	require.Equal(t, "world", string(payloads[1]))
	require.Equal(t, 0, len(payloads[2]))
}

func TestWrapAroundCorrectness(t *testing.T) {
	ring := make([]byte, 32)
	// Prime tail near the end so the next batch straddles the wrap
	// boundary, including inside the length prefix itself.
	tail := uint64(30)
	records := [][]byte{[]byte("abcdefgh")}
	newTail, written := WriteRecords(ring, tail, records)
	require.Equal(t, uint64(FramedSize(8)), written)

	payloads, consumed, tooBig := ReadRecords(ring, tail, written, 32, 10)
	require.False(t, tooBig)
	require.Equal(t, written, consumed)
	require.Equal(t, newTail, (tail+consumed)%uint64(len(ring)))
	require.Equal(t, "abcdefgh", string(payloads[0]))
}

func TestReadRecordsStopsAtMaxCount(t *testing.T) {
	ring := make([]byte, 128)
	records := [][]byte{{1}, {2}, {3}, {4}}
	WriteRecords(ring, 0, records)

	payloads, consumed, _ := ReadRecords(ring, 0, uint64(BatchFramedSize(records)), 128, 2)
	require.Len(t, payloads, 2)
	require.Equal(t, uint64(FramedSize(1)*2), consumed)
}

func TestReadRecordsFirstTooBig(t *testing.T) {
	ring := make([]byte, 64)
	records := [][]byte{make([]byte, 10)}
	WriteRecords(ring, 0, records)

	payloads, consumed, tooBig := ReadRecords(ring, 0, uint64(FramedSize(10)), 4, 10)
	require.Nil(t, payloads)
	require.Zero(t, consumed)
	require.True(t, tooBig)
}

func TestReadRecordsZeroLengthRecord(t *testing.T) {
	ring := make([]byte, 16)
	newTail, written := WriteRecords(ring, 0, [][]byte{{}})
	require.Equal(t, uint64(HeaderLen), written)
	require.Equal(t, uint64(HeaderLen), newTail)

	payloads, consumed, tooBig := ReadRecords(ring, 0, written, 16, 10)
	require.False(t, tooBig)
	require.Equal(t, uint64(HeaderLen), consumed)
	require.Len(t, payloads, 1)
	require.Empty(t, payloads[0])
}
