// File: internal/framing/codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Framing codec: serializes a batch of opaque byte-messages into
// length-prefixed records inside a wrap-around byte ring, and parses them
// back out. Every read/write that would cross the ring's capacity splits
// into two copies, following the wraparound handling in
// sakateka-yanet2/modules/pdump/controlplane/ring.go (workerArea.read) and
// the span-pair accounting in the jangala-dev shmring reference.

package framing

import "encoding/binary"

// HeaderLen is the length-prefix size: a 4-byte little-endian uint32, per
// spec.md §3.
const HeaderLen = 4

// FramedSize returns the total ring bytes a single record of the given
// payload length occupies: the 4-byte length prefix plus the payload.
func FramedSize(payloadLen int) int {
	return HeaderLen + payloadLen
}

// BatchFramedSize sums FramedSize across every record in a batch.
func BatchFramedSize(records [][]byte) int {
	total := 0
	for _, r := range records {
		total += FramedSize(len(r))
	}
	return total
}

// writeWrapped copies src into ring starting at offset off (mod
// len(ring)), splitting at the wrap boundary if necessary, and returns the
// new offset.
func writeWrapped(ring []byte, off uint64, src []byte) uint64 {
	capacity := uint64(len(ring))
	n := uint64(len(src))
	if n == 0 {
		return off
	}
	first := capacity - off
	if first >= n {
		copy(ring[off:off+n], src)
	} else {
		copy(ring[off:capacity], src[:first])
		copy(ring[0:n-first], src[first:])
	}
	return (off + n) % capacity
}

// readWrapped copies n bytes starting at offset off (mod len(ring)) into a
// freshly allocated slice, splitting at the wrap boundary if necessary,
// and returns the new offset alongside the copy.
func readWrapped(ring []byte, off uint64, n int) ([]byte, uint64) {
	capacity := uint64(len(ring))
	dst := make([]byte, n)
	if n == 0 {
		return dst, off
	}
	first := capacity - off
	if uint64(n) <= first {
		copy(dst, ring[off:off+uint64(n)])
	} else {
		copy(dst, ring[off:capacity])
		copy(dst[first:], ring[0:uint64(n)-first])
	}
	return dst, (off + uint64(n)) % capacity
}

// WriteRecords writes every record in order starting at tail, each as a
// 4-byte little-endian length followed by the payload, handling wraparound
// for both the length prefix and the payload. The caller must already
// have guaranteed there is room for BatchFramedSize(records) bytes; this
// function does not check capacity.
func WriteRecords(ring []byte, tail uint64, records [][]byte) (newTail uint64, bytesWritten uint64) {
	var lenBuf [HeaderLen]byte
	off := tail
	var total uint64
	for _, rec := range records {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(rec)))
		off = writeWrapped(ring, off, lenBuf[:])
		off = writeWrapped(ring, off, rec)
		total += uint64(FramedSize(len(rec)))
	}
	return off, total
}

// ReadRecords parses records forward from head, stopping when it has
// parsed maxCount records, when the next record's payload would push the
// cumulative payload bytes copied past maxBytes, or when used bytes are
// exhausted. It returns the payload copies and the total ring bytes
// (length prefixes included) consumed, which the caller subtracts from
// used.
//
// firstTooBig is true only when zero records were returned because the
// very first available record's payload alone exceeds maxBytes; the
// caller (internal/ringqueue) is expected to grow its scratch buffer and
// retry, per spec.md §4.6's back-pressure policy.
func ReadRecords(ring []byte, head uint64, used uint64, maxBytes int, maxCount int) (payloads [][]byte, bytesConsumed uint64, firstTooBig bool) {
	off := head
	remaining := used
	payloadBudget := maxBytes
	var consumed uint64

	for len(payloads) < maxCount && remaining >= HeaderLen {
		lenBytes, nextOff := readWrapped(ring, off, HeaderLen)
		l := binary.LittleEndian.Uint32(lenBytes)
		total := uint64(HeaderLen) + uint64(l)
		if total > remaining {
			// Should not happen if invariants hold (no partial records),
			// but guards against reading past the logical tail.
			break
		}
		if int(l) > payloadBudget {
			if len(payloads) == 0 {
				return nil, 0, true
			}
			break
		}

		payload, payloadOff := readWrapped(ring, nextOff, int(l))
		payloads = append(payloads, payload)
		off = payloadOff
		remaining -= total
		consumed += total
		payloadBudget -= int(l)
	}

	return payloads, consumed, false
}
