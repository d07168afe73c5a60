// File: internal/shm/header.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Shared-region header: synchronization objects, ring accounting, and
// counters. The header sits at offset 0 of the mapped region; the ring
// bytes immediately follow it. Every process that attaches to the region
// maps the same bytes, so the header's field layout (and padding) must be
// stable across the processes involved.

package shm

import "unsafe"

// syncState reserves raw storage for one pthread_mutex_t and two
// pthread_cond_t objects (not-empty, then not-full), sized generously for
// glibc/x86_64 and arm64 layouts. sync_linux.go reinterprets these bytes
// as the real C types; every other platform treats them as opaque.
type syncState struct {
	mutex      [48]byte
	condEmpty  [56]byte
	condFull   [56]byte
}

// HeaderSize is the fixed size, in bytes, reserved for Header at the front
// of every mapped region. Header is padded to a cache-line multiple so the
// ring bytes that follow it start on a cache-line boundary, matching the
// padding convention the teacher uses in core/concurrency/ring.go and
// pool/ring.go.
const HeaderSize = int(unsafe.Sizeof(Header{}))

// Header is the process-shared control block. All fields below Sync
// are mutated only while Sync's mutex is held, except where noted.
//
// Sync carries the raw pthread_mutex_t / pthread_cond_t x2 bytes. Its
// fields are only interpreted as C types in sync_linux.go (via
// unsafe.Pointer), so this file stays buildable on every platform even
// though the sizes below are glibc/x86_64-shaped.
type Header struct {
	Sync syncState

	// Capacity is the fixed byte capacity of the ring, set once at create
	// time and never mutated again.
	Capacity uint64

	// Head is the byte offset of the oldest unread byte, in [0, Capacity).
	Head uint64
	// Tail is the byte offset where the next byte would be written, in
	// [0, Capacity).
	Tail uint64
	// Used is the number of bytes currently holding valid records, in
	// [0, Capacity].
	Used uint64
	// Count is the number of complete records currently in the ring.
	Count uint64

	// Closed is 0 (open) or 1 (closed). Read and written only while the
	// mutex is held.
	Closed uint32

	// initialized guards one-time construction of the sync objects: 0
	// means "not yet initialized", 1 means "initialization in progress",
	// 2 means "ready". Moved from 0 to 1 with a CAS by whichever process
	// wins the race to initialize the region.
	initialized uint32

	_ [48]byte // pad Header to a cache-line multiple (256 bytes)
}

// RingBytes returns a slice viewing the ring portion of the mapped region,
// i.e. everything after the header.
func RingBytes(region []byte) []byte {
	return region[HeaderSize:]
}

// HeaderOf reinterprets the front of a mapped region as a *Header. The
// caller must ensure region is at least HeaderSize bytes and stays pinned
// (mmap'd, not GC-moved) for the Header's lifetime.
func HeaderOf(region []byte) *Header {
	return (*Header)(unsafe.Pointer(&region[0]))
}
