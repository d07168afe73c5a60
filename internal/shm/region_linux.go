//go:build linux
// +build linux

// File: internal/shm/region_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux backing store for the shared region: a file under a tmpfs-backed
// directory (/dev/shm by default), sized with ftruncate and mapped
// MAP_SHARED so every attaching process sees the same physical pages.
// Mirrors the teacher's internal/transport/transport_linux.go style: raw
// golang.org/x/sys/unix calls behind a small Linux-only file, with careful
// fd cleanup on every error path.

package shm

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DefaultDir is the tmpfs directory new regions are created under when the
// caller supplies a bare name instead of an absolute path.
const DefaultDir = "/dev/shm"

// Region is an attached shared-memory mapping: a Header at offset 0
// followed by the ring bytes. Region is safe for concurrent use by
// multiple goroutines in the attaching process; cross-process safety is
// provided by the Header's process-shared mutex/condvars.
type Region struct {
	path    string
	fd      int
	data    []byte // full mmap, header + ring
	created bool
}

// Path returns the filesystem path backing this region, which is the
// identity a Handle carries across a process boundary.
func (r *Region) Path() string { return r.path }

// Bytes returns the full mapped region (header + ring).
func (r *Region) Bytes() []byte { return r.data }

// Header returns the shared control block at the front of the mapping.
func (r *Region) Header() *Header { return HeaderOf(r.data) }

// Ring returns the ring portion of the mapping.
func (r *Region) Ring() []byte { return RingBytes(r.data) }

// resolvePath turns a bare name into a DefaultDir-relative path, and
// leaves absolute/relative paths containing a separator untouched.
func resolvePath(name string) string {
	if filepath.IsAbs(name) || filepath.Dir(name) != "." {
		return name
	}
	return filepath.Join(DefaultDir, name)
}

// OpenOrCreate creates a new backing file of header+capacity bytes and
// maps it, or attaches to an existing one if it already exists and is the
// right size. The creator (and only the creator) must go on to initialize
// the Header's synchronization objects exactly once, per spec.md §3.
func OpenOrCreate(name string, capacity int) (*Region, bool, error) {
	if capacity <= 0 {
		return nil, false, fmt.Errorf("shm: capacity must be positive, got %d", capacity)
	}
	path := resolvePath(name)
	total := HeaderSize + capacity

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL, 0o600)
	created := true
	if err != nil {
		if err != unix.EEXIST {
			return nil, false, fmt.Errorf("shm: open %s: %w", path, err)
		}
		created = false
		fd, err = unix.Open(path, unix.O_RDWR, 0o600)
		if err != nil {
			return nil, false, fmt.Errorf("shm: reopen %s: %w", path, err)
		}
	}

	closeOnErr := func() { unix.Close(fd) }

	if created {
		if err := unix.Ftruncate(fd, int64(total)); err != nil {
			closeOnErr()
			_ = os.Remove(path)
			return nil, false, fmt.Errorf("shm: ftruncate %s: %w", path, err)
		}
	} else {
		st, err := fstatSize(fd)
		if err != nil {
			closeOnErr()
			return nil, false, fmt.Errorf("shm: fstat %s: %w", path, err)
		}
		if st != int64(total) {
			closeOnErr()
			return nil, false, fmt.Errorf("shm: %s has size %d, expected %d for capacity %d", path, st, total, capacity)
		}
	}

	data, err := unix.Mmap(fd, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		closeOnErr()
		if created {
			_ = os.Remove(path)
		}
		return nil, false, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	r := &Region{path: path, fd: fd, data: data, created: created}
	if created {
		h := r.Header()
		h.Capacity = uint64(capacity)
	}
	return r, created, nil
}

// fstatSize returns the current size of an open fd.
func fstatSize(fd int) (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, err
	}
	return st.Size, nil
}

// Close unmaps the region and closes the backing fd. It does not remove
// the backing file: other attached processes may still be using it. The
// last holder is expected to call Unlink once it knows no other process
// will attach.
func (r *Region) Close() error {
	if r.data != nil {
		if err := unix.Munmap(r.data); err != nil {
			return fmt.Errorf("shm: munmap %s: %w", r.path, err)
		}
		r.data = nil
	}
	return unix.Close(r.fd)
}

// Unlink removes the backing file from the filesystem namespace. Existing
// mappings (in this or other processes) remain valid until they Close;
// the OS refcounts the underlying pages exactly as it does for any other
// unlinked-but-mapped file.
func (r *Region) Unlink() error {
	return os.Remove(r.path)
}
