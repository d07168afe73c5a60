//go:build !linux
// +build !linux

// File: internal/shm/region_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-Linux platforms have no portable process-shared robust mutex in this
// module; OpenOrCreate fails fast rather than silently degrading
// crash-safety, matching the teacher's own platform split (compare
// affinity/affinity_stub.go).

package shm

import "github.com/momentics/shmqueue/api"

// Region is an opaque, never-constructed type on unsupported platforms.
type Region struct{}

func (r *Region) Path() string   { return "" }
func (r *Region) Bytes() []byte  { return nil }
func (r *Region) Header() *Header { return nil }
func (r *Region) Ring() []byte   { return nil }
func (r *Region) Close() error   { return api.ErrNotSupported }
func (r *Region) Unlink() error  { return api.ErrNotSupported }

// OpenOrCreate always fails on unsupported platforms.
func OpenOrCreate(name string, capacity int) (*Region, bool, error) {
	return nil, false, api.ErrNotSupported
}
