//go:build !linux
// +build !linux

// File: internal/shm/sync_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// No portable process-shared robust mutex/condvar binding on this
// platform in this module. Every entry point fails with ErrNotSupported,
// matching affinity/affinity_stub.go's pattern for platforms the teacher
// does not implement natively.

package shm

import (
	"time"

	"github.com/momentics/shmqueue/api"
)

type Waitable int

const (
	NotEmpty Waitable = iota
	NotFull
)

func EnsureInitialized(h *Header) error { return api.ErrNotSupported }

func Lock(h *Header) (recovered bool, err error) { return false, api.ErrNotSupported }

func TryLock(h *Header) (ok, recovered bool, err error) { return false, false, api.ErrNotSupported }

func Unlock(h *Header) error { return api.ErrNotSupported }

func Wait(h *Header, w Waitable, deadline time.Time) (timedOut, recovered bool, err error) {
	return false, false, api.ErrNotSupported
}

func Signal(h *Header, w Waitable) error { return api.ErrNotSupported }

func Broadcast(h *Header, w Waitable) error { return api.ErrNotSupported }
