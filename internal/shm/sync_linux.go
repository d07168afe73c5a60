//go:build linux
// +build linux

// File: internal/shm/sync_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process-shared, robust mutex and two condition variables over cgo's
// pthread bindings. This is the same technique the teacher already uses
// for thread affinity in affinity/affinity_linux.go: a small C preamble of
// one-purpose wrapper functions, called from Go through typed wrappers.
// Go's sync.Mutex/sync.Cond are single-process only, so spec.md's
// process-shared mutex + two condition variables have no stdlib path.

package shm

/*
#include <pthread.h>
#include <errno.h>
#include <time.h>
#include <string.h>

static int pshared_mutex_init(pthread_mutex_t *m) {
	pthread_mutexattr_t attr;
	int rc = pthread_mutexattr_init(&attr);
	if (rc != 0) return rc;
	rc = pthread_mutexattr_setpshared(&attr, PTHREAD_PROCESS_SHARED);
	if (rc != 0) { pthread_mutexattr_destroy(&attr); return rc; }
	rc = pthread_mutexattr_setrobust(&attr, PTHREAD_MUTEX_ROBUST);
	if (rc != 0) { pthread_mutexattr_destroy(&attr); return rc; }
	rc = pthread_mutex_init(m, &attr);
	pthread_mutexattr_destroy(&attr);
	return rc;
}

static int pshared_cond_init(pthread_cond_t *c) {
	pthread_condattr_t attr;
	int rc = pthread_condattr_init(&attr);
	if (rc != 0) return rc;
	rc = pthread_condattr_setpshared(&attr, PTHREAD_PROCESS_SHARED);
	if (rc != 0) { pthread_condattr_destroy(&attr); return rc; }
	rc = pthread_condattr_setclock(&attr, CLOCK_MONOTONIC);
	if (rc != 0) { pthread_condattr_destroy(&attr); return rc; }
	rc = pthread_cond_init(c, &attr);
	pthread_condattr_destroy(&attr);
	return rc;
}

// pshared_mutex_lock returns 0 on a clean lock, EOWNERDEAD if a previous
// holder died mid-critical-section (the mutex is now locked and marked
// consistent by this call), or another errno on failure.
static int pshared_mutex_lock(pthread_mutex_t *m) {
	int rc = pthread_mutex_lock(m);
	if (rc == EOWNERDEAD) {
		pthread_mutex_consistent(m);
	}
	return rc;
}

static int pshared_mutex_trylock(pthread_mutex_t *m) {
	int rc = pthread_mutex_trylock(m);
	if (rc == EOWNERDEAD) {
		pthread_mutex_consistent(m);
	}
	return rc;
}

static int pshared_mutex_unlock(pthread_mutex_t *m) {
	return pthread_mutex_unlock(m);
}

static int pshared_cond_wait(pthread_cond_t *c, pthread_mutex_t *m) {
	int rc = pthread_cond_wait(c, m);
	if (rc == EOWNERDEAD) {
		pthread_mutex_consistent(m);
	}
	return rc;
}

static int pshared_cond_timedwait(pthread_cond_t *c, pthread_mutex_t *m, long long sec, long nsec) {
	struct timespec ts;
	ts.tv_sec = (time_t)sec;
	ts.tv_nsec = nsec;
	int rc = pthread_cond_timedwait(c, m, &ts);
	if (rc == EOWNERDEAD) {
		pthread_mutex_consistent(m);
	}
	return rc;
}

static int pshared_cond_signal(pthread_cond_t *c) {
	return pthread_cond_signal(c);
}

static int pshared_cond_broadcast(pthread_cond_t *c) {
	return pthread_cond_broadcast(c);
}

static long long pshared_clock_monotonic_now_sec(long *nsec_out) {
	struct timespec ts;
	clock_gettime(CLOCK_MONOTONIC, &ts);
	*nsec_out = ts.tv_nsec;
	return (long long)ts.tv_sec;
}
*/
import "C"

import (
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"
)

func mutexPtr(h *Header) *C.pthread_mutex_t {
	return (*C.pthread_mutex_t)(unsafe.Pointer(&h.Sync.mutex[0]))
}

func condEmptyPtr(h *Header) *C.pthread_cond_t {
	return (*C.pthread_cond_t)(unsafe.Pointer(&h.Sync.condEmpty[0]))
}

func condFullPtr(h *Header) *C.pthread_cond_t {
	return (*C.pthread_cond_t)(unsafe.Pointer(&h.Sync.condFull[0]))
}

// EnsureInitialized constructs the mutex and both condition variables
// exactly once, per spec.md §3 ("initialized exactly once, in the
// creator, before any other process attaches"). Safe to call from every
// attaching process: only the winner of the initialized CAS performs the
// pthread_*_init calls.
func EnsureInitialized(h *Header) error {
	if atomic.LoadUint32(&h.initialized) == 2 {
		return nil
	}
	if !atomic.CompareAndSwapUint32(&h.initialized, 0, 1) {
		// Another process is initializing (or already has); spin briefly.
		for atomic.LoadUint32(&h.initialized) != 2 {
			time.Sleep(time.Microsecond)
		}
		return nil
	}
	if rc := C.pshared_mutex_init(mutexPtr(h)); rc != 0 {
		return fmt.Errorf("shm: pthread_mutex_init: errno %d", int(rc))
	}
	if rc := C.pshared_cond_init(condEmptyPtr(h)); rc != 0 {
		return fmt.Errorf("shm: pthread_cond_init(not-empty): errno %d", int(rc))
	}
	if rc := C.pshared_cond_init(condFullPtr(h)); rc != 0 {
		return fmt.Errorf("shm: pthread_cond_init(not-full): errno %d", int(rc))
	}
	atomic.StoreUint32(&h.initialized, 2)
	return nil
}

// Lock acquires the header's mutex, blocking. recovered is true if this
// call observed (and cleared) an inconsistent state left by a crashed
// holder; per spec.md §4.2, the caller must then fail the current
// operation without trusting ring state rather than proceed.
func Lock(h *Header) (recovered bool, err error) {
	rc := C.pshared_mutex_lock(mutexPtr(h))
	switch rc {
	case 0:
		return false, nil
	case C.EOWNERDEAD:
		return true, nil
	default:
		return false, fmt.Errorf("shm: pthread_mutex_lock: errno %d", int(rc))
	}
}

// TryLock attempts a non-blocking acquisition. ok is false if already
// held by someone else.
func TryLock(h *Header) (ok, recovered bool, err error) {
	rc := C.pshared_mutex_trylock(mutexPtr(h))
	switch rc {
	case 0:
		return true, false, nil
	case C.EOWNERDEAD:
		return true, true, nil
	case C.EBUSY:
		return false, false, nil
	default:
		return false, false, fmt.Errorf("shm: pthread_mutex_trylock: errno %d", int(rc))
	}
}

// Unlock releases the header's mutex.
func Unlock(h *Header) error {
	if rc := C.pshared_mutex_unlock(mutexPtr(h)); rc != 0 {
		return fmt.Errorf("shm: pthread_mutex_unlock: errno %d", int(rc))
	}
	return nil
}

// Waitable selects which condition variable a Wait call blocks on.
type Waitable int

const (
	NotEmpty Waitable = iota
	NotFull
)

func condPtr(h *Header, w Waitable) *C.pthread_cond_t {
	if w == NotEmpty {
		return condEmptyPtr(h)
	}
	return condFullPtr(h)
}

// Wait blocks on the given condition variable, releasing the mutex for
// the duration, until woken or deadline elapses. deadline is an absolute
// wall-clock time, converted to CLOCK_MONOTONIC by monotonicDeadline; a
// zero Time blocks indefinitely (pthread_cond_wait).
// The mutex is always held again on return, whatever the outcome.
// recovered mirrors Lock's inconsistent-mutex recovery, which can also
// happen on the reacquire inside pthread_cond_(timed)wait.
func Wait(h *Header, w Waitable, deadline time.Time) (timedOut, recovered bool, err error) {
	c := condPtr(h, w)
	m := mutexPtr(h)
	if deadline.IsZero() {
		rc := C.pshared_cond_wait(c, m)
		switch rc {
		case 0:
			return false, false, nil
		case C.EOWNERDEAD:
			return false, true, nil
		default:
			return false, false, fmt.Errorf("shm: pthread_cond_wait: errno %d", int(rc))
		}
	}

	sec, nsec := monotonicDeadline(deadline)
	rc := C.pshared_cond_timedwait(c, m, C.longlong(sec), C.long(nsec))
	switch rc {
	case 0:
		return false, false, nil
	case C.ETIMEDOUT:
		return true, false, nil
	case C.EOWNERDEAD:
		return false, true, nil
	default:
		return false, false, fmt.Errorf("shm: pthread_cond_timedwait: errno %d", int(rc))
	}
}

// monotonicDeadline converts an absolute wall-clock deadline computed by
// the caller (time.Now().Add(timeout)) into an absolute CLOCK_MONOTONIC
// (sec, nsec) pair, by measuring the current offset between the two
// clocks once per call. This keeps the deadline computed a single time
// per blocking call, per spec.md §4.2, while still feeding
// pthread_cond_timedwait the monotonic clock it was initialized with.
func monotonicDeadline(deadline time.Time) (sec int64, nsec int64) {
	var cNsec C.long
	cSec := C.pshared_clock_monotonic_now_sec(&cNsec)
	now := time.Now()
	remaining := deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	total := time.Duration(int64(cSec))*time.Second + time.Duration(int64(cNsec)) + remaining
	return int64(total / time.Second), int64(total % time.Second)
}

// Signal wakes at most one waiter on the given condition variable.
func Signal(h *Header, w Waitable) error {
	if rc := C.pshared_cond_signal(condPtr(h, w)); rc != 0 {
		return fmt.Errorf("shm: pthread_cond_signal: errno %d", int(rc))
	}
	return nil
}

// Broadcast wakes every waiter on the given condition variable.
func Broadcast(h *Header, w Waitable) error {
	if rc := C.pshared_cond_broadcast(condPtr(h, w)); rc != 0 {
		return fmt.Errorf("shm: pthread_cond_broadcast: errno %d", int(rc))
	}
	return nil
}
