// File: facade/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package facade

import (
	"time"

	"github.com/c2h5oh/datasize"
	"go.uber.org/zap"
)

// Config configures a new queue's backing region, codec, and per-handle
// scratch sizing. Grounded on the teacher's own facade.Config/DefaultConfig
// shape, with byte-size fields switched to datasize.ByteSize so callers
// (and cmd/shmqctl flags) can write "64MB" instead of a raw integer.
type Config struct {
	// Path is the backing region's filesystem path. A bare name (no
	// directory separator) resolves under internal/shm.DefaultDir
	// (/dev/shm); an absolute or relative path is used as-is.
	Path string

	// Capacity is the ring's usable byte capacity, excluding the header.
	Capacity datasize.ByteSize

	// Codec names the registered codec.Codec used to (de)serialize
	// values. Always looked up in codec.Default(); Config has no field for
	// a different registry.
	Codec string

	// ScratchInit is the initial per-handle scratch budget for GetMany.
	ScratchInit datasize.ByteSize

	// PutTimeout bounds how long Put/PutMany will block waiting for room
	// in the ring when the caller's own ctx carries no deadline; it has
	// no effect if ctx already has one. GetTimeout analogously bounds
	// each poll iteration of RunConsumers' drain loop.
	PutTimeout time.Duration
	GetTimeout time.Duration

	// CPUSet sets RunConsumers' dispatcher worker count (one worker per
	// entry) and, when non-empty, the CPU that RunConsumers' drain
	// goroutine pins its current OS thread to (CPUSet[0], via
	// affinity.SetAffinity). The dispatcher's worker goroutines are not
	// pinned.
	CPUSet []int

	EnableMetrics bool

	// Logger receives structured diagnostics for region attach/detach and
	// consumer-loop errors. Defaults to zap.NewNop() when unset, matching
	// the teacher's pattern of accepting an injected *zap.SugaredLogger
	// rather than constructing one internally.
	Logger *zap.Logger
}

// DefaultConfig returns a baseline configuration suitable for most
// single-host IPC uses.
func DefaultConfig() Config {
	return Config{
		Capacity:      1 * datasize.MB,
		Codec:         "json",
		ScratchInit:   5000 * datasize.B,
		PutTimeout:    5 * time.Second,
		GetTimeout:    5 * time.Second,
		EnableMetrics: true,
	}
}
