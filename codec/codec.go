// File: codec/codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// External serializer adapter: spec.md deliberately keeps the
// serialization of host-language values into bytes out of the queue
// core. Codec is that pluggable pair; Registry lets a Handle cross a
// process boundary carrying only a codec name (see facade.Handle),
// following the teacher's adapters/ pattern of a thin wrapper translating
// an external shape into the library's own contracts.

package codec

import (
	"fmt"
	"sync"

	"github.com/momentics/shmqueue/api"
)

// Codec serializes/deserializes user values to/from the byte payloads the
// ring stores. Serialize is always called before any lock is taken;
// Deserialize is always called after the lock has been released, per
// spec.md §5.
type Codec interface {
	Serialize(value any) ([]byte, error)
	Deserialize(data []byte) (any, error)
}

// Serialize wraps a user codec's Serialize, translating its error into
// api.SerializeFailed so failures surface uniformly regardless of codec.
func Serialize(c Codec, value any) ([]byte, error) {
	b, err := c.Serialize(value)
	if err != nil {
		return nil, api.SerializeFailed(err)
	}
	return b, nil
}

// Deserialize wraps a user codec's Deserialize, translating its error
// into api.DeserializeFailed.
func Deserialize(c Codec, data []byte) (any, error) {
	v, err := c.Deserialize(data)
	if err != nil {
		return nil, api.DeserializeFailed(err)
	}
	return v, nil
}

// Registry is a process-global named lookup of Codec implementations, so
// a facade.Handle can carry a codec name across a process boundary
// instead of a non-serializable closure pair.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Codec
}

// NewRegistry returns an empty registry pre-populated with the built-in
// gob and JSON codecs under the names "gob" and "json".
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[string]Codec)}
	r.Register("gob", GobCodec{})
	r.Register("json", JSONCodec{})
	return r
}

// Register adds or replaces the codec under name.
func (r *Registry) Register(name string, c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[name] = c
}

// Lookup returns the codec registered under name.
func (r *Registry) Lookup(name string) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[name]
	if !ok {
		return nil, fmt.Errorf("codec: no codec registered under name %q", name)
	}
	return c, nil
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide default registry, pre-populated with
// the built-in codecs.
func Default() *Registry { return defaultRegistry }
