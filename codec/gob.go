// File: codec/gob.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package codec

import (
	"bytes"
	"encoding/gob"
)

// GobCodec serializes values with encoding/gob. Deserialize yields
// whatever concrete type was encoded, boxed as any, so callers that need
// a specific type should type-assert the result.
type GobCodec struct{}

func (GobCodec) Serialize(value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GobCodec) Deserialize(data []byte) (any, error) {
	var v any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// RegisterGobType registers a concrete type with the default gob encoder,
// required before GobCodec can carry it boxed inside an any field.
func RegisterGobType(value any) {
	gob.Register(value)
}
