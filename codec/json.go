// File: codec/json.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package codec

import "encoding/json"

// JSONCodec serializes values with encoding/json. It round-trips into
// map[string]any / []any / primitives on Deserialize unless the caller
// re-marshals into a concrete type themselves.
type JSONCodec struct{}

func (JSONCodec) Serialize(value any) ([]byte, error) {
	return json.Marshal(value)
}

func (JSONCodec) Deserialize(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
