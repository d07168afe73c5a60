// File: codec/codec_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package codec

import (
	"errors"
	"testing"

	"github.com/momentics/shmqueue/api"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string
	Count int
}

func init() {
	// gob requires concrete types carried under an any field be registered.
	RegisterGobType(sample{})
}

func TestJSONRoundTrip(t *testing.T) {
	c := JSONCodec{}
	b, err := c.Serialize(map[string]any{"a": 1.0, "b": "x"})
	require.NoError(t, err)

	v, err := c.Deserialize(b)
	require.NoError(t, err)
	m, ok := v.(map[string]any)
	require.True(t, ok)
	require.Equal(t, 1.0, m["a"])
	require.Equal(t, "x", m["b"])
}

func TestGobRoundTrip(t *testing.T) {
	c := GobCodec{}
	in := sample{Name: "widget", Count: 3}
	b, err := c.Serialize(in)
	require.NoError(t, err)

	v, err := c.Deserialize(b)
	require.NoError(t, err)
	out, ok := v.(sample)
	require.True(t, ok)
	require.Equal(t, in, out)
}

type failingCodec struct{}

func (failingCodec) Serialize(any) ([]byte, error)   { return nil, errors.New("boom") }
func (failingCodec) Deserialize([]byte) (any, error) { return nil, errors.New("boom") }

func TestSerializeWrapsError(t *testing.T) {
	_, err := Serialize(failingCodec{}, 1)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, api.ErrCodeSerializeFailed, apiErr.Code)
	require.EqualError(t, apiErr.Unwrap(), "boom")
}

func TestDeserializeWrapsError(t *testing.T) {
	_, err := Deserialize(failingCodec{}, nil)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, api.ErrCodeDeserializeFailed, apiErr.Code)
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	c, err := r.Lookup("json")
	require.NoError(t, err)
	require.IsType(t, JSONCodec{}, c)

	_, err = r.Lookup("does-not-exist")
	require.Error(t, err)
}
