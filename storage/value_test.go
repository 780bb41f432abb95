package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := map[string]any{"a": float64(1), "nested": map[string]any{"b": "x"}}

	data, err := EncodeValue(original)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  "), "values are indented JSON")

	decoded, err := DecodeValue(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecodeValueCorrupt(t *testing.T) {
	_, err := DecodeValue([]byte("{not json"))
	require.ErrorIs(t, err, ErrCorruption)
}

func TestCloneValueIndependence(t *testing.T) {
	original := map[string]any{"list": []any{float64(1)}}

	clone, err := CloneValue(original)
	require.NoError(t, err)
	clone.(map[string]any)["list"].([]any)[0] = float64(99)

	assert.Equal(t, float64(1), original["list"].([]any)[0])
}

func TestCloneValueNil(t *testing.T) {
	clone, err := CloneValue(nil)
	require.NoError(t, err)
	assert.Nil(t, clone)
}

func TestCanonicalJSON(t *testing.T) {
	got, err := CanonicalJSON(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got)
}
