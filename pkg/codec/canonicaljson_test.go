package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalJSONKeyOrderInsensitive(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": 2, "c": map[string]interface{}{"z": 1, "y": 2}}
	b := map[string]interface{}{"c": map[string]interface{}{"y": 2, "z": 1}, "a": 2, "b": 1}

	ca, err := CanonicalJSON(a)
	require.NoError(t, err)
	cb, err := CanonicalJSON(b)
	require.NoError(t, err)
	assert.Equal(t, string(ca), string(cb))
	assert.NotContains(t, string(ca), " ")
}

func TestCanonicalJSONPreserveNumbersKeepsLiteralText(t *testing.T) {
	raw := []byte(`{"b": 1.50, "a": 100}`)
	out, err := CanonicalJSONPreserveNumbers(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"a":100,"b":1.50}`, string(out))
}

func TestSHA256HexOfCanonicalDeterministic(t *testing.T) {
	h1, err := SHA256HexOfCanonical(map[string]interface{}{"x": 1, "y": 2})
	require.NoError(t, err)
	h2, err := SHA256HexOfCanonical(map[string]interface{}{"y": 2, "x": 1})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}
