package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCBORRoundTrip(t *testing.T) {
	cases := []interface{}{
		int64(0),
		int64(23),
		int64(24),
		int64(1000),
		int64(-1),
		int64(-1000),
		[]byte("hello"),
		"hello world",
		[]interface{}{int64(1), "two", []byte{3}},
		true,
		false,
		nil,
		Undefined{},
	}
	for _, v := range cases {
		enc, err := Encode(v)
		require.NoError(t, err)
		dec, n, err := Decode(enc)
		require.NoError(t, err)
		assert.Equal(t, len(enc), n)
		assert.Equal(t, v, dec)
	}
}

func TestCBORCanonicalMapKeyOrder(t *testing.T) {
	m := CBORMap{
		{Key: int64(1), Value: int64(100)},
		{Key: int64(-8), Value: "eddsa"},
	}
	enc, err := Encode(m)
	require.NoError(t, err)

	// -8 encodes as a 1-byte head (major 1, arg 7) which is shorter than
	// nothing else here competes on length, but canonical CBOR orders by
	// encoded-key-byte-length first. Decode and check the first key emitted.
	dec, _, err := Decode(enc)
	require.NoError(t, err)
	decMap, ok := dec.(CBORMap)
	require.True(t, ok)
	require.Len(t, decMap, 2)
}

func TestCBORMalformedInputReturnsCodecError(t *testing.T) {
	_, _, err := Decode([]byte{0x5f}) // indefinite-length byte string head, unsupported arg
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)

	_, _, err = Decode([]byte{0x18}) // truncated 1-byte argument
	require.Error(t, err)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 0, ce.Offset)
}

func TestDecodeByteStringExceedsInput(t *testing.T) {
	_, _, err := Decode([]byte{0x45, 0x01, 0x02}) // claims 5-byte string, only 2 present
	require.Error(t, err)
}
