package codec

import (
	"bytes"
	"fmt"
	"math"
	"sort"
)

// CodecError is returned for any malformed CBOR input. It carries the byte
// offset at which decoding failed and a human-readable reason, so that a
// decoder never panics or returns a bare error on adversarial input.
type CodecError struct {
	Offset int
	Reason string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec: offset %d: %s", e.Offset, e.Reason)
}

// Undefined is the CBOR "undefined" simple value (major type 7, value 23).
type Undefined struct{}

// MapEntry is a single key/value pair of a decoded CBOR map. Decoding
// preserves the entry order as it appeared on the wire; encoding of
// integer-keyed maps re-orders entries into canonical CBOR order (shortest
// encoded key first, ties broken by byte-lexicographic order) regardless of
// the order MapEntry values are supplied in.
type MapEntry struct {
	Key   interface{}
	Value interface{}
}

// CBORMap is an ordered CBOR map value, used both for encoding (callers
// build one directly when key order/type must be controlled, e.g. COSE
// headers) and decoding (Decode always returns a CBORMap for major type 5).
type CBORMap []MapEntry

const (
	majorUnsigned   = 0
	majorNegative   = 1
	majorByteString = 2
	majorTextString = 3
	majorArray      = 4
	majorMap        = 5
	majorSimple     = 7
)

const (
	simpleFalse     = 20
	simpleTrue      = 21
	simpleNull      = 22
	simpleUndefined = 23
)

// Encode serializes v into the CBOR subset described by spec §4.1:
// unsigned/negative integers, byte strings, text strings, arrays, maps
// (including integer keys), and the simple values true/false/null/undefined.
//
// Supported Go types: nil, bool, int/int8/../int64, uint/../uint64,
// []byte, string, []interface{}, CBORMap, map[string]interface{} (encoded
// as a text-keyed map with keys sorted by canonical CBOR byte order),
// Undefined.
func Encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		return encodeSimple(buf, simpleNull)
	case Undefined:
		return encodeSimple(buf, simpleUndefined)
	case bool:
		if val {
			return encodeSimple(buf, simpleTrue)
		}
		return encodeSimple(buf, simpleFalse)
	case []byte:
		encodeHead(buf, majorByteString, uint64(len(val)))
		buf.Write(val)
		return nil
	case string:
		encodeHead(buf, majorTextString, uint64(len(val)))
		buf.WriteString(val)
		return nil
	case []interface{}:
		encodeHead(buf, majorArray, uint64(len(val)))
		for _, item := range val {
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		return nil
	case CBORMap:
		return encodeCanonicalMap(buf, val)
	case map[string]interface{}:
		entries := make(CBORMap, 0, len(val))
		for k, mv := range val {
			entries = append(entries, MapEntry{Key: k, Value: mv})
		}
		return encodeCanonicalMap(buf, entries)
	case map[int]interface{}:
		entries := make(CBORMap, 0, len(val))
		for k, mv := range val {
			entries = append(entries, MapEntry{Key: k, Value: mv})
		}
		return encodeCanonicalMap(buf, entries)
	default:
		if n, ok := toInt64(v); ok {
			return encodeInt(buf, n)
		}
		return fmt.Errorf("codec: unsupported type %T", v)
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func encodeInt(buf *bytes.Buffer, n int64) error {
	if n >= 0 {
		encodeHead(buf, majorUnsigned, uint64(n))
		return nil
	}
	encodeHead(buf, majorNegative, uint64(-(n + 1)))
	return nil
}

func encodeSimple(buf *bytes.Buffer, simple byte) error {
	encodeHead(buf, majorSimple, uint64(simple))
	return nil
}

// encodeHead writes a major type + argument, using the shortest possible
// length-of-length encoding (CBOR deterministic encoding, RFC 8949 §4.2.1).
func encodeHead(buf *bytes.Buffer, major byte, n uint64) {
	switch {
	case n < 24:
		buf.WriteByte(major<<5 | byte(n))
	case n <= 0xff:
		buf.WriteByte(major<<5 | 24)
		buf.WriteByte(byte(n))
	case n <= 0xffff:
		buf.WriteByte(major<<5 | 25)
		buf.WriteByte(byte(n >> 8))
		buf.WriteByte(byte(n))
	case n <= 0xffffffff:
		buf.WriteByte(major<<5 | 26)
		for i := 3; i >= 0; i-- {
			buf.WriteByte(byte(n >> (8 * uint(i))))
		}
	default:
		buf.WriteByte(major<<5 | 27)
		for i := 7; i >= 0; i-- {
			buf.WriteByte(byte(n >> (8 * uint(i))))
		}
	}
}

// encodeCanonicalMap emits a CBOR map with entries reordered into canonical
// order: each entry's encoded key bytes are compared, shortest-first, ties
// broken lexicographically (RFC 8949 §4.2.1 "deterministic encoding").
func encodeCanonicalMap(buf *bytes.Buffer, entries CBORMap) error {
	type encoded struct {
		keyBytes   []byte
		valueBytes []byte
	}
	out := make([]encoded, len(entries))
	for i, e := range entries {
		kb, err := Encode(e.Key)
		if err != nil {
			return fmt.Errorf("codec: map key: %w", err)
		}
		vb, err := Encode(e.Value)
		if err != nil {
			return fmt.Errorf("codec: map value: %w", err)
		}
		out[i] = encoded{keyBytes: kb, valueBytes: vb}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].keyBytes) != len(out[j].keyBytes) {
			return len(out[i].keyBytes) < len(out[j].keyBytes)
		}
		return bytes.Compare(out[i].keyBytes, out[j].keyBytes) < 0
	})
	encodeHead(buf, majorMap, uint64(len(out)))
	for _, e := range out {
		buf.Write(e.keyBytes)
		buf.Write(e.valueBytes)
	}
	return nil
}

// Decode parses a single CBOR value from data and returns it alongside the
// number of bytes consumed. Decoding is total on well-formed input; any
// malformed input returns a single *CodecError carrying the offset at which
// decoding failed.
func Decode(data []byte) (interface{}, int, error) {
	v, n, err := decodeValue(data, 0)
	if err != nil {
		return nil, 0, err
	}
	return v, n, nil
}

func decodeValue(data []byte, offset int) (interface{}, int, error) {
	if offset >= len(data) {
		return nil, 0, &CodecError{Offset: offset, Reason: "unexpected end of input"}
	}
	first := data[offset]
	major := first >> 5
	arg := first & 0x1f

	n, headLen, err := decodeArgument(data, offset, arg)
	if err != nil {
		return nil, 0, err
	}
	pos := offset + headLen

	switch major {
	case majorUnsigned:
		return int64(n), pos - offset, checkOverflow(n, offset)
	case majorNegative:
		return -int64(n) - 1, pos - offset, checkOverflow(n, offset)
	case majorByteString:
		end := pos + int(n)
		if end > len(data) || end < pos {
			return nil, 0, &CodecError{Offset: offset, Reason: "byte string exceeds input"}
		}
		out := make([]byte, n)
		copy(out, data[pos:end])
		return out, end - offset, nil
	case majorTextString:
		end := pos + int(n)
		if end > len(data) || end < pos {
			return nil, 0, &CodecError{Offset: offset, Reason: "text string exceeds input"}
		}
		return string(data[pos:end]), end - offset, nil
	case majorArray:
		items := make([]interface{}, 0, n)
		cur := pos
		for i := uint64(0); i < n; i++ {
			item, consumed, err := decodeValue(data, cur)
			if err != nil {
				return nil, 0, err
			}
			items = append(items, item)
			cur += consumed
		}
		return items, cur - offset, nil
	case majorMap:
		entries := make(CBORMap, 0, n)
		cur := pos
		for i := uint64(0); i < n; i++ {
			key, kc, err := decodeValue(data, cur)
			if err != nil {
				return nil, 0, err
			}
			cur += kc
			val, vc, err := decodeValue(data, cur)
			if err != nil {
				return nil, 0, err
			}
			cur += vc
			entries = append(entries, MapEntry{Key: key, Value: val})
		}
		return entries, cur - offset, nil
	case majorSimple:
		switch arg {
		case simpleFalse:
			return false, pos - offset, nil
		case simpleTrue:
			return true, pos - offset, nil
		case simpleNull:
			return nil, pos - offset, nil
		case simpleUndefined:
			return Undefined{}, pos - offset, nil
		default:
			return nil, 0, &CodecError{Offset: offset, Reason: "unsupported simple value"}
		}
	default:
		return nil, 0, &CodecError{Offset: offset, Reason: "unsupported major type"}
	}
}

func checkOverflow(n uint64, offset int) error {
	if n > math.MaxInt64 {
		return &CodecError{Offset: offset, Reason: "integer overflows int64"}
	}
	return nil
}

// decodeArgument reads the length/argument encoding following a head byte
// and returns (value, totalHeadBytesConsumed, error).
func decodeArgument(data []byte, offset int, arg byte) (uint64, int, error) {
	switch {
	case arg < 24:
		return uint64(arg), 1, nil
	case arg == 24:
		if offset+2 > len(data) {
			return 0, 0, &CodecError{Offset: offset, Reason: "truncated 1-byte argument"}
		}
		return uint64(data[offset+1]), 2, nil
	case arg == 25:
		if offset+3 > len(data) {
			return 0, 0, &CodecError{Offset: offset, Reason: "truncated 2-byte argument"}
		}
		return uint64(data[offset+1])<<8 | uint64(data[offset+2]), 3, nil
	case arg == 26:
		if offset+5 > len(data) {
			return 0, 0, &CodecError{Offset: offset, Reason: "truncated 4-byte argument"}
		}
		var n uint64
		for i := 1; i <= 4; i++ {
			n = n<<8 | uint64(data[offset+i])
		}
		return n, 5, nil
	case arg == 27:
		if offset+9 > len(data) {
			return 0, 0, &CodecError{Offset: offset, Reason: "truncated 8-byte argument"}
		}
		var n uint64
		for i := 1; i <= 8; i++ {
			n = n<<8 | uint64(data[offset+i])
		}
		return n, 9, nil
	default:
		return 0, 0, &CodecError{Offset: offset, Reason: "reserved/unsupported argument encoding"}
	}
}
