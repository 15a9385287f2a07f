package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gowebpki/jcs"
)

// CanonicalJSON serializes v (a Go value — struct, map, slice, or scalar)
// into canonical JSON: object keys sorted lexicographically, no
// insignificant whitespace, numbers in their shortest round-trip form. This
// is the "synthesizing a value programmatically" branch of spec.md §9 open
// question (b); it is the sole pre-hash format for every SHA-256 used for
// identity or chaining (evidence records, Merkle leaves over JSON, key
// attestation fingerprints).
//
// It delegates the RFC 8785 transform to github.com/gowebpki/jcs, which
// already produces the shortest ECMA-262 number representation and
// lexicographic key ordering; Go's encoding/json is used only to get from a
// typed value to a JSON byte string first.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("codec: jcs transform: %w", err)
	}
	return out, nil
}

// CanonicalJSONPreserveNumbers re-canonicalizes an already-serialized JSON
// document (object keys sorted recursively, whitespace stripped) while
// preserving every number exactly as it appeared in the input text. This is
// the "input coming from JSON" branch of spec.md §9 open question (b): it
// is used when re-hashing an externally supplied document (e.g. an ingested
// "json" dialect IngestedDocument, or a SCITT statement being re-hashed for
// comparison) where JCS's numeric reformatting would silently change the
// byte identity of numbers the issuer never touched.
func CanonicalJSONPreserveNumbers(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		buf.WriteString(val.String())
		return nil
	case string:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("codec: unsupported JSON value type %T", v)
	}
}

// SHA256HexOfCanonical is a convenience used throughout the engine: it
// canonicalizes v and returns the lower-case hex SHA-256 of the result.
func SHA256HexOfCanonical(v interface{}) (string, error) {
	b, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	return sha256Hex(b), nil
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
