// Package codec implements the wire encodings shared by every Parley
// component: a minimal CBOR subset (RFC 8949) sufficient for COSE, canonical
// JSON (RFC 8785-flavoured), and unpadded base64url as required by JOSE.
package codec

import "encoding/base64"

// Base64URLEncode returns the unpadded base64url encoding of data, per JOSE
// (RFC 7515 Appendix C).
func Base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// Base64URLDecode decodes an unpadded base64url string. It also accepts
// padded input for leniency when consuming third-party output.
func Base64URLDecode(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
