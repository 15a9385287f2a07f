package cryptocore

import (
	"crypto/ed25519"

	"github.com/corsair-parley/parley/pkg/codec"
)

// AlgEdDSA is the COSE algorithm label for EdDSA (RFC 8152 §8.2), the
// default (and only) algorithm this package signs with.
const AlgEdDSA = -8

// algHeaderLabel is the COSE protected-header label for "alg" (RFC 9052 §3.1).
const algHeaderLabel = 1

// Sig_structure context string for a single-signer COSE object.
const sigStructureContext = "Signature1"

// CoseSign1 produces a COSE_Sign1 structure (RFC 9052 §4.2) over payload,
// signed with priv using EdDSA. protectedHeaders defaults to {1: -8} (alg:
// EdDSA) when nil. Unprotected headers are always the empty map, per
// spec.md §4.2.
func CoseSign1(payload []byte, priv ed25519.PrivateKey, protectedHeaders codec.CBORMap) ([]byte, error) {
	if protectedHeaders == nil {
		protectedHeaders = codec.CBORMap{{Key: int64(algHeaderLabel), Value: int64(AlgEdDSA)}}
	}

	protectedBytes, err := codec.Encode(protectedHeaders)
	if err != nil {
		return nil, err
	}

	sigStructure := []interface{}{
		sigStructureContext,
		protectedBytes,
		[]byte{}, // external_aad, always empty
		payload,
	}
	toBeSigned, err := codec.Encode(sigStructure)
	if err != nil {
		return nil, err
	}

	signature := Sign(priv, toBeSigned)

	envelope := []interface{}{
		protectedBytes,
		codec.CBORMap{}, // unprotected headers, always empty
		payload,
		signature,
	}
	return codec.Encode(envelope)
}

// CoseVerify1 decodes a COSE_Sign1 structure and verifies its Ed25519
// signature under pub. Every failure mode (tampered payload, wrong key,
// malformed CBOR) collapses to verified=false with an empty payload; no
// error escapes, matching spec.md §4.2.
func CoseVerify1(envelopeBytes []byte, pub ed25519.PublicKey) (verified bool, payload []byte) {
	decoded, _, err := codec.Decode(envelopeBytes)
	if err != nil {
		return false, nil
	}
	arr, ok := decoded.([]interface{})
	if !ok || len(arr) != 4 {
		return false, nil
	}

	protectedBytes, ok := arr[0].([]byte)
	if !ok {
		return false, nil
	}
	payloadBytes, ok := arr[2].([]byte)
	if !ok {
		return false, nil
	}
	signature, ok := arr[3].([]byte)
	if !ok {
		return false, nil
	}

	sigStructure := []interface{}{
		sigStructureContext,
		protectedBytes,
		[]byte{},
		payloadBytes,
	}
	toBeSigned, err := codec.Encode(sigStructure)
	if err != nil {
		return false, nil
	}

	if !Verify(pub, toBeSigned, signature) {
		return false, nil
	}
	return true, payloadBytes
}

// DecodeCoseSign1Protected extracts and decodes the protected header map of
// a COSE_Sign1 envelope without verifying it, used by callers that need to
// inspect the algorithm before choosing a key.
func DecodeCoseSign1Protected(envelopeBytes []byte) (codec.CBORMap, error) {
	decoded, _, err := codec.Decode(envelopeBytes)
	if err != nil {
		return nil, err
	}
	arr, ok := decoded.([]interface{})
	if !ok || len(arr) != 4 {
		return nil, &codec.CodecError{Offset: 0, Reason: "not a COSE_Sign1 array"}
	}
	protectedBytes, ok := arr[0].([]byte)
	if !ok {
		return nil, &codec.CodecError{Offset: 0, Reason: "protected header is not a byte string"}
	}
	if len(protectedBytes) == 0 {
		return codec.CBORMap{}, nil
	}
	decodedHeaders, _, err := codec.Decode(protectedBytes)
	if err != nil {
		return nil, err
	}
	headerMap, ok := decodedHeaders.(codec.CBORMap)
	if !ok {
		return nil, &codec.CodecError{Offset: 0, Reason: "protected header is not a map"}
	}
	return headerMap, nil
}
