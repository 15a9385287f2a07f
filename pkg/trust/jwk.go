package trust

import (
	"crypto/ed25519"
	"fmt"

	"github.com/corsair-parley/parley/pkg/codec"
)

// Ed25519PublicKeyFromJWK imports an OKP/Ed25519 JsonWebKey2020 map into
// an ed25519.PublicKey.
func Ed25519PublicKeyFromJWK(jwk map[string]interface{}) (ed25519.PublicKey, error) {
	kty, _ := jwk["kty"].(string)
	crv, _ := jwk["crv"].(string)
	x, _ := jwk["x"].(string)
	if kty != "OKP" || crv != "Ed25519" || x == "" {
		return nil, fmt.Errorf("trust: unsupported jwk (kty=%q crv=%q)", kty, crv)
	}
	raw, err := codec.Base64URLDecode(x)
	if err != nil {
		return nil, fmt.Errorf("trust: decode jwk x: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("trust: jwk x has wrong length %d", len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// Ed25519JWKFromPublicKey exports an ed25519.PublicKey as an OKP JWK map,
// in the canonical key order (crv, kty, x) used for fingerprinting.
func Ed25519JWKFromPublicKey(pub ed25519.PublicKey) map[string]interface{} {
	return map[string]interface{}{
		"kty": "OKP",
		"crv": "Ed25519",
		"x":   codec.Base64URLEncode(pub),
	}
}
