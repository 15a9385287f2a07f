package trust

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/corsair-parley/parley/pkg/codec"
)

// StapleState is the current-ness claim a freshness staple carries.
type StapleState string

const (
	StapleCurrent StapleState = "current"
	StapleRevoked StapleState = "revoked"
)

// StaplePayload is the payload of a freshness staple JWT (spec.md §4.6.5).
type StaplePayload struct {
	MarqueID string      `json:"marqueId"`
	State    StapleState `json:"state"`
	Iat      int64       `json:"iat"`
	Exp      int64       `json:"exp"`
}

// IssueStaple builds and signs a short-lived freshness staple under the
// same org key that signed the CPOE.
func IssueStaple(signer Signer, keyID, marqueID string, state StapleState, now time.Time, ttl time.Duration) (string, error) {
	payload := StaplePayload{MarqueID: marqueID, State: state, Iat: now.Unix(), Exp: now.Add(ttl).Unix()}
	header := map[string]interface{}{"alg": "EdDSA", "typ": "staple+jwt"}

	headerB, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	payloadB, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	signingInput := codec.Base64URLEncode(headerB) + "." + codec.Base64URLEncode(payloadB)
	sig, err := signer.Sign(keyID, []byte(signingInput))
	if err != nil {
		return "", fmt.Errorf("trust: sign staple: %w", err)
	}
	return signingInput + "." + codec.Base64URLEncode(sig), nil
}

// VerifyStaple checks a staple's signature and expiry, and that it
// references marqueID and claims "current". Absence or failure of a
// staple degrades trust but never invalidates the underlying CPOE
// (spec.md §4.6.5); callers decide how to fold this into the final tier.
func VerifyStaple(staple string, pub ed25519.PublicKey, marqueID string, now time.Time) bool {
	parts, ok := splitJWT(staple)
	if !ok {
		return false
	}
	signingInput := []byte(parts[0] + "." + parts[1])
	sig, err := codec.Base64URLDecode(parts[2])
	if err != nil || jwt.SigningMethodEdDSA.Verify(string(signingInput), sig, pub) != nil {
		return false
	}
	raw, err := codec.Base64URLDecode(parts[1])
	if err != nil {
		return false
	}
	var payload StaplePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return false
	}
	if payload.MarqueID != marqueID || payload.State != StapleCurrent {
		return false
	}
	return payload.Exp > now.Unix()
}
