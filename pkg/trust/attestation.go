package trust

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/corsair-parley/parley/pkg/codec"
)

// AttestationScope bounds what a key attestation authorizes.
type AttestationScope struct {
	Frameworks []string  `json:"frameworks,omitempty"`
	ValidFrom  time.Time `json:"validFrom"`
	ValidUntil time.Time `json:"validUntil"`
}

// AttestationPayload is the JWT payload of a CorsairKeyAttestation
// (spec.md §4.6.3).
type AttestationPayload struct {
	Iss                string           `json:"iss"`
	Sub                string           `json:"sub"`
	Type               string           `json:"type"`
	Scope              AttestationScope `json:"scope"`
	OrgKeyFingerprint  string           `json:"orgKeyFingerprint"`
	Iat                int64            `json:"iat"`
	Exp                int64            `json:"exp"`
}

// Signer is the narrow capability needed to produce an attestation JWT.
type Signer interface {
	Sign(keyID string, data []byte) ([]byte, error)
}

// JWKFingerprint computes the deterministic SHA-256 fingerprint of a JWK:
// canonical JSON with sorted keys, lower-case hex (spec.md §4.6.3).
func JWKFingerprint(jwk map[string]interface{}) (string, error) {
	canon, err := codec.CanonicalJSON(jwk)
	if err != nil {
		return "", fmt.Errorf("trust: canonicalize jwk: %w", err)
	}
	h := sha256.Sum256(canon)
	return hex.EncodeToString(h[:]), nil
}

// AttestOrgKey builds and signs a key attestation under rootKeyID, per
// spec.md §4.6.3.
func AttestOrgKey(signer Signer, rootKeyID, rootDid, orgDid string, orgJWK map[string]interface{}, scope AttestationScope) (string, error) {
	fingerprint, err := JWKFingerprint(orgJWK)
	if err != nil {
		return "", err
	}

	header := map[string]interface{}{"alg": "EdDSA", "typ": "attestation+jwt", "kid": rootDid + "#key-1"}
	payload := AttestationPayload{
		Iss:               rootDid,
		Sub:               orgDid,
		Type:              "CorsairKeyAttestation",
		Scope:             scope,
		OrgKeyFingerprint: fingerprint,
		Iat:               scope.ValidFrom.Unix(),
		Exp:               scope.ValidUntil.Unix(),
	}

	headerB, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	payloadB, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	signingInput := codec.Base64URLEncode(headerB) + "." + codec.Base64URLEncode(payloadB)
	sig, err := signer.Sign(rootKeyID, []byte(signingInput))
	if err != nil {
		return "", fmt.Errorf("trust: sign attestation: %w", err)
	}
	return signingInput + "." + codec.Base64URLEncode(sig), nil
}

// AttestationResult is the outcome of VerifyKeyAttestation.
type AttestationResult struct {
	Valid   bool
	Payload *AttestationPayload
}

// VerifyKeyAttestation checks an attestation JWT's signature under
// rootPub and its expiration, returning the decoded payload on success.
func VerifyKeyAttestation(attestationJWT string, rootPub ed25519.PublicKey, now time.Time) AttestationResult {
	parts, ok := splitJWT(attestationJWT)
	if !ok {
		return AttestationResult{}
	}
	signingInput := []byte(parts[0] + "." + parts[1])
	sig, err := codec.Base64URLDecode(parts[2])
	if err != nil || jwt.SigningMethodEdDSA.Verify(string(signingInput), sig, rootPub) != nil {
		return AttestationResult{}
	}

	raw, err := codec.Base64URLDecode(parts[1])
	if err != nil {
		return AttestationResult{}
	}
	var payload AttestationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return AttestationResult{}
	}
	if payload.Exp*1000 <= now.UnixMilli() {
		return AttestationResult{}
	}
	return AttestationResult{Valid: true, Payload: &payload}
}

// ChainReason names chain-verification failure reasons (spec.md §7).
type ChainReason string

const (
	ChainReasonAttestationInvalid ChainReason = "attestation_invalid"
	ChainReasonFingerprintMismatch ChainReason = "fingerprint_mismatch"
	ChainReasonScopeViolation     ChainReason = "scope_violation"
	ChainReasonCPOEInvalid        ChainReason = "cpoe_invalid"
)

// TrustLevel is the final tier of a chain verification.
type TrustLevel string

const (
	TrustLevelChainVerified TrustLevel = "chain-verified"
	TrustLevelSelfSigned    TrustLevel = "self-signed"
	TrustLevelInvalid       TrustLevel = "invalid"
)

// ChainResult is the outcome of VerifyChain.
type ChainResult struct {
	Valid      bool
	Reason     ChainReason
	Chain      []string
	TrustLevel TrustLevel
}

// VerifyChain implements spec.md §4.6.3's full chain check: root ->
// attestation -> org key -> CPOE.
func VerifyChain(cpoeJWT, attestationJWT string, rootPub ed25519.PublicKey, orgJWK map[string]interface{}, cpoeFrameworks []string, now time.Time) ChainResult {
	attResult := VerifyKeyAttestation(attestationJWT, rootPub, now)
	if !attResult.Valid {
		return ChainResult{Reason: ChainReasonAttestationInvalid, TrustLevel: TrustLevelInvalid}
	}

	orgFingerprint, err := JWKFingerprint(orgJWK)
	if err != nil || orgFingerprint != attResult.Payload.OrgKeyFingerprint {
		return ChainResult{Reason: ChainReasonFingerprintMismatch, TrustLevel: TrustLevelInvalid}
	}

	orgPub, err := Ed25519PublicKeyFromJWK(orgJWK)
	if err != nil {
		return ChainResult{Reason: ChainReasonCPOEInvalid, TrustLevel: TrustLevelInvalid}
	}
	cpoeResult := Verify(cpoeJWT, []ed25519.PublicKey{orgPub}, now)
	if !cpoeResult.Valid {
		return ChainResult{Reason: ChainReasonCPOEInvalid, TrustLevel: TrustLevelInvalid}
	}

	if !scopeAllows(attResult.Payload.Scope, cpoeFrameworks) {
		return ChainResult{Reason: ChainReasonScopeViolation, TrustLevel: TrustLevelInvalid}
	}

	if now.Before(attResult.Payload.Scope.ValidFrom) || now.After(attResult.Payload.Scope.ValidUntil) {
		return ChainResult{Reason: ChainReasonAttestationInvalid, TrustLevel: TrustLevelInvalid}
	}

	return ChainResult{Valid: true, Chain: []string{"root", "attestation", "cpoe"}, TrustLevel: TrustLevelChainVerified}
}

func scopeAllows(scope AttestationScope, claimed []string) bool {
	if len(scope.Frameworks) == 0 {
		return true
	}
	allowed := make(map[string]bool, len(scope.Frameworks))
	for _, f := range scope.Frameworks {
		allowed[strings.ToUpper(f)] = true
	}
	for _, c := range claimed {
		if !allowed[strings.ToUpper(c)] {
			return false
		}
	}
	return true
}
