package trust

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/corsair-parley/parley/pkg/codec"
)

// Reason is one of the discriminated verification-failure reasons of
// spec.md §7.
type Reason string

const (
	ReasonSchemaInvalid     Reason = "schema_invalid"
	ReasonSignatureInvalid  Reason = "signature_invalid"
	ReasonExpired           Reason = "expired"
	ReasonUnverifiable      Reason = "unverifiable"
	ReasonInvalid           Reason = "invalid"
	ReasonCancelled         Reason = "cancelled"
)

// IssuerTier is the user-visible trust tier of spec.md §4.6.2/§7.
type IssuerTier string

const (
	TierCorsairVerified IssuerTier = "corsair-verified"
	TierSelfSigned      IssuerTier = "self-signed"
	TierUnverifiable    IssuerTier = "unverifiable"
	TierInvalid         IssuerTier = "invalid"
)

const corsairRootPrefix = "did:web:grcorsair.com"

// IssuerTierForDID derives the issuer tier from the issuer DID alone,
// independent of signature verification outcome, per spec.md §4.6.2.
func IssuerTierForDID(issuerDID string) IssuerTier {
	switch {
	case strings.HasPrefix(issuerDID, corsairRootPrefix):
		return TierCorsairVerified
	case strings.HasPrefix(issuerDID, "did:web:"):
		return TierSelfSigned
	default:
		return TierUnverifiable
	}
}

// VerificationResult is the outcome of Verify/VerifyViaDID.
type VerificationResult struct {
	Valid      bool
	Reason     Reason
	IssuerTier IssuerTier
	Issuer     string
	Payload    map[string]interface{}
}

func invalidResult(reason Reason) VerificationResult {
	return VerificationResult{Valid: false, Reason: reason, IssuerTier: TierInvalid}
}

// splitJWT returns the three raw segments of a compact JWT, or ok=false if
// the structure is wrong.
func splitJWT(jwt string) ([]string, bool) {
	parts := strings.Split(jwt, ".")
	if len(parts) != 3 {
		return nil, false
	}
	return parts, true
}

func decodePayload(parts []string) (map[string]interface{}, bool) {
	raw, err := codec.Base64URLDecode(parts[1])
	if err != nil {
		return nil, false
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}
	return payload, true
}

func decodeHeader(parts []string) (map[string]interface{}, bool) {
	raw, err := codec.Base64URLDecode(parts[0])
	if err != nil {
		return nil, false
	}
	var header map[string]interface{}
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, false
	}
	return header, true
}

func validateCredentialClaims(payload map[string]interface{}) bool {
	vc, ok := payload["vc"].(map[string]interface{})
	if !ok {
		return false
	}
	ctxOK := false
	switch c := vc["@context"].(type) {
	case []interface{}:
		for _, v := range c {
			if s, ok := v.(string); ok && s == "https://www.w3.org/ns/credentials/v2" {
				ctxOK = true
			}
		}
	case string:
		ctxOK = c == "https://www.w3.org/ns/credentials/v2"
	}
	if !ctxOK {
		return false
	}
	typeOK := false
	if types, ok := vc["type"].([]interface{}); ok {
		for _, v := range types {
			if s, ok := v.(string); ok && s == "VerifiableCredential" {
				typeOK = true
			}
		}
	}
	if !typeOK {
		return false
	}
	_, hasSubject := vc["credentialSubject"]
	return hasSubject
}

// Verify checks jwt's structure, expiration, and signature against each
// of trustedKeys in order, then the VC claim shape, per spec.md §4.6.2.
func Verify(credentialJWT string, trustedKeys []ed25519.PublicKey, now time.Time) VerificationResult {
	parts, ok := splitJWT(credentialJWT)
	if !ok {
		return invalidResult(ReasonSchemaInvalid)
	}
	payload, ok := decodePayload(parts)
	if !ok {
		return invalidResult(ReasonSchemaInvalid)
	}

	issuer, _ := payload["iss"].(string)
	expF, _ := payload["exp"].(float64)
	if int64(expF)*1000 <= now.UnixMilli() {
		return VerificationResult{Valid: false, Reason: ReasonExpired, IssuerTier: IssuerTierForDID(issuer), Issuer: issuer}
	}

	signingInput := []byte(parts[0] + "." + parts[1])
	sig, err := codec.Base64URLDecode(parts[2])
	if err != nil {
		return invalidResult(ReasonSchemaInvalid)
	}

	verified := false
	for _, key := range trustedKeys {
		if jwt.SigningMethodEdDSA.Verify(string(signingInput), sig, key) == nil {
			verified = true
			break
		}
	}
	if !verified {
		return VerificationResult{Valid: false, Reason: ReasonSignatureInvalid, IssuerTier: IssuerTierForDID(issuer), Issuer: issuer}
	}

	if !validateCredentialClaims(payload) {
		return VerificationResult{Valid: false, Reason: ReasonSchemaInvalid, IssuerTier: IssuerTierForDID(issuer), Issuer: issuer}
	}

	return VerificationResult{Valid: true, IssuerTier: IssuerTierForDID(issuer), Issuer: issuer, Payload: payload}
}

// VerifyViaDID implements the zero-trust verification path of spec.md
// §4.6.2: resolve the signer's key fresh from its DID document rather
// than from a caller-supplied trust list.
func VerifyViaDID(ctx context.Context, resolver *Resolver, jwt string, now time.Time) VerificationResult {
	parts, ok := splitJWT(jwt)
	if !ok {
		return invalidResult(ReasonSchemaInvalid)
	}
	header, ok := decodeHeader(parts)
	if !ok {
		return invalidResult(ReasonSchemaInvalid)
	}
	kid, _ := header["kid"].(string)
	if !strings.Contains(kid, "did:web:") {
		return invalidResult(ReasonSchemaInvalid)
	}

	did := kid
	if idx := strings.Index(kid, "#"); idx >= 0 {
		did = kid[:idx]
	}

	doc, err := resolver.Resolve(ctx, did)
	if err != nil {
		return VerificationResult{Valid: false, Reason: ReasonUnverifiable, IssuerTier: TierUnverifiable}
	}
	vm, ok := doc.FindVerificationMethod(kid)
	if !ok {
		return VerificationResult{Valid: false, Reason: ReasonUnverifiable, IssuerTier: TierUnverifiable}
	}
	pub, err := Ed25519PublicKeyFromJWK(vm.PublicKeyJWK)
	if err != nil {
		return VerificationResult{Valid: false, Reason: ReasonUnverifiable, IssuerTier: TierUnverifiable}
	}

	return Verify(jwt, []ed25519.PublicKey{pub}, now)
}
