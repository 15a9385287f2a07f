package trust

import (
	"crypto/ed25519"
	"encoding/json"
	"strings"
	"time"

	"github.com/corsair-parley/parley/pkg/codec"
)

// LegacyEnvelope mirrors cpoe.LegacyEnvelope's wire shape; trust does not
// import cpoe to avoid a cross-package cycle, since cpoe has no reason to
// depend on verification logic.
type LegacyEnvelope struct {
	Parley    string      `json:"parley"`
	Marque    interface{} `json:"marque"`
	Signature string      `json:"signature"`
}

// VerifyLegacyEnvelope checks a v1 JSON envelope's Ed25519 signature over
// the canonical JSON of its marque field, per spec.md §4.5.
func VerifyLegacyEnvelope(raw []byte, trustedKeys []ed25519.PublicKey) VerificationResult {
	var env LegacyEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return invalidResult(ReasonSchemaInvalid)
	}
	canon, err := codec.CanonicalJSON(env.Marque)
	if err != nil {
		return invalidResult(ReasonSchemaInvalid)
	}
	sig, err := codec.Base64URLDecode(env.Signature)
	if err != nil {
		return invalidResult(ReasonSchemaInvalid)
	}

	for _, key := range trustedKeys {
		if ed25519.Verify(key, canon, sig) {
			payload, _ := env.Marque.(map[string]interface{})
			return VerificationResult{Valid: true, IssuerTier: TierSelfSigned, Payload: payload}
		}
	}
	return VerificationResult{Valid: false, Reason: ReasonSignatureInvalid, IssuerTier: TierInvalid}
}

// VerifyAny sniffs whether raw is a v1 JSON envelope (leading '{') or a
// compact JWT-VC (three dot-joined base64url segments) and dispatches to
// the matching verifier, per spec.md §4.5's auto-detection supplement.
func VerifyAny(raw []byte, trustedKeys []ed25519.PublicKey, now time.Time) VerificationResult {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		return VerifyLegacyEnvelope(raw, trustedKeys)
	}
	return Verify(trimmed, trustedKeys, now)
}
