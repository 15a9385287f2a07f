package cpoe

import (
	"encoding/json"
	"fmt"

	"github.com/corsair-parley/parley/pkg/codec"
)

// LegacyEnvelope is the "v1" JSON envelope supplement of spec.md §4.5,
// preserved for issuers that have not migrated to JWT-VC.
type LegacyEnvelope struct {
	Parley    string      `json:"parley"`
	Marque    interface{} `json:"marque"`
	Signature string      `json:"signature"`
}

// IssueLegacyEnvelope builds and signs the v1 JSON envelope: the object
// signed is the sanitized subject payload itself, and the signature is a
// base64 Ed25519 signature over its canonical JSON form.
func IssueLegacyEnvelope(signer Signer, keyID string, subject CredentialSubject) (*LegacyEnvelope, error) {
	sanitized, err := sanitizeSubject(subject)
	if err != nil {
		return nil, fmt.Errorf("cpoe: sanitize subject: %w", err)
	}

	canon, err := codec.CanonicalJSON(sanitized)
	if err != nil {
		return nil, fmt.Errorf("cpoe: canonicalize marque: %w", err)
	}
	sig, err := signer.Sign(keyID, canon)
	if err != nil {
		return nil, fmt.Errorf("cpoe: sign marque: %w", err)
	}

	return &LegacyEnvelope{
		Parley:    "1.0",
		Marque:    sanitized,
		Signature: codec.Base64URLEncode(sig),
	}, nil
}

// MarshalLegacyEnvelope renders a LegacyEnvelope as the JSON object
// verifiers consume over the wire.
func MarshalLegacyEnvelope(e *LegacyEnvelope) ([]byte, error) {
	return json.Marshal(e)
}
