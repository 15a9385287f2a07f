package cpoe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/corsair-parley/parley/pkg/codec"
)

// Signer is the narrow capability IssueJWT needs: sign arbitrary bytes
// under a named key. keymanager.KeyManager satisfies this.
type Signer interface {
	Sign(keyID string, data []byte) ([]byte, error)
}

const defaultExpiryDays = 7

// IssueOptions controls IssueJWT's expiry window and the "parley" version
// claim stamped onto the credential. ParleyVersion defaults to
// ParleyVersion ("2.1") when empty; verifiers accept both "2.0" and "2.1"
// and round-trip whichever value was present at issuance.
type IssueOptions struct {
	ExpiryDays    int
	ParleyVersion string
}

// IssueJWT builds, sanitizes, and signs a CPOE JWT-VC per spec.md §4.5.
// opts.ExpiryDays <= 0 other than the explicit request for an
// already-expired credential (tests use -1 deliberately, per scenario S3)
// is treated literally: exp = iat + expiryDays*86400.
func IssueJWT(signer Signer, keyID, issuerDID string, subject CredentialSubject, opts IssueOptions, now time.Time) (string, string, error) {
	expiryDays := opts.ExpiryDays
	if expiryDays == 0 {
		expiryDays = defaultExpiryDays
	}
	version := opts.ParleyVersion
	if version == "" {
		version = ParleyVersion
	}

	sanitizedSubject, err := sanitizeSubject(subject)
	if err != nil {
		return "", "", fmt.Errorf("cpoe: sanitize subject: %w", err)
	}

	marqueID := NewMarqueID()
	iat := now.Unix()
	exp := now.Add(time.Duration(expiryDays) * 24 * time.Hour).Unix()

	header := map[string]interface{}{
		"alg": "EdDSA",
		"typ": "vc+jwt",
		"kid": issuerDID + "#key-1",
	}
	payload := map[string]interface{}{
		"iss": issuerDID,
		"sub": marqueID,
		"iat": iat,
		"exp": exp,
		"jti": marqueID,
		"vc": map[string]interface{}{
			"@context":          []string{ContextVCv2, ContextCorsair},
			"type":              []string{TypeVerifiableCredential, TypeCorsairCPOE},
			"issuer":            issuerDID,
			"validFrom":         now.UTC().Format(time.RFC3339),
			"validUntil":        now.Add(time.Duration(expiryDays) * 24 * time.Hour).UTC().Format(time.RFC3339),
			"credentialSubject": sanitizedSubject,
		},
		"parley": version,
	}

	headerB, err := json.Marshal(header)
	if err != nil {
		return "", "", fmt.Errorf("cpoe: marshal header: %w", err)
	}
	payloadB, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("cpoe: marshal payload: %w", err)
	}

	signingInput := codec.Base64URLEncode(headerB) + "." + codec.Base64URLEncode(payloadB)
	sig, err := signer.Sign(keyID, []byte(signingInput))
	if err != nil {
		return "", "", fmt.Errorf("cpoe: sign: %w", err)
	}

	jwt := signingInput + "." + codec.Base64URLEncode(sig)
	return jwt, marqueID, nil
}

// sanitizeSubject marshals subject to its generic JSON form and applies
// the recursive redaction chain, per spec.md §4.5 step 2.
func sanitizeSubject(subject CredentialSubject) (interface{}, error) {
	b, err := json.Marshal(subject)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	return SanitizeValue(generic), nil
}
