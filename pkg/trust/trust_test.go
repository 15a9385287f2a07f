package trust

import (
	"crypto/ed25519"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corsair-parley/parley/pkg/codec"
)

type memSigner struct{ priv ed25519.PrivateKey }

func (s memSigner) Sign(keyID string, data []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, data), nil
}

func issueTestCPOE(t *testing.T, priv ed25519.PrivateKey, issuer string, now time.Time, expiryDays int, frameworks []string) string {
	t.Helper()
	header := map[string]interface{}{"alg": "EdDSA", "typ": "vc+jwt", "kid": issuer + "#key-1"}
	payload := map[string]interface{}{
		"iss": issuer,
		"sub": "marque-1",
		"iat": now.Unix(),
		"exp": now.Add(time.Duration(expiryDays) * 24 * time.Hour).Unix(),
		"jti": "marque-1",
		"vc": map[string]interface{}{
			"@context": []string{"https://www.w3.org/ns/credentials/v2"},
			"type":     []string{"VerifiableCredential", "CorsairCPOE"},
			"issuer":   issuer,
			"credentialSubject": map[string]interface{}{
				"scope": map[string]interface{}{"frameworksCovered": frameworks},
				"summary": map[string]interface{}{"controlsTested": 10, "controlsPassed": 8, "controlsFailed": 2, "overallScore": 80},
			},
		},
		"parley": "2.1",
	}
	hb, err := json.Marshal(header)
	require.NoError(t, err)
	pb, err := json.Marshal(payload)
	require.NoError(t, err)
	signingInput := codec.Base64URLEncode(hb) + "." + codec.Base64URLEncode(pb)
	sig := ed25519.Sign(priv, []byte(signingInput))
	return signingInput + "." + codec.Base64URLEncode(sig)
}

func TestVerifyHappyPath(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	jwt := issueTestCPOE(t, priv, "did:web:acme.com", now, 7, []string{"SOC2"})

	result := Verify(jwt, []ed25519.PublicKey{pub}, now)
	assert.True(t, result.Valid)
	assert.Equal(t, TierSelfSigned, result.IssuerTier)
}

func TestVerifyTamperedSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_ = pub
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	jwt := issueTestCPOE(t, priv, "did:web:acme.com", now, 7, nil)

	_, evilPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	evilJWT := issueTestCPOE(t, evilPriv, "did:web:evil.com", now, 7, nil)
	_ = jwt

	result := Verify(evilJWT, []ed25519.PublicKey{pub}, now)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonSignatureInvalid, result.Reason)
}

func TestVerifyExpired(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	jwt := issueTestCPOE(t, priv, "did:web:acme.com", now, -1, nil)

	result := Verify(jwt, []ed25519.PublicKey{pub}, now)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonExpired, result.Reason)
}

func TestIssuerTierCorsairVerified(t *testing.T) {
	assert.Equal(t, TierCorsairVerified, IssuerTierForDID("did:web:grcorsair.com"))
	assert.Equal(t, TierSelfSigned, IssuerTierForDID("did:web:acme.com"))
	assert.Equal(t, TierUnverifiable, IssuerTierForDID("not-a-did"))
}

func TestKeyAttestationChainScopeViolation(t *testing.T) {
	rootPub, rootPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	orgPub, orgPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	orgJWK := Ed25519JWKFromPublicKey(orgPub)
	scope := AttestationScope{Frameworks: []string{"SOC2"}, ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(365 * 24 * time.Hour)}

	attJWT, err := AttestOrgKey(memSigner{rootPriv}, "root-key", "did:web:grcorsair.com", "did:web:acme.com", orgJWK, scope)
	require.NoError(t, err)

	cpoeJWT := issueTestCPOE(t, orgPriv, "did:web:acme.com", now, 7, []string{"NIST-800-53"})
	result := VerifyChain(cpoeJWT, attJWT, rootPub, orgJWK, []string{"NIST-800-53"}, now)
	assert.False(t, result.Valid)
	assert.Equal(t, ChainReasonScopeViolation, result.Reason)
	assert.Equal(t, TrustLevelInvalid, result.TrustLevel)

	cpoeJWT2 := issueTestCPOE(t, orgPriv, "did:web:acme.com", now, 7, []string{"SOC2"})
	result2 := VerifyChain(cpoeJWT2, attJWT, rootPub, orgJWK, []string{"SOC2"}, now)
	assert.True(t, result2.Valid)
	assert.Equal(t, TrustLevelChainVerified, result2.TrustLevel)
}

func TestStapleRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	staple, err := IssueStaple(memSigner{priv}, "key-1", "marque-1", StapleCurrent, now, time.Hour)
	require.NoError(t, err)
	assert.True(t, VerifyStaple(staple, pub, "marque-1", now.Add(30*time.Minute)))
	assert.False(t, VerifyStaple(staple, pub, "marque-1", now.Add(2*time.Hour)))
	assert.False(t, VerifyStaple(staple, pub, "marque-2", now))
}

func TestDidWebURLReconstruction(t *testing.T) {
	u, err := didWebURL("did:web:acme.com")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.com/.well-known/did.json", u)

	u2, err := didWebURL("did:web:acme.com:compliance:org")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.com/compliance/org/did.json", u2)
}

func TestVerifyLegacyEnvelopeRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	marque := map[string]interface{}{"summary": map[string]interface{}{"overallScore": 80}}
	canon, err := codec.CanonicalJSON(marque)
	require.NoError(t, err)
	sig := ed25519.Sign(priv, canon)

	env := LegacyEnvelope{Parley: "1.0", Marque: marque, Signature: codec.Base64URLEncode(sig)}
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	result := VerifyLegacyEnvelope(raw, []ed25519.PublicKey{pub})
	assert.True(t, result.Valid)

	viaAny := VerifyAny(raw, []ed25519.PublicKey{pub}, time.Now())
	assert.True(t, viaAny.Valid)
}

func TestVerifyLegacyEnvelopeTamperedSignature(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, evilPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	marque := map[string]interface{}{"note": "tampered"}
	canon, err := codec.CanonicalJSON(marque)
	require.NoError(t, err)
	sig := ed25519.Sign(evilPriv, canon)

	env := LegacyEnvelope{Parley: "1.0", Marque: marque, Signature: codec.Base64URLEncode(sig)}
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	result := VerifyLegacyEnvelope(raw, []ed25519.PublicKey{pub})
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonSignatureInvalid, result.Reason)
}

func TestResolverBlocksReservedHosts(t *testing.T) {
	r := NewResolver(time.Second)
	_, err := r.Resolve(nil, "did:web:127.0.0.1")
	assert.Error(t, err)
}
