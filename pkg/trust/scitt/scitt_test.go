package scitt

import (
	"crypto/ed25519"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corsair-parley/parley/pkg/codec"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRegisterBuildsGrowingTree(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	reg := NewRegistry("log-1", priv).WithClock(fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	r1, err := reg.Register("statement-one", RegisterOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, r1.Entry.TreeSize)
	assert.Empty(t, r1.Entry.ParentHash)

	r2, err := reg.Register("statement-two", RegisterOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, r2.Entry.TreeSize)
	assert.Equal(t, r1.Entry.TreeHash, r2.Entry.ParentHash)
	assert.NotEqual(t, r1.Entry.TreeHash, r2.Entry.TreeHash)

	assert.True(t, reg.VerifyReceipt(r1.Entry.EntryID, pub))
	assert.True(t, reg.VerifyReceipt(r2.Entry.EntryID, pub))
	assert.False(t, reg.VerifyReceipt("does-not-exist", pub))
}

func TestVerifyReceiptRejectsWrongKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	reg := NewRegistry("log-1", priv)
	r1, err := reg.Register("statement", RegisterOptions{})
	require.NoError(t, err)

	assert.False(t, reg.VerifyReceipt(r1.Entry.EntryID, otherPub))
}

func TestRegisterProofOnlyOmitsStatementAndBypassesFilters(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	reg := NewRegistry("log-1", priv)

	r1, err := reg.Register("a jwt statement from did:web:acme.com", RegisterOptions{ProofOnly: true})
	require.NoError(t, err)
	assert.Nil(t, r1.Entry.Statement)

	listed := reg.ListEntries(ListFilter{Issuer: "did:web:acme.com"})
	assert.Empty(t, listed, "proof-only entries are not issuer-filterable")

	all := reg.ListEntries(ListFilter{})
	require.Len(t, all, 1)
	assert.Equal(t, "unknown", all[0].Issuer)
}

func issueJWTStatement(t *testing.T, priv ed25519.PrivateKey, issuer string, frameworks []string, score float64) string {
	t.Helper()
	header := []byte(`{"alg":"EdDSA","typ":"vc+jwt"}`)
	payload := map[string]interface{}{
		"iss": issuer,
		"vc": map[string]interface{}{
			"credentialSubject": map[string]interface{}{
				"scope":   map[string]interface{}{"frameworksCovered": frameworks},
				"summary": map[string]interface{}{"overallScore": score},
			},
		},
	}
	payloadBytes, err := json.Marshal(payload)
	require.NoError(t, err)
	signingInput := codec.Base64URLEncode(header) + "." + codec.Base64URLEncode(payloadBytes)
	sig := ed25519.Sign(priv, []byte(signingInput))
	return signingInput + "." + codec.Base64URLEncode(sig)
}

func TestListEntriesFiltersByIssuerAndFramework(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	reg := NewRegistry("log-1", priv)

	_, err = reg.Register(issueJWTStatement(t, priv, "did:web:acme.com", []string{"SOC2"}, 80), RegisterOptions{})
	require.NoError(t, err)
	_, err = reg.Register(issueJWTStatement(t, priv, "did:web:other.com", []string{"ISO27001"}, 60), RegisterOptions{})
	require.NoError(t, err)

	byIssuer := reg.ListEntries(ListFilter{Issuer: "did:web:acme.com"})
	require.Len(t, byIssuer, 1)

	byFramework := reg.ListEntries(ListFilter{Framework: "soc2"})
	require.Len(t, byFramework, 1)
	assert.Equal(t, "did:web:acme.com", byFramework[0].Issuer)
}

func TestGetIssuerProfileAggregates(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	reg := NewRegistry("log-1", priv)

	_, err = reg.Register(issueJWTStatement(t, priv, "did:web:acme.com", []string{"SOC2"}, 80), RegisterOptions{})
	require.NoError(t, err)
	_, err = reg.Register(issueJWTStatement(t, priv, "did:web:acme.com", []string{"ISO27001"}, 60), RegisterOptions{})
	require.NoError(t, err)

	profile := reg.GetIssuerProfile("did:web:acme.com", nil)
	assert.Equal(t, 2, profile.TotalCount)
	assert.ElementsMatch(t, []string{"ISO27001", "SOC2"}, profile.Frameworks)
	assert.InDelta(t, 70.0, profile.AverageOverallScore, 0.001)
	assert.NotEmpty(t, profile.LastRegistration)
}

func TestSnapshotRoundTripsRegistryState(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	reg := NewRegistry("log-1", priv)

	r1, err := reg.Register("statement-one", RegisterOptions{})
	require.NoError(t, err)

	snap := reg.Snapshot()
	reloaded := LoadRegistry(priv, snap)

	assert.True(t, reloaded.VerifyReceipt(r1.Entry.EntryID, pub))
	r2, err := reloaded.Register("statement-two", RegisterOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, r2.Entry.TreeSize)
	assert.Equal(t, r1.Entry.TreeHash, r2.Entry.ParentHash)
}

func TestGetIssuerProfileBeforeCursorPages(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	reg := NewRegistry("log-1", priv)

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reg.WithClock(fixedClock(clock))
	_, err = reg.Register(issueJWTStatement(t, priv, "did:web:acme.com", []string{"SOC2"}, 80), RegisterOptions{})
	require.NoError(t, err)

	cursor := clock.Add(time.Hour)
	reg.WithClock(fixedClock(cursor))
	_, err = reg.Register(issueJWTStatement(t, priv, "did:web:acme.com", []string{"ISO27001"}, 60), RegisterOptions{})
	require.NoError(t, err)

	beforeCursor := clock.Add(30 * time.Minute)
	profile := reg.GetIssuerProfile("did:web:acme.com", &beforeCursor)
	assert.Equal(t, 1, profile.TotalCount)
	assert.Equal(t, []string{"SOC2"}, profile.Frameworks)
}
