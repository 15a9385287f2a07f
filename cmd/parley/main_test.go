package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corsair-parley/parley/pkg/codec"
	"github.com/corsair-parley/parley/pkg/keymanager"
)

const sampleIngestedDocument = `{
	"source": "prowler",
	"title": "Q1 2026 AWS scan",
	"issuer": "acme-security",
	"date": "2026-01-15",
	"scope": "aws-prod",
	"toolAssuranceLevel": 1,
	"controls": [
		{"id": "iam-1", "description": "MFA enforced for root", "status": "effective", "severity": "HIGH"},
		{"id": "s3-1", "description": "Bucket encryption", "status": "effective", "severity": "MEDIUM"}
	]
}`

func seedFilesystemKey(t *testing.T, baseDir string) string {
	t.Helper()
	km, err := keymanager.NewFilesystemKeyManager(baseDir)
	require.NoError(t, err)
	keyID, _, err := km.GenerateKey()
	require.NoError(t, err)
	require.NoError(t, km.Activate(keyID))
	return keyID
}

func run(args ...string) (stdout, stderr *bytes.Buffer, code int) {
	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	code = Run(append([]string{"parley"}, args...), stdout, stderr)
	return
}

func TestRunWithNoArgsPrintsUsageAndExitsTwo(t *testing.T) {
	stdout, _, code := run()
	assert.Equal(t, 2, code)
	assert.Contains(t, stdout.String(), "USAGE")
}

func TestRunUnknownCommandExitsTwo(t *testing.T) {
	_, stderr, code := run("bogus")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "Unknown command")
}

func TestIssueAndVerifyJWTRoundTrip(t *testing.T) {
	dir := t.TempDir()
	keystore := filepath.Join(dir, "keystore")
	docPath := filepath.Join(dir, "doc.json")
	outPath := filepath.Join(dir, "cpoe.jwt")
	require.NoError(t, writeFileHelper(docPath, sampleIngestedDocument))

	seedFilesystemKey(t, keystore)

	_, stderr, code := run("issue",
		"--document", docPath,
		"--issuer-did", "did:web:acme.com",
		"--key-manager", "filesystem",
		"--keystore", keystore,
		"--out", outPath,
	)
	require.Equal(t, 0, code, stderr.String())

	km, err := keymanager.NewFilesystemKeyManager(keystore)
	require.NoError(t, err)
	keyID, err := km.ActiveKeyID()
	require.NoError(t, err)
	pub, err := km.PublicKey(keyID)
	require.NoError(t, err)
	trustedKey := base64.StdEncoding.EncodeToString(pub)

	stdout, stderr, code := run("verify",
		"--credential", outPath,
		"--trusted-keys", trustedKey,
	)
	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "VALID")
}

func TestIssueLegacyEnvelopeAndVerifyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	keystore := filepath.Join(dir, "keystore")
	docPath := filepath.Join(dir, "doc.json")
	outPath := filepath.Join(dir, "marque.json")
	require.NoError(t, writeFileHelper(docPath, sampleIngestedDocument))

	seedFilesystemKey(t, keystore)

	_, stderr, code := run("issue",
		"--document", docPath,
		"--issuer-did", "did:web:acme.com",
		"--key-manager", "filesystem",
		"--keystore", keystore,
		"--legacy",
		"--out", outPath,
	)
	require.Equal(t, 0, code, stderr.String())

	km, err := keymanager.NewFilesystemKeyManager(keystore)
	require.NoError(t, err)
	keyID, err := km.ActiveKeyID()
	require.NoError(t, err)
	pub, err := km.PublicKey(keyID)
	require.NoError(t, err)
	trustedKey := base64.StdEncoding.EncodeToString(pub)

	stdout, stderr, code := run("verify", "--credential", outPath, "--trusted-keys", trustedKey)
	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "VALID")
}

func TestIssueRejectsDocumentFailingSchema(t *testing.T) {
	dir := t.TempDir()
	keystore := filepath.Join(dir, "keystore")
	docPath := filepath.Join(dir, "doc.json")
	require.NoError(t, writeFileHelper(docPath, `{"title":"missing required fields"}`))
	seedFilesystemKey(t, keystore)

	_, stderr, code := run("issue",
		"--document", docPath,
		"--issuer-did", "did:web:acme.com",
		"--key-manager", "filesystem",
		"--keystore", keystore,
	)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "schema validation")
}

func TestTrustTxtGenerateAndValidateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "trust.txt")

	_, stderr, code := run("trust-txt", "generate",
		"--did", "did:web:acme.com",
		"--cpoe-url", "https://acme.com/cpoes/latest.jwt",
		"--frameworks", "soc2,iso27001",
		"--output", outPath,
	)
	require.Equal(t, 0, code, stderr.String())

	stdout, stderr, code := run("trust-txt", "validate", outPath)
	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "VALID")
}

func TestTrustTxtValidateRejectsUnknownDirective(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.txt")
	require.NoError(t, writeFileHelper(path, "DID: did:web:acme.com\nBOGUS: nope\n"))

	stdout, _, code := run("trust-txt", "validate", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "unknown directive")
}

func buildTestStatementJWT(t *testing.T, priv ed25519.PrivateKey, issuer string, frameworks []string, score int) string {
	t.Helper()
	header := map[string]interface{}{"alg": "EdDSA", "typ": "vc+jwt"}
	payload := map[string]interface{}{
		"iss": issuer,
		"vc": map[string]interface{}{
			"credentialSubject": map[string]interface{}{
				"scope":   map[string]interface{}{"frameworksCovered": frameworks},
				"summary": map[string]interface{}{"overallScore": score},
			},
		},
	}
	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)
	payloadJSON, err := json.Marshal(payload)
	require.NoError(t, err)

	signingInput := codec.Base64URLEncode(headerJSON) + "." + codec.Base64URLEncode(payloadJSON)
	sig := ed25519.Sign(priv, []byte(signingInput))
	return signingInput + "." + codec.Base64URLEncode(sig)
}

func TestSCITTRegisterListAndProfile(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "scitt.json")
	statementPath := filepath.Join(dir, "statement.jwt")

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	signKey := base64.StdEncoding.EncodeToString(priv)

	stmt := buildTestStatementJWT(t, priv, "did:web:acme.com", []string{"soc2"}, 90)
	require.NoError(t, writeFileHelper(statementPath, stmt))

	stdout, stderr, code := run("scitt", "register",
		"--store", store,
		"--sign-key", signKey,
		"--statement", statementPath,
	)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "entryId=")

	stdout, stderr, code = run("scitt", "list", "--store", store, "--sign-key", signKey)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "did:web:acme.com")

	stdout, stderr, code = run("scitt", "profile", "--store", store, "--sign-key", signKey, "--did", "did:web:acme.com")
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "total=1")
}

func TestChainAttestAndVerifyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rootKeystore := filepath.Join(dir, "root-keystore")
	orgKeystore := filepath.Join(dir, "org-keystore")
	seedFilesystemKey(t, rootKeystore)
	seedFilesystemKey(t, orgKeystore)

	rootKM, err := keymanager.NewFilesystemKeyManager(rootKeystore)
	require.NoError(t, err)
	rootKeyID, err := rootKM.ActiveKeyID()
	require.NoError(t, err)
	rootPub, err := rootKM.PublicKey(rootKeyID)
	require.NoError(t, err)
	rootPubB64 := base64.StdEncoding.EncodeToString(rootPub)

	// The CPOE must be signed by the same key whose public half the root
	// attests, so the org's keystore backs both the attestation and the
	// credential issuance below.
	orgKM, err := keymanager.NewFilesystemKeyManager(orgKeystore)
	require.NoError(t, err)
	orgKeyID, err := orgKM.ActiveKeyID()
	require.NoError(t, err)
	orgPub, err := orgKM.PublicKey(orgKeyID)
	require.NoError(t, err)
	orgPubB64 := base64.StdEncoding.EncodeToString(orgPub)

	attPath := filepath.Join(dir, "attestation.jwt")
	stdout, stderr, code := run("chain", "attest",
		"--key-manager", "filesystem",
		"--keystore", rootKeystore,
		"--root-did", "did:web:grcorsair.com",
		"--org-did", "did:web:acme.com",
		"--org-pub", orgPubB64,
		"--frameworks", "soc2",
	)
	require.Equal(t, 0, code, stderr.String())
	require.NoError(t, writeFileHelper(attPath, strings.TrimSpace(stdout.String())))

	docPath := filepath.Join(dir, "doc.json")
	cpoePath := filepath.Join(dir, "cpoe.jwt")
	require.NoError(t, writeFileHelper(docPath, sampleIngestedDocument))
	_, stderr, code = run("issue",
		"--document", docPath,
		"--issuer-did", "did:web:acme.com",
		"--key-manager", "filesystem",
		"--keystore", orgKeystore,
		"--frameworks", "soc2",
		"--out", cpoePath,
	)
	require.Equal(t, 0, code, stderr.String())

	stdout, stderr, code = run("chain", "verify",
		"--cpoe", cpoePath,
		"--attestation", attPath,
		"--root-pub", rootPubB64,
		"--org-pub", orgPubB64,
		"--frameworks", "soc2",
	)
	assert.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "VALID")
}

func writeFileHelper(path, content string) error {
	return writeOutput(nil, path, []byte(content))
}
