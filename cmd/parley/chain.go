package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/corsair-parley/parley/pkg/trust"
)

func runChainCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Usage: parley chain <attest|verify> [flags]")
		return 2
	}
	switch args[0] {
	case "attest":
		return runChainAttestCmd(args[1:], stdout, stderr)
	case "verify":
		return runChainVerifyCmd(args[1:], stdout, stderr)
	case "--help", "-h":
		fmt.Fprintln(stdout, "Usage: parley chain <attest|verify> [flags]")
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown chain subcommand: %s\n", args[0])
		return 2
	}
}

func decodePublicKey(b64 string) (ed25519.PublicKey, error) {
	b, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("parley: decode public key: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("parley: public key has wrong length %d", len(b))
	}
	return ed25519.PublicKey(b), nil
}

func runChainAttestCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("chain attest", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		keyManagerKind string
		keyStorePath   string
		databaseURL    string
		encKeyB64      string
		rootKeyID      string
		rootDID        string
		orgDID         string
		orgPubB64      string
		frameworksCSV  string
		validDays      int
		jsonOutput     bool
	)
	cmd.StringVar(&keyManagerKind, "key-manager", "filesystem", "Root key manager backend: memory|filesystem|postgres")
	cmd.StringVar(&keyStorePath, "keystore", "./parley-keystore", "Filesystem key manager base directory")
	cmd.StringVar(&databaseURL, "database-url", "", "Postgres DSN (with --key-manager=postgres)")
	cmd.StringVar(&encKeyB64, "encryption-key", "", "Base64 32-byte AES-256-GCM key (with --key-manager=postgres)")
	cmd.StringVar(&rootKeyID, "root-key-id", "", "Root signing key id; the active key is used if omitted")
	cmd.StringVar(&rootDID, "root-did", "did:web:grcorsair.com", "Root DID that signs the attestation")
	cmd.StringVar(&orgDID, "org-did", "", "Organization DID being attested (REQUIRED)")
	cmd.StringVar(&orgPubB64, "org-pub", "", "Base64-encoded Ed25519 org public key (REQUIRED)")
	cmd.StringVar(&frameworksCSV, "frameworks", "", "Comma-separated frameworks the attestation authorizes (empty = unrestricted)")
	cmd.IntVar(&validDays, "valid-days", 365, "Attestation validity window in days")
	cmd.BoolVar(&jsonOutput, "json", false, "Emit the result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if orgDID == "" || orgPubB64 == "" {
		fmt.Fprintln(stderr, "Error: --org-did and --org-pub are required")
		cmd.Usage()
		return 2
	}

	km, err := openKeyManager(keyManagerKind, keyStorePath, databaseURL, encKeyB64)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening key manager: %v\n", err)
		return 1
	}
	if rootKeyID == "" {
		rootKeyID, err = km.ActiveKeyID()
		if err != nil {
			fmt.Fprintf(stderr, "Error: no active signing key (%v)\n", err)
			return 1
		}
	}

	orgPub, err := decodePublicKey(orgPubB64)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	now := time.Now()
	scope := trust.AttestationScope{
		Frameworks: splitCSV(frameworksCSV),
		ValidFrom:  now,
		ValidUntil: now.Add(time.Duration(validDays) * 24 * time.Hour),
	}
	orgJWK := trust.Ed25519JWKFromPublicKey(orgPub)

	jwt, err := trust.AttestOrgKey(km, rootKeyID, rootDID, orgDID, orgJWK, scope)
	if err != nil {
		fmt.Fprintf(stderr, "Error issuing attestation: %v\n", err)
		return 1
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(map[string]interface{}{"attestation": jwt}, "", "  ")
		fmt.Fprintln(stdout, string(data))
	} else {
		fmt.Fprintln(stdout, jwt)
	}
	return 0
}

func runChainVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("chain verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		cpoePath       string
		attestationPath string
		rootPubB64     string
		orgPubB64      string
		frameworksCSV  string
		jsonOutput     bool
	)
	cmd.StringVar(&cpoePath, "cpoe", "", "Path to the CPOE JWT-VC (REQUIRED)")
	cmd.StringVar(&attestationPath, "attestation", "", "Path to the key-attestation JWT (REQUIRED)")
	cmd.StringVar(&rootPubB64, "root-pub", "", "Base64-encoded Ed25519 root public key (REQUIRED)")
	cmd.StringVar(&orgPubB64, "org-pub", "", "Base64-encoded Ed25519 org public key (REQUIRED)")
	cmd.StringVar(&frameworksCSV, "frameworks", "", "Comma-separated frameworks claimed by the CPOE")
	cmd.BoolVar(&jsonOutput, "json", false, "Emit the result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cpoePath == "" || attestationPath == "" || rootPubB64 == "" || orgPubB64 == "" {
		fmt.Fprintln(stderr, "Error: --cpoe, --attestation, --root-pub, and --org-pub are required")
		cmd.Usage()
		return 2
	}

	cpoeJWT, err := readInput(cpoePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading CPOE: %v\n", err)
		return 1
	}
	attJWT, err := readInput(attestationPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading attestation: %v\n", err)
		return 1
	}
	rootPub, err := decodePublicKey(rootPubB64)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	orgPub, err := decodePublicKey(orgPubB64)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	orgJWK := trust.Ed25519JWKFromPublicKey(orgPub)

	result := trust.VerifyChain(
		strings.TrimSpace(string(cpoeJWT)),
		strings.TrimSpace(string(attJWT)),
		rootPub,
		orgJWK,
		splitCSV(frameworksCSV),
		time.Now(),
	)

	if jsonOutput {
		data, _ := json.MarshalIndent(map[string]interface{}{
			"valid":      result.Valid,
			"reason":     result.Reason,
			"chain":      result.Chain,
			"trustLevel": result.TrustLevel,
		}, "", "  ")
		fmt.Fprintln(stdout, string(data))
	} else if result.Valid {
		fmt.Fprintf(stdout, "VALID chain=%s trust=%s\n", strings.Join(result.Chain, "->"), result.TrustLevel)
	} else {
		fmt.Fprintf(stdout, "INVALID reason=%s trust=%s\n", result.Reason, result.TrustLevel)
	}

	if !result.Valid {
		return 1
	}
	return 0
}
