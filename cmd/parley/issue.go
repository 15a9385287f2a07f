package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/corsair-parley/parley/pkg/assurance"
	"github.com/corsair-parley/parley/pkg/cpoe"
)

func runIssueCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("issue", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		documentPath   string
		issuerDID      string
		keyManagerKind string
		keyStorePath   string
		databaseURL    string
		encKeyB64      string
		keyID          string
		expiryDays     int
		frameworksCSV  string
		providersCSV   string
		humanScope     string
		sourceIdentity string
		legacy         bool
		outPath        string
		jsonOutput     bool
	)
	cmd.StringVar(&documentPath, "document", "-", "Path to an IngestedDocument JSON file ('-' for stdin)")
	cmd.StringVar(&issuerDID, "issuer-did", "", "Issuer DID (REQUIRED, e.g. did:web:acme.com)")
	cmd.StringVar(&keyManagerKind, "key-manager", "filesystem", "Key manager backend: memory|filesystem|postgres")
	cmd.StringVar(&keyStorePath, "keystore", "./parley-keystore", "Filesystem key manager base directory")
	cmd.StringVar(&databaseURL, "database-url", "", "Postgres DSN (with --key-manager=postgres)")
	cmd.StringVar(&encKeyB64, "encryption-key", "", "Base64 32-byte AES-256-GCM key (with --key-manager=postgres)")
	cmd.StringVar(&keyID, "key-id", "", "Signing key id; the active key is used if omitted")
	cmd.IntVar(&expiryDays, "expiry-days", 0, "Credential validity window in days (default 7)")
	cmd.StringVar(&frameworksCSV, "frameworks", "", "Comma-separated frameworks covered, for the credential scope")
	cmd.StringVar(&providersCSV, "providers", "", "Comma-separated cloud providers, for the credential scope")
	cmd.StringVar(&humanScope, "scope", "", "Human-readable scope description")
	cmd.StringVar(&sourceIdentity, "source-identity", "", "Identity of the evidence source (e.g. org account id)")
	cmd.BoolVar(&legacy, "legacy", false, "Issue the v1 JSON envelope instead of a JWT-VC")
	cmd.StringVar(&outPath, "out", "-", "Output path for the issued credential ('-' for stdout)")
	cmd.BoolVar(&jsonOutput, "json", false, "Wrap the result in a JSON envelope with metadata")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if issuerDID == "" {
		fmt.Fprintln(stderr, "Error: --issuer-did is required")
		cmd.Usage()
		return 2
	}

	raw, err := readInput(documentPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading document: %v\n", err)
		return 1
	}
	if err := assurance.ValidateIngestedDocument(raw); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	var doc assurance.IngestedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		fmt.Fprintf(stderr, "Error parsing document: %v\n", err)
		return 2
	}

	km, err := openKeyManager(keyManagerKind, keyStorePath, databaseURL, encKeyB64)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening key manager: %v\n", err)
		return 1
	}
	if keyID == "" {
		keyID, err = km.ActiveKeyID()
		if err != nil {
			fmt.Fprintf(stderr, "Error: no active signing key (%v)\n", err)
			return 1
		}
	}

	now := time.Now()
	normalized := assurance.Normalize(doc)
	assessment := assurance.Assess(normalized.Controls, normalized.Metadata, nil, now)

	scope := cpoe.Scope{
		Human:             humanScope,
		Providers:         splitCSV(providersCSV),
		FrameworksCovered: splitCSV(frameworksCSV),
		ResourceCount:     len(normalized.Controls),
	}

	subject := cpoe.BuildCredentialSubject(normalized.Controls, normalized.Metadata, assessment, scope, sourceIdentity, doc.RawHash)

	var output []byte
	var marqueID string
	if legacy {
		env, err := cpoe.IssueLegacyEnvelope(km, keyID, subject)
		if err != nil {
			fmt.Fprintf(stderr, "Error issuing legacy envelope: %v\n", err)
			return 1
		}
		output, err = cpoe.MarshalLegacyEnvelope(env)
		if err != nil {
			fmt.Fprintf(stderr, "Error marshaling legacy envelope: %v\n", err)
			return 1
		}
	} else {
		jwt, mid, err := cpoe.IssueJWT(km, keyID, issuerDID, subject, cpoe.IssueOptions{ExpiryDays: expiryDays}, now)
		if err != nil {
			fmt.Fprintf(stderr, "Error issuing credential: %v\n", err)
			return 1
		}
		output = []byte(jwt)
		marqueID = mid
	}

	if jsonOutput {
		wrapped, _ := json.MarshalIndent(map[string]interface{}{
			"credential":     string(output),
			"marqueId":       marqueID,
			"declaredLevel":  assessment.Effective,
			"overallScore":   subject.Summary.OverallScore,
		}, "", "  ")
		output = append(wrapped, '\n')
	} else {
		output = append(output, '\n')
	}

	if err := writeOutput(stdout, outPath, output); err != nil {
		fmt.Fprintf(stderr, "Error writing output: %v\n", err)
		return 1
	}
	slog.Info("cpoe issued", "issuerDid", issuerDID, "declaredLevel", assessment.Effective, "legacy", legacy)
	return 0
}

func splitCSV(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(csv, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
