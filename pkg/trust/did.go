// Package trust implements CPOE verification and the trust chain:
// DID:web resolution, JWT-VC verification (direct and zero-trust),
// issuer tier derivation, key-attestation chains, and freshness staples
// (spec.md §4.6).
package trust

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/corsair-parley/parley/internal/netguard"
)

// DIDResolveError is one of the discriminated DID-resolver failure
// reasons of spec.md §7.
type DIDResolveError string

const (
	ErrBlockedHost   DIDResolveError = "blocked_host"
	ErrNonHTTPS      DIDResolveError = "non_https"
	ErrNetworkTimeout DIDResolveError = "network_timeout"
	ErrParseError    DIDResolveError = "parse_error"
	ErrIDMismatch    DIDResolveError = "id_mismatch"
)

func (e DIDResolveError) Error() string { return string(e) }

// HTTPStatusError reports a non-2xx response, carrying the literal status
// code as spec.md §7's http_<status> tag.
type HTTPStatusError int

func (e HTTPStatusError) Error() string { return fmt.Sprintf("http_%d", int(e)) }

// VerificationMethod is one entry of a DIDDocument's verificationMethod
// array.
type VerificationMethod struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"`
	Controller   string                 `json:"controller"`
	PublicKeyJWK map[string]interface{} `json:"publicKeyJwk"`
}

// DIDDocument is the document retrieved at
// https://<host>/.well-known/did.json (spec.md §3).
type DIDDocument struct {
	Context            interface{}           `json:"@context"`
	ID                  string                `json:"id"`
	VerificationMethod  []VerificationMethod  `json:"verificationMethod"`
	Authentication      []string              `json:"authentication,omitempty"`
	AssertionMethod     []string              `json:"assertionMethod,omitempty"`
}

// Resolver fetches DID documents over HTTPS with a host guard, no
// redirect following, and a fixed timeout (spec.md §4.6.1, §5).
type Resolver struct {
	client  *http.Client
	timeout time.Duration
}

// NewResolver builds a Resolver with the given fetch timeout.
func NewResolver(timeout time.Duration) *Resolver {
	return &Resolver{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: timeout,
	}
}

// didWebURL reconstructs the HTTPS URL a did:web identifier resolves to.
func didWebURL(did string) (string, error) {
	const prefix = "did:web:"
	if !strings.HasPrefix(did, prefix) {
		return "", ErrParseError
	}
	rest := strings.TrimPrefix(did, prefix)
	parts := strings.Split(rest, ":")
	for i, p := range parts {
		decoded, err := url.PathUnescape(p)
		if err != nil {
			return "", ErrParseError
		}
		parts[i] = decoded
	}
	host := parts[0]
	if host == "" {
		return "", ErrParseError
	}
	if len(parts) == 1 {
		return "https://" + host + "/.well-known/did.json", nil
	}
	return "https://" + host + "/" + strings.Join(parts[1:], "/") + "/did.json", nil
}

// Resolve fetches and parses the DID document for did, per spec.md §4.6.1.
func (r *Resolver) Resolve(ctx context.Context, did string) (*DIDDocument, error) {
	target, err := didWebURL(did)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, ErrParseError
	}
	if u.Scheme != "https" {
		return nil, ErrNonHTTPS
	}
	if netguard.IsBlockedHost(u.Hostname()) {
		return nil, ErrBlockedHost
	}
	if _, blocked := netguard.ResolveAndCheck(u.Hostname()); blocked {
		return nil, ErrBlockedHost
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, ErrParseError
	}
	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrNetworkTimeout
		}
		return nil, ErrNetworkTimeout
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, HTTPStatusError(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrParseError
	}

	var doc DIDDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, ErrParseError
	}
	if doc.ID != did {
		return nil, ErrIDMismatch
	}
	return &doc, nil
}

// FindVerificationMethod returns the verificationMethod entry whose id
// equals kid, if present.
func (d *DIDDocument) FindVerificationMethod(kid string) (*VerificationMethod, bool) {
	for i := range d.VerificationMethod {
		if d.VerificationMethod[i].ID == kid {
			return &d.VerificationMethod[i], true
		}
	}
	return nil, false
}
