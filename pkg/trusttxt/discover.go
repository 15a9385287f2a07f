package trusttxt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/corsair-parley/parley/internal/netguard"
)

// Discoverer fetches trust.txt documents over HTTPS, reusing the same
// no-redirect, reserved-host-blocked transport shape as the DID resolver.
type Discoverer struct {
	client  *http.Client
	timeout time.Duration
}

// NewDiscoverer builds a Discoverer bounded by timeout.
func NewDiscoverer(timeout time.Duration) *Discoverer {
	return &Discoverer{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: timeout,
	}
}

// Discover fetches and parses https://<host>/.well-known/trust.txt.
func (d *Discoverer) Discover(ctx context.Context, host string) (*Document, error) {
	if netguard.IsBlockedHost(host) {
		return nil, fmt.Errorf("trusttxt: host %q is blocked", host)
	}
	if _, blocked := netguard.ResolveAndCheck(host); blocked {
		return nil, fmt.Errorf("trusttxt: host %q resolves to a blocked address", host)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	url := fmt.Sprintf("https://%s/.well-known/trust.txt", host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("trusttxt: build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trusttxt: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trusttxt: %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("trusttxt: read body: %w", err)
	}

	return Parse(bytes.NewReader(body))
}
