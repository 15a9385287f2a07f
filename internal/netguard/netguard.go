// Package netguard implements the process-wide reserved-host blocklist
// shared by the DID resolver and the SCITT HTTP client (spec.md §5, §4.6.1).
package netguard

import (
	"net"
	"strings"
)

var blockedCIDRs = mustParseCIDRs(
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"::1/128",
	"fc00::/7", // ULA
	"fe80::/10",
	"224.0.0.0/4", // multicast
	"ff00::/8",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic("netguard: invalid cidr literal " + c)
		}
		out = append(out, n)
	}
	return out
}

// IsBlockedHost reports whether host (a hostname or literal IP) resolves
// into the reserved blocklist, or is itself "localhost". It never performs
// network I/O beyond a local address parse — callers resolve DNS
// separately and should also check IsBlockedIP against every resolved
// address before connecting.
func IsBlockedHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "localhost" || h == "localhost.localdomain" {
		return true
	}
	if ip := net.ParseIP(h); ip != nil {
		return IsBlockedIP(ip)
	}
	return false
}

// IsBlockedIP reports whether ip falls within the reserved blocklist.
func IsBlockedIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, n := range blockedCIDRs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ResolveAndCheck resolves host and reports the first blocked address
// found among its A/AAAA records, or ("", false) if none are blocked.
// An unresolvable host is reported as not blocked; callers must still
// handle the resulting dial failure.
func ResolveAndCheck(host string) (blockedAddr string, blocked bool) {
	if IsBlockedHost(host) {
		return host, true
	}
	addrs, err := net.LookupIP(host)
	if err != nil {
		return "", false
	}
	for _, a := range addrs {
		if IsBlockedIP(a) {
			return a.String(), true
		}
	}
	return "", false
}
