// Package urlguard decides whether a user-supplied calendar URL may be
// fetched at all.
//
// The private-host check looks at the hostname literal only. It does not
// resolve DNS and it does not re-check redirect targets, so a public name
// that resolves to an internal address, or a public URL redirecting to one,
// still passes. Closing that gap means re-validating the resolved IP of every
// hop against the same table.
package urlguard

import (
	"net/netip"
	"net/url"
	"strings"
)

// MaxURLLength is the longest URL string accepted.
const MaxURLLength = 2000

// Reason classifies a rejected URL.
type Reason string

const (
	InvalidURL          Reason = "InvalidUrl"
	UnsupportedScheme   Reason = "UnsupportedScheme"
	URLTooLong          Reason = "UrlTooLong"
	PrivateHostRejected Reason = "PrivateHostRejected"
)

// Error is returned by Validate. Message is safe to show to the client.
type Error struct {
	Reason  Reason
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var privatePrefixes = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("::1/128"),
}

// Validate runs the checks in order: syntax, scheme, length, host class.
// A nil return means the URL may be fetched.
func Validate(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return &Error{Reason: InvalidURL, Message: "Missing or invalid URL"}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return &Error{Reason: InvalidURL, Message: "URL non valida"}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return &Error{Reason: UnsupportedScheme, Message: "Solo protocolli http(s) sono permessi"}
	}
	if u.Opaque != "" || u.Hostname() == "" {
		return &Error{Reason: InvalidURL, Message: "URL non valida"}
	}

	if len(raw) > MaxURLLength {
		return &Error{Reason: URLTooLong, Message: "URL troppo lungo"}
	}

	if IsPrivateHost(u.Hostname()) {
		return &Error{Reason: PrivateHostRejected, Message: "Hostname non valido (localhost o indirizzo privato non consentito)"}
	}
	return nil
}

// IsPrivateHost reports whether host (without port or brackets) names
// loopback or an RFC 1918 range.
func IsPrivateHost(host string) bool {
	h := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if h == "" {
		return false
	}
	if h == "localhost" || h == "loopback" {
		return true
	}
	// Zone identifiers ("fe80::1%eth0") are dropped before matching.
	if i := strings.IndexByte(h, '%'); i >= 0 {
		h = h[:i]
	}
	addr, err := netip.ParseAddr(h)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range privatePrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
