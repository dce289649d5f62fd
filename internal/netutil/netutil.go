// SPDX-License-Identifier: MIT

// Package netutil normalizes the addresses this library sends to the
// gateway: the gateway base URL itself and the ISA endpoint list passed
// to the connect call.
package netutil

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// NormalizeHost validates and normalizes a bare host for comparison and
// wire use. IPs are canonicalized, names are lowercased and converted to
// their IDNA ASCII form.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.Contains(host, "://") {
		return "", fmt.Errorf("host must not include scheme: %s", raw)
	}
	if strings.Contains(host, "/") {
		return "", fmt.Errorf("host must not include path: %s", raw)
	}
	if strings.Contains(host, "@") {
		return "", fmt.Errorf("host must not include userinfo: %s", raw)
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	if strings.Contains(host, "%") {
		return "", fmt.Errorf("host must not include zone: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// NormalizeEndpoint canonicalizes one ISA endpoint to "host[:port]".
// Accepts bare hosts, "host:port" authorities and full http(s) URLs; the
// scheme and any path are dropped because the gateway expects plain
// authorities in its connect list.
func NormalizeEndpoint(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("endpoint is empty")
	}
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", fmt.Errorf("invalid endpoint %q: %w", raw, err)
		}
		if u.Host == "" {
			return "", fmt.Errorf("endpoint %q has no host", raw)
		}
		s = u.Host
	}

	host, port, err := splitAuthority(s)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	host, err = NormalizeHost(host)
	if err != nil {
		return "", err
	}
	if port == "" {
		return bracketIfIPv6(host), nil
	}
	return bracketIfIPv6(host) + ":" + port, nil
}

// EnsureHTTPURL normalizes a gateway base address: whitespace and any
// trailing slash are trimmed, and a missing scheme defaults to http.
func EnsureHTTPURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("url is empty")
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func splitAuthority(s string) (host, port string, err error) {
	if strings.HasPrefix(s, "[") {
		// Bracketed IPv6, with or without port.
		if h, p, serr := net.SplitHostPort(s); serr == nil {
			return h, p, validatePort(p)
		}
		return strings.TrimSuffix(strings.TrimPrefix(s, "["), "]"), "", nil
	}
	if strings.Count(s, ":") == 1 {
		h, p, serr := net.SplitHostPort(s)
		if serr != nil {
			return "", "", serr
		}
		return h, p, validatePort(p)
	}
	// No port, or an unbracketed IPv6 literal.
	return s, "", nil
}

func validatePort(p string) error {
	n, err := strconv.Atoi(p)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid port %q", p)
	}
	return nil
}

func bracketIfIPv6(host string) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}
