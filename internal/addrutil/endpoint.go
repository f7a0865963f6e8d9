// Package addrutil normalizes control-plane endpoint strings.
package addrutil

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Endpoint returns addr as "host:port", filling in defaultPort when addr
// carries no port. An empty host is kept so ":8889" style listen addresses
// work unchanged.
func Endpoint(addr string, defaultPort int) (string, error) {
	a := strings.TrimSpace(addr)
	if a == "" {
		return "", fmt.Errorf("empty address")
	}

	host, port, ok := splitHostPort(a)
	if !ok {
		if defaultPort <= 0 || defaultPort > 65535 {
			return "", fmt.Errorf("address %q has no port", addr)
		}
		port = strconv.Itoa(defaultPort)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 0 || p > 65535 {
		return "", fmt.Errorf("invalid port in %q", addr)
	}
	return net.JoinHostPort(host, port), nil
}

// Host returns the host portion of addr, with or without a port.
func Host(addr string) string {
	host, _, ok := splitHostPort(strings.TrimSpace(addr))
	if !ok {
		return strings.Trim(strings.TrimSpace(addr), "[]")
	}
	return host
}

func splitHostPort(a string) (string, string, bool) {
	if a == "" {
		return "", "", false
	}

	// Fast path: "host:port" (IPv4 or bracketed IPv6).
	if h, p, err := net.SplitHostPort(a); err == nil {
		return h, p, true
	}

	// Bracketed IPv6 without a port.
	if strings.HasPrefix(a, "[") && strings.HasSuffix(a, "]") {
		return strings.Trim(a, "[]"), "", false
	}

	// Raw IPv6 literals are never given a port here; "2001:db8::1" must not
	// lose its last group.
	if strings.Count(a, ":") > 1 {
		if ip := net.ParseIP(a); ip != nil {
			return a, "", false
		}
		// Unbracketed IPv6 "host:port": peel off the last ":port".
		if last := strings.LastIndexByte(a, ':'); last > 0 && last < len(a)-1 {
			host := a[:last]
			port := a[last+1:]
			if _, err := strconv.Atoi(port); err == nil && net.ParseIP(host) != nil {
				return host, port, true
			}
		}
		return a, "", false
	}
	return a, "", false
}
