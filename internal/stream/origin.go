package stream

import (
	"net"
	"net/url"
	"strings"
)

// isAllowedWebSocketOrigin accepts requests without an Origin header, from the
// same host, from localhost, or from any host under the server's base domain.
func isAllowedWebSocketOrigin(origin, host string) bool {
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return false
	}
	originHost := strings.ToLower(u.Hostname())
	serverHost := strings.ToLower(stripPort(host))

	if originHost == serverHost {
		return true
	}
	if originHost == "localhost" || originHost == "127.0.0.1" || originHost == "::1" {
		return true
	}

	baseDomain := extractBaseDomain(serverHost)
	if baseDomain == "" {
		return false
	}
	return originHost == baseDomain || strings.HasSuffix(originHost, "."+baseDomain)
}

// extractBaseDomain returns the last two labels of host.
// e.g. "upload.example.com" -> "example.com". Returns "" for single-label hosts and IPs.
func extractBaseDomain(host string) string {
	host = stripPort(host)
	if net.ParseIP(host) != nil {
		return ""
	}
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2] + "." + parts[len(parts)-1]
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
