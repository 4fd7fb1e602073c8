package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller address used to key order rate limits and access
// logs. The first X-Forwarded-For hop wins, then X-Real-IP, then RemoteAddr.
// Header values that do not parse as an IP are ignored so junk cannot mint
// fresh rate-limit buckets.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
	for _, candidate := range []string{first, r.Header.Get("X-Real-IP")} {
		if ip := net.ParseIP(strings.TrimSpace(candidate)); ip != nil {
			return ip.String()
		}
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
