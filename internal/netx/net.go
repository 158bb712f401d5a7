// Package netx holds small address helpers shared by the transports.
package netx

import (
	"net"
	"strings"
)

// HostOnly strips the port from a "host:port" peer address. Anything that
// does not parse is returned trimmed, and an empty address becomes "unknown"
// so it still maps to one rate-limit bucket.
func HostOnly(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
