// Package clientip derives the originating address of a call.
//
// The first X-Forwarded-For entry is trusted as the client address. That is
// only correct behind exactly one proxy that overwrites the header; anywhere
// else the value is caller-controlled and must not be used for access
// decisions.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

const (
	Unknown = "unknown"

	HeaderForwardedFor = "X-Forwarded-For"
)

// Resolve picks the first hop of forwardedFor, falling back to the host part
// of the transport peer address and finally to Unknown.
func Resolve(forwardedFor, peer string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	peer = strings.TrimSpace(peer)
	if peer == "" {
		return Unknown
	}
	host, _, err := net.SplitHostPort(peer)
	if err != nil {
		// no port
		return peer
	}
	if host == "" {
		return Unknown
	}
	return host
}

func FromRequest(r *http.Request) string {
	if r == nil {
		return Unknown
	}
	return Resolve(r.Header.Get(HeaderForwardedFor), r.RemoteAddr)
}
