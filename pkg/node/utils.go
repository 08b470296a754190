package node

import (
	"net"
	"net/http"
	"strings"
)

// DefaultPort is the Peerster UI port used when an address carries none.
const DefaultPort = "8080"

// NormalizeHostPort cuts the http:// https:// prefixes and any trailing slash
// from the input address and adds a default port
func NormalizeHostPort(addr, defPort string) string {
	addr = strings.TrimSpace(addr)
	if rest, ok := strings.CutPrefix(addr, "http://"); ok {
		addr = rest
	} else if rest, ok := strings.CutPrefix(addr, "https://"); ok {
		addr = rest
	}
	addr = strings.TrimRight(addr, "/")

	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}

	return addr + ":" + defPort
}

// opLabel names a request for metrics, e.g. "GET /message".
func opLabel(r *http.Request) string {
	return r.Method + " " + r.URL.Path
}
