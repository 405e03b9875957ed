package utils

import (
	"encoding/json"
	"net"
	"net/http"
	"regexp"
	"strings"
)

// walletAddressRe matches the 0x-prefixed 20-byte hex chain address format.
var walletAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsWalletAddress reports whether s looks like a chain address.
func IsWalletAddress(s string) bool {
	return walletAddressRe.MatchString(s)
}

// WriteJSON serializes v as the response body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ClientIP extracts the caller's address for rate-limit keying, preferring
// the first X-Forwarded-For hop when the gateway sits behind a proxy.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
