// Package identity derives the stable fingerprints used to recognise the same
// listing across sources and across runs.
package identity

import (
	"crypto/md5" //nolint:gosec // fingerprint, not a security boundary
	"encoding/hex"
	"strings"
)

// Length is the number of hex characters kept from the digest.
const Length = 12

// Canonicalize lower-cases url, drops its query string and fragment and
// strips one trailing slash.
func Canonicalize(url string) string {
	u := strings.TrimSpace(url)
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimSuffix(u, "/")
	return strings.ToLower(strings.TrimSpace(u))
}

// URL returns the identity of a listing URL.
func URL(url string) string {
	return fingerprint(Canonicalize(url))
}

// Title returns the secondary identity of a listing: its whitespace-collapsed,
// lower-cased title joined with the lower-cased source name.
func Title(title, source string) string {
	key := strings.ToLower(strings.Join(strings.Fields(title), " ")) + "|" + strings.ToLower(source)
	return fingerprint(key)
}

func fingerprint(s string) string {
	sum := md5.Sum([]byte(s)) //nolint:gosec
	return hex.EncodeToString(sum[:])[:Length]
}
