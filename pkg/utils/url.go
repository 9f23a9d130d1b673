package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// HashURL creates a SHA256 hash of a URL string, useful as a consistent,
// safe key for Redis and Postgres lookups.
func HashURL(rawURL string) string {
	h := sha256.New()
	h.Write([]byte(rawURL))
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizePagePath reduces a URL to host + path with the trailing slash
// stripped, so the same page reached via trivially different URLs
// deduplicates to one merge key.
func NormalizePagePath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	p := strings.TrimSuffix(u.Path, "/")
	if p == "" {
		p = "/"
	}
	return u.Hostname() + p
}

// EnsureScheme prepends https:// when the value has no scheme, so bare
// domains are accepted wherever URLs are.
func EnsureScheme(domain string) string {
	if strings.Contains(domain, "://") {
		return domain
	}
	return "https://" + domain
}
