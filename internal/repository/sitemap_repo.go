package repository

import "context"

// SitemapDiscovery resolves a domain to its page set. Best-effort:
// absence of a sitemap degrades to a fallback or an empty list plus a
// caller-visible notice, never an error for the missing-sitemap case.
type SitemapDiscovery interface {
	Discover(ctx context.Context, domain string) (urls []string, notice string, err error)
}
