// Package sitemap resolves a domain to its page set. It fetches
// /sitemap.xml, follows one level of sitemap-index indirection, and
// degrades gracefully: when no sitemap exists, same-host links are
// harvested from the homepage, and absence of both yields an empty list
// plus a caller-visible notice, never an error.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/designaudit-service/pkg/utils"
)

const (
	maxSitemapBytes = 10 << 20 // 10MB cap per fetched document
	maxChildMaps    = 10
)

// Discovery fetches and parses sitemaps over HTTP.
type Discovery struct {
	client *http.Client
}

// NewDiscovery creates a Discovery. A nil client gets a sane default.
func NewDiscovery(client *http.Client) *Discovery {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Discovery{client: client}
}

// xmlURLSet is the root element of a standard sitemap XML file.
type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []xmlURL `xml:"url"`
}

// xmlURL is a single <url> entry inside a <urlset>.
type xmlURL struct {
	Loc string `xml:"loc"`
}

// xmlSitemapIndex is the root element of a sitemap index XML file.
type xmlSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []xmlSitemap `xml:"sitemap"`
}

// xmlSitemap is a single <sitemap> entry inside a <sitemapindex>.
type xmlSitemap struct {
	Loc string `xml:"loc"`
}

// Discover resolves the domain's page set. The notice is non-empty when
// discovery had to degrade (no sitemap, homepage fallback, nothing at
// all).
func (d *Discovery) Discover(ctx context.Context, domain string) ([]string, string, error) {
	base := utils.EnsureScheme(domain)
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, "", fmt.Errorf("parse domain %q: %w", domain, err)
	}

	body, err := d.fetch(ctx, base+"/sitemap.xml")
	if err == nil {
		if urls := parseAny(body); len(urls) > 0 {
			return d.expandIndex(ctx, urls), "", nil
		}
	}

	// No usable sitemap; fall back to same-host homepage links.
	urls, ferr := d.homepageLinks(ctx, baseURL)
	if ferr != nil || len(urls) == 0 {
		return nil, fmt.Sprintf("no sitemap found for %s and homepage yielded no links; supply an explicit URL list", domain), nil
	}
	return urls, fmt.Sprintf("no sitemap found for %s; using %d links discovered on the homepage", domain, len(urls)), nil
}

// parseAny tries the urlset form first, then the index form, returning
// the contained locations either way.
func parseAny(body []byte) []string {
	var urlset xmlURLSet
	if err := xml.Unmarshal(body, &urlset); err == nil && len(urlset.URLs) > 0 {
		locs := make([]string, 0, len(urlset.URLs))
		for _, u := range urlset.URLs {
			if loc := strings.TrimSpace(u.Loc); loc != "" {
				locs = append(locs, loc)
			}
		}
		return locs
	}

	var index xmlSitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		locs := make([]string, 0, len(index.Sitemaps))
		for _, sm := range index.Sitemaps {
			if loc := strings.TrimSpace(sm.Loc); loc != "" {
				locs = append(locs, loc)
			}
		}
		return locs
	}

	return nil
}

// expandIndex follows one level of sitemap-index indirection: entries
// ending in .xml are fetched and their page URLs inlined.
func (d *Discovery) expandIndex(ctx context.Context, locs []string) []string {
	var pages []string
	children := 0

	for _, loc := range locs {
		if !strings.HasSuffix(strings.ToLower(loc), ".xml") {
			pages = append(pages, loc)
			continue
		}
		if children >= maxChildMaps {
			continue
		}
		children++

		body, err := d.fetch(ctx, loc)
		if err != nil {
			continue
		}
		for _, child := range parseAny(body) {
			if !strings.HasSuffix(strings.ToLower(child), ".xml") {
				pages = append(pages, child)
			}
		}
	}

	return dedupe(pages)
}

// homepageLinks harvests same-host anchor targets from the homepage.
func (d *Discovery) homepageLinks(ctx context.Context, baseURL *url.URL) ([]string, error) {
	body, err := d.fetch(ctx, baseURL.String())
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	urls := []string{baseURL.String()}
	seen[utils.NormalizePagePath(baseURL.String())] = true

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		abs, err := baseURL.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if abs.Hostname() != baseURL.Hostname() {
			return
		}
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		key := utils.NormalizePagePath(abs.String())
		if seen[key] {
			return
		}
		seen[key] = true
		urls = append(urls, abs.String())
	})

	return urls, nil
}

func (d *Discovery) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
}

func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		key := utils.NormalizePagePath(u)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, u)
	}
	return out
}
