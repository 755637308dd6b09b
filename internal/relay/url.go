package relay

import (
	"net/url"
	"strings"
)

// Hosts exempt from, or forced into, the subdomain-stripping rule.
const (
	TikTokGeneralDomain = "tiktok.com"
	TikTokMobileDomain  = "vm.tiktok.com"
	YouTubeMobileDomain = "youtu.be"
)

// ClassifiedURL is the outcome of parsing a raw request URL. The zero
// value is the invalid variant.
type ClassifiedURL struct {
	URL    *url.URL
	Domain string
}

// Valid reports whether classification succeeded.
func (c ClassifiedURL) Valid() bool { return c.URL != nil }

// Classify parses raw as an absolute URL and extracts an apex-ish domain
// for allow-list comparison. Empty or syntactically invalid input yields
// the invalid variant. Pure string logic, no network access.
func Classify(raw string) ClassifiedURL {
	if raw == "" {
		return ClassifiedURL{}
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Hostname() == "" {
		return ClassifiedURL{}
	}
	return ClassifiedURL{URL: u, Domain: extractDomain(u.Hostname())}
}

// extractDomain strips the leftmost label from hosts that carry a "www"
// marker (mobile YouTube excepted) or equal the TikTok short-link host,
// rejoining the rest with dots. Everything else passes through unchanged:
// "www.example.com" -> "example.com", "vm.tiktok.com" -> "tiktok.com",
// "youtu.be" and "localhost" stay as they are.
func extractDomain(host string) string {
	if (strings.Contains(host, "www") && host != YouTubeMobileDomain) || host == TikTokMobileDomain {
		labels := strings.Split(host, ".")
		return strings.Join(labels[1:], ".")
	}
	return host
}

// ResourceID derives the stable identifier of a media resource from its
// URL: the last path segment. It doubles as the metadata store key and
// the on-disk filename stem, so it must be identical across retries.
func ResourceID(raw string) string {
	trimmed := strings.TrimRight(raw, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
