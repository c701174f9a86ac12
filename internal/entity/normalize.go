package entity

import (
	"net/url"
	"strings"
)

// NormalizeTarget canonicalizes a user-supplied URL or bare domain into
// a scrape URL and a stable domain key. It never fails: when the input
// cannot be parsed as a URL the domain falls back to a best-effort
// textual strip so downstream stages always receive a non-empty domain.
func NormalizeTarget(raw string) (scrapeURL, domain string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ""
	}
	withScheme := trimmed
	if !strings.Contains(withScheme, "://") {
		withScheme = "https://" + withScheme
	}
	scrapeURL = strings.TrimRight(withScheme, "/")

	u, err := url.Parse(withScheme)
	if err == nil && u.Hostname() != "" {
		domain = strings.ToLower(u.Hostname())
	} else {
		domain = textualDomain(trimmed)
	}
	domain = strings.TrimPrefix(domain, "www.")
	return scrapeURL, domain
}

// textualDomain strips scheme, path, port and whitespace without
// parsing, as a last resort for malformed input.
func textualDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	for _, sep := range []string{"/", "?", "#", ":"} {
		if i := strings.Index(s, sep); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
