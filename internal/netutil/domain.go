// Package netutil holds small host and URL helpers shared by the pipeline.
package netutil

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeHost lowercases a raw domain string and strips any scheme, path,
// port and leading "www." label so queue keys are uniform.
func NormalizeHost(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			s = u.Host
		}
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 && isDigits(s[i+1:]) {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "www.")
	return strings.TrimSuffix(s, ".")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// RegisteredDomain returns the eTLD+1 of host ("shop.example.co.uk" →
// "example.co.uk"). Falls back to the input when the public-suffix list
// cannot split it.
func RegisteredDomain(host string) string {
	host = NormalizeHost(host)
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// SecondLevelLabel returns the label left of the public suffix
// ("example.co.uk" → "example"). Used for fuzzy name/domain matching.
func SecondLevelLabel(host string) string {
	d := RegisteredDomain(host)
	if i := strings.Index(d, "."); i > 0 {
		return d[:i]
	}
	return d
}

// TLD returns the last label of the host ("example.de" → "de").
func TLD(host string) string {
	host = NormalizeHost(host)
	if i := strings.LastIndex(host, "."); i >= 0 {
		return host[i+1:]
	}
	return ""
}
