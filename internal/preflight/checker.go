// Package preflight gates queue entries before any page fetch: blacklist
// match, DNS existence, and robots.txt policy.
package preflight

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Firmograph/Firmograph/internal/config"
	"github.com/Firmograph/Firmograph/internal/model"
	"github.com/Firmograph/Firmograph/internal/netutil"
)

// Decision is the outcome of the pre-flight gate. When Allowed is false,
// Status carries the terminal queue status to record. When Allowed is true,
// Host is the resolvable host to fetch (apex or www fallback) and Rules the
// robots ruleset for subsequent path checks. Under the ignore policy Rules
// is nil, which allows every path.
type Decision struct {
	Allowed      bool
	Status       model.Status
	Host         string
	Rules        *Rules
	RobotsReason string
}

// Checker runs the pre-flight sequence: blacklist, DNS, robots.
type Checker struct {
	blacklist *config.Blacklist
	resolver  *Resolver
	robots    *RobotsCache
	policy    string
	userAgent string
}

// NewChecker wires a Checker from configuration. client is used only for
// robots.txt fetches and should carry a short timeout.
func NewChecker(cfg *config.EnvConfig, bl *config.Blacklist, client *http.Client, userAgent string) (*Checker, error) {
	if client == nil {
		client = defaultRobotsClient()
	}
	robots, err := NewRobotsCache(client, cfg.RobotsTTL)
	if err != nil {
		return nil, err
	}
	return &Checker{
		blacklist: bl,
		resolver:  NewResolver(cfg.DNSServers, cfg.DNSTimeout),
		robots:    robots,
		policy:    cfg.RespectRobots,
		userAgent: userAgent,
	}, nil
}

// Check gates domain. The decision order is blacklist, DNS (with one www
// fallback), robots.
func (c *Checker) Check(ctx context.Context, domain string) Decision {
	host := netutil.NormalizeHost(domain)

	if c.Blacklisted(host) {
		return Decision{Status: model.StatusBlacklisted}
	}

	resolved, err := c.resolveWithFallback(ctx, host)
	if err != nil {
		if errors.Is(err, ErrDNSTimeout) {
			return Decision{Status: model.StatusFailedConnection}
		}
		return Decision{Status: model.StatusFailedDNS}
	}

	rules := c.robots.Lookup(ctx, resolved)
	var reason string
	if !rules.Allowed(c.userAgent, "/") {
		reason = rules.DisallowReason(c.userAgent, "/")
		if c.policy == config.RobotsRespect {
			return Decision{Status: model.StatusBlockedRobots, RobotsReason: reason}
		}
	}
	if c.policy == config.RobotsIgnore {
		// Ignore mode records the disallow but never gates: Rules stay nil
		// so every downstream path check allows.
		return Decision{Allowed: true, Host: resolved, RobotsReason: reason}
	}
	return Decision{Allowed: true, Host: resolved, Rules: rules}
}

// resolveWithFallback tries the apex and, when that fails permanently, the
// www label. It returns the host that resolved.
func (c *Checker) resolveWithFallback(ctx context.Context, host string) (string, error) {
	err := c.resolver.Resolve(ctx, host)
	if err == nil {
		return host, nil
	}
	if !strings.HasPrefix(host, "www.") {
		if werr := c.resolver.Resolve(ctx, "www."+host); werr == nil {
			return "www." + host, nil
		}
	}
	return "", err
}

// Blacklisted reports whether host matches any exclusion pattern: exact
// host, dot-prefixed suffix, or case-insensitive keyword substring.
func (c *Checker) Blacklisted(host string) bool {
	if c.blacklist == nil {
		return false
	}
	for _, p := range c.blacklist.Exact {
		if strings.EqualFold(host, p) {
			return true
		}
	}
	for _, p := range c.blacklist.Suffix {
		if strings.HasSuffix(host, strings.ToLower(p)) {
			return true
		}
	}
	for _, p := range c.blacklist.Keyword {
		if strings.Contains(host, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// defaultRobotsClient returns the short-timeout client used for robots
// fetches when the caller does not supply one.
func defaultRobotsClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Second}
}
