package preflight

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/maypok86/otter"
	"github.com/temoto/robotstxt"
)

const robotsMaxBytes = 512 << 10

// Rules is the cached parse of one host's robots.txt. raw is kept so a
// human-readable disallow reason can be reconstructed.
type Rules struct {
	data *robotstxt.RobotsData
	raw  string
}

// RobotsCache fetches and caches per-host robots.txt with TTL expiry.
type RobotsCache struct {
	client *http.Client
	cache  otter.Cache[string, *Rules]
}

// NewRobotsCache builds a cache holding up to 10k hosts, each entry expiring
// after ttl.
func NewRobotsCache(client *http.Client, ttl time.Duration) (*RobotsCache, error) {
	cache, err := otter.MustBuilder[string, *Rules](10_000).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build robots cache: %w", err)
	}
	return &RobotsCache{client: client, cache: cache}, nil
}

// Lookup returns the robots rules for host, fetching on a cache miss.
// Unreachable or non-2xx robots.txt yields allow-all rules.
func (rc *RobotsCache) Lookup(ctx context.Context, host string) *Rules {
	if entry, ok := rc.cache.Get(host); ok {
		return entry
	}
	entry := rc.fetch(ctx, host)
	rc.cache.Set(host, entry)
	return entry
}

func (rc *RobotsCache) fetch(ctx context.Context, host string) *Rules {
	for _, scheme := range []string{"https", "http"} {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, scheme+"://"+host+"/robots.txt", nil)
		if err != nil {
			continue
		}
		resp, err := rc.client.Do(req)
		if err != nil {
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBytes))
		resp.Body.Close()
		if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
			continue
		}
		data, err := robotstxt.FromBytes(body)
		if err != nil {
			break
		}
		return &Rules{data: data, raw: string(body)}
	}
	allowAll, _ := robotstxt.FromBytes(nil)
	return &Rules{data: allowAll}
}

// Allowed evaluates path for the agent against the entry's rules.
func (e *Rules) Allowed(agent, path string) bool {
	if e == nil || e.data == nil {
		return true
	}
	return e.data.FindGroup(agent).Test(path)
}

// DisallowReason reconstructs the Disallow rule that blocks path for agent,
// in the form "Disallow: /foo". Returns a generic reason when the raw text
// is unavailable.
func (e *Rules) DisallowReason(agent, path string) string {
	if e == nil || e.raw == "" {
		return "robots.txt disallow"
	}
	agent = strings.ToLower(agent)

	var best string
	applies := false
	for _, line := range strings.Split(e.raw, "\n") {
		line = strings.TrimSpace(line)
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "user-agent":
			ua := strings.ToLower(val)
			applies = ua == "*" || strings.Contains(agent, ua)
		case "disallow":
			if applies && val != "" && strings.HasPrefix(path, val) && len(val) > len(best) {
				best = val
			}
		}
	}
	if best == "" {
		return "robots.txt disallow"
	}
	return "Disallow: " + best
}
