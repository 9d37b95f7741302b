package fetch

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// quarantineAfter is the consecutive-failure count that benches a proxy.
const quarantineAfter = 3

// Proxy is one pool member with its dedicated transport and health state.
type Proxy struct {
	URL *url.URL

	transport *http.Transport

	mu               sync.Mutex
	consecFailures   int
	quarantinedUntil time.Time
}

// Transport returns the proxy-bound transport for building a client.
func (p *Proxy) Transport() *http.Transport { return p.transport }

// MarkSuccess clears the failure streak.
func (p *Proxy) MarkSuccess() {
	p.mu.Lock()
	p.consecFailures = 0
	p.mu.Unlock()
}

// MarkFailure records a failure; after quarantineAfter in a row the proxy is
// benched for the pool cooldown.
func (p *Proxy) markFailure(cooldown time.Duration) {
	p.mu.Lock()
	p.consecFailures++
	if p.consecFailures >= quarantineAfter {
		p.quarantinedUntil = time.Now().Add(cooldown)
		p.consecFailures = 0
	}
	p.mu.Unlock()
}

func (p *Proxy) available(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.After(p.quarantinedUntil)
}

// ProxyPool hands out proxies round-robin, skipping quarantined members.
type ProxyPool struct {
	proxies  []*Proxy
	next     atomic.Uint64
	cooldown time.Duration
}

// NewProxyPool parses endpoint URLs into a pool. An empty endpoint list
// returns a nil pool, which disables the proxy tier.
func NewProxyPool(endpoints []string, cooldown time.Duration) (*ProxyPool, error) {
	if len(endpoints) == 0 {
		return nil, nil
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	pool := &ProxyPool{cooldown: cooldown}
	for _, ep := range endpoints {
		u, err := url.Parse(ep)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy endpoint %q", ep)
		}
		pool.proxies = append(pool.proxies, &Proxy{
			URL:       u,
			transport: &http.Transport{Proxy: http.ProxyURL(u)},
		})
	}
	return pool, nil
}

// Next returns the next healthy proxy, or nil when all are quarantined.
func (pp *ProxyPool) Next() *Proxy {
	if pp == nil || len(pp.proxies) == 0 {
		return nil
	}
	now := time.Now()
	n := len(pp.proxies)
	start := int(pp.next.Add(1)-1) % n
	for i := 0; i < n; i++ {
		p := pp.proxies[(start+i)%n]
		if p.available(now) {
			return p
		}
	}
	return nil
}

// MarkFailure records a failure against p using the pool cooldown.
func (pp *ProxyPool) MarkFailure(p *Proxy) {
	if pp == nil || p == nil {
		return
	}
	p.markFailure(pp.cooldown)
}
