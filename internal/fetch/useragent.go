package fetch

import "sync/atomic"

// defaultUserAgents is the curated rotation pool. Entries are current
// mainstream browser strings; the crawler never fabricates bot-like agents
// because many legal pages cloak against them.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
}

// UAPool hands out user agents round-robin.
type UAPool struct {
	agents []string
	next   atomic.Uint64
}

// NewUAPool builds a pool from agents, falling back to the curated defaults
// when empty.
func NewUAPool(agents []string) *UAPool {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	return &UAPool{agents: agents}
}

// Next returns the next agent in rotation.
func (p *UAPool) Next() string {
	n := p.next.Add(1)
	return p.agents[(n-1)%uint64(len(p.agents))]
}
