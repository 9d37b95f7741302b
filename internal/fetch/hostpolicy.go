package fetch

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Firmograph/Firmograph/internal/preflight"
)

const maxMinDelay = 2 * time.Minute

// HostPolicy serializes and paces outbound requests to one host. The
// limiter enforces the min-delay spacing; Penalize raises it
// multiplicatively when the host pushes back with 429/503.
type HostPolicy struct {
	Host      string
	UserAgent string
	Rules     *preflight.Rules

	mu       sync.Mutex
	minDelay time.Duration
	jitter   time.Duration
	limiter  *rate.Limiter
}

// NewHostPolicy builds a policy with the configured base spacing.
func NewHostPolicy(host string, minDelay, jitter time.Duration, rules *preflight.Rules, userAgent string) *HostPolicy {
	if minDelay <= 0 {
		minDelay = time.Second
	}
	return &HostPolicy{
		Host:      host,
		UserAgent: userAgent,
		Rules:     rules,
		minDelay:  minDelay,
		jitter:    jitter,
		limiter:   rate.NewLimiter(rate.Every(minDelay), 1),
	}
}

// Wait blocks until the next request to the host is due, plus jitter.
func (p *HostPolicy) Wait(ctx context.Context) error {
	p.mu.Lock()
	lim := p.limiter
	jitter := p.jitter
	p.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return err
	}
	if jitter > 0 {
		d := time.Duration(rand.Int64N(int64(jitter)))
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// Penalize doubles the min delay (capped) after a 429 or 503.
func (p *HostPolicy) Penalize() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minDelay *= 2
	if p.minDelay > maxMinDelay {
		p.minDelay = maxMinDelay
	}
	p.limiter.SetLimit(rate.Every(p.minDelay))
}

// MinDelay returns the current spacing, for logging and tests.
func (p *HostPolicy) MinDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.minDelay
}

// PathAllowed checks the robots rules for a specific path under the
// policy's agent. Nil rules allow everything.
func (p *HostPolicy) PathAllowed(path string) bool {
	return p.Rules.Allowed(p.UserAgent, path)
}
